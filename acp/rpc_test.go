package acp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"
)

// testAgent is a minimal agent for exercising the connection end to end. It
// echoes prompts back as agent message chunks and reads a file through the
// client before ending the turn.
type testAgent struct {
	conn *AgentSideConnection

	mu        sync.Mutex
	cancels   map[SessionID]context.CancelFunc
	nextSess  int
	blockTurn bool
}

func newTestAgent() *testAgent {
	return &testAgent{cancels: make(map[SessionID]context.CancelFunc)}
}

func (a *testAgent) Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResponse, error) {
	version := req.ProtocolVersion
	if version > ProtocolVersionLatest {
		version = ProtocolVersionLatest
	}
	return &InitializeResponse{
		ProtocolVersion: version,
		AgentCapabilities: AgentCapabilities{
			PromptCapabilities: PromptCapabilities{EmbeddedContext: true},
		},
		AgentInfo: &Implementation{Name: "test-agent", Version: "0.1.0"},
	}, nil
}

func (a *testAgent) Authenticate(ctx context.Context, req *AuthenticateRequest) (*AuthenticateResponse, error) {
	return nil, ErrMethodNotFound()
}

func (a *testAgent) NewSession(ctx context.Context, req *NewSessionRequest) (*NewSessionResponse, error) {
	a.mu.Lock()
	a.nextSess++
	sid := SessionID(fmt.Sprintf("sess_%d", a.nextSess))
	a.mu.Unlock()
	return &NewSessionResponse{SessionID: sid}, nil
}

func (a *testAgent) Prompt(ctx context.Context, req *PromptRequest) (*PromptResponse, error) {
	turnCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancels[req.SessionID] = cancel
	blocked := a.blockTurn
	a.mu.Unlock()
	defer cancel()

	if blocked {
		<-turnCtx.Done()
		return &PromptResponse{StopReason: StopReasonCancelled}, nil
	}

	for _, block := range req.Prompt {
		if block.Text == nil {
			continue
		}
		err := a.conn.SessionUpdate(turnCtx, &SessionNotification{
			SessionID: req.SessionID,
			Update:    SessionUpdate{AgentMessageChunk: &ContentChunk{Content: TextBlock("echo: " + block.Text.Text)}},
		})
		if err != nil {
			return nil, err
		}
	}

	read, err := a.conn.ReadTextFile(turnCtx, &ReadTextFileRequest{
		SessionID: req.SessionID,
		Path:      "/project/notes.txt",
	})
	if err != nil {
		return nil, err
	}
	err = a.conn.SessionUpdate(turnCtx, &SessionNotification{
		SessionID: req.SessionID,
		Update:    SessionUpdate{AgentMessageChunk: &ContentChunk{Content: TextBlock(read.Content)}},
	})
	if err != nil {
		return nil, err
	}
	return &PromptResponse{StopReason: StopReasonEndTurn}, nil
}

func (a *testAgent) Cancel(ctx context.Context, n *CancelNotification) error {
	a.mu.Lock()
	cancel, ok := a.cancels[n.SessionID]
	a.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// testClient records session updates and serves a canned file system.
type testClient struct {
	mu      sync.Mutex
	updates []SessionNotification
}

func (c *testClient) RequestPermission(ctx context.Context, req *RequestPermissionRequest) (*RequestPermissionResponse, error) {
	if len(req.Options) == 0 {
		return nil, ErrInvalidParams()
	}
	return &RequestPermissionResponse{
		Outcome: RequestPermissionOutcome{Selected: &SelectedPermissionOutcome{OptionID: req.Options[0].OptionID}},
	}, nil
}

func (c *testClient) SessionUpdated(ctx context.Context, n *SessionNotification) error {
	c.mu.Lock()
	c.updates = append(c.updates, *n)
	c.mu.Unlock()
	return nil
}

func (c *testClient) ReadTextFile(ctx context.Context, req *ReadTextFileRequest) (*ReadTextFileResponse, error) {
	if req.Path != "/project/notes.txt" {
		return nil, ErrResourceNotFound("file://" + req.Path)
	}
	return &ReadTextFileResponse{Content: "file contents"}, nil
}

func (c *testClient) WriteTextFile(ctx context.Context, req *WriteTextFileRequest) (*WriteTextFileResponse, error) {
	return &WriteTextFileResponse{}, nil
}

func (c *testClient) updateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

// connect wires an agent and a client together over in-memory pipes.
func connect(t *testing.T, agent *testAgent, client Client) (*AgentSideConnection, *ClientSideConnection) {
	t.Helper()
	clientToAgentR, clientToAgentW := io.Pipe()
	agentToClientR, agentToClientW := io.Pipe()
	t.Cleanup(func() {
		clientToAgentW.Close()
		agentToClientW.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	asc := NewAgentSideConnection(ctx, agent, agentToClientW, clientToAgentR)
	agent.conn = asc
	csc := NewClientSideConnection(ctx, client, clientToAgentW, agentToClientR)
	return asc, csc
}

func TestConnectionPromptTurn(t *testing.T) {
	agent := newTestAgent()
	client := &testClient{}
	_, csc := connect(t, agent, client)
	ctx := context.Background()

	init, err := csc.Initialize(ctx, &InitializeRequest{
		ProtocolVersion:    ProtocolVersionLatest,
		ClientCapabilities: ClientCapabilities{Fs: FileSystemCapability{ReadTextFile: true}},
	})
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if init.ProtocolVersion != ProtocolVersionLatest {
		t.Errorf("protocol version = %d, want %d", init.ProtocolVersion, ProtocolVersionLatest)
	}
	if init.AgentInfo == nil || init.AgentInfo.Name != "test-agent" {
		t.Errorf("agent info = %+v", init.AgentInfo)
	}

	sess, err := csc.NewSession(ctx, &NewSessionRequest{Cwd: "/project", McpServers: []McpServer{}})
	if err != nil {
		t.Fatalf("session/new failed: %v", err)
	}
	if sess.SessionID == "" {
		t.Fatal("empty session id")
	}

	resp, err := csc.Prompt(ctx, &PromptRequest{
		SessionID: sess.SessionID,
		Prompt:    []ContentBlock{TextBlock("hello")},
	})
	if err != nil {
		t.Fatalf("session/prompt failed: %v", err)
	}
	if resp.StopReason != StopReasonEndTurn {
		t.Errorf("stop reason = %q, want %q", resp.StopReason, StopReasonEndTurn)
	}

	// Updates are notifications, give them a moment to land.
	deadline := time.Now().Add(2 * time.Second)
	for client.updateCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.updates) != 2 {
		t.Fatalf("update count = %d, want 2", len(client.updates))
	}
	first := client.updates[0].Update
	if first.AgentMessageChunk == nil || first.AgentMessageChunk.Content.Text.Text != "echo: hello" {
		t.Errorf("first update = %+v", first)
	}
	second := client.updates[1].Update
	if second.AgentMessageChunk == nil || second.AgentMessageChunk.Content.Text.Text != "file contents" {
		t.Errorf("second update = %+v", second)
	}
}

func TestConnectionMethodNotFound(t *testing.T) {
	agent := newTestAgent()
	_, csc := connect(t, agent, &testClient{})
	ctx := context.Background()

	// testAgent doesn't implement SessionLoader.
	_, err := csc.LoadSession(ctx, &LoadSessionRequest{SessionID: "sess_1", Cwd: "/project", McpServers: []McpServer{}})
	if err == nil {
		t.Fatal("expected error for unimplemented session/load")
	}
	var reqErr *RequestError
	if !asRequestError(err, &reqErr) || reqErr.Code != CodeMethodNotFound {
		t.Errorf("error = %v, want method not found", err)
	}
}

func TestConnectionErrorData(t *testing.T) {
	agent := newTestAgent()
	connect(t, agent, &testClient{})
	ctx := context.Background()

	_, err := agent.conn.ReadTextFile(ctx, &ReadTextFileRequest{SessionID: "sess_1", Path: "/missing"})
	if err == nil {
		t.Fatal("expected resource not found")
	}
	var reqErr *RequestError
	if !asRequestError(err, &reqErr) || reqErr.Code != CodeResourceNotFound {
		t.Fatalf("error = %v, want resource not found", err)
	}
	data, ok := reqErr.Data.(map[string]any)
	if !ok || data["uri"] != "file:///missing" {
		t.Errorf("error data = %+v", reqErr.Data)
	}
}

func TestConnectionSessionCancel(t *testing.T) {
	agent := newTestAgent()
	agent.blockTurn = true
	_, csc := connect(t, agent, &testClient{})
	ctx := context.Background()

	sess, err := csc.NewSession(ctx, &NewSessionRequest{Cwd: "/project", McpServers: []McpServer{}})
	if err != nil {
		t.Fatalf("session/new failed: %v", err)
	}

	done := make(chan *PromptResponse, 1)
	errs := make(chan error, 1)
	go func() {
		resp, err := csc.Prompt(ctx, &PromptRequest{SessionID: sess.SessionID, Prompt: []ContentBlock{TextBlock("work")}})
		if err != nil {
			errs <- err
			return
		}
		done <- resp
	}()

	// Let the prompt land before cancelling.
	time.Sleep(50 * time.Millisecond)
	if err := csc.Cancel(ctx, &CancelNotification{SessionID: sess.SessionID}); err != nil {
		t.Fatalf("session/cancel failed: %v", err)
	}

	select {
	case resp := <-done:
		if resp.StopReason != StopReasonCancelled {
			t.Errorf("stop reason = %q, want %q", resp.StopReason, StopReasonCancelled)
		}
	case err := <-errs:
		t.Fatalf("prompt failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("prompt did not finish after cancel")
	}
}

func TestConnectionProtocolCancel(t *testing.T) {
	agent := newTestAgent()
	agent.blockTurn = true
	_, csc := connect(t, agent, &testClient{})

	sess, err := csc.NewSession(context.Background(), &NewSessionRequest{Cwd: "/project", McpServers: []McpServer{}})
	if err != nil {
		t.Fatalf("session/new failed: %v", err)
	}

	promptCtx, cancelPrompt := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := csc.Prompt(promptCtx, &PromptRequest{SessionID: sess.SessionID, Prompt: []ContentBlock{TextBlock("work")}})
		errs <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancelPrompt()

	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("expected error after protocol-level cancel")
		}
		var reqErr *RequestError
		if asRequestError(err, &reqErr) && reqErr.Code != CodeRequestCancelled {
			t.Errorf("error code = %d, want %d", reqErr.Code, CodeRequestCancelled)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prompt did not settle after $/cancel_request")
	}
}

func TestConnectionNotificationOrder(t *testing.T) {
	agent := newTestAgent()
	client := &testClient{}
	connect(t, agent, client)
	ctx := context.Background()

	const updates = 200
	for i := range updates {
		err := agent.conn.SessionUpdate(ctx, &SessionNotification{
			SessionID: "sess_1",
			Update:    SessionUpdate{AgentMessageChunk: &ContentChunk{Content: TextBlock(fmt.Sprintf("chunk %04d", i))}},
		})
		if err != nil {
			t.Fatalf("session/update %d failed: %v", i, err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for client.updateCount() < updates && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.updates) != updates {
		t.Fatalf("update count = %d, want %d", len(client.updates), updates)
	}
	for i, n := range client.updates {
		want := fmt.Sprintf("chunk %04d", i)
		if got := n.Update.AgentMessageChunk.Content.Text.Text; got != want {
			t.Fatalf("update %d = %q, want %q", i, got, want)
		}
	}
}

// slowPermissionClient answers permission requests after a delay, ignoring
// the request context the way a user pondering a dialog would.
type slowPermissionClient struct {
	testClient
	delay time.Duration
}

func (c *slowPermissionClient) RequestPermission(ctx context.Context, req *RequestPermissionRequest) (*RequestPermissionResponse, error) {
	time.Sleep(c.delay)
	return c.testClient.RequestPermission(ctx, req)
}

func TestConnectionCallAfterCancelWaitsForResponse(t *testing.T) {
	agent := newTestAgent()
	client := &slowPermissionClient{delay: 300 * time.Millisecond}
	connect(t, agent, client)

	callCtx, cancelCall := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := agent.conn.RequestPermission(callCtx, &RequestPermissionRequest{
			SessionID: "sess_1",
			ToolCall:  ToolCallUpdate{ToolCallID: "call_1"},
			Options:   []PermissionOption{{OptionID: "allow", Name: "Allow", Kind: PermissionAllowOnce}},
		})
		errs <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancelCall()

	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("expected error after cancelling the call")
		}
		var reqErr *RequestError
		if asRequestError(err, &reqErr) && reqErr.Code != CodeRequestCancelled {
			t.Errorf("error code = %d, want %d", reqErr.Code, CodeRequestCancelled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("call did not settle after the peer's delayed response")
	}
}

func TestAnyMessageShapes(t *testing.T) {
	var msg anyMessage
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":3,"method":"initialize","params":{}}`), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if msg.Method != "initialize" || string(msg.ID) != "3" {
		t.Errorf("parsed message = %+v", msg)
	}

	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":"abc","error":{"code":-32601,"message":"Method not found"}}`), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if msg.Error == nil || msg.Error.Code != CodeMethodNotFound {
		t.Errorf("parsed error = %+v", msg.Error)
	}
}

func asRequestError(err error, target **RequestError) bool {
	if reqErr, ok := err.(*RequestError); ok {
		*target = reqErr
		return true
	}
	return false
}
