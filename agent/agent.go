package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dayanruben/agent-client-protocol/acp"
	"github.com/dayanruben/agent-client-protocol/config"
	"github.com/dayanruben/agent-client-protocol/errors"
	"github.com/dayanruben/agent-client-protocol/llm"
	"github.com/dayanruben/agent-client-protocol/session"
	"github.com/dayanruben/agent-client-protocol/toolset"
	"github.com/dayanruben/agent-client-protocol/toolset/mcp"
)

const (
	// ModeAuto executes every tool call without asking.
	ModeAuto acp.SessionModeID = "auto"
	// ModePrompt asks the client for permission before tool calls that
	// modify files or run commands.
	ModePrompt acp.SessionModeID = "prompt"
)

// Agent is a coding agent served over ACP. It drives the LLM tool-calling
// loop, persists conversations through a session store, and routes file and
// command operations to the client when it advertises the matching
// capabilities.
type Agent struct {
	cfg   *config.Config
	store *session.Store
	llm   llm.Client

	conn       *acp.AgentSideConnection
	clientCaps acp.ClientCapabilities

	mu       sync.Mutex
	sessions map[acp.SessionID]*activeSession
}

// activeSession is the in-memory state of a session the client has opened.
type activeSession struct {
	sess     *session.Session
	registry *toolset.Registry
	tools    []toolset.Tool
	mode     acp.SessionModeID

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// New builds an agent on the given configuration, session store, and LLM
// client. SetConnection must be called before the agent serves requests.
func New(cfg *config.Config, store *session.Store, client llm.Client) *Agent {
	return &Agent{
		cfg:      cfg,
		store:    store,
		llm:      client,
		sessions: make(map[acp.SessionID]*activeSession),
	}
}

// SetConnection attaches the connection the agent uses to reach the client.
func (a *Agent) SetConnection(conn *acp.AgentSideConnection) {
	a.conn = conn
}

// Shutdown stops the MCP servers of every open session.
func (a *Agent) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, as := range a.sessions {
		as.registry.CloseMCP()
	}
}

func (a *Agent) Initialize(ctx context.Context, req *acp.InitializeRequest) (*acp.InitializeResponse, error) {
	version := req.ProtocolVersion
	if version > acp.ProtocolVersionLatest {
		version = acp.ProtocolVersionLatest
	}
	a.clientCaps = req.ClientCapabilities

	return &acp.InitializeResponse{
		ProtocolVersion: version,
		AgentCapabilities: acp.AgentCapabilities{
			LoadSession: true,
			PromptCapabilities: acp.PromptCapabilities{
				EmbeddedContext: true,
			},
			SessionCapabilities: acp.SessionCapabilities{
				List:   &acp.SessionListCapabilities{},
				Fork:   &acp.SessionForkCapabilities{},
				Resume: &acp.SessionResumeCapabilities{},
			},
		},
		AgentInfo: &acp.Implementation{
			Name:    "acp-agent",
			Title:   "ACP Reference Agent",
			Version: "0.1.0",
		},
	}, nil
}

// Authenticate accepts any request; the agent advertises no auth methods and
// relies on provider credentials from the environment.
func (a *Agent) Authenticate(ctx context.Context, req *acp.AuthenticateRequest) (*acp.AuthenticateResponse, error) {
	return &acp.AuthenticateResponse{}, nil
}

func (a *Agent) NewSession(ctx context.Context, req *acp.NewSessionRequest) (*acp.NewSessionResponse, error) {
	sess, err := a.store.New(req.Cwd)
	if err != nil {
		return nil, err
	}

	as, err := a.openSession(ctx, sess, req.McpServers)
	if err != nil {
		return nil, err
	}

	return &acp.NewSessionResponse{
		SessionID: acp.SessionID(sess.ID),
		Modes:     as.modeState(),
	}, nil
}

func (a *Agent) LoadSession(ctx context.Context, req *acp.LoadSessionRequest) (*acp.LoadSessionResponse, error) {
	sess, err := a.store.Load(string(req.SessionID))
	if err != nil {
		return nil, acp.ErrResourceNotFound(string(req.SessionID))
	}

	as, err := a.openSession(ctx, sess, req.McpServers)
	if err != nil {
		return nil, err
	}

	if err := a.replayHistory(ctx, req.SessionID, sess); err != nil {
		return nil, err
	}

	return &acp.LoadSessionResponse{Modes: as.modeState()}, nil
}

func (a *Agent) ResumeSession(ctx context.Context, req *acp.ResumeSessionRequest) (*acp.ResumeSessionResponse, error) {
	sess, err := a.store.Load(string(req.SessionID))
	if err != nil {
		return nil, acp.ErrResourceNotFound(string(req.SessionID))
	}

	as, err := a.openSession(ctx, sess, req.McpServers)
	if err != nil {
		return nil, err
	}

	return &acp.ResumeSessionResponse{Modes: as.modeState()}, nil
}

func (a *Agent) ForkSession(ctx context.Context, req *acp.ForkSessionRequest) (*acp.ForkSessionResponse, error) {
	forked, err := a.store.Fork(string(req.SessionID), req.Cwd)
	if err != nil {
		return nil, acp.ErrResourceNotFound(string(req.SessionID))
	}

	as, err := a.openSession(ctx, forked, req.McpServers)
	if err != nil {
		return nil, err
	}

	return &acp.ForkSessionResponse{
		SessionID: acp.SessionID(forked.ID),
		Modes:     as.modeState(),
	}, nil
}

func (a *Agent) ListSessions(ctx context.Context, req *acp.ListSessionsRequest) (*acp.ListSessionsResponse, error) {
	const pageSize = 50
	infos, next, err := a.store.List(req.Cwd, req.Cursor, pageSize)
	if err != nil {
		return nil, acp.ErrInvalidParams().WithData(err.Error())
	}

	resp := &acp.ListSessionsResponse{
		Sessions:   make([]acp.SessionInfo, 0, len(infos)),
		NextCursor: next,
	}
	for _, info := range infos {
		resp.Sessions = append(resp.Sessions, acp.SessionInfo{
			SessionID: acp.SessionID(info.ID),
			Cwd:       info.Cwd,
			Title:     info.Title,
			UpdatedAt: info.UpdatedAt.Format(time.RFC3339),
		})
	}
	return resp, nil
}

func (a *Agent) SetSessionMode(ctx context.Context, req *acp.SetSessionModeRequest) (*acp.SetSessionModeResponse, error) {
	as, err := a.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	switch req.ModeID {
	case ModeAuto, ModePrompt:
	default:
		return nil, acp.ErrInvalidParams().WithData(fmt.Sprintf("unknown mode %q", req.ModeID))
	}
	as.mode = req.ModeID
	return &acp.SetSessionModeResponse{}, nil
}

func (a *Agent) Prompt(ctx context.Context, req *acp.PromptRequest) (*acp.PromptResponse, error) {
	as, err := a.session(req.SessionID)
	if err != nil {
		return nil, err
	}

	turnCtx, cancelTurn := context.WithCancel(ctx)
	defer cancelTurn()
	as.setCancel(cancelTurn)
	defer as.setCancel(nil)

	userText, err := a.extractUserText(turnCtx, req.SessionID, req.Prompt)
	if err != nil {
		return nil, err
	}
	as.sess.AddMessage(session.Message{Role: "user", Content: userText})

	stopReason, err := a.runTurn(turnCtx, req.SessionID, as)
	if saveErr := as.sess.Save(); saveErr != nil && err == nil {
		err = saveErr
	}
	if err != nil {
		if turnCtx.Err() != nil {
			return &acp.PromptResponse{StopReason: acp.StopReasonCancelled}, nil
		}
		return nil, err
	}
	return &acp.PromptResponse{StopReason: stopReason}, nil
}

// runTurn drives the LLM tool-calling loop until the model stops requesting
// tools, the turn is cancelled, or the request budget runs out.
func (a *Agent) runTurn(ctx context.Context, sessionID acp.SessionID, as *activeSession) (acp.StopReason, error) {
	for range a.cfg.MaxTurnRequests {
		reply, err := a.llm.Chat(ctx, as.sess.Messages, as.tools)
		if err != nil {
			if ctx.Err() != nil {
				return acp.StopReasonCancelled, nil
			}
			return "", errors.Wrapf(err, "LLM chat failed")
		}
		as.sess.AddMessage(*reply)

		if reply.Content != "" {
			if err := a.sendAgentMessageChunk(ctx, sessionID, reply.Content); err != nil {
				return "", err
			}
		}

		if len(reply.ToolCalls) == 0 {
			return acp.StopReasonEndTurn, nil
		}

		for _, tc := range reply.ToolCalls {
			cancelled, err := a.runToolCall(ctx, sessionID, as, tc)
			if err != nil {
				return "", err
			}
			if cancelled {
				return acp.StopReasonCancelled, nil
			}
		}
	}
	return acp.StopReasonMaxTurnRequests, nil
}

// runToolCall reports a tool call to the client, obtains permission when the
// session mode requires it, executes the tool, and feeds the result back into
// the session history. The returned bool is true when the turn was cancelled
// mid-call.
func (a *Agent) runToolCall(ctx context.Context, sessionID acp.SessionID, as *activeSession, tc session.ToolCall) (bool, error) {
	callID := acp.ToolCallID(tc.ToolCallID)
	kind := toolKind(tc.Name)

	err := a.conn.SessionUpdate(ctx, &acp.SessionNotification{
		SessionID: sessionID,
		Update: acp.SessionUpdate{ToolCall: &acp.ToolCall{
			ToolCallID: callID,
			Title:      tc.Name,
			Kind:       kind,
			Status:     acp.ToolCallStatusPending,
			RawInput:   tc.Args,
		}},
	})
	if err != nil {
		return false, err
	}

	if as.mode == ModePrompt && needsPermission(kind) {
		granted, cancelled, err := a.requestPermission(ctx, sessionID, as, callID, tc)
		if err != nil {
			return false, err
		}
		if cancelled {
			return true, nil
		}
		if !granted {
			if err := a.updateToolCall(ctx, sessionID, callID, acp.ToolCallStatusFailed, "Tool call rejected by the user."); err != nil {
				return false, err
			}
			as.sess.AddMessage(session.Message{
				Role:      "tool",
				Content:   "The user rejected this tool call.",
				ToolCalls: []session.ToolCall{tc},
			})
			return false, nil
		}
	}

	if err := a.updateToolCall(ctx, sessionID, callID, acp.ToolCallStatusInProgress, ""); err != nil {
		return false, err
	}

	tool, ok := as.registry.Get(tc.Name)
	var result string
	var execErr error
	if !ok {
		execErr = errors.New("tool '%s' is not available", tc.Name)
	} else {
		result, execErr = tool.Execute(ctx, tc.Args)
	}
	if ctx.Err() != nil {
		return true, nil
	}

	status := acp.ToolCallStatusCompleted
	if execErr != nil {
		status = acp.ToolCallStatusFailed
		result = fmt.Sprintf("Error: %v", execErr)
	}
	if err := a.updateToolCall(ctx, sessionID, callID, status, result); err != nil {
		return false, err
	}

	as.sess.AddMessage(session.Message{
		Role:      "tool",
		Content:   result,
		ToolCalls: []session.ToolCall{tc},
	})
	return false, nil
}

// requestPermission asks the client's user to authorize a tool call. The
// returned bools are (granted, cancelled).
func (a *Agent) requestPermission(ctx context.Context, sessionID acp.SessionID, as *activeSession, callID acp.ToolCallID, tc session.ToolCall) (bool, bool, error) {
	resp, err := a.conn.RequestPermission(ctx, &acp.RequestPermissionRequest{
		SessionID: sessionID,
		ToolCall: acp.ToolCallUpdate{
			ToolCallID: callID,
			RawInput:   tc.Args,
		},
		Options: []acp.PermissionOption{
			{OptionID: "allow", Name: "Allow", Kind: acp.PermissionAllowOnce},
			{OptionID: "allow_always", Name: "Always allow", Kind: acp.PermissionAllowAlways},
			{OptionID: "reject", Name: "Reject", Kind: acp.PermissionRejectOnce},
		},
	})
	if err != nil {
		return false, false, err
	}
	if ctx.Err() != nil || resp.Outcome.Cancelled != nil {
		return false, true, nil
	}
	if resp.Outcome.Selected == nil {
		return false, false, nil
	}
	switch resp.Outcome.Selected.OptionID {
	case "allow":
		return true, false, nil
	case "allow_always":
		as.mode = ModeAuto
		return true, false, nil
	default:
		return false, false, nil
	}
}

func (a *Agent) Cancel(ctx context.Context, n *acp.CancelNotification) error {
	a.mu.Lock()
	as, ok := a.sessions[n.SessionID]
	a.mu.Unlock()
	if !ok {
		return nil
	}
	as.cancelMu.Lock()
	if as.cancel != nil {
		as.cancel()
	}
	as.cancelMu.Unlock()
	return nil
}

// openSession launches MCP servers and builds the tool registry for a
// session, then tracks it as active.
func (a *Agent) openSession(ctx context.Context, sess *session.Session, mcpServers []acp.McpServer) (*activeSession, error) {
	sessionID := acp.SessionID(sess.ID)
	files := a.fileOps(sessionID)
	runner := a.commandRunner(sessionID)
	registry := toolset.NewRegistry(a.cfg, files, runner)

	ts, err := a.cfg.GetToolset(a.cfg.Toolset)
	if err != nil {
		return nil, err
	}

	// Servers from the agent's own configuration only contribute tools when
	// a toolset names them, via registry.Active below.
	for _, srv := range a.cfg.MCPServers {
		client, err := mcp.NewClient(ctx, srv.Name, srv.Command, srv.Args, nil)
		if err != nil {
			registry.CloseMCP()
			return nil, err
		}
		registry.RegisterMCP(client)
	}

	tools, err := registry.Active(ts)
	if err != nil {
		registry.CloseMCP()
		return nil, err
	}

	// Servers the client passes in the request are always active.
	for _, srv := range mcpServers {
		if srv.Stdio == nil {
			registry.CloseMCP()
			return nil, acp.ErrInvalidParams().WithData("only stdio MCP servers are supported")
		}
		env := make([]string, 0, len(srv.Stdio.Env))
		for _, v := range srv.Stdio.Env {
			env = append(env, v.Name+"="+v.Value)
		}
		client, err := mcp.NewClient(ctx, srv.Stdio.Name, srv.Stdio.Command, srv.Stdio.Args, env)
		if err != nil {
			registry.CloseMCP()
			return nil, err
		}
		registry.RegisterMCP(client)
		for _, t := range client.Tools() {
			tools = append(tools, t)
		}
	}

	as := &activeSession{
		sess:     sess,
		registry: registry,
		tools:    tools,
		mode:     ModePrompt,
	}
	a.mu.Lock()
	if prev, ok := a.sessions[sessionID]; ok {
		prev.registry.CloseMCP()
	}
	a.sessions[sessionID] = as
	a.mu.Unlock()
	return as, nil
}

// replayHistory streams a loaded session's conversation back to the client
// as session/update notifications.
func (a *Agent) replayHistory(ctx context.Context, sessionID acp.SessionID, sess *session.Session) error {
	for _, msg := range sess.Messages {
		switch msg.Role {
		case "user":
			err := a.conn.SessionUpdate(ctx, &acp.SessionNotification{
				SessionID: sessionID,
				Update: acp.SessionUpdate{UserMessageChunk: &acp.ContentChunk{
					Content: acp.TextBlock(msg.Content),
				}},
			})
			if err != nil {
				return err
			}
		case "assistant":
			if msg.Content != "" {
				if err := a.sendAgentMessageChunk(ctx, sessionID, msg.Content); err != nil {
					return err
				}
			}
			for _, tc := range msg.ToolCalls {
				err := a.conn.SessionUpdate(ctx, &acp.SessionNotification{
					SessionID: sessionID,
					Update: acp.SessionUpdate{ToolCall: &acp.ToolCall{
						ToolCallID: acp.ToolCallID(tc.ToolCallID),
						Title:      tc.Name,
						Kind:       toolKind(tc.Name),
						Status:     acp.ToolCallStatusInProgress,
						RawInput:   tc.Args,
					}},
				})
				if err != nil {
					return err
				}
			}
		case "tool":
			if len(msg.ToolCalls) == 0 {
				continue
			}
			err := a.updateToolCall(ctx, sessionID, acp.ToolCallID(msg.ToolCalls[0].ToolCallID), acp.ToolCallStatusCompleted, msg.Content)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Agent) sendAgentMessageChunk(ctx context.Context, sessionID acp.SessionID, text string) error {
	return a.conn.SessionUpdate(ctx, &acp.SessionNotification{
		SessionID: sessionID,
		Update: acp.SessionUpdate{AgentMessageChunk: &acp.ContentChunk{
			Content: acp.TextBlock(text),
		}},
	})
}

func (a *Agent) updateToolCall(ctx context.Context, sessionID acp.SessionID, callID acp.ToolCallID, status acp.ToolCallStatus, output string) error {
	update := &acp.ToolCallUpdate{
		ToolCallID: callID,
		Status:     status,
	}
	if output != "" {
		update.Content = []acp.ToolCallContent{acp.ToolContent(acp.TextBlock(output))}
		update.RawOutput = output
	}
	return a.conn.SessionUpdate(ctx, &acp.SessionNotification{
		SessionID: sessionID,
		Update:    acp.SessionUpdate{ToolCallUpdate: update},
	})
}

func (a *Agent) session(id acp.SessionID) (*activeSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	as, ok := a.sessions[id]
	if !ok {
		return nil, acp.ErrInvalidParams().WithData(fmt.Sprintf("unknown session %q", id))
	}
	return as, nil
}

// extractUserText flattens the prompt's content blocks into a single string
// for the LLM. Embedded resources are inlined; resource links are fetched
// through the client when the fs capability allows, and referenced by URI
// otherwise.
func (a *Agent) extractUserText(ctx context.Context, sessionID acp.SessionID, blocks []acp.ContentBlock) (string, error) {
	var parts []string
	for _, block := range blocks {
		switch {
		case block.Text != nil:
			if strings.TrimSpace(block.Text.Text) != "" {
				parts = append(parts, block.Text.Text)
			}
		case block.Resource != nil:
			if tr := block.Resource.Resource.Text; tr != nil {
				parts = append(parts, fmt.Sprintf("=== Resource: %s ===\n%s\n=== End Resource ===", tr.URI, tr.Text))
			}
		case block.ResourceLink != nil:
			parts = append(parts, a.resolveResourceLink(ctx, sessionID, block.ResourceLink))
		default:
			return "", acp.ErrInvalidParams().WithData("unsupported content block type in prompt")
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (a *Agent) resolveResourceLink(ctx context.Context, sessionID acp.SessionID, link *acp.ResourceLink) string {
	info := fmt.Sprintf("=== Resource: %s ===\nURI: %s\n", link.Name, link.URI)
	path, ok := strings.CutPrefix(link.URI, "file://")
	if ok && a.clientCaps.Fs.ReadTextFile {
		resp, err := a.conn.ReadTextFile(ctx, &acp.ReadTextFileRequest{
			SessionID: sessionID,
			Path:      path,
		})
		if err != nil {
			info += fmt.Sprintf("[Error reading file: %v]\n", err)
		} else {
			info += fmt.Sprintf("--- File Contents ---\n%s\n--- End of File ---\n", resp.Content)
		}
	}
	return info + "=== End Resource ==="
}

func (as *activeSession) setCancel(cancel context.CancelFunc) {
	as.cancelMu.Lock()
	as.cancel = cancel
	as.cancelMu.Unlock()
}

func (as *activeSession) modeState() *acp.SessionModeState {
	return &acp.SessionModeState{
		CurrentModeID: as.mode,
		AvailableModes: []acp.SessionMode{
			{ID: ModePrompt, Name: "Prompt", Description: "Ask before modifying files or running commands"},
			{ID: ModeAuto, Name: "Auto", Description: "Execute tool calls without asking"},
		},
	}
}

// needsPermission reports whether a tool call of the given kind requires
// user approval in prompt mode. Reads are always allowed.
func needsPermission(kind acp.ToolKind) bool {
	switch kind {
	case acp.ToolKindEdit, acp.ToolKindDelete, acp.ToolKindMove, acp.ToolKindExecute:
		return true
	}
	return false
}

func toolKind(name string) acp.ToolKind {
	switch name {
	case "read_file":
		return acp.ToolKindRead
	case "write_file":
		return acp.ToolKindEdit
	case "execute_command":
		return acp.ToolKindExecute
	default:
		return acp.ToolKindOther
	}
}
