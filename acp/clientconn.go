package acp

import (
	"context"
	"encoding/json"
	"io"
)

// ClientSideConnection is the client's handle on an ACP connection. It
// serves incoming client methods by dispatching to the wrapped Client and
// exposes the agent's methods for the client to call.
type ClientSideConnection struct {
	client Client
	conn   *connection
}

// NewClientSideConnection starts a client-side connection over the given
// streams. peerOut receives messages bound for the agent (typically the agent
// subprocess's stdin) and peerIn carries the agent's messages (its stdout).
// The connection runs until peerIn closes or ctx is cancelled.
func NewClientSideConnection(ctx context.Context, client Client, peerOut io.Writer, peerIn io.Reader) *ClientSideConnection {
	csc := &ClientSideConnection{client: client}
	csc.conn = newConnection(ctx, csc.handle, peerOut, peerIn)
	return csc
}

// SetTrace installs a debug trace sink for raw wire traffic.
func (csc *ClientSideConnection) SetTrace(fn func(string)) {
	csc.conn.SetTrace(fn)
}

// Done is closed once the connection stops processing messages.
func (csc *ClientSideConnection) Done() <-chan struct{} {
	return csc.conn.Done()
}

// Err returns the terminal error after Done is closed. It is nil on clean
// shutdown.
func (csc *ClientSideConnection) Err() error {
	return csc.conn.Err()
}

func (csc *ClientSideConnection) handle(ctx context.Context, method string, params json.RawMessage, isNotification bool) (any, error) {
	switch method {
	case MethodSessionUpdate:
		var n SessionNotification
		if err := json.Unmarshal(params, &n); err != nil {
			return nil, ErrInvalidParams().WithData(err.Error())
		}
		return nil, csc.client.SessionUpdated(ctx, &n)
	case MethodSessionRequestPermission:
		return decodeAndCall(ctx, params, csc.client.RequestPermission)
	case MethodFsReadTextFile:
		fs, ok := csc.client.(FileSystem)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, fs.ReadTextFile)
	case MethodFsWriteTextFile:
		fs, ok := csc.client.(FileSystem)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, fs.WriteTextFile)
	case MethodTerminalCreate:
		term, ok := csc.client.(Terminal)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, term.CreateTerminal)
	case MethodTerminalOutput:
		term, ok := csc.client.(Terminal)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, term.TerminalOutput)
	case MethodTerminalRelease:
		term, ok := csc.client.(Terminal)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, term.ReleaseTerminal)
	case MethodTerminalWaitForExit:
		term, ok := csc.client.(Terminal)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, term.WaitForTerminalExit)
	case MethodTerminalKill:
		term, ok := csc.client.(Terminal)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, term.KillTerminalCommand)
	default:
		if ext, ok := csc.client.(Extender); ok {
			if isNotification {
				return nil, ext.ExtNotification(ctx, method, params)
			}
			return ext.ExtMethod(ctx, method, params)
		}
		return nil, ErrMethodNotFound()
	}
}

// Initialize negotiates the protocol version and exchanges capabilities with
// the agent.
func (csc *ClientSideConnection) Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResponse, error) {
	resp := new(InitializeResponse)
	if err := csc.conn.Call(ctx, MethodInitialize, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Authenticate performs one of the authentication methods advertised by the
// agent.
func (csc *ClientSideConnection) Authenticate(ctx context.Context, req *AuthenticateRequest) (*AuthenticateResponse, error) {
	resp := new(AuthenticateResponse)
	if err := csc.conn.Call(ctx, MethodAuthenticate, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// NewSession creates a new conversation session with the agent.
func (csc *ClientSideConnection) NewSession(ctx context.Context, req *NewSessionRequest) (*NewSessionResponse, error) {
	resp := new(NewSessionResponse)
	if err := csc.conn.Call(ctx, MethodSessionNew, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// LoadSession restores an existing session. Requires the loadSession agent
// capability.
func (csc *ClientSideConnection) LoadSession(ctx context.Context, req *LoadSessionRequest) (*LoadSessionResponse, error) {
	resp := new(LoadSessionResponse)
	if err := csc.conn.Call(ctx, MethodSessionLoad, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListSessions enumerates the agent's stored sessions. Requires the
// sessionCapabilities.list agent capability.
func (csc *ClientSideConnection) ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error) {
	resp := new(ListSessionsResponse)
	if err := csc.conn.Call(ctx, MethodSessionList, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ForkSession creates a new session from an existing one's history. Requires
// the sessionCapabilities.fork agent capability.
func (csc *ClientSideConnection) ForkSession(ctx context.Context, req *ForkSessionRequest) (*ForkSessionResponse, error) {
	resp := new(ForkSessionResponse)
	if err := csc.conn.Call(ctx, MethodSessionFork, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ResumeSession reconnects to an existing session without replaying its
// history. Requires the sessionCapabilities.resume agent capability.
func (csc *ClientSideConnection) ResumeSession(ctx context.Context, req *ResumeSessionRequest) (*ResumeSessionResponse, error) {
	resp := new(ResumeSessionResponse)
	if err := csc.conn.Call(ctx, MethodSessionResume, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SetSessionMode switches the session's mode.
func (csc *ClientSideConnection) SetSessionMode(ctx context.Context, req *SetSessionModeRequest) (*SetSessionModeResponse, error) {
	resp := new(SetSessionModeResponse)
	if err := csc.conn.Call(ctx, MethodSessionSetMode, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SetSessionModel switches the session's language model.
func (csc *ClientSideConnection) SetSessionModel(ctx context.Context, req *SetSessionModelRequest) (*SetSessionModelResponse, error) {
	resp := new(SetSessionModelResponse)
	if err := csc.conn.Call(ctx, MethodSessionSetModel, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SetSessionConfigOption changes one of the session's configuration options.
func (csc *ClientSideConnection) SetSessionConfigOption(ctx context.Context, req *SetSessionConfigOptionRequest) (*SetSessionConfigOptionResponse, error) {
	resp := new(SetSessionConfigOptionResponse)
	if err := csc.conn.Call(ctx, MethodSessionSetConfigOption, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Prompt sends a user prompt to the agent and blocks until the turn ends.
func (csc *ClientSideConnection) Prompt(ctx context.Context, req *PromptRequest) (*PromptResponse, error) {
	resp := new(PromptResponse)
	if err := csc.conn.Call(ctx, MethodSessionPrompt, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Cancel asks the agent to stop all activity for a session. The pending
// prompt still completes, with the "cancelled" stop reason.
func (csc *ClientSideConnection) Cancel(ctx context.Context, n *CancelNotification) error {
	return csc.conn.Notify(MethodSessionCancel, n)
}

// Call sends an extension request to the agent and decodes the response into
// result.
func (csc *ClientSideConnection) Call(ctx context.Context, method string, params, result any) error {
	return csc.conn.Call(ctx, method, params, result)
}

// Notify sends an extension notification to the agent.
func (csc *ClientSideConnection) Notify(method string, params any) error {
	return csc.conn.Notify(method, params)
}
