package acp

import (
	"context"
	"encoding/json"
	"io"
)

// AgentSideConnection is the agent's handle on an ACP connection. It serves
// incoming agent methods by dispatching to the wrapped Agent and exposes the
// client's methods for the agent to call.
type AgentSideConnection struct {
	agent Agent
	conn  *connection
}

// NewAgentSideConnection starts an agent-side connection over the given
// streams. peerOut receives messages bound for the client (typically stdout)
// and peerIn carries the client's messages (typically stdin). The connection
// runs until peerIn closes or ctx is cancelled.
func NewAgentSideConnection(ctx context.Context, agent Agent, peerOut io.Writer, peerIn io.Reader) *AgentSideConnection {
	asc := &AgentSideConnection{agent: agent}
	asc.conn = newConnection(ctx, asc.handle, peerOut, peerIn)
	return asc
}

// SetTrace installs a debug trace sink for raw wire traffic.
func (asc *AgentSideConnection) SetTrace(fn func(string)) {
	asc.conn.SetTrace(fn)
}

// Done is closed once the connection stops processing messages.
func (asc *AgentSideConnection) Done() <-chan struct{} {
	return asc.conn.Done()
}

// Err returns the terminal error after Done is closed. It is nil on clean
// shutdown.
func (asc *AgentSideConnection) Err() error {
	return asc.conn.Err()
}

func (asc *AgentSideConnection) handle(ctx context.Context, method string, params json.RawMessage, isNotification bool) (any, error) {
	switch method {
	case MethodInitialize:
		return decodeAndCall(ctx, params, asc.agent.Initialize)
	case MethodAuthenticate:
		return decodeAndCall(ctx, params, asc.agent.Authenticate)
	case MethodSessionNew:
		return decodeAndCall(ctx, params, asc.agent.NewSession)
	case MethodSessionLoad:
		loader, ok := asc.agent.(SessionLoader)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, loader.LoadSession)
	case MethodSessionList:
		lister, ok := asc.agent.(SessionLister)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, lister.ListSessions)
	case MethodSessionFork:
		forker, ok := asc.agent.(SessionForker)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, forker.ForkSession)
	case MethodSessionResume:
		resumer, ok := asc.agent.(SessionResumer)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, resumer.ResumeSession)
	case MethodSessionSetMode:
		setter, ok := asc.agent.(ModeSetter)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, setter.SetSessionMode)
	case MethodSessionSetModel:
		selector, ok := asc.agent.(ModelSelector)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, selector.SetSessionModel)
	case MethodSessionSetConfigOption:
		setter, ok := asc.agent.(ConfigOptionSetter)
		if !ok {
			return nil, ErrMethodNotFound()
		}
		return decodeAndCall(ctx, params, setter.SetSessionConfigOption)
	case MethodSessionPrompt:
		return decodeAndCall(ctx, params, asc.agent.Prompt)
	case MethodSessionCancel:
		var n CancelNotification
		if err := json.Unmarshal(params, &n); err != nil {
			return nil, ErrInvalidParams().WithData(err.Error())
		}
		return nil, asc.agent.Cancel(ctx, &n)
	default:
		if ext, ok := asc.agent.(Extender); ok {
			if isNotification {
				return nil, ext.ExtNotification(ctx, method, params)
			}
			return ext.ExtMethod(ctx, method, params)
		}
		return nil, ErrMethodNotFound()
	}
}

// SessionUpdate sends a session/update notification to the client.
func (asc *AgentSideConnection) SessionUpdate(ctx context.Context, n *SessionNotification) error {
	return asc.conn.Notify(MethodSessionUpdate, n)
}

// RequestPermission asks the client's user to authorize a tool call.
func (asc *AgentSideConnection) RequestPermission(ctx context.Context, req *RequestPermissionRequest) (*RequestPermissionResponse, error) {
	resp := new(RequestPermissionResponse)
	if err := asc.conn.Call(ctx, MethodSessionRequestPermission, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ReadTextFile reads a file through the client. Requires the fs.readTextFile
// client capability.
func (asc *AgentSideConnection) ReadTextFile(ctx context.Context, req *ReadTextFileRequest) (*ReadTextFileResponse, error) {
	resp := new(ReadTextFileResponse)
	if err := asc.conn.Call(ctx, MethodFsReadTextFile, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// WriteTextFile writes a file through the client. Requires the
// fs.writeTextFile client capability.
func (asc *AgentSideConnection) WriteTextFile(ctx context.Context, req *WriteTextFileRequest) (*WriteTextFileResponse, error) {
	resp := new(WriteTextFileResponse)
	if err := asc.conn.Call(ctx, MethodFsWriteTextFile, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateTerminal runs a command in a client terminal. Requires the terminal
// client capability.
func (asc *AgentSideConnection) CreateTerminal(ctx context.Context, req *CreateTerminalRequest) (*CreateTerminalResponse, error) {
	resp := new(CreateTerminalResponse)
	if err := asc.conn.Call(ctx, MethodTerminalCreate, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// TerminalOutput fetches the current output of a client terminal.
func (asc *AgentSideConnection) TerminalOutput(ctx context.Context, req *TerminalOutputRequest) (*TerminalOutputResponse, error) {
	resp := new(TerminalOutputResponse)
	if err := asc.conn.Call(ctx, MethodTerminalOutput, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ReleaseTerminal frees a client terminal, killing its command if still
// running.
func (asc *AgentSideConnection) ReleaseTerminal(ctx context.Context, req *ReleaseTerminalRequest) (*ReleaseTerminalResponse, error) {
	resp := new(ReleaseTerminalResponse)
	if err := asc.conn.Call(ctx, MethodTerminalRelease, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// WaitForTerminalExit blocks until a client terminal's command exits.
func (asc *AgentSideConnection) WaitForTerminalExit(ctx context.Context, req *WaitForTerminalExitRequest) (*WaitForTerminalExitResponse, error) {
	resp := new(WaitForTerminalExitResponse)
	if err := asc.conn.Call(ctx, MethodTerminalWaitForExit, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// KillTerminalCommand kills a client terminal's command without releasing
// the terminal.
func (asc *AgentSideConnection) KillTerminalCommand(ctx context.Context, req *KillTerminalCommandRequest) (*KillTerminalCommandResponse, error) {
	resp := new(KillTerminalCommandResponse)
	if err := asc.conn.Call(ctx, MethodTerminalKill, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Call sends an extension request to the client and decodes the response
// into result.
func (asc *AgentSideConnection) Call(ctx context.Context, method string, params, result any) error {
	return asc.conn.Call(ctx, method, params, result)
}

// Notify sends an extension notification to the client.
func (asc *AgentSideConnection) Notify(method string, params any) error {
	return asc.conn.Notify(method, params)
}

// decodeAndCall unmarshals request params and invokes the typed handler.
func decodeAndCall[Req, Resp any](ctx context.Context, params json.RawMessage, fn func(context.Context, *Req) (*Resp, error)) (any, error) {
	req := new(Req)
	if len(params) > 0 {
		if err := json.Unmarshal(params, req); err != nil {
			return nil, ErrInvalidParams().WithData(err.Error())
		}
	}
	resp, err := fn(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
