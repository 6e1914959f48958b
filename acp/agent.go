package acp

import (
	"context"
	"encoding/json"
	"fmt"
)

// SessionID is a unique identifier for a conversation session between a
// client and agent.
//
// Sessions maintain their own context, conversation history, and state,
// allowing multiple independent interactions with the same agent.
type SessionID string

// Method names for requests and notifications handled by agents.
const (
	MethodInitialize             = "initialize"
	MethodAuthenticate           = "authenticate"
	MethodSessionNew             = "session/new"
	MethodSessionLoad            = "session/load"
	MethodSessionList            = "session/list"
	MethodSessionFork            = "session/fork"
	MethodSessionResume          = "session/resume"
	MethodSessionSetMode         = "session/set_mode"
	MethodSessionSetModel        = "session/set_model"
	MethodSessionSetConfigOption = "session/set_config_option"
	MethodSessionPrompt          = "session/prompt"
	MethodSessionCancel          = "session/cancel"
)

// Agent handles requests sent by a client. Programs that use generative AI to
// autonomously modify code implement this interface and pass it to
// NewAgentSideConnection.
//
// Protocol surface beyond the required methods is expressed through optional
// interfaces: SessionLoader, SessionLister, SessionForker, SessionResumer,
// ModeSetter, ModelSelector, ConfigOptionSetter, and Extender. A peer
// invoking an optional method the implementation doesn't provide receives a
// "method not found" error, so implementations should only advertise
// capabilities they back with the matching interface.
type Agent interface {
	// Initialize establishes the connection and negotiates the protocol
	// version and capabilities. The agent responds with the client's version
	// if supported, or its own latest supported version otherwise.
	Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResponse, error)
	// Authenticate performs one of the authentication methods advertised
	// during initialization.
	Authenticate(ctx context.Context, req *AuthenticateRequest) (*AuthenticateResponse, error)
	// NewSession creates a new conversation session.
	NewSession(ctx context.Context, req *NewSessionRequest) (*NewSessionResponse, error)
	// Prompt processes a user prompt within a session. The agent reports
	// output through session/update notifications and returns once the turn
	// is complete.
	Prompt(ctx context.Context, req *PromptRequest) (*PromptResponse, error)
	// Cancel handles the session/cancel notification. The agent should abort
	// all in-flight operations for the session and respond to the pending
	// session/prompt request with the "cancelled" stop reason.
	Cancel(ctx context.Context, n *CancelNotification) error
}

// SessionLoader is implemented by agents that support loading existing
// sessions, advertised through the loadSession agent capability.
type SessionLoader interface {
	// LoadSession restores a session's conversation history, replaying it to
	// the client through session/update notifications before returning.
	LoadSession(ctx context.Context, req *LoadSessionRequest) (*LoadSessionResponse, error)
}

// SessionLister is implemented by agents that can enumerate stored sessions.
//
// This is part of a draft extension to the protocol and may change.
type SessionLister interface {
	ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error)
}

// SessionForker is implemented by agents that can create a new session
// seeded with another session's history.
//
// This is part of a draft extension to the protocol and may change.
type SessionForker interface {
	ForkSession(ctx context.Context, req *ForkSessionRequest) (*ForkSessionResponse, error)
}

// SessionResumer is implemented by agents that can reconnect to an existing
// session without replaying its history.
//
// This is part of a draft extension to the protocol and may change.
type SessionResumer interface {
	ResumeSession(ctx context.Context, req *ResumeSessionRequest) (*ResumeSessionResponse, error)
}

// ModeSetter is implemented by agents that offer session modes.
type ModeSetter interface {
	SetSessionMode(ctx context.Context, req *SetSessionModeRequest) (*SetSessionModeResponse, error)
}

// ModelSelector is implemented by agents that let the client switch the
// language model mid-session.
//
// This is part of a draft extension to the protocol and may change.
type ModelSelector interface {
	SetSessionModel(ctx context.Context, req *SetSessionModelRequest) (*SetSessionModelResponse, error)
}

// ConfigOptionSetter is implemented by agents that expose session
// configuration options.
//
// This is part of a draft extension to the protocol and may change.
type ConfigOptionSetter interface {
	SetSessionConfigOption(ctx context.Context, req *SetSessionConfigOptionRequest) (*SetSessionConfigOptionResponse, error)
}

// Extender is implemented by agents or clients that handle extension methods
// outside the ACP specification. Method names are received verbatim; the
// returned value is serialized as the response result.
type Extender interface {
	ExtMethod(ctx context.Context, method string, params json.RawMessage) (any, error)
	ExtNotification(ctx context.Context, method string, params json.RawMessage) error
}

// InitializeRequest is sent by the client to establish the connection and
// negotiate capabilities.
type InitializeRequest struct {
	// ProtocolVersion is the latest protocol version supported by the client.
	ProtocolVersion ProtocolVersion `json:"protocolVersion"`
	// ClientCapabilities describes what the client can do for the agent.
	ClientCapabilities ClientCapabilities `json:"clientCapabilities,omitempty"`
	// ClientInfo names the client implementation. In future versions of the
	// protocol this will be required.
	ClientInfo *Implementation `json:"clientInfo,omitempty"`
	Meta       Meta            `json:"_meta,omitempty"`
}

// InitializeResponse carries the negotiated protocol version and the agent's
// capabilities.
type InitializeResponse struct {
	// ProtocolVersion is the client's requested version if the agent supports
	// it, or the latest version the agent supports. The client should
	// disconnect if it doesn't support this version.
	ProtocolVersion   ProtocolVersion   `json:"protocolVersion"`
	AgentCapabilities AgentCapabilities `json:"agentCapabilities,omitempty"`
	// AuthMethods lists the authentication methods the agent accepts.
	AuthMethods []AuthMethod `json:"authMethods,omitempty"`
	// AgentInfo names the agent implementation. In future versions of the
	// protocol this will be required.
	AgentInfo *Implementation `json:"agentInfo,omitempty"`
	Meta      Meta            `json:"_meta,omitempty"`
}

// Implementation describes the name and version of a client or agent, with an
// optional title for UI representation.
type Implementation struct {
	// Name is intended for programmatic or logical use, but can be used as a
	// display name fallback if Title isn't present.
	Name string `json:"name"`
	// Title is optimized to be human-readable; when absent, Name should be
	// used for display.
	Title   string `json:"title,omitempty"`
	Version string `json:"version"`
	Meta    Meta   `json:"_meta,omitempty"`
}

// AuthMethodID identifies an authentication method.
type AuthMethodID string

// AuthMethod describes an authentication method offered by the agent.
type AuthMethod struct {
	ID          AuthMethodID `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Meta        Meta         `json:"_meta,omitempty"`
}

// AuthenticateRequest asks the agent to authenticate using one of its
// advertised methods.
type AuthenticateRequest struct {
	MethodID AuthMethodID `json:"methodId"`
	Meta     Meta         `json:"_meta,omitempty"`
}

// AuthenticateResponse is returned on successful authentication.
type AuthenticateResponse struct {
	Meta Meta `json:"_meta,omitempty"`
}

// NewSessionRequest creates a new conversation session.
type NewSessionRequest struct {
	// Cwd is the working directory for the session. Must be an absolute path.
	Cwd string `json:"cwd"`
	// McpServers lists MCP servers the agent should connect to.
	McpServers []McpServer `json:"mcpServers"`
	Meta       Meta        `json:"_meta,omitempty"`
}

// NewSessionResponse carries the identifier of the created session.
type NewSessionResponse struct {
	SessionID SessionID `json:"sessionId"`
	// Modes is the set of modes the session can operate in, if the agent
	// supports them.
	Modes *SessionModeState `json:"modes,omitempty"`
	// Models lists the language models the session can use.
	//
	// This field is part of a draft extension and may change.
	Models *SessionModelState `json:"models,omitempty"`
	// ConfigOptions lists session configuration options.
	//
	// This field is part of a draft extension and may change.
	ConfigOptions []SessionConfigOption `json:"configOptions,omitempty"`
	Meta          Meta                  `json:"_meta,omitempty"`
}

// LoadSessionRequest restores an existing session. Only available when the
// agent advertises the loadSession capability.
type LoadSessionRequest struct {
	McpServers []McpServer `json:"mcpServers"`
	Cwd        string      `json:"cwd"`
	SessionID  SessionID   `json:"sessionId"`
	Meta       Meta        `json:"_meta,omitempty"`
}

// LoadSessionResponse is returned once the session history has been replayed.
type LoadSessionResponse struct {
	Modes         *SessionModeState     `json:"modes,omitempty"`
	Models        *SessionModelState    `json:"models,omitempty"`
	ConfigOptions []SessionConfigOption `json:"configOptions,omitempty"`
	Meta          Meta                  `json:"_meta,omitempty"`
}

// ListSessionsRequest enumerates sessions known to the agent.
//
// This is part of a draft extension to the protocol and may change.
type ListSessionsRequest struct {
	// Cwd optionally filters sessions by working directory.
	Cwd string `json:"cwd,omitempty"`
	// Cursor resumes pagination from a previous response.
	Cursor string `json:"cursor,omitempty"`
	Meta   Meta   `json:"_meta,omitempty"`
}

// ListSessionsResponse is a page of session metadata.
type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
	// NextCursor is set when more sessions are available.
	NextCursor string `json:"nextCursor,omitempty"`
	Meta       Meta   `json:"_meta,omitempty"`
}

// SessionInfo summarizes a stored session.
type SessionInfo struct {
	SessionID SessionID `json:"sessionId"`
	Cwd       string    `json:"cwd"`
	Title     string    `json:"title,omitempty"`
	// UpdatedAt is an RFC 3339 timestamp of the last activity.
	UpdatedAt string `json:"updatedAt,omitempty"`
	Meta      Meta   `json:"_meta,omitempty"`
}

// ForkSessionRequest creates a new session whose history is copied from an
// existing one.
//
// This is part of a draft extension to the protocol and may change.
type ForkSessionRequest struct {
	SessionID  SessionID   `json:"sessionId"`
	Cwd        string      `json:"cwd"`
	McpServers []McpServer `json:"mcpServers,omitempty"`
	Meta       Meta        `json:"_meta,omitempty"`
}

// ForkSessionResponse carries the identifier of the forked session.
type ForkSessionResponse struct {
	SessionID     SessionID             `json:"sessionId"`
	Modes         *SessionModeState     `json:"modes,omitempty"`
	Models        *SessionModelState    `json:"models,omitempty"`
	ConfigOptions []SessionConfigOption `json:"configOptions,omitempty"`
	Meta          Meta                  `json:"_meta,omitempty"`
}

// ResumeSessionRequest reconnects to an existing session without replaying
// its history.
//
// This is part of a draft extension to the protocol and may change.
type ResumeSessionRequest struct {
	SessionID  SessionID   `json:"sessionId"`
	Cwd        string      `json:"cwd"`
	McpServers []McpServer `json:"mcpServers,omitempty"`
	Meta       Meta        `json:"_meta,omitempty"`
}

// ResumeSessionResponse is returned once the session is active again.
type ResumeSessionResponse struct {
	Modes         *SessionModeState     `json:"modes,omitempty"`
	Models        *SessionModelState    `json:"models,omitempty"`
	ConfigOptions []SessionConfigOption `json:"configOptions,omitempty"`
	Meta          Meta                  `json:"_meta,omitempty"`
}

// SessionModeID identifies a session mode, e.g. "ask", "architect" or "code".
type SessionModeID string

// SessionModeState describes the modes a session can operate in and which
// one is current.
type SessionModeState struct {
	CurrentModeID  SessionModeID `json:"currentModeId"`
	AvailableModes []SessionMode `json:"availableModes"`
	Meta           Meta          `json:"_meta,omitempty"`
}

// SessionMode is a mode the session can operate in.
type SessionMode struct {
	ID          SessionModeID `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Meta        Meta          `json:"_meta,omitempty"`
}

// SetSessionModeRequest switches the session to a different mode.
type SetSessionModeRequest struct {
	SessionID SessionID     `json:"sessionId"`
	ModeID    SessionModeID `json:"modeId"`
	Meta      Meta          `json:"_meta,omitempty"`
}

// SetSessionModeResponse acknowledges the mode change.
type SetSessionModeResponse struct {
	Meta Meta `json:"_meta,omitempty"`
}

// ModelID identifies a language model.
type ModelID string

// SessionModelState describes the models a session can use and which one is
// current.
//
// This is part of a draft extension to the protocol and may change.
type SessionModelState struct {
	CurrentModelID  ModelID     `json:"currentModelId"`
	AvailableModels []ModelInfo `json:"availableModels"`
	Meta            Meta        `json:"_meta,omitempty"`
}

// ModelInfo describes a language model offered by the agent.
type ModelInfo struct {
	ModelID     ModelID `json:"modelId"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Meta        Meta    `json:"_meta,omitempty"`
}

// SetSessionModelRequest switches the session to a different model.
//
// This is part of a draft extension to the protocol and may change.
type SetSessionModelRequest struct {
	SessionID SessionID `json:"sessionId"`
	ModelID   ModelID   `json:"modelId"`
	Meta      Meta      `json:"_meta,omitempty"`
}

// SetSessionModelResponse acknowledges the model change.
type SetSessionModelResponse struct {
	Meta Meta `json:"_meta,omitempty"`
}

// McpServer describes an MCP server the agent should connect to when a
// session is created. On the wire the http and sse transports are tagged with
// a "type" field; the stdio form has no tag for compatibility with earlier
// protocol versions. Exactly one of the variant fields is set.
type McpServer struct {
	Http  *McpServerHttp
	Sse   *McpServerSse
	Stdio *McpServerStdio
}

func (m McpServer) MarshalJSON() ([]byte, error) {
	switch {
	case m.Http != nil:
		return marshalTagged("type", "http", m.Http)
	case m.Sse != nil:
		return marshalTagged("type", "sse", m.Sse)
	case m.Stdio != nil:
		return json.Marshal(m.Stdio)
	default:
		return nil, fmt.Errorf("mcp server has no variant set")
	}
}

func (m *McpServer) UnmarshalJSON(data []byte) error {
	tag, err := unionTag(data, "type")
	if err != nil {
		return err
	}
	*m = McpServer{}
	switch tag {
	case "http":
		m.Http = new(McpServerHttp)
		return json.Unmarshal(data, m.Http)
	case "sse":
		m.Sse = new(McpServerSse)
		return json.Unmarshal(data, m.Sse)
	case "":
		m.Stdio = new(McpServerStdio)
		return json.Unmarshal(data, m.Stdio)
	default:
		return fmt.Errorf("unrecognized mcp server type %q", tag)
	}
}

// McpServerHttp connects over the streamable HTTP transport. Requires the
// http MCP capability.
type McpServerHttp struct {
	Name    string       `json:"name"`
	URL     string       `json:"url"`
	Headers []HttpHeader `json:"headers"`
	Meta    Meta         `json:"_meta,omitempty"`
}

// McpServerSse connects over the deprecated SSE transport. Requires the sse
// MCP capability.
type McpServerSse struct {
	Name    string       `json:"name"`
	URL     string       `json:"url"`
	Headers []HttpHeader `json:"headers"`
	Meta    Meta         `json:"_meta,omitempty"`
}

// McpServerStdio is an MCP server launched as a subprocess and spoken to over
// stdio.
type McpServerStdio struct {
	Name    string        `json:"name"`
	Command string        `json:"command"`
	Args    []string      `json:"args"`
	Env     []EnvVariable `json:"env"`
	Meta    Meta          `json:"_meta,omitempty"`
}

// EnvVariable is an environment variable to set when launching a subprocess.
type EnvVariable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Meta  Meta   `json:"_meta,omitempty"`
}

// HttpHeader is an HTTP header to include in requests to an MCP server.
type HttpHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Meta  Meta   `json:"_meta,omitempty"`
}

// PromptRequest sends a user prompt to the agent within a session.
type PromptRequest struct {
	SessionID SessionID `json:"sessionId"`
	// Prompt can contain text, resource links, and, depending on the agent's
	// prompt capabilities, images, audio, and embedded context.
	Prompt []ContentBlock `json:"prompt"`
	Meta   Meta           `json:"_meta,omitempty"`
}

// PromptResponse ends a prompt turn.
type PromptResponse struct {
	StopReason StopReason `json:"stopReason"`
	Meta       Meta       `json:"_meta,omitempty"`
}

// StopReason says why a prompt turn ended.
type StopReason string

const (
	// StopReasonEndTurn means the model finished responding without
	// requesting more tools.
	StopReasonEndTurn StopReason = "end_turn"
	// StopReasonMaxTokens means the token limit was reached.
	StopReasonMaxTokens StopReason = "max_tokens"
	// StopReasonMaxTurnRequests means the turn exceeded the agent's limit on
	// model requests.
	StopReasonMaxTurnRequests StopReason = "max_turn_requests"
	// StopReasonRefusal means the agent declined to continue.
	StopReasonRefusal StopReason = "refusal"
	// StopReasonCancelled means the client cancelled the turn with
	// session/cancel. The agent MUST respond with this reason rather than an
	// error when a turn is cancelled.
	StopReasonCancelled StopReason = "cancelled"
)

// CancelNotification asks the agent to stop all in-flight operations for a
// session. Sent as a notification; the pending session/prompt request must
// still be answered, with the "cancelled" stop reason.
type CancelNotification struct {
	SessionID SessionID `json:"sessionId"`
	Meta      Meta      `json:"_meta,omitempty"`
}

// AgentCapabilities are advertised during initialization. Capabilities not
// listed here are assumed unsupported.
type AgentCapabilities struct {
	// LoadSession indicates the agent implements session/load.
	LoadSession bool `json:"loadSession,omitempty"`
	// PromptCapabilities describes the content types accepted in
	// session/prompt beyond the baseline of text and resource links.
	PromptCapabilities PromptCapabilities `json:"promptCapabilities,omitempty"`
	// McpCapabilities describes the MCP transports the agent can connect
	// over, beyond the baseline stdio transport.
	McpCapabilities McpCapabilities `json:"mcpCapabilities,omitempty"`
	// SessionCapabilities describes draft session operations the agent
	// supports.
	SessionCapabilities SessionCapabilities `json:"sessionCapabilities,omitempty"`
	Meta                Meta                `json:"_meta,omitempty"`
}

// PromptCapabilities declares which content types the agent accepts in
// prompts. Text and resource links are always supported.
type PromptCapabilities struct {
	Image bool `json:"image,omitempty"`
	Audio bool `json:"audio,omitempty"`
	// EmbeddedContext indicates the agent accepts embedded resources in
	// prompt requests.
	EmbeddedContext bool `json:"embeddedContext,omitempty"`
	Meta            Meta `json:"_meta,omitempty"`
}

// McpCapabilities declares which MCP transports the agent supports beyond
// stdio.
type McpCapabilities struct {
	Http bool `json:"http,omitempty"`
	Sse  bool `json:"sse,omitempty"`
	Meta Meta `json:"_meta,omitempty"`
}

// SessionCapabilities declares support for draft session operations.
//
// This is part of a draft extension to the protocol and may change.
type SessionCapabilities struct {
	List   *SessionListCapabilities   `json:"list,omitempty"`
	Fork   *SessionForkCapabilities   `json:"fork,omitempty"`
	Resume *SessionResumeCapabilities `json:"resume,omitempty"`
	Meta   Meta                       `json:"_meta,omitempty"`
}

// SessionListCapabilities marks support for session/list.
type SessionListCapabilities struct {
	Meta Meta `json:"_meta,omitempty"`
}

// SessionForkCapabilities marks support for session/fork.
type SessionForkCapabilities struct {
	Meta Meta `json:"_meta,omitempty"`
}

// SessionResumeCapabilities marks support for session/resume.
type SessionResumeCapabilities struct {
	Meta Meta `json:"_meta,omitempty"`
}
