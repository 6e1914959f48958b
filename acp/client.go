package acp

import (
	"context"
	"encoding/json"
	"fmt"
)

// Method names for requests and notifications handled by clients.
const (
	MethodSessionUpdate            = "session/update"
	MethodSessionRequestPermission = "session/request_permission"
	MethodFsReadTextFile           = "fs/read_text_file"
	MethodFsWriteTextFile          = "fs/write_text_file"
	MethodTerminalCreate           = "terminal/create"
	MethodTerminalOutput           = "terminal/output"
	MethodTerminalRelease          = "terminal/release"
	MethodTerminalWaitForExit      = "terminal/wait_for_exit"
	MethodTerminalKill             = "terminal/kill"
)

// Client handles requests sent by an agent. Code editors and other programs
// that provide the interface between a user and an agent implement this
// interface and pass it to NewClientSideConnection.
//
// File system and terminal support are expressed through the optional
// FileSystem and Terminal interfaces, mirroring the fs and terminal client
// capabilities.
type Client interface {
	// RequestPermission asks the user to authorize a tool call. The client
	// should respond with the cancelled outcome if the turn is cancelled
	// while the request is pending.
	RequestPermission(ctx context.Context, req *RequestPermissionRequest) (*RequestPermissionResponse, error)
	// SessionUpdated handles a session/update notification carrying streamed
	// output, tool call progress, plans, and state changes.
	SessionUpdated(ctx context.Context, n *SessionNotification) error
}

// FileSystem is implemented by clients that advertise the fs capability. It
// lets the agent operate on the client's view of files, including unsaved
// editor state.
type FileSystem interface {
	ReadTextFile(ctx context.Context, req *ReadTextFileRequest) (*ReadTextFileResponse, error)
	WriteTextFile(ctx context.Context, req *WriteTextFileRequest) (*WriteTextFileResponse, error)
}

// Terminal is implemented by clients that advertise the terminal capability.
// Terminals remain valid, and their output retrievable, until released.
type Terminal interface {
	CreateTerminal(ctx context.Context, req *CreateTerminalRequest) (*CreateTerminalResponse, error)
	TerminalOutput(ctx context.Context, req *TerminalOutputRequest) (*TerminalOutputResponse, error)
	ReleaseTerminal(ctx context.Context, req *ReleaseTerminalRequest) (*ReleaseTerminalResponse, error)
	WaitForTerminalExit(ctx context.Context, req *WaitForTerminalExitRequest) (*WaitForTerminalExitResponse, error)
	KillTerminalCommand(ctx context.Context, req *KillTerminalCommandRequest) (*KillTerminalCommandResponse, error)
}

// SessionNotification carries a session/update notification from agent to
// client.
type SessionNotification struct {
	SessionID SessionID     `json:"sessionId"`
	Update    SessionUpdate `json:"update"`
	Meta      Meta          `json:"_meta,omitempty"`
}

// SessionUpdate is the body of a session/update notification, discriminated
// by the "sessionUpdate" field. Exactly one of the variant fields is set.
type SessionUpdate struct {
	// UserMessageChunk streams a piece of the user's message, e.g. while
	// replaying history during session/load.
	UserMessageChunk *ContentChunk
	// AgentMessageChunk streams a piece of the agent's response.
	AgentMessageChunk *ContentChunk
	// AgentThoughtChunk streams a piece of the agent's internal reasoning.
	AgentThoughtChunk *ContentChunk
	// ToolCall reports a newly initiated tool call.
	ToolCall *ToolCall
	// ToolCallUpdate reports progress on an existing tool call.
	ToolCallUpdate *ToolCallUpdate
	// Plan reports the agent's execution plan. Each update replaces the
	// previous plan in full.
	Plan *Plan
	// AvailableCommandsUpdate reports that slash commands are ready or have
	// changed.
	AvailableCommandsUpdate *AvailableCommandsUpdate
	// CurrentModeUpdate reports that the session switched modes.
	CurrentModeUpdate *CurrentModeUpdate
	// ConfigOptionUpdate reports changed configuration options. Draft, may
	// change.
	ConfigOptionUpdate *ConfigOptionUpdate
	// SessionInfoUpdate reports changed session metadata. Draft, may change.
	SessionInfoUpdate *SessionInfoUpdate
}

func (u SessionUpdate) MarshalJSON() ([]byte, error) {
	switch {
	case u.UserMessageChunk != nil:
		return marshalTagged("sessionUpdate", "user_message_chunk", u.UserMessageChunk)
	case u.AgentMessageChunk != nil:
		return marshalTagged("sessionUpdate", "agent_message_chunk", u.AgentMessageChunk)
	case u.AgentThoughtChunk != nil:
		return marshalTagged("sessionUpdate", "agent_thought_chunk", u.AgentThoughtChunk)
	case u.ToolCall != nil:
		return marshalTagged("sessionUpdate", "tool_call", u.ToolCall)
	case u.ToolCallUpdate != nil:
		return marshalTagged("sessionUpdate", "tool_call_update", u.ToolCallUpdate)
	case u.Plan != nil:
		return marshalTagged("sessionUpdate", "plan", u.Plan)
	case u.AvailableCommandsUpdate != nil:
		return marshalTagged("sessionUpdate", "available_commands_update", u.AvailableCommandsUpdate)
	case u.CurrentModeUpdate != nil:
		return marshalTagged("sessionUpdate", "current_mode_update", u.CurrentModeUpdate)
	case u.ConfigOptionUpdate != nil:
		return marshalTagged("sessionUpdate", "config_option_update", u.ConfigOptionUpdate)
	case u.SessionInfoUpdate != nil:
		return marshalTagged("sessionUpdate", "session_info_update", u.SessionInfoUpdate)
	default:
		return nil, fmt.Errorf("session update has no variant set")
	}
}

func (u *SessionUpdate) UnmarshalJSON(data []byte) error {
	tag, err := unionTag(data, "sessionUpdate")
	if err != nil {
		return err
	}
	*u = SessionUpdate{}
	switch tag {
	case "user_message_chunk":
		u.UserMessageChunk = new(ContentChunk)
		return json.Unmarshal(data, u.UserMessageChunk)
	case "agent_message_chunk":
		u.AgentMessageChunk = new(ContentChunk)
		return json.Unmarshal(data, u.AgentMessageChunk)
	case "agent_thought_chunk":
		u.AgentThoughtChunk = new(ContentChunk)
		return json.Unmarshal(data, u.AgentThoughtChunk)
	case "tool_call":
		u.ToolCall = new(ToolCall)
		return json.Unmarshal(data, u.ToolCall)
	case "tool_call_update":
		u.ToolCallUpdate = new(ToolCallUpdate)
		return json.Unmarshal(data, u.ToolCallUpdate)
	case "plan":
		u.Plan = new(Plan)
		return json.Unmarshal(data, u.Plan)
	case "available_commands_update":
		u.AvailableCommandsUpdate = new(AvailableCommandsUpdate)
		return json.Unmarshal(data, u.AvailableCommandsUpdate)
	case "current_mode_update":
		u.CurrentModeUpdate = new(CurrentModeUpdate)
		return json.Unmarshal(data, u.CurrentModeUpdate)
	case "config_option_update":
		u.ConfigOptionUpdate = new(ConfigOptionUpdate)
		return json.Unmarshal(data, u.ConfigOptionUpdate)
	case "session_info_update":
		u.SessionInfoUpdate = new(SessionInfoUpdate)
		return json.Unmarshal(data, u.SessionInfoUpdate)
	default:
		return fmt.Errorf("unrecognized session update %q", tag)
	}
}

// ContentChunk is a streamed piece of message content.
type ContentChunk struct {
	Content ContentBlock `json:"content"`
	Meta    Meta         `json:"_meta,omitempty"`
}

// AvailableCommandsUpdate reports the slash commands currently available in
// a session.
type AvailableCommandsUpdate struct {
	AvailableCommands []AvailableCommand `json:"availableCommands"`
	Meta              Meta               `json:"_meta,omitempty"`
}

// AvailableCommand is a command the user can invoke in a prompt.
type AvailableCommand struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Input describes the argument the command accepts, if any.
	Input *AvailableCommandInput `json:"input,omitempty"`
	Meta  Meta                   `json:"_meta,omitempty"`
}

// AvailableCommandInput describes what a command accepts as input. Only
// unstructured text is currently defined.
type AvailableCommandInput struct {
	// Hint to display when the input hasn't been provided yet.
	Hint string `json:"hint"`
	Meta Meta   `json:"_meta,omitempty"`
}

// CurrentModeUpdate reports that the session switched to a different mode.
type CurrentModeUpdate struct {
	CurrentModeID SessionModeID `json:"currentModeId"`
	Meta          Meta          `json:"_meta,omitempty"`
}

// ConfigOptionUpdate reports the full set of configuration options after a
// change.
//
// This is part of a draft extension to the protocol and may change.
type ConfigOptionUpdate struct {
	ConfigOptions []SessionConfigOption `json:"configOptions"`
	Meta          Meta                  `json:"_meta,omitempty"`
}

// SessionInfoUpdate reports changed session metadata. Absent fields are
// unchanged.
//
// This is part of a draft extension to the protocol and may change.
type SessionInfoUpdate struct {
	Title     *string `json:"title,omitempty"`
	UpdatedAt *string `json:"updatedAt,omitempty"`
	Meta      Meta    `json:"_meta,omitempty"`
}

// RequestPermissionRequest asks the user to authorize a tool call.
type RequestPermissionRequest struct {
	SessionID SessionID `json:"sessionId"`
	// ToolCall describes the tool call being authorized.
	ToolCall ToolCallUpdate `json:"toolCall"`
	// Options are the choices to present to the user.
	Options []PermissionOption `json:"options"`
	Meta    Meta               `json:"_meta,omitempty"`
}

// PermissionOptionID identifies a permission option.
type PermissionOptionID string

// PermissionOption is one way the user can respond to a permission request.
type PermissionOption struct {
	OptionID PermissionOptionID `json:"optionId"`
	Name     string             `json:"name"`
	// Kind is a hint to help clients choose appropriate icons and shortcuts.
	Kind PermissionOptionKind `json:"kind"`
	Meta Meta                 `json:"_meta,omitempty"`
}

// PermissionOptionKind categorizes a permission option.
type PermissionOptionKind string

const (
	PermissionAllowOnce    PermissionOptionKind = "allow_once"
	PermissionAllowAlways  PermissionOptionKind = "allow_always"
	PermissionRejectOnce   PermissionOptionKind = "reject_once"
	PermissionRejectAlways PermissionOptionKind = "reject_always"
)

// RequestPermissionResponse carries the user's decision.
type RequestPermissionResponse struct {
	Outcome RequestPermissionOutcome `json:"outcome"`
	Meta    Meta                     `json:"_meta,omitempty"`
}

// RequestPermissionOutcome is the result of a permission request,
// discriminated by the "outcome" field. Exactly one of the variant fields is
// set.
type RequestPermissionOutcome struct {
	// Cancelled is set when the turn was cancelled before the user responded.
	Cancelled *CancelledPermissionOutcome
	// Selected is set when the user chose one of the offered options.
	Selected *SelectedPermissionOutcome
}

// CancelledPermissionOutcome marks a permission request voided by
// cancellation.
type CancelledPermissionOutcome struct {
	Meta Meta `json:"_meta,omitempty"`
}

// SelectedPermissionOutcome carries the option the user picked.
type SelectedPermissionOutcome struct {
	OptionID PermissionOptionID `json:"optionId"`
	Meta     Meta               `json:"_meta,omitempty"`
}

func (o RequestPermissionOutcome) MarshalJSON() ([]byte, error) {
	switch {
	case o.Cancelled != nil:
		return marshalTagged("outcome", "cancelled", o.Cancelled)
	case o.Selected != nil:
		return marshalTagged("outcome", "selected", o.Selected)
	default:
		return nil, fmt.Errorf("permission outcome has no variant set")
	}
}

func (o *RequestPermissionOutcome) UnmarshalJSON(data []byte) error {
	tag, err := unionTag(data, "outcome")
	if err != nil {
		return err
	}
	*o = RequestPermissionOutcome{}
	switch tag {
	case "cancelled":
		o.Cancelled = new(CancelledPermissionOutcome)
		return json.Unmarshal(data, o.Cancelled)
	case "selected":
		o.Selected = new(SelectedPermissionOutcome)
		return json.Unmarshal(data, o.Selected)
	default:
		return fmt.Errorf("unrecognized permission outcome %q", tag)
	}
}

// ReadTextFileRequest reads a text file from the client's file system,
// including unsaved editor state. Requires the fs.readTextFile capability.
type ReadTextFileRequest struct {
	SessionID SessionID `json:"sessionId"`
	// Path to the file. Must be absolute.
	Path string `json:"path"`
	// Line is an optional 1-based line number to start reading from.
	Line *uint32 `json:"line,omitempty"`
	// Limit is an optional maximum number of lines to read.
	Limit *uint32 `json:"limit,omitempty"`
	Meta  Meta    `json:"_meta,omitempty"`
}

// ReadTextFileResponse carries the file contents.
type ReadTextFileResponse struct {
	Content string `json:"content"`
	Meta    Meta   `json:"_meta,omitempty"`
}

// WriteTextFileRequest writes a text file through the client, creating it if
// necessary. Requires the fs.writeTextFile capability.
type WriteTextFileRequest struct {
	SessionID SessionID `json:"sessionId"`
	// Path to the file. Must be absolute.
	Path    string `json:"path"`
	Content string `json:"content"`
	Meta    Meta   `json:"_meta,omitempty"`
}

// WriteTextFileResponse acknowledges the write.
type WriteTextFileResponse struct {
	Meta Meta `json:"_meta,omitempty"`
}

// TerminalID identifies a terminal created through terminal/create.
type TerminalID string

// CreateTerminalRequest runs a command in a new terminal. Requires the
// terminal capability.
type CreateTerminalRequest struct {
	SessionID SessionID     `json:"sessionId"`
	Command   string        `json:"command"`
	Args      []string      `json:"args,omitempty"`
	Env       []EnvVariable `json:"env,omitempty"`
	// Cwd is the working directory for the command. Must be absolute when
	// set.
	Cwd string `json:"cwd,omitempty"`
	// OutputByteLimit caps retained output. When exceeded, the client
	// truncates from the beginning at a character boundary.
	OutputByteLimit *uint64 `json:"outputByteLimit,omitempty"`
	Meta            Meta    `json:"_meta,omitempty"`
}

// CreateTerminalResponse carries the identifier of the created terminal.
type CreateTerminalResponse struct {
	TerminalID TerminalID `json:"terminalId"`
	Meta       Meta       `json:"_meta,omitempty"`
}

// TerminalOutputRequest fetches the current output and exit status of a
// terminal without waiting for completion.
type TerminalOutputRequest struct {
	SessionID  SessionID  `json:"sessionId"`
	TerminalID TerminalID `json:"terminalId"`
	Meta       Meta       `json:"_meta,omitempty"`
}

// TerminalOutputResponse carries captured terminal output.
type TerminalOutputResponse struct {
	Output string `json:"output"`
	// Truncated reports whether output was dropped to honor the byte limit.
	Truncated bool `json:"truncated"`
	// ExitStatus is set once the command has completed.
	ExitStatus *TerminalExitStatus `json:"exitStatus,omitempty"`
	Meta       Meta                `json:"_meta,omitempty"`
}

// WaitForTerminalExitRequest blocks until the terminal's command exits.
type WaitForTerminalExitRequest struct {
	SessionID  SessionID  `json:"sessionId"`
	TerminalID TerminalID `json:"terminalId"`
	Meta       Meta       `json:"_meta,omitempty"`
}

// WaitForTerminalExitResponse carries the exit status, flattened into the
// response object.
type WaitForTerminalExitResponse struct {
	ExitCode *uint32 `json:"exitCode,omitempty"`
	Signal   string  `json:"signal,omitempty"`
	Meta     Meta    `json:"_meta,omitempty"`
}

// TerminalExitStatus describes how a terminal command ended.
type TerminalExitStatus struct {
	// ExitCode is nil when the process was terminated by a signal.
	ExitCode *uint32 `json:"exitCode,omitempty"`
	// Signal is empty when the process exited normally.
	Signal string `json:"signal,omitempty"`
	Meta   Meta   `json:"_meta,omitempty"`
}

// ReleaseTerminalRequest kills the command if still running and frees the
// terminal. The terminal ID becomes invalid; tool calls embedding the
// terminal keep displaying its output.
type ReleaseTerminalRequest struct {
	SessionID  SessionID  `json:"sessionId"`
	TerminalID TerminalID `json:"terminalId"`
	Meta       Meta       `json:"_meta,omitempty"`
}

// ReleaseTerminalResponse acknowledges the release.
type ReleaseTerminalResponse struct {
	Meta Meta `json:"_meta,omitempty"`
}

// KillTerminalCommandRequest kills the command without releasing the
// terminal, so output can still be retrieved.
type KillTerminalCommandRequest struct {
	SessionID  SessionID  `json:"sessionId"`
	TerminalID TerminalID `json:"terminalId"`
	Meta       Meta       `json:"_meta,omitempty"`
}

// KillTerminalCommandResponse acknowledges the kill.
type KillTerminalCommandResponse struct {
	Meta Meta `json:"_meta,omitempty"`
}

// ClientCapabilities are advertised during initialization. Capabilities not
// listed here are assumed unsupported.
type ClientCapabilities struct {
	// Fs describes which file system methods the agent may call.
	Fs FileSystemCapability `json:"fs,omitempty"`
	// Terminal indicates support for all terminal/* methods.
	Terminal bool `json:"terminal,omitempty"`
	Meta     Meta `json:"_meta,omitempty"`
}

// FileSystemCapability declares which fs/* methods the client supports.
type FileSystemCapability struct {
	ReadTextFile  bool `json:"readTextFile,omitempty"`
	WriteTextFile bool `json:"writeTextFile,omitempty"`
	Meta          Meta `json:"_meta,omitempty"`
}
