package acp

import (
	"encoding/json"
	"fmt"
)

// ToolCallID is a unique identifier for a tool call within a session.
type ToolCallID string

// ToolKind categorizes a tool call so clients can choose appropriate icons
// and presentation.
type ToolKind string

const (
	ToolKindRead       ToolKind = "read"
	ToolKindEdit       ToolKind = "edit"
	ToolKindDelete     ToolKind = "delete"
	ToolKindMove       ToolKind = "move"
	ToolKindSearch     ToolKind = "search"
	ToolKindExecute    ToolKind = "execute"
	ToolKindThink      ToolKind = "think"
	ToolKindFetch      ToolKind = "fetch"
	ToolKindSwitchMode ToolKind = "switch_mode"
	ToolKindOther      ToolKind = "other"
)

// ToolCallStatus describes the execution state of a tool call.
type ToolCallStatus string

const (
	// ToolCallStatusPending means the tool call hasn't started yet, usually
	// because it is waiting for permission.
	ToolCallStatusPending ToolCallStatus = "pending"
	// ToolCallStatusInProgress means the tool call is currently running.
	ToolCallStatusInProgress ToolCallStatus = "in_progress"
	// ToolCallStatusCompleted means the tool call finished successfully.
	ToolCallStatusCompleted ToolCallStatus = "completed"
	// ToolCallStatusFailed means the tool call ended with an error.
	ToolCallStatusFailed ToolCallStatus = "failed"
)

// ToolCall reports that the agent has initiated a tool invocation. It is sent
// in a session/update notification and subsequently amended with
// ToolCallUpdate notifications as execution progresses.
type ToolCall struct {
	// ToolCallID identifies this call in later updates.
	ToolCallID ToolCallID `json:"toolCallId"`
	// Title is a human-readable description of what the tool is doing.
	Title string `json:"title"`
	// Kind defaults to "other" when omitted.
	Kind ToolKind `json:"kind,omitempty"`
	// Status defaults to "pending" when omitted.
	Status ToolCallStatus `json:"status,omitempty"`
	// Content holds output produced by the tool so far.
	Content []ToolCallContent `json:"content,omitempty"`
	// Locations lists the files the tool is working with, enabling clients to
	// implement "follow along" features.
	Locations []ToolCallLocation `json:"locations,omitempty"`
	// RawInput is the input passed to the tool, as sent to the model.
	RawInput any `json:"rawInput,omitempty"`
	// RawOutput is the output returned by the tool, as sent to the model.
	RawOutput any  `json:"rawOutput,omitempty"`
	Meta      Meta `json:"_meta,omitempty"`
}

// ToolCallUpdate amends an existing tool call. Only the fields being changed
// are set; omitted fields keep their previous values.
type ToolCallUpdate struct {
	ToolCallID ToolCallID         `json:"toolCallId"`
	Title      *string            `json:"title,omitempty"`
	Kind       ToolKind           `json:"kind,omitempty"`
	Status     ToolCallStatus     `json:"status,omitempty"`
	Content    []ToolCallContent  `json:"content,omitempty"`
	Locations  []ToolCallLocation `json:"locations,omitempty"`
	RawInput   any                `json:"rawInput,omitempty"`
	RawOutput  any                `json:"rawOutput,omitempty"`
	Meta       Meta               `json:"_meta,omitempty"`
}

// ToolCallLocation points to a file location a tool call is working with.
type ToolCallLocation struct {
	// Path is absolute.
	Path string  `json:"path"`
	Line *uint32 `json:"line,omitempty"`
	Meta Meta    `json:"_meta,omitempty"`
}

// ToolCallContent is content produced by a tool call, tagged on the wire by
// its "type" field. Exactly one of the variant fields is set.
type ToolCallContent struct {
	// Content is ordinary displayable content.
	Content *ContentBlock
	// Diff is a proposed or applied file modification.
	Diff *Diff
	// Terminal embeds a live terminal created with terminal/create. The
	// client displays its output in real time.
	Terminal *ToolCallTerminal
}

// ToolContent wraps a content block as tool call content.
func ToolContent(block ContentBlock) ToolCallContent {
	return ToolCallContent{Content: &block}
}

// ToolDiff wraps a file modification as tool call content.
func ToolDiff(diff Diff) ToolCallContent {
	return ToolCallContent{Diff: &diff}
}

func (t ToolCallContent) MarshalJSON() ([]byte, error) {
	switch {
	case t.Content != nil:
		return marshalTagged("type", "content", struct {
			Content *ContentBlock `json:"content"`
		}{t.Content})
	case t.Diff != nil:
		return marshalTagged("type", "diff", t.Diff)
	case t.Terminal != nil:
		return marshalTagged("type", "terminal", t.Terminal)
	default:
		return nil, fmt.Errorf("tool call content has no variant set")
	}
}

func (t *ToolCallContent) UnmarshalJSON(data []byte) error {
	tag, err := unionTag(data, "type")
	if err != nil {
		return err
	}
	*t = ToolCallContent{}
	switch tag {
	case "content":
		var wrapper struct {
			Content *ContentBlock `json:"content"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return err
		}
		t.Content = wrapper.Content
		return nil
	case "diff":
		t.Diff = new(Diff)
		return json.Unmarshal(data, t.Diff)
	case "terminal":
		t.Terminal = new(ToolCallTerminal)
		return json.Unmarshal(data, t.Terminal)
	default:
		return fmt.Errorf("unrecognized tool call content type %q", tag)
	}
}

// Diff describes a file modification, shown to the user as a diff.
type Diff struct {
	// Path is the absolute path of the file being modified.
	Path string `json:"path"`
	// OldText is the original content, or nil for a new file.
	OldText *string `json:"oldText,omitempty"`
	// NewText is the content after modification.
	NewText string `json:"newText"`
	Meta    Meta   `json:"_meta,omitempty"`
}

// ToolCallTerminal references a terminal created with terminal/create.
type ToolCallTerminal struct {
	TerminalID TerminalID `json:"terminalId"`
	Meta       Meta       `json:"_meta,omitempty"`
}
