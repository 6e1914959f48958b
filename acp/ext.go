package acp

import (
	"encoding/json"
	"fmt"
)

// Meta holds values attached to an ACP type on the _meta field.
//
// The _meta property is reserved by ACP to allow clients and agents to attach
// additional metadata to their interactions. Implementations MUST NOT make
// assumptions about values at these keys.
type Meta map[string]any

// RequestID is a JSON-RPC request identifier. The protocol permits both
// string and number ids, so the value is kept in its wire form and echoed
// back verbatim in responses.
type RequestID struct {
	raw json.RawMessage
}

func (id RequestID) MarshalJSON() ([]byte, error) {
	if id.raw == nil {
		return []byte("null"), nil
	}
	return id.raw, nil
}

func (id *RequestID) UnmarshalJSON(data []byte) error {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch probe.(type) {
	case string, float64, nil:
		id.raw = append(json.RawMessage(nil), data...)
		return nil
	default:
		return fmt.Errorf("request id must be a string or number, got %s", data)
	}
}

// String returns the wire representation of the id.
func (id RequestID) String() string {
	return string(id.raw)
}

// CancelRequestNotification asks the peer to cancel an ongoing request.
//
// Upon receiving this notification the receiver MUST cancel the corresponding
// request activity, MAY send any pending notifications, and MUST still send a
// response for the original request: either a valid response or an error with
// code -32800.
//
// Notifications whose methods start with "$/" are implementation dependent; a
// peer that cannot support them is free to ignore them. This notification is
// part of a draft extension to the protocol and may change.
type CancelRequestNotification struct {
	// RequestID identifies the request to cancel.
	RequestID RequestID `json:"requestId"`
	Meta      Meta      `json:"_meta,omitempty"`
}

// CancelRequestMethod is the protocol-level cancellation notification method.
const CancelRequestMethod = "$/cancel_request"
