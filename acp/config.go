package acp

import (
	"encoding/json"
	"fmt"
)

// SessionConfigID identifies a session configuration option.
type SessionConfigID string

// SessionConfigValueID identifies a value a configuration option can take.
type SessionConfigValueID string

// SessionConfigGroupID identifies a group of configuration option values.
type SessionConfigGroupID string

// SessionConfigOption is a configuration selector offered by the agent and
// its current state. The type-specific payload is flattened into the object
// and discriminated by a "type" field; "select" is the only kind currently
// defined.
//
// This is part of a draft extension to the protocol and may change.
type SessionConfigOption struct {
	ID          SessionConfigID `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	// Category hints at the option's purpose for UX purposes only. Unknown
	// categories should be treated as "other".
	Category SessionConfigOptionCategory `json:"category,omitempty"`
	Select   *SessionConfigSelect        `json:"-"`
	Meta     Meta                        `json:"_meta,omitempty"`
}

func (o SessionConfigOption) MarshalJSON() ([]byte, error) {
	if o.Select == nil {
		return nil, fmt.Errorf("session config option %q has no kind set", o.ID)
	}
	type plain SessionConfigOption
	head, err := json.Marshal(plain(o))
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(head, &fields); err != nil {
		return nil, err
	}
	kind, err := json.Marshal(o.Select)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(kind, &fields); err != nil {
		return nil, err
	}
	fields["type"] = json.RawMessage(`"select"`)
	return json.Marshal(fields)
}

func (o *SessionConfigOption) UnmarshalJSON(data []byte) error {
	tag, err := unionTag(data, "type")
	if err != nil {
		return err
	}
	if tag != "select" {
		return fmt.Errorf("unrecognized session config option type %q", tag)
	}
	type plain SessionConfigOption
	if err := json.Unmarshal(data, (*plain)(o)); err != nil {
		return err
	}
	o.Select = new(SessionConfigSelect)
	return json.Unmarshal(data, o.Select)
}

// SessionConfigOptionCategory is a UX hint for a configuration option. It is
// never required for correctness.
type SessionConfigOptionCategory string

const (
	ConfigCategoryMode         SessionConfigOptionCategory = "mode"
	ConfigCategoryModel        SessionConfigOptionCategory = "model"
	ConfigCategoryThoughtLevel SessionConfigOptionCategory = "thought_level"
	ConfigCategoryOther        SessionConfigOptionCategory = "other"
)

// SessionConfigSelect is a single-value selector payload.
type SessionConfigSelect struct {
	CurrentValue SessionConfigValueID       `json:"currentValue"`
	Options      SessionConfigSelectOptions `json:"options"`
}

// SessionConfigSelectOptions holds the selectable values, either as a flat
// list or grouped under headers. Exactly one of the fields is set.
type SessionConfigSelectOptions struct {
	Ungrouped []SessionConfigSelectOption
	Grouped   []SessionConfigSelectGroup
}

func (o SessionConfigSelectOptions) MarshalJSON() ([]byte, error) {
	if o.Grouped != nil {
		return json.Marshal(o.Grouped)
	}
	if o.Ungrouped == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o.Ungrouped)
}

func (o *SessionConfigSelectOptions) UnmarshalJSON(data []byte) error {
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*o = SessionConfigSelectOptions{}
	grouped := len(probe) > 0
	for _, entry := range probe {
		if _, ok := entry["group"]; !ok {
			grouped = false
			break
		}
	}
	if grouped {
		return json.Unmarshal(data, &o.Grouped)
	}
	return json.Unmarshal(data, &o.Ungrouped)
}

// SessionConfigSelectOption is one selectable value.
type SessionConfigSelectOption struct {
	Value       SessionConfigValueID `json:"value"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Meta        Meta                 `json:"_meta,omitempty"`
}

// SessionConfigSelectGroup is a named group of selectable values.
type SessionConfigSelectGroup struct {
	Group   SessionConfigGroupID        `json:"group"`
	Name    string                      `json:"name"`
	Options []SessionConfigSelectOption `json:"options"`
	Meta    Meta                        `json:"_meta,omitempty"`
}

// SetSessionConfigOptionRequest changes the value of a configuration option.
//
// This is part of a draft extension to the protocol and may change.
type SetSessionConfigOptionRequest struct {
	SessionID SessionID            `json:"sessionId"`
	ConfigID  SessionConfigID      `json:"configId"`
	Value     SessionConfigValueID `json:"value"`
	Meta      Meta                 `json:"_meta,omitempty"`
}

// SetSessionConfigOptionResponse returns the full set of configuration
// options after the change, since setting one option may affect others.
type SetSessionConfigOptionResponse struct {
	ConfigOptions []SessionConfigOption `json:"configOptions"`
	Meta          Meta                  `json:"_meta,omitempty"`
}
