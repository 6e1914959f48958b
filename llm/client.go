// Package llm holds the provider clients the agent talks to during a prompt
// turn. Each client converts the session's message history and the active
// toolset into the provider's wire format and returns the model's reply as a
// single assistant message, with any requested tool calls attached.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/dayanruben/agent-client-protocol/session"
	"github.com/dayanruben/agent-client-protocol/toolset"
)

// Client is the interface for interacting with a Large Language Model.
type Client interface {
	Chat(ctx context.Context, messages []session.Message, availableTools []toolset.Tool) (*session.Message, error)
}

// Mock is a provider-free client for tests and offline runs. It parrots the
// last user message back, and requests a read_file tool call when the
// message starts with "read ".
type Mock struct{}

func (m *Mock) Chat(ctx context.Context, messages []session.Message, availableTools []toolset.Tool) (*session.Message, error) {
	last := messages[len(messages)-1]

	if last.Role == "tool" {
		return &session.Message{
			Role:    "assistant",
			Content: fmt.Sprintf("Tool result received: %s", last.Content),
		}, nil
	}

	if path, ok := strings.CutPrefix(last.Content, "read "); ok {
		for _, t := range availableTools {
			if t.Name() == "read_file" {
				return &session.Message{
					Role: "assistant",
					ToolCalls: []session.ToolCall{{
						ToolCallID: "call_1",
						Name:       "read_file",
						Args:       map[string]any{"path": path},
					}},
				}, nil
			}
		}
	}

	return &session.Message{
		Role:    "assistant",
		Content: fmt.Sprintf("I am a mock LLM. You said: '%s'.", last.Content),
	}, nil
}
