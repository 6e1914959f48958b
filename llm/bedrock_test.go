package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dayanruben/agent-client-protocol/session"
	"github.com/dayanruben/agent-client-protocol/toolset"
)

// fakeTool is a simple tool implementation for testing conversions.
type fakeTool struct {
	name        string
	description string
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return f.description }

func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	return "fake result", nil
}

func TestConvertMessagesToAnthropicFormat(t *testing.T) {
	messages := []session.Message{
		{
			Role:    "user",
			Content: "Hello, world!",
		},
	}

	result, _ := convertMessagesToAnthropicFormat(messages)
	if len(result) != 1 {
		t.Errorf("Expected 1 message, got %d", len(result))
	}

	if result[0]["role"] != "user" {
		t.Errorf("Expected role 'user', got '%s'", result[0]["role"])
	}

	messages = []session.Message{
		{
			Role:    "assistant",
			Content: "Hello! How can I help you?",
		},
	}

	result, _ = convertMessagesToAnthropicFormat(messages)
	if len(result) != 1 {
		t.Errorf("Expected 1 message, got %d", len(result))
	}

	if result[0]["role"] != "assistant" {
		t.Errorf("Expected role 'assistant', got '%s'", result[0]["role"])
	}

	messages = []session.Message{
		{
			Role: "assistant",
			ToolCalls: []session.ToolCall{
				{
					ToolCallID: "call_1",
					Name:       "test_tool",
					Args: map[string]interface{}{
						"param1": "value1",
					},
				},
			},
		},
	}

	result, _ = convertMessagesToAnthropicFormat(messages)
	if len(result) != 1 {
		t.Errorf("Expected 1 message, got %d", len(result))
	}

	messages = []session.Message{
		{
			Role:    "tool",
			Content: "Tool result",
			ToolCalls: []session.ToolCall{
				{
					ToolCallID: "call_1",
					Name:       "test_tool",
				},
			},
		},
	}

	result, _ = convertMessagesToAnthropicFormat(messages)
	if len(result) != 1 {
		t.Errorf("Expected 1 message, got %d", len(result))
	}

	if result[0]["role"] != "user" {
		t.Errorf("Expected role 'user', got '%s'", result[0]["role"])
	}
}

func TestCreateAnthropicRequest(t *testing.T) {
	messages := []map[string]interface{}{
		{
			"role": "user",
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": "Hello!",
				},
			},
		},
	}

	body, err := createAnthropicRequest(messages, "", nil)
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	if len(body) == 0 {
		t.Error("Expected non-empty request body")
	}

	ts := []toolset.Tool{
		&fakeTool{
			name:        "test_tool",
			description: "A test tool",
		},
	}

	body, err = createAnthropicRequest(messages, "system prompt", ts)
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	var request map[string]interface{}
	if err := json.Unmarshal(body, &request); err != nil {
		t.Fatalf("request body is not valid JSON: %v", err)
	}
	if request["anthropic_version"] != "bedrock-2023-05-31" {
		t.Errorf("unexpected anthropic_version: %v", request["anthropic_version"])
	}
	if request["system"] != "system prompt" {
		t.Errorf("unexpected system prompt: %v", request["system"])
	}
	if _, ok := request["tools"]; !ok {
		t.Error("expected tools in request body")
	}
}

func TestProcessBedrockResponse(t *testing.T) {
	body := []byte(`{
		"content": [
			{"type": "text", "text": "Let me check."},
			{"type": "tool_use", "id": "toolu_1", "name": "read_file", "input": {"path": "main.go"}}
		]
	}`)

	msg, err := processBedrockResponse(body)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Content != "Let me check." {
		t.Errorf("unexpected content: %q", msg.Content)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ToolCallID != "toolu_1" || tc.Name != "read_file" {
		t.Errorf("unexpected tool call: %+v", tc)
	}
	if tc.Args["path"] != "main.go" {
		t.Errorf("unexpected args: %v", tc.Args)
	}

	if _, err := processBedrockResponse([]byte(`{"error": "boom"}`)); err == nil {
		t.Error("expected error for error response")
	}
}
