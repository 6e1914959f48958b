package acp

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestContentBlockMarshal(t *testing.T) {
	tests := []struct {
		name  string
		block ContentBlock
		want  string
	}{
		{
			name:  "text",
			block: TextBlock("What does this code do?"),
			want:  `{"text":"What does this code do?","type":"text"}`,
		},
		{
			name:  "image",
			block: ImageBlock("aGVsbG8=", "image/png"),
			want:  `{"data":"aGVsbG8=","mimeType":"image/png","type":"image"}`,
		},
		{
			name:  "resource_link",
			block: ResourceLinkBlock("main.rs", "file:///project/main.rs"),
			want:  `{"name":"main.rs","type":"resource_link","uri":"file:///project/main.rs"}`,
		},
		{
			name: "embedded_resource",
			block: ContentBlock{Resource: &EmbeddedResource{
				Resource: ResourceContents{Text: &TextResourceContents{
					URI:  "file:///project/main.rs",
					Text: "fn main() {}",
				}},
			}},
			want: `{"resource":{"text":"fn main() {}","uri":"file:///project/main.rs"},"type":"resource"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.block)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
			var back ContentBlock
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			again, err := json.Marshal(back)
			if err != nil {
				t.Fatalf("re-marshal failed: %v", err)
			}
			if string(again) != tt.want {
				t.Errorf("round trip changed payload: got %s, want %s", again, tt.want)
			}
		})
	}
}

func TestContentBlockUnknownType(t *testing.T) {
	var block ContentBlock
	err := json.Unmarshal([]byte(`{"type":"video","data":"..."}`), &block)
	if err == nil {
		t.Fatal("expected error for unknown content type")
	}
}

func TestResourceContentsBlobProbe(t *testing.T) {
	var rc ResourceContents
	if err := json.Unmarshal([]byte(`{"uri":"file:///a.bin","blob":"aGVsbG8="}`), &rc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if rc.Blob == nil || rc.Text != nil {
		t.Fatalf("expected blob variant, got %+v", rc)
	}
	if rc.Blob.Blob != "aGVsbG8=" {
		t.Errorf("blob data = %q", rc.Blob.Blob)
	}
}

func TestSessionUpdateTags(t *testing.T) {
	tests := []struct {
		name   string
		update SessionUpdate
		tag    string
	}{
		{"agent message", SessionUpdate{AgentMessageChunk: &ContentChunk{Content: TextBlock("hi")}}, "agent_message_chunk"},
		{"thought", SessionUpdate{AgentThoughtChunk: &ContentChunk{Content: TextBlock("hmm")}}, "agent_thought_chunk"},
		{"tool call", SessionUpdate{ToolCall: &ToolCall{ToolCallID: "call_1", Title: "Reading file"}}, "tool_call"},
		{"plan", SessionUpdate{Plan: &Plan{Entries: []PlanEntry{{Content: "step", Priority: PlanEntryPriorityHigh, Status: PlanEntryStatusPending}}}}, "plan"},
		{"mode", SessionUpdate{CurrentModeUpdate: &CurrentModeUpdate{CurrentModeID: "code"}}, "current_mode_update"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.update)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			if !strings.Contains(string(data), `"sessionUpdate":"`+tt.tag+`"`) {
				t.Errorf("payload %s missing tag %q", data, tt.tag)
			}
			var back SessionUpdate
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
		})
	}
}

func TestToolCallContentVariants(t *testing.T) {
	content := ToolContent(TextBlock("output"))
	data, err := json.Marshal(content)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"content":{"text":"output","type":"text"},"type":"content"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	diff := ToolDiff(Diff{Path: "/project/main.go", NewText: "package main"})
	data, err = json.Marshal(diff)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var back ToolCallContent
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Diff == nil || back.Diff.Path != "/project/main.go" {
		t.Fatalf("diff round trip lost data: %+v", back)
	}
}

func TestMcpServerStdioUntagged(t *testing.T) {
	server := McpServer{Stdio: &McpServerStdio{
		Name:    "filesystem",
		Command: "/usr/bin/mcp-fs",
		Args:    []string{"--root", "/project"},
		Env:     []EnvVariable{},
	}}
	data, err := json.Marshal(server)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(data), `"type"`) {
		t.Errorf("stdio transport must not carry a type tag: %s", data)
	}
	var back McpServer
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Stdio == nil || back.Stdio.Command != "/usr/bin/mcp-fs" {
		t.Fatalf("stdio round trip lost data: %+v", back)
	}
}

func TestMcpServerHttpTagged(t *testing.T) {
	raw := `{"type":"http","name":"docs","url":"https://example.com/mcp","headers":[]}`
	var server McpServer
	if err := json.Unmarshal([]byte(raw), &server); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if server.Http == nil || server.Http.URL != "https://example.com/mcp" {
		t.Fatalf("expected http variant, got %+v", server)
	}
}

func TestPermissionOutcome(t *testing.T) {
	selected := RequestPermissionOutcome{Selected: &SelectedPermissionOutcome{OptionID: "allow"}}
	data, err := json.Marshal(selected)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"optionId":"allow","outcome":"selected"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	var back RequestPermissionOutcome
	if err := json.Unmarshal([]byte(`{"outcome":"cancelled"}`), &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Cancelled == nil {
		t.Fatal("expected cancelled variant")
	}
}

func TestSessionConfigOptionFlattened(t *testing.T) {
	option := SessionConfigOption{
		ID:       "thought-level",
		Name:     "Thought Level",
		Category: ConfigCategoryThoughtLevel,
		Select: &SessionConfigSelect{
			CurrentValue: "medium",
			Options: SessionConfigSelectOptions{Ungrouped: []SessionConfigSelectOption{
				{Value: "low", Name: "Low"},
				{Value: "medium", Name: "Medium"},
				{Value: "high", Name: "High"},
			}},
		},
	}
	data, err := json.Marshal(option)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, fragment := range []string{`"type":"select"`, `"currentValue":"medium"`, `"id":"thought-level"`} {
		if !strings.Contains(string(data), fragment) {
			t.Errorf("payload %s missing %s", data, fragment)
		}
	}

	var back SessionConfigOption
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Select == nil || back.Select.CurrentValue != "medium" {
		t.Fatalf("select payload lost: %+v", back)
	}
	if len(back.Select.Options.Ungrouped) != 3 {
		t.Errorf("ungrouped options = %d, want 3", len(back.Select.Options.Ungrouped))
	}
}

func TestSessionConfigGroupedOptions(t *testing.T) {
	raw := `[{"group":"fast","name":"Fast","options":[{"value":"haiku","name":"Haiku"}]}]`
	var options SessionConfigSelectOptions
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(options.Grouped) != 1 || options.Grouped[0].Group != "fast" {
		t.Fatalf("expected grouped variant, got %+v", options)
	}
}

func TestProtocolVersionUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ProtocolVersion
		wantErr bool
	}{
		{name: "number", raw: "1", want: ProtocolVersionV1},
		{name: "zero", raw: "0", want: ProtocolVersionV0},
		{name: "legacy string", raw: `"0.0.9"`, want: ProtocolVersionV0},
		{name: "too large", raw: "65536", wantErr: true},
		{name: "negative", raw: "-1", wantErr: true},
		{name: "object", raw: "{}", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v ProtocolVersion
			err := json.Unmarshal([]byte(tt.raw), &v)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if v != tt.want {
				t.Errorf("got %d, want %d", v, tt.want)
			}
		})
	}
}

func TestRequestErrorPassthrough(t *testing.T) {
	wrapped := ErrResourceNotFound("file:///missing.txt")
	converted := toRequestError(wrapped)
	if converted.Code != CodeResourceNotFound {
		t.Errorf("code = %d, want %d", converted.Code, CodeResourceNotFound)
	}

	plain := toRequestError(json.Unmarshal([]byte("{"), &struct{}{}))
	if plain.Code != CodeInternalError {
		t.Errorf("code = %d, want %d", plain.Code, CodeInternalError)
	}
	if plain.Data == nil {
		t.Error("expected error text attached as data")
	}
}
