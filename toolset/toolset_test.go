package toolset

import (
	"context"
	"strings"
	"testing"

	"github.com/dayanruben/agent-client-protocol/config"
)

type fakeFiles struct {
	contents map[string]string
	written  map[string]string
}

func (f *fakeFiles) ReadFile(ctx context.Context, path string) (string, error) {
	content, ok := f.contents[path]
	if !ok {
		return "", errNotFound
	}
	return content, nil
}

func (f *fakeFiles) WriteFile(ctx context.Context, path, content string) error {
	if f.written == nil {
		f.written = make(map[string]string)
	}
	f.written[path] = content
	return nil
}

var errNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "no such file" }

type fakeRunner struct {
	lastCommand string
	output      string
}

func (r *fakeRunner) RunCommand(ctx context.Context, command string) (string, error) {
	r.lastCommand = command
	return r.output, nil
}

func TestIsPathRestricted(t *testing.T) {
	patterns := []string{".env", "secrets/**", "**/*.pem"}

	tests := []struct {
		path string
		want bool
	}{
		{".env", true},
		{"secrets/api/key.txt", true},
		{"deploy/certs/server.pem", true},
		{"main.go", false},
		{"env/config.yaml", false},
	}
	for _, tc := range tests {
		got, err := isPathRestricted(tc.path, patterns)
		if err != nil {
			t.Fatalf("isPathRestricted(%q): %v", tc.path, err)
		}
		if got != tc.want {
			t.Errorf("isPathRestricted(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestIsCommandAllowed(t *testing.T) {
	allowed := []string{`^go (build|test)\b`, `^ls`, `git status`}

	tests := []struct {
		command string
		want    bool
	}{
		{"go test ./...", true},
		{"go build", true},
		{"ls -la", true},
		{"git status", true},
		{"rm -rf /", false},
		{"gofmt -w .", false},
		{"", false},
	}
	for _, tc := range tests {
		got, err := isCommandAllowed(tc.command, allowed)
		if err != nil {
			t.Fatalf("isCommandAllowed(%q): %v", tc.command, err)
		}
		if got != tc.want {
			t.Errorf("isCommandAllowed(%q) = %v, want %v", tc.command, got, tc.want)
		}
	}
}

func TestIsCommandAllowedExactFallback(t *testing.T) {
	// An unparsable regex still works as a literal allowlist entry.
	allowed := []string{`npm run build [`}
	got, err := isCommandAllowed("npm run build [", allowed)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Error("exact match against invalid regex pattern should be allowed")
	}
}

func TestReadFileTool(t *testing.T) {
	files := &fakeFiles{contents: map[string]string{"main.go": "package main\n"}}
	tool := &ReadFileTool{
		files:    files,
		fsAccess: &config.FilesystemAccess{Hidden: []string{".env"}},
	}

	out, err := tool.Execute(context.Background(), map[string]any{"path": "main.go"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "package main\n" {
		t.Errorf("unexpected content: %q", out)
	}

	if _, err := tool.Execute(context.Background(), map[string]any{"path": ".env"}); err == nil {
		t.Error("expected error reading hidden path")
	}
	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Error("expected error for missing path argument")
	}
}

func TestWriteFileTool(t *testing.T) {
	files := &fakeFiles{}
	tool := &WriteFileTool{
		files: files,
		fsAccess: &config.FilesystemAccess{
			Hidden:   []string{".env"},
			ReadOnly: []string{"go.sum"},
		},
	}

	out, err := tool.Execute(context.Background(), map[string]any{"path": "notes.txt", "content": "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "5 bytes") {
		t.Errorf("unexpected result message: %q", out)
	}
	if files.written["notes.txt"] != "hello" {
		t.Errorf("content not written: %q", files.written["notes.txt"])
	}

	if _, err := tool.Execute(context.Background(), map[string]any{"path": "go.sum", "content": "x"}); err == nil {
		t.Error("expected error writing read-only path")
	}
	if _, err := tool.Execute(context.Background(), map[string]any{"path": ".env", "content": "x"}); err == nil {
		t.Error("expected error writing hidden path")
	}
}

func TestExecuteCommandTool(t *testing.T) {
	runner := &fakeRunner{output: "ok\n"}
	tool := &ExecuteCommandTool{runner: runner, allowedCommands: []string{`^echo`}}

	out, err := tool.Execute(context.Background(), map[string]any{"command": "echo hi"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ok") {
		t.Errorf("unexpected output: %q", out)
	}
	if runner.lastCommand != "echo hi" {
		t.Errorf("runner got %q", runner.lastCommand)
	}

	if _, err := tool.Execute(context.Background(), map[string]any{"command": "rm -rf /"}); err == nil {
		t.Error("expected error for disallowed command")
	}
}

func TestRegistryActive(t *testing.T) {
	cfg := &config.Config{
		AllowedCommands: []string{`^ls`},
	}
	registry := NewRegistry(cfg, &fakeFiles{}, &fakeRunner{})

	ts := &config.Toolset{Name: "default", Tools: []string{"read_file", "execute_command"}}
	active, err := registry.Active(ts)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active tools, got %d", len(active))
	}

	bad := &config.Toolset{Name: "bad", Tools: []string{"nonexistent"}}
	if _, err := registry.Active(bad); err == nil {
		t.Error("expected error for unregistered tool")
	}

	wildcard := &config.Toolset{Name: "wc", Tools: []string{"gopls.*"}}
	if _, err := registry.Active(wildcard); err == nil {
		t.Error("expected error for wildcard referencing unknown MCP server")
	}
}
