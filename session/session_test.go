package session

import (
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	sess, err := store.New("/project")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	sess.AddMessage(Message{Role: "user", Content: "add a README"})
	sess.AddMessage(Message{Role: "assistant", Content: "done", ToolCalls: []ToolCall{
		{ToolCallID: "call_1", Name: "write_file", Args: map[string]any{"path": "README.md"}},
	}})
	if err := sess.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("message count = %d, want 2", len(loaded.Messages))
	}
	if loaded.Messages[1].ToolCalls[0].Name != "write_file" {
		t.Errorf("tool call = %+v", loaded.Messages[1].ToolCalls[0])
	}
	if loaded.Title != "add a README" {
		t.Errorf("title = %q, want first user message", loaded.Title)
	}
	if loaded.Cwd != "/project" {
		t.Errorf("cwd = %q", loaded.Cwd)
	}
}

func TestStoreFork(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	sess, err := store.New("/project")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	sess.AddMessage(Message{Role: "user", Content: "hello"})
	if err := sess.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	forked, err := store.Fork(sess.ID, "/elsewhere")
	if err != nil {
		t.Fatalf("Fork failed: %v", err)
	}
	if forked.ID == sess.ID {
		t.Error("fork kept the original id")
	}
	if forked.Cwd != "/elsewhere" {
		t.Errorf("fork cwd = %q", forked.Cwd)
	}
	if len(forked.Messages) != 1 || forked.Messages[0].Content != "hello" {
		t.Errorf("fork messages = %+v", forked.Messages)
	}

	// The fork must not share history with the original.
	forked.AddMessage(Message{Role: "user", Content: "more"})
	reloaded, err := store.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(reloaded.Messages) != 1 {
		t.Errorf("original grew to %d messages", len(reloaded.Messages))
	}
}

func TestStoreListPagination(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	var ids []string
	for range 5 {
		sess, err := store.New("/project")
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		ids = append(ids, sess.ID)
	}

	page, next, err := store.List("/project", "", 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 2 || next == "" {
		t.Fatalf("page = %d entries, next = %q", len(page), next)
	}

	seen := map[string]bool{}
	cursor := ""
	for {
		page, nextCursor, err := store.List("/project", cursor, 2)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		for _, info := range page {
			if seen[info.ID] {
				t.Errorf("session %s listed twice", info.ID)
			}
			seen[info.ID] = true
		}
		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}
	if len(seen) != len(ids) {
		t.Errorf("listed %d sessions, want %d", len(seen), len(ids))
	}

	other, _, err := store.List("/other", "", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("cwd filter returned %d sessions", len(other))
	}
}
