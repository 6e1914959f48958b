// Package session persists conversation history as JSON files, one per
// session, so sessions survive agent restarts and can be loaded, listed, and
// forked.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// ToolCall records a tool invocation requested by the model.
type ToolCall struct {
	ToolCallID string         `json:"tool_call_id"`
	Name       string         `json:"name"`
	Args       map[string]any `json:"args,omitempty"`
}

// Message is one entry in a session's history. Role is "user", "assistant",
// "tool", or "system".
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Session is a conversation and its metadata.
type Session struct {
	ID        string    `json:"id"`
	Cwd       string    `json:"cwd"`
	Title     string    `json:"title,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`

	path string
}

// Info is the metadata of a stored session, without its history.
type Info struct {
	ID        string
	Cwd       string
	Title     string
	UpdatedAt time.Time
}

// Store reads and writes sessions under a directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create session directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// New creates a fresh session for the given working directory.
func (st *Store) New(cwd string) (*Session, error) {
	id := fmt.Sprintf("sess_%d", time.Now().UnixNano())
	sess := &Session{
		ID:        id,
		Cwd:       cwd,
		UpdatedAt: time.Now().UTC(),
		Messages:  []Message{},
		path:      st.pathFor(id),
	}
	if err := sess.Save(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Load reads an existing session from disk.
func (st *Store) Load(id string) (*Session, error) {
	path := st.pathFor(id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read session file %s: %w", path, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("could not parse session file %s: %w", path, err)
	}
	sess.path = path
	return &sess, nil
}

// Fork copies a session's history into a new session with its own id.
func (st *Store) Fork(id, cwd string) (*Session, error) {
	src, err := st.Load(id)
	if err != nil {
		return nil, err
	}
	if cwd == "" {
		cwd = src.Cwd
	}
	forked := &Session{
		ID:        fmt.Sprintf("sess_%d", time.Now().UnixNano()),
		Cwd:       cwd,
		Title:     src.Title,
		UpdatedAt: time.Now().UTC(),
		Messages:  append([]Message(nil), src.Messages...),
		path:      "",
	}
	forked.path = st.pathFor(forked.ID)
	if err := forked.Save(); err != nil {
		return nil, err
	}
	return forked, nil
}

// List returns stored sessions newest first, optionally filtered by working
// directory. cursor is the opaque value from a previous call's next result;
// pageSize caps the page, with 0 meaning everything.
func (st *Store) List(cwd, cursor string, pageSize int) (infos []Info, next string, err error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, "", fmt.Errorf("could not read session directory: %w", err)
	}
	var all []Info
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		sess, err := st.Load(entry.Name()[:len(entry.Name())-len(".json")])
		if err != nil {
			// Skip unreadable entries rather than failing the whole listing.
			continue
		}
		if cwd != "" && sess.Cwd != cwd {
			continue
		}
		all = append(all, Info{ID: sess.ID, Cwd: sess.Cwd, Title: sess.Title, UpdatedAt: sess.UpdatedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })

	offset := 0
	if cursor != "" {
		offset, err = strconv.Atoi(cursor)
		if err != nil || offset < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
	}
	if offset >= len(all) {
		return []Info{}, "", nil
	}
	all = all[offset:]
	if pageSize > 0 && len(all) > pageSize {
		return all[:pageSize], strconv.Itoa(offset + pageSize), nil
	}
	return all, "", nil
}

func (st *Store) pathFor(id string) string {
	return filepath.Join(st.dir, id+".json")
}

// Save writes the session to disk, refreshing its timestamp and deriving a
// title from the first user message when none is set.
func (s *Session) Save() error {
	s.UpdatedAt = time.Now().UTC()
	if s.Title == "" {
		for _, msg := range s.Messages {
			if msg.Role == "user" && msg.Content != "" {
				s.Title = truncateTitle(msg.Content)
				break
			}
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}

// AddMessage appends a message to the session history.
func (s *Session) AddMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
}

func truncateTitle(content string) string {
	const max = 64
	if len(content) <= max {
		return content
	}
	return content[:max]
}
