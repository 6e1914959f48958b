// Package toolset holds the tools the agent can invoke during a prompt turn:
// filesystem access, command execution, and tools discovered from MCP
// servers. File and command operations go through interfaces so they can be
// routed to the ACP client when it advertises the matching capability, and
// run locally otherwise.
package toolset

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dayanruben/agent-client-protocol/config"
	"github.com/dayanruben/agent-client-protocol/errors"
	"github.com/dayanruben/agent-client-protocol/toolset/mcp"
)

// Tool defines the interface for any action the agent can take.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds all available tools, including those discovered from MCP
// servers.
type Registry struct {
	tools      map[string]Tool
	mcpClients map[string]*mcp.Client
}

// NewRegistry builds a registry with the standard tools wired to the given
// file and command backends.
func NewRegistry(cfg *config.Config, files FileOps, runner CommandRunner) *Registry {
	r := &Registry{
		tools:      make(map[string]Tool),
		mcpClients: make(map[string]*mcp.Client),
	}
	r.Register(&ReadFileTool{files: files, fsAccess: &cfg.FilesystemAccess})
	r.Register(&WriteFileTool{files: files, fsAccess: &cfg.FilesystemAccess})
	r.Register(&ExecuteCommandTool{runner: runner, allowedCommands: cfg.AllowedCommands})
	return r
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// RegisterMCP adds an MCP server's tools to the registry under
// "<server>.<tool>" names.
func (r *Registry) RegisterMCP(client *mcp.Client) {
	r.mcpClients[client.Name] = client
	for _, t := range client.Tools() {
		r.tools[t.Name()] = t
	}
}

// CloseMCP stops all registered MCP server subprocesses.
func (r *Registry) CloseMCP() {
	for _, client := range r.mcpClients {
		_ = client.Stop()
	}
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Active returns the tool instances for a toolset. Entries of the form
// "<server>.*" expand to every tool of that MCP server.
func (r *Registry) Active(ts *config.Toolset) ([]Tool, error) {
	var active []Tool
	for _, name := range ts.Tools {
		if server, ok := strings.CutSuffix(name, ".*"); ok {
			client, found := r.mcpClients[server]
			if !found {
				return nil, errors.New("toolset '%s' references unknown MCP server '%s'", ts.Name, server)
			}
			for _, t := range client.Tools() {
				active = append(active, t)
			}
			continue
		}
		t, ok := r.Get(name)
		if !ok {
			return nil, errors.New("tool '%s' from toolset '%s' is not registered", name, ts.Name)
		}
		active = append(active, t)
	}
	return active, nil
}

// isPathRestricted checks if a path matches any of the glob patterns.
func isPathRestricted(path string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		match, err := doublestar.PathMatch(pattern, path)
		if err != nil {
			return false, fmt.Errorf("invalid glob pattern '%s': %w", pattern, err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// isCommandAllowed checks if a command matches a pattern in the allowlist.
func isCommandAllowed(command string, allowed []string) (bool, error) {
	if len(strings.Fields(command)) == 0 {
		return false, nil
	}
	for _, pattern := range allowed {
		re, err := regexp.Compile(pattern)
		if err != nil {
			// Fall back to exact comparison for unparsable patterns.
			if command == pattern {
				return true, nil
			}
			continue
		}
		if re.MatchString(command) {
			return true, nil
		}
	}
	return false, nil
}
