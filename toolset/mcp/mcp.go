// Package mcp connects to Model Context Protocol servers over stdio and
// exposes their tools. The parent toolset package registers each discovered
// tool under "<server>.<tool>".
package mcp

import (
	"context"
	"os"
	"os/exec"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dayanruben/agent-client-protocol/errors"
)

// Client manages the connection to a single MCP server subprocess.
type Client struct {
	Name  string
	cmd   *exec.Cmd
	conn  *mcpsdk.ClientSession
	tools map[string]*Tool
}

// NewClient starts the MCP server subprocess, initializes the session, and
// discovers the tools the server provides. The subprocess inherits the
// parent environment plus the given "NAME=value" entries. Its stderr goes to
// our stderr; stdout stays private to the MCP transport.
func NewClient(ctx context.Context, name, command string, args, env []string) (*Client, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "acp-agent", Version: "v1.0.0"}, nil)
	conn, err := mcpClient.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		cmd.Process.Kill()
		return nil, errors.Wrapf(err, "failed to connect to MCP server '%s'", name)
	}
	client := &Client{
		Name:  name,
		cmd:   cmd,
		conn:  conn,
		tools: make(map[string]*Tool),
	}
	toolListParams := &mcpsdk.ListToolsParams{}
	for {
		toolList, err := conn.ListTools(ctx, toolListParams)
		if err != nil {
			// Attempt to stop the process we just started.
			cmd.Process.Kill()
			return nil, errors.Wrapf(err, "failed to list tools from MCP server '%s'", name)
		}

		for _, t := range toolList.Tools {
			client.tools[t.Name] = &Tool{
				serverName:  name,
				toolName:    t.Name,
				description: t.Description,
				client:      client,
			}
		}

		if toolList.NextCursor == "" {
			break
		}
		toolListParams.Cursor = toolList.NextCursor
	}
	return client, nil
}

// Tools returns all tools discovered on this server.
func (c *Client) Tools() []*Tool {
	tools := make([]*Tool, 0, len(c.tools))
	for _, t := range c.tools {
		tools = append(tools, t)
	}
	return tools
}

// GetTool returns a tool by its short name as reported by the server.
func (c *Client) GetTool(toolName string) (*Tool, bool) {
	t, ok := c.tools[toolName]
	return t, ok
}

// Stop terminates the MCP server subprocess.
func (c *Client) Stop() error {
	if c.conn != nil {
		c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

// Tool is a tool served by an external MCP server. It satisfies the parent
// package's Tool interface.
type Tool struct {
	serverName  string
	toolName    string
	description string
	client      *Client
}

// Name returns "<server>.<tool>". The dot separator keeps names valid for
// providers that reject colons in tool identifiers.
func (t *Tool) Name() string {
	return t.serverName + "." + t.toolName
}

func (t *Tool) Description() string {
	return t.description
}

// Execute forwards the call to the MCP server and concatenates the text
// content of the result.
func (t *Tool) Execute(ctx context.Context, args map[string]any) (string, error) {
	result, err := t.client.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.toolName,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to call tool '%s'", t.Name())
	}
	op := ""
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			op += tc.Text
		}
	}
	return op, nil
}
