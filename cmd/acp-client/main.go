// Command acp-client is an editor-side ACP harness: it spawns an agent
// subprocess, drives it with prompts read from the terminal, renders session
// updates, answers permission requests interactively, and serves the agent's
// file system requests.
//
// Usage:
//
//	acp-client [-trace] <agent-command> [agent-args...]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dayanruben/agent-client-protocol/acp"
	"github.com/dayanruben/agent-client-protocol/config"
)

func main() {
	traceFlag := flag.Bool("trace", false, "Enable execution tracing to troubleshoot issues")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: acp-client [-trace] <agent-command> [agent-args...]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, flag.Arg(0), flag.Args()[1:]...)
	cmd.Stderr = os.Stderr
	agentIn, err := cmd.StdinPipe()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening agent stdin: %+v\n", err)
		os.Exit(1)
	}
	agentOut, err := cmd.StdoutPipe()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening agent stdout: %+v\n", err)
		os.Exit(1)
	}
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting agent: %+v\n", err)
		os.Exit(1)
	}
	defer cmd.Wait()
	defer agentIn.Close()

	stdin := bufio.NewReader(os.Stdin)
	ec := &editorClient{stdin: stdin, fsAccess: &cfg.FilesystemAccess}
	conn := acp.NewClientSideConnection(ctx, ec, agentIn, agentOut)

	if *traceFlag {
		traceFile, err := os.OpenFile("acp-client.trace", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			defer traceFile.Close()
			conn.SetTrace(func(msg string) {
				fmt.Fprintf(traceFile, "[%s] %s\n", time.Now().Format("15:04:05.000"), msg)
			})
		}
	}

	if err := run(ctx, conn, stdin); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, conn *acp.ClientSideConnection, stdin *bufio.Reader) error {
	init, err := conn.Initialize(ctx, &acp.InitializeRequest{
		ProtocolVersion: acp.ProtocolVersionLatest,
		ClientCapabilities: acp.ClientCapabilities{
			Fs: acp.FileSystemCapability{ReadTextFile: true, WriteTextFile: true},
		},
		ClientInfo: &acp.Implementation{Name: "acp-client", Version: "0.1.0"},
	})
	if err != nil {
		return err
	}
	if init.AgentInfo != nil {
		fmt.Printf("Connected to %s %s (protocol v%d)\n", init.AgentInfo.Name, init.AgentInfo.Version, init.ProtocolVersion)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	created, err := conn.NewSession(ctx, &acp.NewSessionRequest{Cwd: cwd, McpServers: []acp.McpServer{}})
	if err != nil {
		return err
	}
	sessionID := created.SessionID
	fmt.Printf("Session %s started. Type a prompt, or /help for commands.\n", sessionID)

	for {
		fmt.Print("You: ")
		line, err := stdin.ReadString('\n')
		if err != nil {
			// EOF ends the session
			return nil
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch {
		case input == "/quit" || input == "/exit":
			return nil
		case input == "/help":
			fmt.Println("/sessions        list stored sessions")
			fmt.Println("/load <id>       load a session and replay its history")
			fmt.Println("/fork            fork the current session")
			fmt.Println("/mode <id>       switch session mode")
			fmt.Println("/quit            exit")
			continue
		case input == "/sessions":
			listed, err := conn.ListSessions(ctx, &acp.ListSessionsRequest{})
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			for _, s := range listed.Sessions {
				fmt.Printf("  %s  %s  %s\n", s.SessionID, s.UpdatedAt, s.Title)
			}
			continue
		case strings.HasPrefix(input, "/load "):
			id := acp.SessionID(strings.TrimSpace(strings.TrimPrefix(input, "/load ")))
			if _, err := conn.LoadSession(ctx, &acp.LoadSessionRequest{
				SessionID:  id,
				Cwd:        cwd,
				McpServers: []acp.McpServer{},
			}); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			sessionID = id
			fmt.Printf("Session %s loaded.\n", sessionID)
			continue
		case input == "/fork":
			forked, err := conn.ForkSession(ctx, &acp.ForkSessionRequest{SessionID: sessionID, Cwd: cwd})
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			sessionID = forked.SessionID
			fmt.Printf("Forked into session %s.\n", sessionID)
			continue
		case strings.HasPrefix(input, "/mode "):
			mode := acp.SessionModeID(strings.TrimSpace(strings.TrimPrefix(input, "/mode ")))
			if _, err := conn.SetSessionMode(ctx, &acp.SetSessionModeRequest{SessionID: sessionID, ModeID: mode}); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Printf("Mode set to %s.\n", mode)
			continue
		}

		resp, err := conn.Prompt(ctx, &acp.PromptRequest{
			SessionID: sessionID,
			Prompt:    []acp.ContentBlock{acp.TextBlock(input)},
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		if resp.StopReason != acp.StopReasonEndTurn {
			fmt.Printf("[turn ended: %s]\n", resp.StopReason)
		}
	}
}

// editorClient implements the client side of the protocol for the terminal.
type editorClient struct {
	stdin    *bufio.Reader
	fsAccess *config.FilesystemAccess
}

func (c *editorClient) SessionUpdated(ctx context.Context, n *acp.SessionNotification) error {
	u := n.Update
	switch {
	case u.AgentMessageChunk != nil:
		if text := u.AgentMessageChunk.Content.Text; text != nil {
			fmt.Printf("Agent: %s\n", text.Text)
		}
	case u.AgentThoughtChunk != nil:
		if text := u.AgentThoughtChunk.Content.Text; text != nil {
			fmt.Printf("Agent (thinking): %s\n", text.Text)
		}
	case u.UserMessageChunk != nil:
		if text := u.UserMessageChunk.Content.Text; text != nil {
			fmt.Printf("You (replayed): %s\n", text.Text)
		}
	case u.ToolCall != nil:
		fmt.Printf("[tool %s: %s (%s)]\n", u.ToolCall.ToolCallID, u.ToolCall.Title, u.ToolCall.Kind)
	case u.ToolCallUpdate != nil:
		fmt.Printf("[tool %s: %s]\n", u.ToolCallUpdate.ToolCallID, u.ToolCallUpdate.Status)
	case u.Plan != nil:
		for _, entry := range u.Plan.Entries {
			fmt.Printf("[plan] %s (%s)\n", entry.Content, entry.Status)
		}
	case u.CurrentModeUpdate != nil:
		fmt.Printf("[mode: %s]\n", u.CurrentModeUpdate.CurrentModeID)
	}
	return nil
}

func (c *editorClient) RequestPermission(ctx context.Context, req *acp.RequestPermissionRequest) (*acp.RequestPermissionResponse, error) {
	fmt.Printf("The agent wants to run tool %s with input %v\n", req.ToolCall.ToolCallID, req.ToolCall.RawInput)
	for i, opt := range req.Options {
		fmt.Printf("  %d) %s\n", i+1, opt.Name)
	}
	fmt.Print("Choose an option: ")
	line, err := c.stdin.ReadString('\n')
	if err != nil {
		return &acp.RequestPermissionResponse{
			Outcome: acp.RequestPermissionOutcome{Cancelled: &acp.CancelledPermissionOutcome{}},
		}, nil
	}
	choice := strings.TrimSpace(line)
	for i, opt := range req.Options {
		if choice == fmt.Sprintf("%d", i+1) {
			return &acp.RequestPermissionResponse{
				Outcome: acp.RequestPermissionOutcome{
					Selected: &acp.SelectedPermissionOutcome{OptionID: opt.OptionID},
				},
			}, nil
		}
	}
	// Anything unrecognized counts as a rejection.
	for _, opt := range req.Options {
		if opt.Kind == acp.PermissionRejectOnce || opt.Kind == acp.PermissionRejectAlways {
			return &acp.RequestPermissionResponse{
				Outcome: acp.RequestPermissionOutcome{
					Selected: &acp.SelectedPermissionOutcome{OptionID: opt.OptionID},
				},
			}, nil
		}
	}
	return &acp.RequestPermissionResponse{
		Outcome: acp.RequestPermissionOutcome{Cancelled: &acp.CancelledPermissionOutcome{}},
	}, nil
}

func (c *editorClient) ReadTextFile(ctx context.Context, req *acp.ReadTextFileRequest) (*acp.ReadTextFileResponse, error) {
	if c.restricted(req.Path, c.fsAccess.Hidden) {
		return nil, acp.ErrResourceNotFound("file://" + req.Path)
	}
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, acp.ErrResourceNotFound("file://" + req.Path)
	}
	content := string(data)
	if req.Line != nil || req.Limit != nil {
		content = sliceLines(content, req.Line, req.Limit)
	}
	return &acp.ReadTextFileResponse{Content: content}, nil
}

func (c *editorClient) WriteTextFile(ctx context.Context, req *acp.WriteTextFileRequest) (*acp.WriteTextFileResponse, error) {
	if c.restricted(req.Path, c.fsAccess.Hidden) || c.restricted(req.Path, c.fsAccess.ReadOnly) {
		return nil, acp.ErrInvalidParams().WithData(fmt.Sprintf("path %q is not writable", req.Path))
	}
	if err := os.WriteFile(req.Path, []byte(req.Content), 0644); err != nil {
		return nil, acp.ErrInternalError().WithData(err.Error())
	}
	return &acp.WriteTextFileResponse{}, nil
}

func (c *editorClient) restricted(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.PathMatch(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

// sliceLines applies the optional 1-based line offset and line count from a
// read request.
func sliceLines(content string, line, limit *uint32) string {
	lines := strings.Split(content, "\n")
	start := 0
	if line != nil && *line > 0 {
		start = int(*line) - 1
	}
	if start > len(lines) {
		start = len(lines)
	}
	lines = lines[start:]
	if limit != nil && int(*limit) < len(lines) {
		lines = lines[:*limit]
	}
	return strings.Join(lines, "\n")
}
