package agent

import (
	"context"
	"strings"

	"github.com/dayanruben/agent-client-protocol/acp"
	"github.com/dayanruben/agent-client-protocol/errors"
	"github.com/dayanruben/agent-client-protocol/toolset"
)

// fileOps returns the file backend for a session: the client's fs methods
// when advertised, the local filesystem otherwise. Client-routed reads see
// unsaved editor state.
func (a *Agent) fileOps(sessionID acp.SessionID) toolset.FileOps {
	if a.clientCaps.Fs.ReadTextFile || a.clientCaps.Fs.WriteTextFile {
		return &clientFileOps{
			agent:     a,
			sessionID: sessionID,
		}
	}
	return toolset.LocalFileOps{}
}

// commandRunner returns the command backend for a session: client terminals
// when advertised, local subprocesses otherwise.
func (a *Agent) commandRunner(sessionID acp.SessionID) toolset.CommandRunner {
	if a.clientCaps.Terminal {
		return &clientRunner{
			agent:     a,
			sessionID: sessionID,
		}
	}
	return toolset.LocalRunner{}
}

// clientFileOps routes file operations through the connected client. When
// only one direction is advertised, the other falls back to local access.
type clientFileOps struct {
	agent     *Agent
	sessionID acp.SessionID
	local     toolset.LocalFileOps
}

func (f *clientFileOps) ReadFile(ctx context.Context, path string) (string, error) {
	if !f.agent.clientCaps.Fs.ReadTextFile {
		return f.local.ReadFile(ctx, path)
	}
	resp, err := f.agent.conn.ReadTextFile(ctx, &acp.ReadTextFileRequest{
		SessionID: f.sessionID,
		Path:      path,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (f *clientFileOps) WriteFile(ctx context.Context, path, content string) error {
	if !f.agent.clientCaps.Fs.WriteTextFile {
		return f.local.WriteFile(ctx, path, content)
	}
	_, err := f.agent.conn.WriteTextFile(ctx, &acp.WriteTextFileRequest{
		SessionID: f.sessionID,
		Path:      path,
		Content:   content,
	})
	return err
}

// clientRunner executes commands in client terminals, so the user watches
// them run inside the editor.
type clientRunner struct {
	agent     *Agent
	sessionID acp.SessionID
}

func (r *clientRunner) RunCommand(ctx context.Context, command string) (string, error) {
	parts := strings.Fields(command)
	created, err := r.agent.conn.CreateTerminal(ctx, &acp.CreateTerminalRequest{
		SessionID: r.sessionID,
		Command:   parts[0],
		Args:      parts[1:],
	})
	if err != nil {
		return "", err
	}
	terminalID := created.TerminalID
	defer func() {
		_, _ = r.agent.conn.ReleaseTerminal(context.WithoutCancel(ctx), &acp.ReleaseTerminalRequest{
			SessionID:  r.sessionID,
			TerminalID: terminalID,
		})
	}()

	exit, err := r.agent.conn.WaitForTerminalExit(ctx, &acp.WaitForTerminalExitRequest{
		SessionID:  r.sessionID,
		TerminalID: terminalID,
	})
	if err != nil {
		return "", err
	}

	out, err := r.agent.conn.TerminalOutput(ctx, &acp.TerminalOutputRequest{
		SessionID:  r.sessionID,
		TerminalID: terminalID,
	})
	if err != nil {
		return "", err
	}

	if exit.ExitCode != nil && *exit.ExitCode != 0 {
		return "", errors.New("command exited with code %d. Output:\n%s", *exit.ExitCode, out.Output)
	}
	if exit.Signal != "" {
		return "", errors.New("command killed by signal %s. Output:\n%s", exit.Signal, out.Output)
	}
	return out.Output, nil
}
