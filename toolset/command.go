package toolset

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/dayanruben/agent-client-protocol/errors"
)

// CommandRunner abstracts command execution. LocalRunner spawns the process
// directly; the agent substitutes a client-backed implementation when the
// editor advertises the terminal capability, so commands run in editor
// terminals the user can see.
type CommandRunner interface {
	RunCommand(ctx context.Context, command string) (string, error)
}

// LocalRunner executes commands as local subprocesses.
type LocalRunner struct{}

func (LocalRunner) RunCommand(ctx context.Context, command string) (string, error) {
	parts := strings.Fields(command)
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "command execution failed. Output:\n%s", string(output))
	}
	return string(output), nil
}

// ExecuteCommandTool implements the tool for running OS commands.
type ExecuteCommandTool struct {
	runner          CommandRunner
	allowedCommands []string
}

func (t *ExecuteCommandTool) Name() string { return "execute_command" }
func (t *ExecuteCommandTool) Description() string {
	if len(t.allowedCommands) == 0 {
		return "Executes a shell command. No commands are currently allowed. Args: command (string)."
	}

	allowedList := "Allowed command patterns:\n"
	for _, cmd := range t.allowedCommands {
		allowedList += fmt.Sprintf("- %s\n", cmd)
	}

	return fmt.Sprintf("Executes a shell command. Args: command (string).\n%s", allowedList)
}

func (t *ExecuteCommandTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	command, ok := args["command"].(string)
	if !ok {
		return "", errors.New("missing or invalid 'command' argument")
	}

	allowed, err := isCommandAllowed(command, t.allowedCommands)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", errors.New("command '%s' is not in the list of allowed commands", command)
	}

	output, err := t.runner.RunCommand(ctx, command)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Command executed successfully. Output:\n%s", output), nil
}
