// Package config loads the agent's YAML configuration. A user-level file is
// read first and a project-level file layered on top, so a repository can
// tighten command and filesystem rules without touching the user's defaults.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dayanruben/agent-client-protocol/errors"
)

// ConfigDir is the directory name holding agent state, both under the user's
// home and under a project root.
const ConfigDir = ".acp-agent"

// FilesystemAccess restricts what the filesystem tools may touch. Patterns
// are doublestar globs matched against the full path.
type FilesystemAccess struct {
	// Hidden paths can be neither read nor written.
	Hidden []string `yaml:"hidden"`
	// ReadOnly paths can be read but not written.
	ReadOnly []string `yaml:"read_only"`
}

// MCPServer is an MCP server to launch alongside the ones the client passes
// in session/new.
type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Toolset names a set of tools the agent may use.
type Toolset struct {
	Name  string   `yaml:"name"`
	Tools []string `yaml:"tools"`
}

type Config struct {
	// Provider selects the LLM backend: anthropic, openai, gemini, bedrock,
	// or mock.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// Toolset names the toolset to activate; empty means "default".
	Toolset  string    `yaml:"toolset"`
	Toolsets []Toolset `yaml:"toolsets"`
	// MCPServers lists servers to launch in addition to those the client
	// provides per session.
	MCPServers []MCPServer `yaml:"mcp_servers"`
	// AllowedCommands are regular expressions; a command must match one to be
	// executable.
	AllowedCommands  []string         `yaml:"allowed_commands"`
	FilesystemAccess FilesystemAccess `yaml:"filesystem_access"`
	// MaxTurnRequests caps LLM round trips within one prompt turn. Zero means
	// the default of 25.
	MaxTurnRequests int `yaml:"max_turn_requests"`
}

// Load reads configuration from the user's home directory and the current
// working directory, with the latter taking precedence.
func Load() (*Config, error) {
	cfg := &Config{}

	// The agent's own state directory is always hidden from tools.
	cfg.FilesystemAccess.Hidden = append(cfg.FilesystemAccess.Hidden, ConfigDir, ConfigDir+"/**")

	home, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(home, ConfigDir, "config.yaml")
		if _, err := os.Stat(userPath); err == nil {
			if err := loadFromFile(userPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectPath := filepath.Join(wd, ConfigDir, "config.yaml")
	if _, err := os.Stat(projectPath); err == nil {
		if err := loadFromFile(projectPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	if cfg.MaxTurnRequests <= 0 {
		cfg.MaxTurnRequests = 25
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal overwrites fields present in the YAML, giving a simple merge
	// where project-level values replace user-level ones.
	return yaml.Unmarshal(data, cfg)
}

// GetToolset finds a toolset by name, falling back to "default" when the
// named one doesn't exist. When no toolsets are configured at all, a built-in
// default with every standard tool is returned.
func (c *Config) GetToolset(name string) (*Toolset, error) {
	if name == "" {
		name = "default"
	}
	for i := range c.Toolsets {
		if c.Toolsets[i].Name == name {
			return &c.Toolsets[i], nil
		}
	}
	if name != "default" {
		return c.GetToolset("default")
	}
	if len(c.Toolsets) == 0 {
		return &Toolset{
			Name:  "default",
			Tools: []string{"read_file", "write_file", "execute_command"},
		}, nil
	}
	return nil, errors.New("mandatory 'default' toolset not found in configuration")
}
