// Command acp-agent serves the reference coding agent over the Agent Client
// Protocol on stdio. Editors spawn it as a subprocess; nothing but JSON-RPC
// is ever written to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dayanruben/agent-client-protocol/acp"
	"github.com/dayanruben/agent-client-protocol/agent"
	"github.com/dayanruben/agent-client-protocol/config"
	"github.com/dayanruben/agent-client-protocol/llm"
	"github.com/dayanruben/agent-client-protocol/session"
)

func main() {
	traceFlag := flag.Bool("trace", false, "Enable execution tracing to troubleshoot issues")
	providerFlag := flag.String("provider", "", "LLM provider: 'anthropic', 'openai', 'gemini', 'bedrock', or 'mock' (overrides config)")
	modelFlag := flag.String("model", "", "Model name (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}
	if *providerFlag != "" {
		cfg.Provider = *providerFlag
	}
	if *modelFlag != "" {
		cfg.Model = *modelFlag
	}

	ctx := context.Background()

	var client llm.Client
	switch cfg.Provider {
	case "anthropic":
		client, err = llm.NewAnthropicClient(ctx, cfg.Model)
	case "openai":
		client, err = llm.NewOpenAIClient(ctx, cfg.Model)
	case "gemini":
		client, err = llm.NewGeminiClient(ctx, cfg.Model)
	case "bedrock":
		client, err = llm.NewBedrockClient(ctx, cfg.Model)
	default:
		client = &llm.Mock{}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing %s client: %+v\n", cfg.Provider, err)
		os.Exit(1)
	}

	store, err := session.NewStore(sessionDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening session store: %+v\n", err)
		os.Exit(1)
	}

	ag := agent.New(cfg, store, client)
	defer ag.Shutdown()

	conn := acp.NewAgentSideConnection(ctx, ag, os.Stdout, os.Stdin)
	ag.SetConnection(conn)

	if *traceFlag {
		traceFile, err := os.OpenFile("acp.trace", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			defer traceFile.Close()
			conn.SetTrace(func(msg string) {
				fmt.Fprintf(traceFile, "[%s] %s\n", time.Now().Format("15:04:05.000"), msg)
			})
		}
	}

	<-conn.Done()
	if err := conn.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Connection failed: %+v\n", err)
		os.Exit(1)
	}
}

// sessionDir is the session store location: the agent state directory under
// the user's home, or under the working directory when home is unknown.
func sessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(config.ConfigDir, "sessions")
	}
	return filepath.Join(home, config.ConfigDir, "sessions")
}
