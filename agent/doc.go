// Package agent implements a coding agent served over the Agent Client
// Protocol.
//
// The Agent type satisfies acp.Agent plus the optional session interfaces
// (load, list, fork, resume, set_mode). It ties together the other
// application packages:
//
//   - config: YAML configuration for the LLM provider, toolsets, and access rules
//   - llm: provider clients that run the chat and surface tool calls
//   - toolset: the tools the model may invoke, with path and command restrictions
//   - session: JSON file persistence of conversation history
//
// # Prompt turns
//
// A session/prompt request runs the LLM tool-calling loop: the model's text
// is streamed to the client as agent_message_chunk updates, tool invocations
// are reported as tool_call and tool_call_update notifications, and results
// are fed back to the model until it stops requesting tools or the
// configured request budget is exhausted. session/cancel aborts the loop and
// the turn finishes with stop reason "cancelled".
//
// # Modes
//
//   - ModePrompt: tool calls that modify files or run commands go through
//     session/request_permission first
//   - ModeAuto: every tool call executes without asking
//
// # Capability routing
//
// When the client advertises the fs capability, the filesystem tools read
// and write through fs/read_text_file and fs/write_text_file, so the agent
// sees unsaved editor state. When it advertises the terminal capability,
// execute_command runs inside client terminals. Both fall back to local
// access otherwise.
package agent
