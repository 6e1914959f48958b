// Package acp implements the Agent Client Protocol (ACP), a JSON-RPC
// protocol that connects code editors with AI coding agents over stdio.
// Messages are newline-delimited JSON-RPC 2.0, and either side can issue
// requests and notifications to the other.
//
// Agents implement the Agent interface and wrap it in an AgentSideConnection;
// clients implement the Client interface and wrap it in a
// ClientSideConnection. Optional protocol surface (session loading, file
// system access, terminals, session modes and models) is expressed through
// optional interfaces that connections detect with type assertions, matching
// the capabilities advertised during initialize.
//
// A typical exchange:
//   - client calls initialize to negotiate the protocol version and
//     capabilities
//   - client calls session/new (or session/load) to begin a conversation
//   - client calls session/prompt; the agent streams session/update
//     notifications and may call back into the client for permissions,
//     files, and terminals
//   - the prompt turn ends with a stop reason, or with "cancelled" after a
//     session/cancel notification
//
// Nothing but JSON-RPC may be written to the stream; debug output belongs in
// a trace sink installed with SetTrace.
package acp
