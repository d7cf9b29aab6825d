// Package core provides the foundational domain types used across
// agent-world. It defines the shared vocabulary for:
//
//   - Senders (the tagged union classifying who produced a message)
//   - Messages (immutable events flowing through a world)
//   - Memory entries (append-only per-agent conversation logs, including
//     approval request/decision/completion records)
//   - Worlds, Agents and ChatSessions (the coordination entities)
//   - Streams (per-world observer fan-out for display and diagnostics)
//   - Pluggable stores for worlds, agents and chat sessions
//
// The package intentionally keeps implementation concerns (persistence,
// dispatch, model calls, approval scanning) out of scope, exposing small
// types and interfaces that the higher packages compose.
package core
