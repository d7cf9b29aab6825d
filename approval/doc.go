// Package approval implements the human-in-the-loop permission protocol
// for tool execution. Approval state is never stored in a dedicated
// table: it is re-derived on every check by scanning the agent's
// append-only memory most-recent-first, so the memory log is the single
// source of truth.
//
// Grants are keyed on the exact (toolName, toolArgs, workingDirectory)
// triple. Scope "once" is consumed by the next completed execution;
// scope "session" persists for the identical triple. Denials stick until
// a newer decision supersedes them. Malformed structured payloads are
// treated as no record, failing closed.
package approval
