package core

import "errors"

// Sentinel errors shared across packages. Lookups never return these;
// they surface from destructive or state-changing operations against
// missing entities.
var (
	// ErrWorldNotFound reports a destructive operation against an unknown
	// world.
	ErrWorldNotFound = errors.New("world not found")
	// ErrAgentNotFound reports a destructive operation against an unknown
	// agent.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAgentNameTaken reports a roster name collision
	// (case-insensitive).
	ErrAgentNameTaken = errors.New("agent name already taken")
	// ErrChatNotFound reports a destructive operation against an unknown
	// chat session.
	ErrChatNotFound = errors.New("chat session not found")
	// ErrNoCurrentSession reports a session-bound operation on a world
	// with no current chat session.
	ErrNoCurrentSession = errors.New("world has no current chat session")
)
