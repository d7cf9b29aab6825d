package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SenderKind classifies the origin of a message. The kind is assigned
// when the sender is constructed and travels with every message; no
// component ever infers it from naming conventions on the ID.
type SenderKind uint8

const (
	// SenderUnknown is the zero value. Well-formed messages never carry it.
	SenderUnknown SenderKind = iota
	// SenderHuman marks messages typed by a person.
	SenderHuman
	// SenderSystem marks messages produced by the coordination layer
	// itself (turn-limit notices, error surfacing).
	SenderSystem
	// SenderWorld marks ambient world events that must never trigger a
	// response.
	SenderWorld
	// SenderAgent marks messages generated by an agent in the world.
	SenderAgent
)

// String returns the canonical lowercase name of the kind.
func (k SenderKind) String() string {
	switch k {
	case SenderHuman:
		return "human"
	case SenderSystem:
		return "system"
	case SenderWorld:
		return "world"
	case SenderAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its canonical string form.
func (k SenderKind) MarshalJSON() ([]byte, error) {
	if k == SenderUnknown {
		return nil, fmt.Errorf("cannot encode unknown sender kind")
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes the canonical string form. Unrecognized kinds
// fail the decode rather than silently mapping to a default.
func (k *SenderKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode sender kind: %w", err)
	}
	switch strings.ToLower(s) {
	case "human":
		*k = SenderHuman
	case "system":
		*k = SenderSystem
	case "world":
		*k = SenderWorld
	case "agent":
		*k = SenderAgent
	default:
		return fmt.Errorf("unknown sender kind %q", s)
	}
	return nil
}

// Sender identifies who produced a message: a classification kind plus a
// display/identity string. For agent senders the ID is the agent's id or
// name; for the synthetic senders it is a fixed label.
type Sender struct {
	Kind SenderKind `json:"kind"`
	ID   string     `json:"id"`
}

// HumanSender returns a human-class sender. An empty id defaults to
// "human".
func HumanSender(id string) Sender {
	if id == "" {
		id = "human"
	}
	return Sender{Kind: SenderHuman, ID: id}
}

// SystemSender returns the synthetic system sender.
func SystemSender() Sender {
	return Sender{Kind: SenderSystem, ID: "system"}
}

// WorldSender returns the synthetic world sender.
func WorldSender() Sender {
	return Sender{Kind: SenderWorld, ID: "world"}
}

// AgentSender returns an agent-class sender carrying the agent's
// identity.
func AgentSender(id string) Sender {
	return Sender{Kind: SenderAgent, ID: id}
}

// IsHuman reports whether the sender is human-class.
func (s Sender) IsHuman() bool { return s.Kind == SenderHuman }

// IsSystem reports whether the sender is the coordination layer.
func (s Sender) IsSystem() bool { return s.Kind == SenderSystem }

// IsWorld reports whether the sender is an ambient world event.
func (s Sender) IsWorld() bool { return s.Kind == SenderWorld }

// IsAgent reports whether the sender is an agent in the world.
func (s Sender) IsAgent() bool { return s.Kind == SenderAgent }

// Valid reports whether the sender carries a known kind.
func (s Sender) Valid() bool { return s.Kind != SenderUnknown }

// Matches compares the sender identity against an id or name,
// case-insensitively. It is the single identity check used for
// self-message filtering.
func (s Sender) Matches(idOrName string) bool {
	return idOrName != "" && strings.EqualFold(s.ID, idOrName)
}

// String renders the sender for logs and display.
func (s Sender) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.ID)
}
