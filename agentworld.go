// Package agentworld provides a high-level façade over the world
// manager and its collaborators (stores, models, logging) enabling
// rapid construction of shared multi-agent conversations. Most
// applications interact with this package by:
//  1. Creating an AgentWorld via New() (optionally overriding the
//     default in-memory store and mock model)
//  2. Creating a world and its agents
//  3. Sending human messages and observing the world's event stream
//
// The façade delegates coordination to world.Manager while keeping
// setup ergonomics concise. All defaults are safe for local development
// and testing; production deployments supply a durable store, real
// model providers and a structured logger.
package agentworld

import (
	"github.com/yysun/agent-world-sub006/bus"
	"github.com/yysun/agent-world-sub006/core"
	"github.com/yysun/agent-world-sub006/logging"
	"github.com/yysun/agent-world-sub006/model"
	"github.com/yysun/agent-world-sub006/storage"
	"github.com/yysun/agent-world-sub006/world"
)

// Options configures the AgentWorld instance.
type Options struct {
	// Config carries manager tunables: default turn limit, queue size,
	// archive directory, history cap.
	Config world.Config

	// Store backs worlds, agents and chats. Defaults to an in-memory
	// store.
	Store core.Store

	// Models maps provider names to generation backends.
	Models map[string]model.Model

	// DefaultModel serves agents with no registered provider. Defaults
	// to a mock model so examples run without credentials.
	DefaultModel model.Model

	// Logger defaults to NoOp.
	Logger logging.Logger

	// OnError receives the structured failure signal for agent handler
	// errors.
	OnError bus.ErrorFunc
}

// New creates a world.Manager with safe defaults. Any unset collaborator
// is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) (*world.Manager, error) {
	opts := Options{
		Config: world.DefaultConfig(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = storage.NewInMemoryStore()
	}
	return world.NewManager(func(o *world.Options) {
		o.Config = opts.Config
		o.Worlds = opts.Store
		o.Agents = opts.Store
		o.Chats = opts.Store
		o.Models = opts.Models
		o.Default = opts.DefaultModel
		o.Logger = opts.Logger
		o.OnError = opts.OnError
	})
}
