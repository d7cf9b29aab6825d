package world

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yysun/agent-world-sub006/approval"
	"github.com/yysun/agent-world-sub006/bus"
	"github.com/yysun/agent-world-sub006/chat"
	"github.com/yysun/agent-world-sub006/core"
	"github.com/yysun/agent-world-sub006/decision"
	"github.com/yysun/agent-world-sub006/logging"
	"github.com/yysun/agent-world-sub006/model"
)

// Config holds manager-wide tunables.
type Config struct {
	// TurnLimit is the default turn limit applied to new worlds. Values
	// <= 0 defer to core.DefaultTurnLimit.
	TurnLimit int

	// QueueSize is the per-agent bus queue depth.
	QueueSize int

	// ArchiveDir is where cleared agent memory is archived. Empty
	// disables archiving: ClearAgentMemory then simply empties.
	ArchiveDir string

	// MaxHistoryEntries caps the memory snapshot handed to the model per
	// generation. Values <= 0 use DefaultMaxHistoryEntries.
	MaxHistoryEntries int
}

// DefaultMaxHistoryEntries bounds the per-generation memory snapshot
// when the manager is not configured otherwise.
const DefaultMaxHistoryEntries = 50

// DefaultConfig returns the baseline manager configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:         bus.DefaultConfig().QueueSize,
		MaxHistoryEntries: DefaultMaxHistoryEntries,
	}
}

// Options configures a Manager.
type Options struct {
	Config Config

	// Store backs worlds, agents and chats. Defaults to the in-memory
	// store the façade provides; the manager never assumes an engine.
	Worlds core.WorldStore
	Agents core.AgentStore
	Chats  core.ChatStore

	// Models maps provider names to generation backends. Agents select
	// by their Provider field; unknown providers fall back to Default.
	Models map[string]model.Model

	// Default serves agents whose provider is empty or unregistered.
	Default model.Model

	// Logger receives lifecycle and dispatch diagnostics.
	Logger logging.Logger

	// OnError is the structured failure signal for handler errors,
	// forwarded to every world's bus.
	OnError bus.ErrorFunc
}

// liveWorld pairs a loaded world entity with its running bus.
type liveWorld struct {
	world *core.World
	bus   *bus.Bus
}

// Manager coordinates every live world: lifecycle, agent rosters,
// message publishing, approval submission and memory maintenance. One
// Manager serves any number of worlds; each world gets its own bus and
// its own event stream, so tests and multi-tenant setups stay isolated.
type Manager struct {
	cfg     Config
	worlds  core.WorldStore
	agents  core.AgentStore
	chats   core.ChatStore
	models  map[string]model.Model
	deflt   model.Model
	coord   *chat.Coordinator
	engine  *decision.Engine
	logger  logging.Logger
	onError bus.ErrorFunc

	mu   sync.RWMutex
	live map[string]*liveWorld
}

// NewManager constructs a Manager. Stores are required; models default
// to a single mock provider so examples and tests run without keys.
func NewManager(optFns ...func(*Options)) (*Manager, error) {
	opts := Options{
		Config: DefaultConfig(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Worlds == nil || opts.Agents == nil || opts.Chats == nil {
		return nil, fmt.Errorf("new manager: world, agent and chat stores are required")
	}
	if opts.Config.MaxHistoryEntries <= 0 {
		opts.Config.MaxHistoryEntries = DefaultMaxHistoryEntries
	}
	models := make(map[string]model.Model, len(opts.Models))
	for name, m := range opts.Models {
		models[name] = m
	}
	deflt := opts.Default
	if deflt == nil {
		deflt = model.NewMockModel("default")
	}
	return &Manager{
		cfg:     opts.Config,
		worlds:  opts.Worlds,
		agents:  opts.Agents,
		chats:   opts.Chats,
		models:  models,
		deflt:   deflt,
		coord:   chat.NewCoordinator(opts.Worlds, opts.Chats, func(o *chat.CoordinatorOptions) { o.Logger = opts.Logger }),
		engine:  decision.NewEngine(opts.Logger),
		logger:  opts.Logger,
		onError: opts.OnError,
		live:    make(map[string]*liveWorld),
	}, nil
}

// RegisterModel adds or replaces a provider's generation backend.
func (m *Manager) RegisterModel(provider string, mdl model.Model) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models[provider] = mdl
}

// Coordinator exposes the chat coordinator for session commands.
func (m *Manager) Coordinator() *chat.Coordinator { return m.coord }

// CreateWorld creates, persists and brings a world live.
func (m *Manager) CreateWorld(name string, optFns ...func(*core.WorldOptions)) (*core.World, error) {
	fns := make([]func(*core.WorldOptions), 0, len(optFns)+1)
	if m.cfg.TurnLimit > 0 {
		fns = append(fns, func(o *core.WorldOptions) { o.TurnLimit = m.cfg.TurnLimit })
	}
	fns = append(fns, optFns...)
	w := core.NewWorld(name, fns...)
	if err := m.worlds.SaveWorld(w); err != nil {
		return nil, fmt.Errorf("save world: %w", err)
	}
	m.attach(w)
	m.logger.Info("world created", "world_id", w.ID, "name", w.Name, "turn_limit", w.EffectiveTurnLimit())
	return w, nil
}

// OpenWorld loads a persisted world, reattaches its agents and
// resubscribes their handlers. Reopening a live world returns the live
// instance: subscription idempotency makes reload safe against
// duplicate delivery. Returns (nil, false, nil) for unknown ids.
func (m *Manager) OpenWorld(id string) (*core.World, bool, error) {
	if lw, ok := m.lookup(id); ok {
		return lw.world, true, nil
	}
	w, err := m.worlds.LoadWorld(id)
	if err != nil {
		return nil, false, fmt.Errorf("load world: %w", err)
	}
	if w == nil {
		return nil, false, nil
	}
	agents, err := m.agents.ListAgents(id)
	if err != nil {
		return nil, false, fmt.Errorf("load agents: %w", err)
	}
	for _, a := range agents {
		if err := w.AddAgent(a); err != nil {
			return nil, false, fmt.Errorf("attach agent %s: %w", a.Name, err)
		}
	}
	lw := m.attach(w)
	for _, a := range w.Agents() {
		if err := m.subscribeAgent(lw, a); err != nil {
			return nil, false, err
		}
	}
	m.logger.Info("world opened", "world_id", w.ID, "agents", w.AgentCount())
	return w, true, nil
}

// GetWorld returns a live world. Lookups never error; missing worlds
// report false.
func (m *Manager) GetWorld(id string) (*core.World, bool) {
	lw, ok := m.lookup(id)
	if !ok {
		return nil, false
	}
	return lw.world, true
}

// ListWorlds returns all persisted worlds, most recently updated first.
func (m *Manager) ListWorlds() ([]*core.World, error) {
	return m.worlds.ListWorlds()
}

// UpdateWorld persists changed world settings (name, turn limit).
func (m *Manager) UpdateWorld(w *core.World) error {
	if w == nil {
		return fmt.Errorf("update world: nil world")
	}
	w.Touch()
	if err := m.worlds.SaveWorld(w); err != nil {
		return fmt.Errorf("save world: %w", err)
	}
	return nil
}

// DeleteWorld tears a world down: the bus is closed first so no handler
// can run past this point, then agents and chats are deleted
// concurrently, then the world row itself. Deleting an unknown world
// returns core.ErrWorldNotFound.
func (m *Manager) DeleteWorld(id string) error {
	m.mu.Lock()
	lw, ok := m.live[id]
	if ok {
		delete(m.live, id)
	}
	m.mu.Unlock()

	if !ok {
		// Not live; it may still exist in storage.
		w, err := m.worlds.LoadWorld(id)
		if err != nil {
			return fmt.Errorf("load world: %w", err)
		}
		if w == nil {
			return fmt.Errorf("delete world %s: %w", id, core.ErrWorldNotFound)
		}
		lw = &liveWorld{world: w}
	}

	if lw.bus != nil {
		lw.bus.Close()
	}
	lw.world.Events().Close()

	// The roster of a never-opened world lives only in storage.
	agents, err := m.agents.ListAgents(id)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}

	g := new(errgroup.Group)
	for _, a := range agents {
		g.Go(func() error { return m.agents.DeleteAgent(id, a.ID) })
	}
	g.Go(func() error {
		chats, err := m.chats.ListChats(id)
		if err != nil {
			return err
		}
		for _, c := range chats {
			if err := m.chats.DeleteChat(id, c.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("cascade delete world %s: %w", id, err)
	}
	if err := m.worlds.DeleteWorld(id); err != nil {
		return fmt.Errorf("delete world row: %w", err)
	}
	m.logger.Info("world deleted", "world_id", id)
	return nil
}

// CreateAgent adds an agent to a live world, persists it and subscribes
// its response handler. Names must be unique per world
// (case-insensitive) and mentionable.
func (m *Manager) CreateAgent(worldID, name string, optFns ...func(*core.AgentOptions)) (*core.Agent, error) {
	lw, ok := m.lookup(worldID)
	if !ok {
		return nil, fmt.Errorf("create agent in %s: %w", worldID, core.ErrWorldNotFound)
	}
	if !decision.ValidMentionName(name) {
		return nil, fmt.Errorf("create agent: name %q is not mentionable", name)
	}
	a := core.NewAgent(name, optFns...)
	if err := lw.world.AddAgent(a); err != nil {
		return nil, err
	}
	if err := m.agents.SaveAgent(worldID, a); err != nil {
		lw.world.RemoveAgent(a.ID)
		return nil, fmt.Errorf("save agent: %w", err)
	}
	if err := m.subscribeAgent(lw, a); err != nil {
		return nil, err
	}
	m.logger.Info("agent created", "world_id", worldID, "agent_id", a.ID, "name", a.Name)
	return a, nil
}

// GetAgent resolves an agent in a live world by id or name.
func (m *Manager) GetAgent(worldID, idOrName string) (*core.Agent, bool) {
	lw, ok := m.lookup(worldID)
	if !ok {
		return nil, false
	}
	return lw.world.GetAgent(idOrName)
}

// DeleteAgent removes an agent: unsubscribe first, so no handler runs
// for an agent that no longer exists, then roster and storage.
func (m *Manager) DeleteAgent(worldID, idOrName string) error {
	lw, ok := m.lookup(worldID)
	if !ok {
		return fmt.Errorf("delete agent in %s: %w", worldID, core.ErrWorldNotFound)
	}
	a, ok := lw.world.GetAgent(idOrName)
	if !ok {
		return fmt.Errorf("delete agent %s: %w", idOrName, core.ErrAgentNotFound)
	}
	lw.bus.Unsubscribe(a.ID)
	lw.world.RemoveAgent(a.ID)
	if err := m.agents.DeleteAgent(worldID, a.ID); err != nil {
		return fmt.Errorf("delete agent row: %w", err)
	}
	m.logger.Info("agent deleted", "world_id", worldID, "agent_id", a.ID)
	return nil
}

// SendMessage publishes content into a world from the given sender. A
// current chat session is ensured lazily for the first message; the
// message is bound to it, persisted to the world log (fire and forget),
// published on the bus and handed to the chat coordinator. Returns the
// published message.
func (m *Manager) SendMessage(ctx context.Context, worldID, content string, sender core.Sender) (core.Message, error) {
	lw, ok := m.lookup(worldID)
	if !ok {
		return core.Message{}, fmt.Errorf("send to %s: %w", worldID, core.ErrWorldNotFound)
	}
	if !sender.Valid() {
		return core.Message{}, fmt.Errorf("send to %s: invalid sender", worldID)
	}
	if lw.world.CurrentSessionID == "" {
		if _, err := m.coord.EnsureSession(lw.world); err != nil {
			return core.Message{}, fmt.Errorf("ensure session: %w", err)
		}
	}
	msg := core.NewMessage(content, sender).WithSession(lw.world.CurrentSessionID)
	m.record(lw.world.ID, msg)
	lw.bus.Publish(msg)
	if err := m.coord.HandleMessage(lw.world, msg); err != nil {
		m.logger.Warn("chat bookkeeping failed", "world_id", worldID, "error", err)
	}
	return msg, nil
}

// SendHumanMessage publishes a message from the default human sender.
func (m *Manager) SendHumanMessage(ctx context.Context, worldID, content string) (core.Message, error) {
	return m.SendMessage(ctx, worldID, content, core.HumanSender(""))
}

// SubmitApproval records a human approval decision in the agent's
// memory as a canonical tool-result envelope and persists it. The next
// approval check over the same request triple observes it.
func (m *Manager) SubmitApproval(worldID, agentID, toolCallID string, d approval.Decision, s approval.Scope, req approval.Request) error {
	lw, ok := m.lookup(worldID)
	if !ok {
		return fmt.Errorf("approve in %s: %w", worldID, core.ErrWorldNotFound)
	}
	a, ok := lw.world.GetAgent(agentID)
	if !ok {
		return fmt.Errorf("approve for %s: %w", agentID, core.ErrAgentNotFound)
	}
	entry, err := approval.NewDecisionEntry(toolCallID, d, s, req)
	if err != nil {
		return err
	}
	a.AppendMemory(entry)
	if err := m.agents.AppendMemory(worldID, a.ID, entry); err != nil {
		return fmt.Errorf("persist approval: %w", err)
	}
	m.logger.Info("approval recorded",
		"world_id", worldID, "agent_id", a.ID,
		"tool", req.ToolName, "decision", string(d), "scope", string(s))
	return nil
}

// PendingApproval is one approval request still awaiting a decision.
type PendingApproval struct {
	ToolCallID string
	Request    core.ApprovalRequest
}

// PendingApprovals lists the agent's approval requests that have no
// decision or completion record yet, oldest first.
func (m *Manager) PendingApprovals(worldID, agentID string) ([]PendingApproval, error) {
	lw, ok := m.lookup(worldID)
	if !ok {
		return nil, fmt.Errorf("pending in %s: %w", worldID, core.ErrWorldNotFound)
	}
	a, ok := lw.world.GetAgent(agentID)
	if !ok {
		return nil, fmt.Errorf("pending for %s: %w", agentID, core.ErrAgentNotFound)
	}
	entries := a.GetMemory()
	answered := make(map[string]bool)
	for _, e := range entries {
		if e.Role == core.RoleTool && e.ToolCallID != "" {
			answered[e.ToolCallID] = true
		}
	}
	var out []PendingApproval
	for _, e := range entries {
		if e.Approval == nil || answered[e.ToolCallID] {
			continue
		}
		out = append(out, PendingApproval{ToolCallID: e.ToolCallID, Request: *e.Approval.Clone()})
	}
	return out, nil
}

// ClearAgentMemory archives then empties an agent's memory. The archive
// is written before anything is dropped; a failed archive aborts the
// clear. Returns the archive path, empty when archiving is disabled or
// memory was already empty.
func (m *Manager) ClearAgentMemory(worldID, agentID string) (string, error) {
	lw, ok := m.lookup(worldID)
	if !ok {
		return "", fmt.Errorf("clear memory in %s: %w", worldID, core.ErrWorldNotFound)
	}
	a, ok := lw.world.GetAgent(agentID)
	if !ok {
		return "", fmt.Errorf("clear memory for %s: %w", agentID, core.ErrAgentNotFound)
	}

	path := ""
	if m.cfg.ArchiveDir != "" && a.MemoryLen() > 0 {
		var err error
		path, err = archiveMemory(m.cfg.ArchiveDir, worldID, a.ID, a.GetMemory())
		if err != nil {
			return "", fmt.Errorf("archive memory: %w", err)
		}
	}
	removed := a.ClearMemory()
	if err := m.agents.ClearMemory(worldID, a.ID); err != nil {
		return path, fmt.Errorf("clear stored memory: %w", err)
	}
	m.logger.Info("agent memory cleared",
		"world_id", worldID, "agent_id", a.ID, "entries", len(removed), "archive", path)
	return path, nil
}

// AgentVisibleHistory reconstructs the slice of the world message log
// this agent would have processed, replaying the response rules over
// the recorded history. Self-authored messages appear as passive
// context; messages the agent never saw are filtered out.
func (m *Manager) AgentVisibleHistory(worldID, agentID string) ([]core.Message, error) {
	lw, ok := m.lookup(worldID)
	if !ok {
		return nil, fmt.Errorf("history in %s: %w", worldID, core.ErrWorldNotFound)
	}
	a, ok := lw.world.GetAgent(agentID)
	if !ok {
		return nil, fmt.Errorf("history for %s: %w", agentID, core.ErrAgentNotFound)
	}
	log, err := m.chats.ListMessages(worldID, "")
	if err != nil {
		return nil, fmt.Errorf("load message log: %w", err)
	}
	return decision.FilterHistory(a.ID, a.Name, lw.world.EffectiveTurnLimit(), log), nil
}

// Messages returns the world's recorded message log, optionally scoped
// to one chat session.
func (m *Manager) Messages(worldID, sessionID string) ([]core.Message, error) {
	return m.chats.ListMessages(worldID, sessionID)
}

// NewChat rotates the world to a fresh (or reusable) chat session and
// returns it.
func (m *Manager) NewChat(worldID string) (*core.ChatSession, error) {
	lw, ok := m.lookup(worldID)
	if !ok {
		return nil, fmt.Errorf("new chat in %s: %w", worldID, core.ErrWorldNotFound)
	}
	if m.coord.IsReusable(lw.world) {
		return m.coord.EnsureSession(lw.world)
	}
	lw.world.CurrentSessionID = ""
	return m.coord.EnsureSession(lw.world)
}

// DeleteChat removes a chat session with current-pointer fallback.
func (m *Manager) DeleteChat(worldID, sessionID string) error {
	lw, ok := m.lookup(worldID)
	if !ok {
		return fmt.Errorf("delete chat in %s: %w", worldID, core.ErrWorldNotFound)
	}
	return m.coord.DeleteWithFallback(lw.world, sessionID)
}

// Close tears down every live world's bus. Stored state is untouched.
func (m *Manager) Close() {
	m.mu.Lock()
	lws := make([]*liveWorld, 0, len(m.live))
	for id, lw := range m.live {
		lws = append(lws, lw)
		delete(m.live, id)
	}
	m.mu.Unlock()
	for _, lw := range lws {
		lw.bus.Close()
		lw.world.Events().Close()
	}
}

func (m *Manager) lookup(worldID string) (*liveWorld, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lw, ok := m.live[worldID]
	return lw, ok
}

// attach brings a world live: one bus per world, wired to the decision
// engine, the structured error signal and the message log recorder.
func (m *Manager) attach(w *core.World) *liveWorld {
	lw := &liveWorld{world: w}
	lw.bus = bus.New(w, func(o *bus.Options) {
		o.Config = bus.Config{QueueSize: m.cfg.QueueSize}
		o.Logger = m.logger
		o.Engine = m.engine
		o.OnError = m.onError
		o.Record = func(msg core.Message) { m.record(w.ID, msg) }
	})
	m.mu.Lock()
	m.live[w.ID] = lw
	m.mu.Unlock()
	return lw
}

// record persists a message to the world log. Persistence is fire and
// forget with respect to delivery: a failure is logged, never blocks.
func (m *Manager) record(worldID string, msg core.Message) {
	if err := m.chats.SaveMessage(worldID, msg); err != nil {
		m.logger.Warn("message log write failed",
			"world_id", worldID, "message_id", msg.ID, "error", err)
	}
}

func (m *Manager) subscribeAgent(lw *liveWorld, a *core.Agent) error {
	_, err := lw.bus.Subscribe(a.ID, m.responseHandler(lw, a))
	if err != nil {
		return fmt.Errorf("subscribe agent %s: %w", a.Name, err)
	}
	return nil
}

// modelFor resolves an agent's generation backend by provider, falling
// back to the default model.
func (m *Manager) modelFor(a *core.Agent) model.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if mdl, ok := m.models[a.Provider]; ok {
		return mdl
	}
	return m.deflt
}
