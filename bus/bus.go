package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yysun/agent-world-sub006/core"
	"github.com/yysun/agent-world-sub006/decision"
	"github.com/yysun/agent-world-sub006/logging"
)

// ErrClosed reports a subscription attempt on a closed bus.
var ErrClosed = errors.New("bus closed")

// Handler consumes one dispatched message. The context is cancelled when
// the subscription is removed; handlers must discard their results once
// it is done.
type Handler func(ctx context.Context, ev core.Message) error

// ErrorFunc is the structured failure signal: it receives every handler
// error and panic, after logging and stream surfacing.
type ErrorFunc func(worldID, agentID string, err error)

// RecordFunc receives bus-originated messages (turn-limit notices,
// error lines) so the owner can persist them to the message log.
type RecordFunc func(m core.Message)

// Config holds tunable bus settings.
type Config struct {
	// QueueSize is the per-agent FIFO buffer. Publishing briefly blocks
	// when an agent's queue is full rather than dropping messages.
	QueueSize int
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() Config {
	return Config{QueueSize: 100}
}

// Options configures a bus.
type Options struct {
	Config  Config
	Logger  logging.Logger
	Engine  *decision.Engine
	OnError ErrorFunc
	Record  RecordFunc
}

// Bus dispatches messages within one world. It owns a worker goroutine
// per subscribed agent; decisions run inline during Publish so counter
// side effects happen in publish order.
type Bus struct {
	world   *core.World
	cfg     Config
	logger  logging.Logger
	engine  *decision.Engine
	onError ErrorFunc
	record  RecordFunc

	mu     sync.RWMutex
	subs   map[string]*subscription
	closed bool
}

type subscription struct {
	agentID string
	handler Handler
	queue   chan core.Message
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// noticed tracks whether the turn-limit notice for the current block
	// episode was already published. Guarded by the bus mutex.
	noticed bool
}

// New creates a bus for the given world.
func New(w *core.World, optFns ...func(*Options)) *Bus {
	opts := Options{Config: DefaultConfig(), Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config.QueueSize <= 0 {
		opts.Config.QueueSize = DefaultConfig().QueueSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Engine == nil {
		opts.Engine = decision.NewEngine(opts.Logger)
	}
	return &Bus{
		world:   w,
		cfg:     opts.Config,
		logger:  opts.Logger,
		engine:  opts.Engine,
		onError: opts.OnError,
		record:  opts.Record,
		subs:    make(map[string]*subscription),
	}
}

// Subscribe registers an agent's handler. Subscribing an already
// subscribed agent is a no-op returning false; exactly one delivery per
// published message is preserved. Returns ErrClosed after Close.
func (b *Bus) Subscribe(agentID string, h Handler) (bool, error) {
	if agentID == "" || h == nil {
		return false, fmt.Errorf("subscribe: agent id and handler required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, fmt.Errorf("subscribe %s: %w", agentID, ErrClosed)
	}
	if _, exists := b.subs[agentID]; exists {
		return false, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &subscription{
		agentID: agentID,
		handler: h,
		queue:   make(chan core.Message, b.cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	b.subs[agentID] = s
	go b.worker(s)
	return true, nil
}

// Unsubscribe removes an agent's subscription and waits for its worker
// to stop: after it returns the handler will not be invoked again, and
// messages still queued are discarded. Idempotent.
func (b *Bus) Unsubscribe(agentID string) bool {
	b.mu.Lock()
	s, ok := b.subs[agentID]
	if ok {
		delete(b.subs, agentID)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	// Cancel outside the lock: the worker may be inside a handler that
	// publishes, which needs the lock.
	s.cancel()
	<-s.done
	return true
}

// Subscribed reports whether the agent currently has a subscription.
func (b *Bus) Subscribed(agentID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.subs[agentID]
	return ok
}

// Publish evaluates the message for every subscribed agent, schedules
// delivery for each dispatching verdict and returns the number of
// scheduled handlers. It never waits for handler completion. Publishing
// with zero subscribers is valid. Turn-limit notices are published once
// per block episode as real system messages.
func (b *Bus) Publish(ev core.Message) int {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return 0
	}
	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	scheduled := 0
	var notices []core.Message
	for _, s := range subs {
		a, ok := b.world.GetAgent(s.agentID)
		if !ok {
			continue
		}
		v := b.engine.Decide(b.world, a, ev)
		if v.Reset {
			b.setNoticed(s, false)
		}
		if v.Blocked && !b.setNoticed(s, true) {
			notices = append(notices,
				core.NewSystemMessage(decision.TurnLimitNotice(b.world.EffectiveTurnLimit(), a.Name)).
					WithSession(ev.SessionID))
		}
		if !v.Respond {
			continue
		}
		select {
		case s.queue <- ev:
			scheduled++
		case <-s.ctx.Done():
			// Unsubscribed while we were scheduling; skip.
		}
	}

	evType := core.StreamMessage
	if decision.IsTurnLimitNotice(ev.Content) {
		evType = core.StreamNotice
	}
	b.world.Events().Emit(core.StreamEvent{Type: evType, Message: ev})

	for _, n := range notices {
		b.logger.Info("turn limit notice published", "world", b.world.ID, "content", n.Content)
		if b.record != nil {
			b.record(n)
		}
		// Recursing is safe: rule one filters notices for every agent.
		b.Publish(n)
	}
	return scheduled
}

// setNoticed updates the once-per-episode notice flag and returns the
// previous value.
func (b *Bus) setNoticed(s *subscription, v bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := s.noticed
	s.noticed = v
	return prev
}

// Close removes every subscription and waits for all workers to stop.
// Further publishes are dropped and further subscriptions rejected.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for id, s := range b.subs {
		subs = append(subs, s)
		delete(b.subs, id)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.cancel()
		<-s.done
	}
}

func (b *Bus) worker(s *subscription) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.queue:
			b.deliver(s, ev)
		}
	}
}

// deliver runs one handler invocation with panic isolation. A failure
// surfaces as a structured error signal plus an "[Error] ..." line on
// the world stream and message log; it never propagates to siblings.
func (b *Bus) deliver(s *subscription, ev core.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.reportFailure(s.agentID, fmt.Errorf("handler panic: %v", r))
		}
	}()
	if err := s.handler(s.ctx, ev); err != nil {
		b.reportFailure(s.agentID, err)
	}
}

func (b *Bus) reportFailure(agentID string, err error) {
	b.logger.Error("agent handler failed", "world", b.world.ID, "agent", agentID, "error", err)
	if b.onError != nil {
		b.onError(b.world.ID, agentID, err)
	}
	m := core.NewSystemMessage(fmt.Sprintf("[Error] %s", err))
	// Surfaced to observers and the log, never re-dispatched: a failing
	// handler must not be able to trigger agents.
	b.world.Events().Emit(core.StreamEvent{Type: core.StreamError, Message: m, AgentID: agentID, Err: err.Error()})
	if b.record != nil {
		b.record(m)
	}
}
