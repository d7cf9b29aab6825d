package core

import "sync"

// StreamEventType discriminates observer stream events.
type StreamEventType string

const (
	// StreamMessage carries a published message.
	StreamMessage StreamEventType = "message"
	// StreamNotice carries coordination-layer notices (turn limits).
	StreamNotice StreamEventType = "notice"
	// StreamError carries a surfaced handler failure.
	StreamError StreamEventType = "error"
)

// StreamEvent is one item on a world's observer stream.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Message Message         `json:"message,omitempty"`
	// AgentID names the agent a failure originated from, when known.
	AgentID string `json:"agentId,omitempty"`
	// Err is the human-readable failure text for StreamError events.
	Err string `json:"error,omitempty"`
}

// Stream fans world events out to display observers (CLI, tests,
// frontends). Observers are passive: delivery is best-effort and a slow
// observer loses events rather than slowing coordination down. Agents
// never consume the stream; dispatch goes through the bus.
type Stream struct {
	mu     sync.Mutex
	subs   map[int]chan StreamEvent
	next   int
	closed bool
}

// NewStream creates an empty stream.
func NewStream() *Stream {
	return &Stream{subs: make(map[int]chan StreamEvent)}
}

// Subscribe registers an observer with the given channel buffer and
// returns the receive channel plus a cancel function. Cancel is
// idempotent and closes the channel.
func (s *Stream) Subscribe(buffer int) (<-chan StreamEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan StreamEvent, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.next
	s.next++
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Emit delivers an event to every observer without blocking; observers
// whose buffer is full miss the event.
func (s *Stream) Emit(ev StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close drops all observers and closes their channels. Further Emit and
// Subscribe calls are no-ops.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
