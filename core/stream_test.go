package core

import "testing"

func TestStream_SubscribeEmitCancel(t *testing.T) {
	s := NewStream()
	ch, cancel := s.Subscribe(4)

	s.Emit(StreamEvent{Type: StreamMessage, Message: NewHumanMessage("hi")})
	ev := <-ch
	if ev.Type != StreamMessage || ev.Message.Content != "hi" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	cancel()
	if _, open := <-ch; open {
		t.Error("channel should be closed after cancel")
	}
	cancel() // idempotent

	// Emitting with no observers is valid.
	s.Emit(StreamEvent{Type: StreamNotice})
}

func TestStream_SlowObserverDropsEvents(t *testing.T) {
	s := NewStream()
	ch, cancel := s.Subscribe(1)
	defer cancel()

	s.Emit(StreamEvent{Type: StreamMessage, Message: NewHumanMessage("first")})
	s.Emit(StreamEvent{Type: StreamMessage, Message: NewHumanMessage("second")})

	ev := <-ch
	if ev.Message.Content != "first" {
		t.Fatalf("expected first event, got %q", ev.Message.Content)
	}
	select {
	case extra := <-ch:
		t.Fatalf("overflow event should have been dropped, got %+v", extra)
	default:
	}
}

func TestStream_CloseDropsObservers(t *testing.T) {
	s := NewStream()
	ch, _ := s.Subscribe(1)
	s.Close()
	if _, open := <-ch; open {
		t.Error("channel should be closed")
	}
	// After close, new subscriptions are inert.
	ch2, cancel := s.Subscribe(1)
	defer cancel()
	if _, open := <-ch2; open {
		t.Error("post-close subscription should be closed immediately")
	}
}
