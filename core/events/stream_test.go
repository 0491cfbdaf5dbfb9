package events

import (
	"context"
	"strconv"
	"testing"

	"lifemarket/core/types"
)

type testEvent struct {
	evt *types.Event
}

func (e testEvent) EventType() string   { return e.evt.Type }
func (e testEvent) Event() *types.Event { return e.evt }

func emitN(s *Stream, n int) {
	for i := 0; i < n; i++ {
		s.Emit(testEvent{evt: &types.Event{
			Type:       "market.bid.placed",
			Attributes: map[string]string{"n": strconv.Itoa(i)},
		}})
	}
}

func TestStreamAssignsSequence(t *testing.T) {
	s := NewStream(func() int64 { return 42 })
	updates, cancel, backlog := s.Subscribe(context.Background(), "")
	defer cancel()
	if len(backlog) != 0 {
		t.Fatalf("fresh stream backlog %d", len(backlog))
	}

	emitN(s, 3)
	for want := uint64(1); want <= 3; want++ {
		update := <-updates
		if update.Sequence != want {
			t.Fatalf("sequence %d, want %d", update.Sequence, want)
		}
		if update.Cursor != strconv.FormatUint(want, 10) {
			t.Fatalf("cursor %q", update.Cursor)
		}
		if update.Timestamp != 42 {
			t.Fatalf("timestamp %d", update.Timestamp)
		}
	}
}

func TestStreamCursorReplay(t *testing.T) {
	s := NewStream(nil)
	emitN(s, 5)

	_, cancel, backlog := s.Subscribe(context.Background(), "3")
	defer cancel()
	if len(backlog) != 2 {
		t.Fatalf("backlog %d, want 2", len(backlog))
	}
	if backlog[0].Sequence != 4 || backlog[1].Sequence != 5 {
		t.Fatalf("backlog sequences %d, %d", backlog[0].Sequence, backlog[1].Sequence)
	}
}

func TestStreamCancelStopsDelivery(t *testing.T) {
	s := NewStream(nil)
	updates, cancel, _ := s.Subscribe(context.Background(), "")
	cancel()
	if _, ok := <-updates; ok {
		t.Fatal("channel should be closed after cancel")
	}
	// Emitting after cancel must not panic.
	emitN(s, 1)
}

func TestStreamSlowSubscriberSkipped(t *testing.T) {
	s := NewStream(nil)
	updates, cancel, _ := s.Subscribe(context.Background(), "")
	defer cancel()

	// Overflow the buffered channel; extra events are dropped, not blocking.
	emitN(s, 64)
	received := 0
	for {
		select {
		case <-updates:
			received++
		default:
			if received == 0 {
				t.Fatal("expected at least one delivered update")
			}
			if received > 32 {
				t.Fatalf("received %d updates, channel buffer is 32", received)
			}
			return
		}
	}
}
