package events

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"lifemarket/core/types"
)

const streamHistoryLimit = 2048

// StreamUpdate wraps an emitted marketplace event with the stream bookkeeping
// downstream consumers use to resume after a disconnect.
type StreamUpdate struct {
	Sequence  uint64       `json:"sequence"`
	Cursor    string       `json:"cursor"`
	Event     *types.Event `json:"event"`
	Timestamp int64        `json:"timestamp"`
}

func cloneStreamUpdate(update StreamUpdate) StreamUpdate {
	cloned := update
	if update.Event != nil {
		evt := &types.Event{Type: update.Event.Type}
		if len(update.Event.Attributes) > 0 {
			evt.Attributes = make(map[string]string, len(update.Event.Attributes))
			for k, v := range update.Event.Attributes {
				evt.Attributes[k] = v
			}
		}
		cloned.Event = evt
	}
	return cloned
}

// Stream is an Emitter that records every event into a bounded history and
// fans it out to registered subscribers. Slow subscribers are skipped rather
// than blocking the emitting operation.
type Stream struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan StreamUpdate
	history []StreamUpdate
	nowFn   func() int64
}

// NewStream constructs an empty event stream. The now function stamps
// published updates; a nil value disables timestamps.
func NewStream(now func() int64) *Stream {
	return &Stream{
		subs:  make(map[uint64]chan StreamUpdate),
		nowFn: now,
	}
}

// Emit implements the Emitter interface.
func (s *Stream) Emit(evt Event) {
	if s == nil || evt == nil {
		return
	}
	payloader, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	payload := payloader.Event()
	if payload == nil {
		return
	}

	update := StreamUpdate{Event: payload}
	if s.nowFn != nil {
		update.Timestamp = s.nowFn()
	}

	s.mu.Lock()
	s.seq++
	update.Sequence = s.seq
	update.Cursor = strconv.FormatUint(update.Sequence, 10)
	s.history = append(s.history, cloneStreamUpdate(update))
	if len(s.history) > streamHistoryLimit {
		excess := len(s.history) - streamHistoryLimit
		trimmed := make([]StreamUpdate, streamHistoryLimit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	subscribers := make([]chan StreamUpdate, 0, len(s.subs))
	for _, ch := range s.subs {
		subscribers = append(subscribers, ch)
	}
	s.mu.Unlock()

	broadcast := cloneStreamUpdate(update)
	for _, ch := range subscribers {
		select {
		case ch <- broadcast:
		default:
		}
	}
}

// Subscribe registers a consumer for marketplace events starting after the
// supplied cursor. The returned backlog replays recorded history past the
// cursor; cancel must be called to release the subscription.
func (s *Stream) Subscribe(ctx context.Context, cursor string) (<-chan StreamUpdate, func(), []StreamUpdate) {
	updates := make(chan StreamUpdate, 32)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	history := make([]StreamUpdate, len(s.history))
	copy(history, s.history)
	s.mu.Unlock()

	backlog := make([]StreamUpdate, 0, len(history))
	for _, entry := range history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneStreamUpdate(entry))
		}
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			sub, ok := s.subs[id]
			if ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return updates, cancel, backlog
}
