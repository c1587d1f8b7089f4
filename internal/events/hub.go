package events

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

const DefaultBuffer = 64

// Filter narrows a subscription. Empty fields match everything. AccountID
// only filters events that belong to an account; round-level events always
// pass.
type Filter struct {
	GameTypes []string
	AccountID string
}

func (f Filter) Match(e Event) bool {
	if len(f.GameTypes) > 0 {
		ok := false
		for _, g := range f.GameTypes {
			if strings.EqualFold(g, e.GameType) {
				ok = true
				break
			}
		}

		if !ok {
			return false
		}
	}

	if f.AccountID != "" && e.AccountID != "" && e.AccountID != f.AccountID {
		return false
	}

	return true
}

// Hub fans events out to in-process subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

type Subscription struct {
	hub     *Hub
	filter  Filter
	ch      chan Event
	once    sync.Once
	dropped atomic.Int64
}

// C delivers matching events. It is closed by Close or when the hub closes.
func (s *Subscription) C() <-chan Event { return s.ch }

// Dropped counts events lost because the buffer was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Subscribe registers a new subscriber. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe(f Filter) *Subscription {
	s := &Subscription{hub: h, filter: f, ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}

	h.subs[s] = struct{}{}

	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs, s)
	s.once.Do(func() { close(s.ch) })
}

// Publish never blocks: subscribers with a full buffer miss the event.
func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		if !s.filter.Match(e) {
			continue
		}

		select {
		case s.ch <- e:
		default:
			s.dropped.Add(1)
		}
	}

	return nil
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	for s := range h.subs {
		delete(h.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
}
