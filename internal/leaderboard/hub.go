package leaderboard

import (
	"sync"

	"github.com/victornm/quizmaster/internal/domain"
	"github.com/victornm/quizmaster/internal/telemetry"
)

// hub fans top lists out to in-process subscribers, keyed by category.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscriber]struct{})}
}

func (h *hub) add(category string) *subscriber {
	sub := &subscriber{c: make(chan []domain.LeaderboardEntry, 1)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[category] == nil {
		h.subs[category] = make(map[*subscriber]struct{})
	}
	h.subs[category][sub] = struct{}{}
	telemetry.StreamSubscribers.Inc()
	return sub
}

// remove unregisters sub and closes its channel. Safe to call twice.
func (h *hub) remove(category string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[category]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subs, category)
	}
	telemetry.StreamSubscribers.Dec()

	sub.mu.Lock()
	sub.closed = true
	close(sub.c)
	sub.mu.Unlock()
}

func (h *hub) broadcast(category string, entries []domain.LeaderboardEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[category] {
		sub.offer(entries)
	}
}

type subscriber struct {
	mu     sync.Mutex
	closed bool
	c      chan []domain.LeaderboardEntry
}

// offer replaces any undelivered list with entries.
func (s *subscriber) offer(entries []domain.LeaderboardEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case <-s.c:
	default:
	}
	s.c <- entries
}

func (s *subscriber) offerIfEmpty(entries []domain.LeaderboardEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(s.c) > 0 {
		return
	}
	s.c <- entries
}
