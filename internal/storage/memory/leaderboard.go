// Package memory holds in-process stores used when no database is configured.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/victornm/quizmaster/internal/domain"
)

// LeaderboardStore keeps every entry in memory, grouped by category.
type LeaderboardStore struct {
	mu      sync.RWMutex
	entries map[string][]domain.LeaderboardEntry
	now     func() time.Time
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{
		entries: make(map[string][]domain.LeaderboardEntry),
		now:     time.Now,
	}
}

// WithClock replaces the clock used to date new entries.
func (s *LeaderboardStore) WithClock(now func() time.Time) *LeaderboardStore {
	s.now = now
	return s
}

func (s *LeaderboardStore) Insert(_ context.Context, e domain.LeaderboardEntry) (domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.Date = s.now().UTC()
	s.entries[e.Category] = append(s.entries[e.Category], e)
	return e, nil
}

func (s *LeaderboardStore) Top(_ context.Context, category string, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	out := slices.Clone(s.entries[category])
	s.mu.RUnlock()

	slices.SortFunc(out, CompareEntries)
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []domain.LeaderboardEntry{}
	}
	return out, nil
}

func (s *LeaderboardStore) Ping(context.Context) error { return nil }

// CompareEntries orders entries by score descending, then date ascending, then id.
func CompareEntries(a, b domain.LeaderboardEntry) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
