package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizmaster/internal/domain"
	"github.com/victornm/quizmaster/internal/errors"
	"github.com/victornm/quizmaster/internal/event"
	"github.com/victornm/quizmaster/internal/telemetry"
)

const (
	DefaultTopLimit = 10
	DefaultCacheTTL = time.Minute
)

// Store persists leaderboard entries. Insert assigns the entry date.
type Store interface {
	Insert(ctx context.Context, e domain.LeaderboardEntry) (domain.LeaderboardEntry, error)
	Top(ctx context.Context, category string, limit int) ([]domain.LeaderboardEntry, error)
}

type Config struct {
	EventBus *event.Bus
	Store    Store
	// Redis caches top lists when set.
	Redis    redis.UniversalClient
	Prefix   string
	CacheTTL time.Duration
	TopLimit int
}

type Service struct {
	eb     *event.Bus
	store  Store
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	limit  int

	hub *hub
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		store:  c.Store,
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.CacheTTL,
		limit:  c.TopLimit,
		hub:    newHub(),
	}
	if s.ttl <= 0 {
		s.ttl = DefaultCacheTTL
	}
	if s.limit <= 0 {
		s.limit = DefaultTopLimit
	}

	s.eb.Subscribe(domain.EventNameEntryCreated, func(ctx context.Context, e event.Event) error {
		return s.RefreshLeaderboard(ctx, e.(domain.EventEntryCreated).Entry.Category)
	})

	s.eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		l := e.(domain.EventLeaderboardUpdated).Leaderboard
		s.hub.broadcast(l.Category, l.Entries)
		return nil
	})

	return s
}

type SubmitRequest struct {
	Name     string
	Score    *int
	Category string
	// TimeTaken is in seconds.
	TimeTaken int
}

func (r SubmitRequest) validate() error {
	switch {
	case r.Name == "":
		return errors.InvalidArgument("Name is required")
	case r.Score == nil:
		return errors.InvalidArgument("Score is required")
	case *r.Score < 0:
		return errors.InvalidArgument("Score must not be negative")
	case r.Category == "":
		return errors.InvalidArgument("Category is required")
	case r.TimeTaken < 0:
		return errors.InvalidArgument("Time taken must not be negative")
	}
	return nil
}

// Submit validates and stores a completed session result.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*domain.LeaderboardEntry, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if err := req.validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, submitError(fmt.Errorf("new id: %w", err))
	}

	e, err := s.store.Insert(ctx, domain.LeaderboardEntry{
		ID:        id.String(),
		Name:      req.Name,
		Score:     *req.Score,
		Category:  req.Category,
		TimeTaken: req.TimeTaken,
	})
	if err != nil {
		return nil, submitError(err)
	}

	telemetry.LeaderboardSubmissions.WithLabelValues(categoryLabel(e.Category)).Inc()
	s.invalidate(ctx, e.Category)
	s.eb.Publish(ctx, domain.EventEntryCreated{Entry: e})

	return &e, nil
}

// categoryLabel keeps the metric series bounded whatever category clients post.
func categoryLabel(category string) string {
	if c, ok := domain.KnownCategory(category); ok {
		return c
	}
	return "other"
}

func submitError(err error) error {
	return errors.New(errors.CodeInternal,
		errors.WithMessagef("Error submitting score"),
		errors.WithCause(err),
	)
}

type TopRequest struct {
	Category string
}

// Top returns the best entries of a category, never nil.
func (s *Service) Top(ctx context.Context, req TopRequest) ([]domain.LeaderboardEntry, error) {
	category := strings.TrimSpace(req.Category)
	if category == "" {
		return nil, errors.InvalidArgument("Category is required")
	}

	entries, err := s.top(ctx, category)
	if err != nil {
		return nil, errors.New(errors.CodeInternal,
			errors.WithMessagef("Error fetching leaderboard"),
			errors.WithCause(err),
		)
	}
	return entries, nil
}

func (s *Service) top(ctx context.Context, category string) ([]domain.LeaderboardEntry, error) {
	gen, ok := s.generation(ctx, category)
	if ok {
		if entries, hit := s.cached(ctx, category, gen); hit {
			return entries, nil
		}
	}

	entries, err := s.store.Top(ctx, category, s.limit)
	if err != nil {
		return nil, fmt.Errorf("store top: category=%s: %w", category, err)
	}

	if ok {
		s.cache(ctx, category, gen, entries)
	}
	return entries, nil
}

// RefreshLeaderboard recomputes the top list of a category from the store and
// announces it.
func (s *Service) RefreshLeaderboard(ctx context.Context, category string) error {
	gen, ok := s.generation(ctx, category)

	entries, err := s.store.Top(ctx, category, s.limit)
	if err != nil {
		return fmt.Errorf("refresh leaderboard: store top: category=%s: %w", category, err)
	}

	if ok {
		s.cache(ctx, category, gen, entries)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: domain.Leaderboard{
			Category: category,
			Entries:  entries,
		},
	})
	return nil
}

// Subscribe streams the top list of a category, starting with the current one.
// A slow reader only sees the latest list. The caller must call cancel once done.
func (s *Service) Subscribe(ctx context.Context, category string) (<-chan []domain.LeaderboardEntry, func(), error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, nil, errors.InvalidArgument("Category is required")
	}

	sub := s.hub.add(category)
	cancel := func() { s.hub.remove(category, sub) }

	entries, err := s.top(ctx, category)
	if err != nil {
		cancel()
		return nil, nil, errors.New(errors.CodeInternal,
			errors.WithMessagef("Error fetching leaderboard"),
			errors.WithCause(err),
		)
	}
	sub.offerIfEmpty(entries)

	return sub.c, cancel, nil
}

// Top lists are cached per generation. Submit bumps the generation after the
// insert, so a list read from the store under generation g is never older than
// the inserts that happened before g was read.
func (s *Service) generationKey(category string) string {
	return fmt.Sprintf("%s:leaderboard:%s:gen", s.prefix, category)
}

func (s *Service) cacheKey(category string, gen int64) string {
	return fmt.Sprintf("%s:leaderboard:%s:top:%d", s.prefix, category, gen)
}

// generation reports false when the cache is disabled or unreadable.
func (s *Service) generation(ctx context.Context, category string) (int64, bool) {
	if s.redis == nil {
		return 0, false
	}

	gen, err := s.redis.Get(ctx, s.generationKey(category)).Int64()
	switch {
	case err == redis.Nil:
		return 0, true
	case err != nil:
		slog.ErrorContext(ctx, "leaderboard: read cache generation failed", "category", category, "error", err)
		return 0, false
	}
	return gen, true
}

func (s *Service) cached(ctx context.Context, category string, gen int64) ([]domain.LeaderboardEntry, bool) {
	b, err := s.redis.Get(ctx, s.cacheKey(category, gen)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.ErrorContext(ctx, "leaderboard: read cache failed", "category", category, "error", err)
		}
		telemetry.LeaderboardCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		slog.ErrorContext(ctx, "leaderboard: decode cache failed", "category", category, "error", err)
		telemetry.LeaderboardCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	telemetry.LeaderboardCache.WithLabelValues("hit").Inc()
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return entries, true
}

func (s *Service) cache(ctx context.Context, category string, gen int64, entries []domain.LeaderboardEntry) {
	b, err := json.Marshal(entries)
	if err != nil {
		slog.ErrorContext(ctx, "leaderboard: encode cache failed", "category", category, "error", err)
		return
	}

	if err := s.redis.Set(ctx, s.cacheKey(category, gen), b, s.ttl).Err(); err != nil {
		slog.ErrorContext(ctx, "leaderboard: write cache failed", "category", category, "error", err)
	}
}

// invalidate retires every list cached for category.
func (s *Service) invalidate(ctx context.Context, category string) {
	if s.redis == nil {
		return
	}

	if err := s.redis.Incr(ctx, s.generationKey(category)).Err(); err != nil {
		slog.ErrorContext(ctx, "leaderboard: invalidate cache failed", "category", category, "error", err)
	}
}
