package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/quizmaster/internal/domain"
)

type LeaderboardStore struct {
	conn *Connector
}

func NewLeaderboardStore(conn *Connector) *LeaderboardStore {
	return &LeaderboardStore{conn: conn}
}

// Insert stores the entry and returns it with the date assigned by the database.
func (s *LeaderboardStore) Insert(ctx context.Context, e domain.LeaderboardEntry) (domain.LeaderboardEntry, error) {
	p, err := s.conn.Pool(ctx)
	if err != nil {
		return e, fmt.Errorf("connect: %w", err)
	}

	err = p.QueryRow(ctx, `
		INSERT INTO leaderboard (id, name, score, category, time_taken)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING date`,
		e.ID, e.Name, e.Score, e.Category, e.TimeTaken,
	).Scan(&e.Date)
	if err != nil {
		s.checkConn(ctx, p, err)
		return e, fmt.Errorf("insert entry: %w", err)
	}

	e.Date = e.Date.UTC()
	return e, nil
}

// Top returns at most limit entries of a category, best first.
func (s *LeaderboardStore) Top(ctx context.Context, category string, limit int) ([]domain.LeaderboardEntry, error) {
	p, err := s.conn.Pool(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	rows, err := p.Query(ctx, `
		SELECT id, name, score, category, time_taken, date
		FROM leaderboard
		WHERE category = $1
		ORDER BY score DESC, date ASC, id ASC
		LIMIT $2`,
		category, limit,
	)
	if err != nil {
		s.checkConn(ctx, p, err)
		return nil, fmt.Errorf("query top: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LeaderboardEntry, error) {
		var e domain.LeaderboardEntry
		err := row.Scan(&e.ID, &e.Name, &e.Score, &e.Category, &e.TimeTaken, &e.Date)
		e.Date = e.Date.UTC()
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan top: %w", err)
	}

	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return entries, nil
}

func (s *LeaderboardStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// checkConn drops the pool when err did not come from the server itself.
func (s *LeaderboardStore) checkConn(ctx context.Context, p *pgxpool.Pool, err error) {
	if ctx.Err() != nil {
		return
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return
	}
	s.conn.Invalidate(p)
}
