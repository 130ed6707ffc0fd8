// Package postgres stores leaderboard entries in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

const connectTimeout = 10 * time.Second

type Config struct {
	Addr    string
	User    string
	Pass    string
	Name    string
	SSLMode string
}

// DSN renders the connection URL.
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Pass),
		Host:   c.Addr,
		Path:   "/" + c.Name,
	}
	mode := c.SSLMode
	if mode == "" {
		mode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": {mode}}.Encode()
	return u.String()
}

// Connector opens the pool lazily. Concurrent callers share one connection
// attempt, and a pool reported broken is dropped so the next call reconnects.
type Connector struct {
	dsn string
	sf  singleflight.Group

	mu   sync.Mutex
	pool *pgxpool.Pool
}

func NewConnector(c Config) *Connector {
	return &Connector{dsn: c.DSN()}
}

// Pool returns the live pool, connecting first if needed.
func (c *Connector) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	c.mu.Lock()
	p := c.pool
	c.mu.Unlock()
	if p != nil {
		return p, nil
	}

	ch := c.sf.DoChan("pool", func() (any, error) {
		c.mu.Lock()
		if c.pool != nil {
			p := c.pool
			c.mu.Unlock()
			return p, nil
		}
		c.mu.Unlock()

		p, err := c.connect()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.pool = p
		c.mu.Unlock()
		return p, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*pgxpool.Pool), nil
	}
}

func (c *Connector) connect() (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	cc, err := pgxpool.ParseConfig(c.dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	p, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	slog.InfoContext(ctx, "postgres: connected", "host", cc.ConnConfig.Host, "database", cc.ConnConfig.Database)
	return p, nil
}

// Invalidate drops p if it is still the current pool. Calling it again with
// the same pool is a no-op.
func (c *Connector) Invalidate(p *pgxpool.Pool) {
	c.mu.Lock()
	if p == nil || c.pool != p {
		c.mu.Unlock()
		return
	}
	c.pool = nil
	c.mu.Unlock()

	slog.Warn("postgres: pool invalidated")
	go p.Close()
}

// Ping connects if needed and checks the connection.
func (c *Connector) Ping(ctx context.Context) error {
	p, err := c.Pool(ctx)
	if err != nil {
		return err
	}
	if err := p.Ping(ctx); err != nil {
		c.Invalidate(p)
		return err
	}
	return nil
}

func (c *Connector) Close() {
	c.mu.Lock()
	p := c.pool
	c.pool = nil
	c.mu.Unlock()

	if p != nil {
		p.Close()
	}
}
