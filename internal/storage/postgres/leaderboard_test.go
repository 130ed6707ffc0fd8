//go:build integration_test

package postgres_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/victornm/quizmaster/internal/domain"
	"github.com/victornm/quizmaster/internal/storage/postgres"
)

func TestLeaderboardStore(t *testing.T) {
	ctx := context.Background()
	c := startPostgres(t, ctx)

	require.NoError(t, postgres.Migrate(ctx, c))
	require.NoError(t, postgres.Migrate(ctx, c), "migrating twice is a no-op")

	conn := postgres.NewConnector(c)
	t.Cleanup(conn.Close)
	s := postgres.NewLeaderboardStore(conn)

	insert := func(name string, score int, category string) domain.LeaderboardEntry {
		e, err := s.Insert(ctx, domain.LeaderboardEntry{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Name:      name,
			Score:     score,
			Category:  category,
			TimeTaken: 30,
		})
		require.NoError(t, err)
		assert.False(t, e.Date.IsZero(), "date should be assigned by the store")
		return e
	}

	insert("ann", 7, "Linux")
	insert("bob", 9, "Linux")
	insert("cid", 7, "Linux")
	insert("dan", 10, "Docker")

	got, err := s.Top(ctx, "Linux", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "bob", got[0].Name)
	assert.Equal(t, "ann", got[1].Name)
	assert.Equal(t, "cid", got[2].Name)
	assert.Equal(t, 30, got[0].TimeTaken)

	got, err = s.Top(ctx, "SQL", 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = s.Insert(ctx, domain.LeaderboardEntry{ID: uuid.NewString(), Name: "neg", Score: -1, Category: "Linux"})
	assert.Error(t, err, "negative scores are rejected by the schema")
}

func TestConnector_Concurrent(t *testing.T) {
	ctx := context.Background()
	conn := postgres.NewConnector(startPostgres(t, ctx))
	t.Cleanup(conn.Close)

	var wg sync.WaitGroup
	pools := make(chan any, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := conn.Pool(ctx)
			assert.NoError(t, err)
			pools <- p
		}()
	}
	wg.Wait()
	close(pools)

	first := <-pools
	for p := range pools {
		assert.Same(t, first, p, "concurrent callers should share one pool")
	}

	p, err := conn.Pool(ctx)
	require.NoError(t, err)
	conn.Invalidate(p)
	conn.Invalidate(p)

	p2, err := conn.Pool(ctx)
	require.NoError(t, err)
	assert.NotSame(t, p, p2)
	require.NoError(t, conn.Ping(ctx))
}

func startPostgres(t *testing.T, ctx context.Context) postgres.Config {
	t.Helper()

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizmaster"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	return postgres.Config{
		Addr: endpoint,
		User: "quiz",
		Pass: "quizpass",
		Name: "quizmaster",
	}
}
