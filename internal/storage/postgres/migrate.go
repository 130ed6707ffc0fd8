package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/victornm/quizmaster/internal/storage/postgres/migrations"
)

// Migrate applies every pending migration.
func Migrate(ctx context.Context, c Config) error {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(c.DSN())))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	m := migrate.NewMigrator(db, migrations.Migrations)
	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}

	if err := m.Lock(ctx); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer func() {
		if err := m.Unlock(ctx); err != nil {
			slog.ErrorContext(ctx, "postgres: unlock migrations failed", "error", err)
		}
	}()

	group, err := m.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if group.IsZero() {
		slog.InfoContext(ctx, "postgres: no new migrations")
		return nil
	}

	slog.InfoContext(ctx, "postgres: migrations applied", "group", group.String())
	return nil
}
