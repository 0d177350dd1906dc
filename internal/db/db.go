package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the pgx pool backing the message store. The pool is shared by
// every request handler for the process lifetime.
type DB struct {
	Pool *pgxpool.Pool
}

// New connects to the chat database and verifies the connection with a ping
// before any handler is wired.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to chat database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping chat database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	d.Pool.Close()
}

// RunMigrations applies the messages schema migrations. migrationsPath is a
// plain directory path (MIGRATIONS_PATH); a source URL passed as-is also
// works. An already up-to-date schema is not an error.
func RunMigrations(databaseURL, migrationsPath string) error {
	sourceURL := migrationsPath
	if !strings.Contains(sourceURL, "://") {
		sourceURL = "file://" + sourceURL
	}

	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("open messages migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply messages migrations: %w", err)
	}
	return nil
}
