// Package store persists analyzed news articles in SQLite or PostgreSQL and
// answers range, search and aggregate queries over them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phuslu/log"
	_ "modernc.org/sqlite"

	"github.com/seenimoa/marketlens/internal/infra"
)

// Store is a SQL-backed article store. It is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *log.Logger
	now     func() time.Time

	closeOnce sync.Once
}

// Open connects to the database. driver is "sqlite" (dsn is a file path or
// ":memory:") or "postgres" (dsn is a connection URL). Tables are not
// created; call InitializeTables.
func Open(ctx context.Context, driver, dsn string, logger *log.Logger) (*Store, error) {
	var d dialect
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		d = sqliteDialect
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	case "postgres", "postgresql", "pgx":
		d = postgresDialect
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.name == "sqlite" {
		// One connection keeps per-connection pragmas and in-memory databases consistent.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, dialect: d, logger: infra.OrNop(logger), now: time.Now}
	if err := s.configure(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s.logger.Info().Str("driver", d.name).Msg("news store opened")
	return s, nil
}

func (s *Store) configure(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	for _, stmt := range s.dialect.setupConns {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %s: %w", stmt, err)
		}
	}
	return nil
}

// InitializeTables creates the schema. It is idempotent.
func (s *Store) InitializeTables(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initialize tables: %w", err)
		}
	}
	s.logger.Debug().Str("driver", s.dialect.name).Msg("news tables ready")
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the dialect name ("sqlite" or "postgres").
func (s *Store) Driver() string { return s.dialect.name }

// Close closes the database. Safe to call more than once; errors after the
// first call are swallowed.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
		if err != nil {
			s.logger.Warn().Err(err).Msg("error closing news store")
		}
	})
	return err
}

func (s *Store) q(query string) string { return s.dialect.rebind(query) }
