// Package store is the local durable store: three SQLite tables (orders,
// sync_queue, sales_ledger) behind a single handle with all-or-nothing
// multi-table transactions. It is the only mutual-exclusion mechanism in the
// engine; every order mutation goes through it.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"orderkeeper/internal/domain/syncq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Execer is satisfied by both *sql.DB and *sql.Tx so every store method can
// run standalone or inside RunTransaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the store at path and applies pending schema
// migrations. Use ":memory:" for throwaway stores in tests.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles one writer at a time; a second connection would only
	// trade busy errors for lock contention.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	// A crash mid-drain strands items as processing; the drain only picks up
	// pending ones, so put them back on startup.
	if _, err := db.Exec(`UPDATE sync_queue SET status = ? WHERE status = ?`,
		syncq.StatusPending, syncq.StatusProcessing); err != nil {
		db.Close()
		return nil, fmt.Errorf("recover stale sync items: %w", err)
	}

	return &Store{
		db:  db,
		log: log.With("component", "store"),
	}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// exec resolves the executor for a store call: nil means run against the
// plain handle, anything else is a transaction in flight.
func (s *Store) exec(e Execer) Execer {
	if e == nil {
		return s.db
	}
	return e
}

// RunTransaction executes fn with all-or-nothing semantics across every
// table touched inside it. Any error returned by fn aborts and rolls back
// all writes performed through the passed executor.
func (s *Store) RunTransaction(ctx context.Context, fn func(e Execer) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
