package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/tradebook/pkg/database"
)

// Rows is the subset of a result set the loaders need
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Executor runs generated SQL against one engine
type Executor interface {
	Dialect() Dialect
	Exec(ctx context.Context, stmt string, args ...any) error
	ExecBatch(ctx context.Context, stmt string, rows [][]any) error
	Query(ctx context.Context, stmt string, args ...any) (Rows, error)
}

// NewExecutor picks the executor matching the database driver
func NewExecutor(db *database.DB) (Executor, error) {
	switch db.Driver {
	case database.DriverPostgres:
		return NewPgExecutor(db.Pool), nil
	case database.DriverSQLite:
		return NewSQLExecutor(db.SQL), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", db.Driver)
	}
}

// PgExecutor runs statements on a pgx pool; batches go out as one pgx.Batch
type PgExecutor struct {
	pool *pgxpool.Pool
}

// NewPgExecutor creates a Postgres executor
func NewPgExecutor(pool *pgxpool.Pool) *PgExecutor {
	return &PgExecutor{pool: pool}
}

// Dialect implements Executor
func (e *PgExecutor) Dialect() Dialect { return Postgres }

// Exec implements Executor
func (e *PgExecutor) Exec(ctx context.Context, stmt string, args ...any) error {
	if _, err := e.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}
	return nil
}

// ExecBatch implements Executor
func (e *PgExecutor) ExecBatch(ctx context.Context, stmt string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, args := range rows {
		batch.Queue(stmt, args...)
	}

	br := e.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to exec batch row %d: %w", i, err)
		}
	}
	return nil
}

// Query implements Executor
func (e *PgExecutor) Query(ctx context.Context, stmt string, args ...any) (Rows, error) {
	rows, err := e.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return rows, nil
}

// SQLExecutor runs statements through database/sql; batches run in one transaction
type SQLExecutor struct {
	db *sql.DB
}

// NewSQLExecutor creates a database/sql executor (SQLite)
func NewSQLExecutor(db *sql.DB) *SQLExecutor {
	return &SQLExecutor{db: db}
}

// Dialect implements Executor
func (e *SQLExecutor) Dialect() Dialect { return SQLite }

// Exec implements Executor
func (e *SQLExecutor) Exec(ctx context.Context, stmt string, args ...any) error {
	if _, err := e.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}
	return nil
}

// ExecBatch implements Executor
func (e *SQLExecutor) ExecBatch(ctx context.Context, stmt string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("failed to prepare: %w", err)
	}
	defer prepared.Close()

	for i, args := range rows {
		if _, err := prepared.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to exec batch row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Query implements Executor
func (e *SQLExecutor) Query(ctx context.Context, stmt string, args ...any) (Rows, error) {
	rows, err := e.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return sqlRows{rows}, nil
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	_ = r.Rows.Close()
}
