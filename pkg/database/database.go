package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/wonny/tradebook/pkg/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB wraps either a pgx pool (postgres) or a database/sql handle (sqlite)
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Driver string
	Pool   *pgxpool.Pool
	SQL    *sql.DB
}

// New opens the database selected by cfg.Database.Driver
func New(cfg *config.Config) (*DB, error) {
	switch cfg.Database.Driver {
	case DriverPostgres:
		return newPostgres(cfg)
	case DriverSQLite:
		return OpenSQLite(cfg.Database.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

// newPostgres creates a new connection pool
// ⭐ SSOT: 유일하게 pgxpool.New()를 호출하는 함수
func newPostgres(cfg *config.Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Driver: DriverPostgres, Pool: pool}, nil
}

// OpenSQLite opens (or creates) a SQLite database at path.
// ":memory:" is supported; the handle is pinned to one connection so every
// statement sees the same database.
func OpenSQLite(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return &DB{Driver: DriverSQLite, SQL: db}, nil
}

// Close closes the underlying handle
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.SQL != nil {
		_ = db.SQL.Close()
	}
}

// Ping checks if the database is accessible
func (db *DB) Ping(ctx context.Context) error {
	if db.Pool != nil {
		return db.Pool.Ping(ctx)
	}
	return db.SQL.PingContext(ctx)
}

// HealthCheck returns detailed health information about the database
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Driver:    db.Driver,
		Timestamp: time.Now(),
	}

	start := time.Now()
	if err := db.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)
	status.Stats = db.Stats()
	status.Healthy = true

	return status, nil
}

// HealthStatus represents the health status of the database
type HealthStatus struct {
	Driver       string        `json:"driver"`
	Healthy      bool          `json:"healthy"`
	Timestamp    time.Time     `json:"timestamp"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Stats        PoolStats     `json:"stats"`
}

// PoolStats represents connection pool statistics
type PoolStats struct {
	AcquireCount  int64         `json:"acquire_count"`
	AcquireWait   time.Duration `json:"acquire_wait"`
	AcquiredConns int32         `json:"acquired_conns"`
	IdleConns     int32         `json:"idle_conns"`
	MaxConns      int32         `json:"max_conns"`
	TotalConns    int32         `json:"total_conns"`
}

// Stats returns the current pool statistics
func (db *DB) Stats() PoolStats {
	if db.Pool != nil {
		stats := db.Pool.Stat()
		return PoolStats{
			AcquireCount:  stats.AcquireCount(),
			AcquireWait:   stats.AcquireDuration(),
			AcquiredConns: stats.AcquiredConns(),
			IdleConns:     stats.IdleConns(),
			MaxConns:      stats.MaxConns(),
			TotalConns:    stats.TotalConns(),
		}
	}

	stats := db.SQL.Stats()
	return PoolStats{
		AcquireCount:  stats.WaitCount,
		AcquireWait:   stats.WaitDuration,
		AcquiredConns: int32(stats.InUse),
		IdleConns:     int32(stats.Idle),
		MaxConns:      int32(stats.MaxOpenConnections),
		TotalConns:    int32(stats.OpenConnections),
	}
}
