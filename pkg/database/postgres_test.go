package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/wonny/tradebook/pkg/config"
)

func TestNewWithInvalidURL(t *testing.T) {
	// Create config with invalid database URL
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:          DriverPostgres,
			URL:             "invalid://url",
			MaxConns:        25,
			MinConns:        5,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("Expected error with invalid database URL, got nil")
	}
}

func TestNewSQLiteFile(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:     DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "tradebook.db"),
		},
	}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.SQL.ExecContext(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	if err := db.Ping(ctx); err != nil {
		t.Errorf("Failed to ping database: %v", err)
	}
}

func TestStats(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	stats := db.Stats()

	if stats.MaxConns == 0 {
		t.Error("Expected MaxConns to be greater than 0")
	}
	if stats.AcquiredConns != 0 {
		t.Errorf("Expected no connections in use, got %d", stats.AcquiredConns)
	}

	t.Logf("Pool Stats: %+v", stats)
}

func TestHealthCheckAfterClose(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	db.Close()

	status, err := db.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("Expected HealthCheck to fail on a closed database")
	}
	if status.Healthy || status.Error == "" {
		t.Errorf("Expected unhealthy status with error, got %+v", status)
	}
}

func TestClose(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	// Close should not panic
	db.Close()

	// Double close should not panic
	db.Close()
}
