package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/wonny/tradebook/pkg/config"
)

func TestOpenSQLite(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	if !status.Healthy {
		t.Error("Expected sqlite to be healthy")
	}
	if status.Driver != DriverSQLite {
		t.Errorf("Expected driver sqlite, got %s", status.Driver)
	}
	if status.Stats.MaxConns != 1 {
		t.Errorf("Expected MaxConns 1, got %d", status.Stats.MaxConns)
	}
}

func TestNewUnsupportedDriver(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "oracle"}}
	if _, err := New(cfg); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestNewPostgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:          DriverPostgres,
			URL:             url,
			MaxConns:        4,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: time.Minute,
		},
	}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	if status.Stats.MaxConns != 4 {
		t.Errorf("Expected MaxConns 4, got %d", status.Stats.MaxConns)
	}
}
