package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/wonny/tradebook/internal/persistence"
	"github.com/wonny/tradebook/internal/security"
	"github.com/wonny/tradebook/pkg/config"
	"github.com/wonny/tradebook/pkg/database"
	"github.com/wonny/tradebook/pkg/logger"
	"github.com/wonny/tradebook/pkg/redis"
)

// infra is the shared wiring of commands that touch the database
type infra struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB
	writer *persistence.Writer
	store  *persistence.Store
	redis  *redis.Client
}

// openInfra loads config, connects to the database and migrates it
func openInfra(ctx context.Context) (*infra, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	exec, err := persistence.NewExecutor(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create executor: %w", err)
	}
	writer := persistence.NewWriter(exec, persistence.WriterConfig{
		QueueSize: cfg.Persistence.QueueSize,
		Timeout:   cfg.Persistence.Timeout,
	}, log.WithField("component", "persistence"))
	store := persistence.NewStore(writer, log.WithField("component", "persistence"))

	if err := store.Migrate(ctx); err != nil {
		writer.Close()
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, security cache disabled")
		rc = nil
	}

	log.WithFields(map[string]interface{}{
		"driver": db.Driver,
		"env":    cfg.Env,
	}).Info("Infrastructure ready")

	return &infra{cfg: cfg, log: log, db: db, writer: writer, store: store, redis: rc}, nil
}

// registry builds the security registry: YAML file first, then the database,
// with Redis in front of the database when enabled
func (i *infra) registry(ctx context.Context) (*security.Registry, error) {
	opts := []security.Option{security.WithSource(i.store)}
	if i.redis != nil && i.redis.Enabled() {
		opts = append(opts, security.WithCache(redis.NewCache(i.redis, "tradebook")))
	}
	reg := security.NewRegistry(i.log.WithField("component", "securities"), opts...)

	stored, err := i.store.LoadSecurities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load securities: %w", err)
	}
	if err := reg.Add(stored...); err != nil {
		return nil, fmt.Errorf("register stored securities: %w", err)
	}

	n, err := reg.LoadFile(i.cfg.SecuritiesFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		i.log.WithField("file", i.cfg.SecuritiesFile).Warn("Securities file not found, using database only")
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", i.cfg.SecuritiesFile, err)
	default:
		if err := i.store.SaveSecurities(ctx, reg.All()...); err != nil {
			return nil, fmt.Errorf("save securities: %w", err)
		}
		i.log.WithField("count", n).Info("Securities loaded from file")
	}
	return reg, nil
}

// Close flushes pending writes and releases connections
func (i *infra) Close(ctx context.Context) {
	if err := i.store.Flush(ctx); err != nil {
		i.log.WithError(err).Warn("Flush on close failed")
	}
	i.writer.Close()
	if i.redis != nil {
		_ = i.redis.Close()
	}
	i.db.Close()
}
