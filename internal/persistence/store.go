package persistence

import (
	"context"
	"fmt"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/pkg/logger"
)

// Store is the reconciliation engine's durability layer.
// Saves are fire-and-observe through the Writer; loads are synchronous.
// ⭐ SSOT: 주문/체결/포지션/자산 저장은 여기서만
type Store struct {
	exec   Executor
	writer *Writer
	logger *logger.Logger
}

var _ contracts.Persister = (*Store)(nil)

// NewStore creates a store writing through writer
func NewStore(writer *Writer, log *logger.Logger) *Store {
	return &Store{
		exec:   writer.Executor(),
		writer: writer,
		logger: log,
	}
}

// Migrate creates the tables and indexes
func (s *Store) Migrate(ctx context.Context) error {
	d := s.exec.Dialect()
	stmts := []string{
		CreateSQL(d, OrderTable),
		CreateSQL(d, TradeTable),
		CreateSQL(d, PositionTable),
		CreateSQL(d, AssetTable),
		CreateSQL(d, ResidualTable),
		CreateSQL(d, SecurityTable),
	}
	stmts = append(stmts, indexes...)

	for _, stmt := range stmts {
		if err := s.exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// Flush waits for queued writes
func (s *Store) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

func (s *Store) observe(what string, n int) func(error) {
	return func(err error) {
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"entity": what,
				"count":  n,
			}).WithError(err).Warn("Entities not persisted")
		}
	}
}

// SaveOrders implements contracts.Persister
func (s *Store) SaveOrders(orders ...contracts.Order) {
	Save(s.writer, OrderTable, orders, s.observe("orders", len(orders)))
}

// SaveTrades implements contracts.Persister
func (s *Store) SaveTrades(trades ...contracts.Trade) {
	Save(s.writer, TradeTable, trades, s.observe("trades", len(trades)))
}

// SavePositions implements contracts.Persister
func (s *Store) SavePositions(positions ...contracts.Position) {
	Save(s.writer, PositionTable, positions, s.observe("positions", len(positions)))
}

// SaveAssets implements contracts.Persister
func (s *Store) SaveAssets(assets ...contracts.Asset) {
	Save(s.writer, AssetTable, assets, s.observe("assets", len(assets)))
}

// DeleteAssets implements contracts.Persister
func (s *Store) DeleteAssets(assets ...contracts.Asset) {
	Remove(s.writer, AssetTable, assets, s.observe("assets", len(assets)))
}

// SaveResiduals implements contracts.Persister
func (s *Store) SaveResiduals(residuals ...contracts.Residual) {
	Save(s.writer, ResidualTable, residuals, s.observe("residuals", len(residuals)))
}

// DeleteResiduals implements contracts.Persister
func (s *Store) DeleteResiduals(residuals ...contracts.Residual) {
	Remove(s.writer, ResidualTable, residuals, s.observe("residuals", len(residuals)))
}

// SaveSecurities upserts reference data synchronously
func (s *Store) SaveSecurities(ctx context.Context, secs ...contracts.Security) error {
	args := make([][]any, len(secs))
	for i := range secs {
		args[i] = SecurityTable.Values(&secs[i])
	}
	if err := s.exec.ExecBatch(ctx, UpsertSQL(s.exec.Dialect(), SecurityTable), args); err != nil {
		return fmt.Errorf("failed to save securities: %w", err)
	}
	return nil
}

// LoadOrders returns every persisted order
func (s *Store) LoadOrders(ctx context.Context) ([]contracts.Order, error) {
	return load(ctx, s.exec, OrderTable, "")
}

// LoadTrades returns every persisted trade
func (s *Store) LoadTrades(ctx context.Context) ([]contracts.Trade, error) {
	return load(ctx, s.exec, TradeTable, "")
}

// LoadPositions returns positions that are still open
func (s *Store) LoadPositions(ctx context.Context) ([]contracts.Position, error) {
	return load(ctx, s.exec, PositionTable, "close_time IS NULL")
}

// LoadClosedPositions returns archived positions
func (s *Store) LoadClosedPositions(ctx context.Context) ([]contracts.Position, error) {
	return load(ctx, s.exec, PositionTable, "close_time IS NOT NULL")
}

// LoadAssets returns every persisted asset
func (s *Store) LoadAssets(ctx context.Context) ([]contracts.Asset, error) {
	return load(ctx, s.exec, AssetTable, "")
}

// LoadResiduals returns the residual carry-over table
func (s *Store) LoadResiduals(ctx context.Context) ([]contracts.Residual, error) {
	return load(ctx, s.exec, ResidualTable, "")
}

// LoadSecurities returns every persisted security
func (s *Store) LoadSecurities(ctx context.Context) ([]contracts.Security, error) {
	return load(ctx, s.exec, SecurityTable, "")
}

// LoadSecurity implements security.Source
func (s *Store) LoadSecurity(ctx context.Context, id int64) (*contracts.Security, error) {
	where := "id = " + s.exec.Dialect().Placeholder(1)
	return loadOne(ctx, s.exec, SecurityTable, where, id)
}

// LoadSecurityByCode implements security.Source
func (s *Store) LoadSecurityByCode(ctx context.Context, code string) (*contracts.Security, error) {
	where := "code = " + s.exec.Dialect().Placeholder(1)
	return loadOne(ctx, s.exec, SecurityTable, where, code)
}

func load[T any](ctx context.Context, exec Executor, t *Table[T], where string, args ...any) ([]T, error) {
	rows, err := exec.Query(ctx, SelectSQL(t, where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", t.Name, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		var v T
		if err := rows.Scan(t.Pointers(&v)...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.Name, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", t.Name, err)
	}
	return out, nil
}

func loadOne(ctx context.Context, exec Executor, t *Table[contracts.Security], where string, arg any) (*contracts.Security, error) {
	found, err := load(ctx, exec, t, where, arg)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %v", contracts.ErrSecurityNotFound, arg)
	}
	return &found[0], nil
}
