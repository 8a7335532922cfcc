package session

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/internal/orders"
	"github.com/wonny/tradebook/internal/portfolio"
	"github.com/wonny/tradebook/internal/trades"
	"github.com/wonny/tradebook/pkg/idgen"
	"github.com/wonny/tradebook/pkg/logger"
)

// Loader reads persisted state at startup. persistence.Store implements it.
type Loader interface {
	LoadOrders(ctx context.Context) ([]contracts.Order, error)
	LoadTrades(ctx context.Context) ([]contracts.Trade, error)
	LoadPositions(ctx context.Context) ([]contracts.Position, error)
	LoadClosedPositions(ctx context.Context) ([]contracts.Position, error)
	LoadAssets(ctx context.Context) ([]contracts.Asset, error)
	LoadResiduals(ctx context.Context) ([]contracts.Residual, error)
}

// Config holds session settings
type Config struct {
	AccountID int64
	Close     portfolio.MonitorConfig
	Gate      GateConfig
}

// Deps are the collaborators a session is built from
type Deps struct {
	Gateway    contracts.ExecutionGateway
	Securities contracts.SecurityReference
	Persister  contracts.Persister
	Loader     Loader // nil = start empty
	IDs        *idgen.Generator
	Logger     *logger.Logger
}

// Session wires the execution channel into the Order Store, Trade Store and
// Reconciler and exposes the operations callers use.
// ⭐ SSOT: 컴포넌트 조립은 여기서만
type Session struct {
	cfg        Config
	gateway    contracts.ExecutionGateway
	securities contracts.SecurityReference
	loader     Loader

	orders     *orders.Store
	trades     *trades.Store
	reconciler *portfolio.Reconciler
	gate       *Gate
	logger     *logger.Logger

	mu          sync.Mutex
	unsubscribe func()
}

// New assembles a session; nothing runs until Start
func New(cfg Config, deps Deps) *Session {
	log := deps.Logger
	orderStore := orders.NewStore(deps.Gateway, deps.Persister, deps.IDs, log.WithField("component", "orders"))
	tradeStore := trades.NewStore(orderStore, deps.Securities, deps.Persister, deps.IDs, log.WithField("component", "trades"))
	reconciler := portfolio.NewReconciler(deps.Securities, deps.Persister, deps.IDs, log.WithField("component", "reconciler"))
	tradeStore.SetSink(reconciler)

	return &Session{
		cfg:        cfg,
		gateway:    deps.Gateway,
		securities: deps.Securities,
		loader:     deps.Loader,
		orders:     orderStore,
		trades:     tradeStore,
		reconciler: reconciler,
		gate:       NewGate(cfg.Gate, log.WithField("component", "gate")),
		logger:     log,
	}
}

// Orders returns the Order Store
func (s *Session) Orders() *orders.Store { return s.orders }

// Trades returns the Trade Store
func (s *Session) Trades() *trades.Store { return s.trades }

// Reconciler returns the Portfolio Reconciler
func (s *Session) Reconciler() *portfolio.Reconciler { return s.reconciler }

// AccountID returns the default account
func (s *Session) AccountID() int64 { return s.cfg.AccountID }

// Start loads persisted state, subscribes to the execution channel, syncs with
// the broker and captures the initial portfolio. Calling it twice is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		return contracts.ErrNoop
	}

	if s.loader != nil {
		if err := s.load(ctx); err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		}
	}

	s.unsubscribe = s.gateway.Subscribe(contracts.ExecutionHandler{
		OnTrade:       s.onTrade,
		OnOrderState:  s.onOrderState,
		OnAssetChange: s.onAssetChange,
	})

	if _, err := s.SyncOrders(ctx); err != nil {
		s.logger.WithError(err).Warn("Initial order sync failed")
	}
	if _, err := s.SyncAssets(ctx); err != nil {
		s.logger.WithError(err).Warn("Initial asset sync failed")
	}

	sessionID := s.reconciler.CaptureInitial(s.cfg.AccountID)
	s.logger.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"account_id": s.cfg.AccountID,
	}).Info("Session started")
	return nil
}

func (s *Session) load(ctx context.Context) error {
	orderList, err := s.loader.LoadOrders(ctx)
	if err != nil {
		return fmt.Errorf("orders: %w", err)
	}
	tradeList, err := s.loader.LoadTrades(ctx)
	if err != nil {
		return fmt.Errorf("trades: %w", err)
	}
	open, err := s.loader.LoadPositions(ctx)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	closed, err := s.loader.LoadClosedPositions(ctx)
	if err != nil {
		return fmt.Errorf("closed positions: %w", err)
	}
	assets, err := s.loader.LoadAssets(ctx)
	if err != nil {
		return fmt.Errorf("assets: %w", err)
	}
	residuals, err := s.loader.LoadResiduals(ctx)
	if err != nil {
		return fmt.Errorf("residuals: %w", err)
	}

	s.orders.Load(orderList)
	s.trades.Load(tradeList)
	s.reconciler.Load(append(open, closed...), assets, residuals)
	return nil
}

// Stop detaches from the execution channel
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
		s.logger.Info("Session stopped")
	}
}

func (s *Session) onTrade(t contracts.Trade) {
	// errors are logged by the trade store; one bad trade must not stop the channel
	_, _ = s.trades.Ingest(context.Background(), t)
}

func (s *Session) onOrderState(o contracts.Order) {
	s.orders.Update(o)
}

func (s *Session) onAssetChange(c contracts.AssetChange) {
	if c.AccountID == 0 {
		c.AccountID = s.cfg.AccountID
	}
	_, _ = s.reconciler.ApplyAssetChange(context.Background(), c)
}

// PlaceOrder creates and sends an order after the pre-trade gate
func (s *Session) PlaceOrder(ctx context.Context, o contracts.Order) (contracts.Order, error) {
	if o.AccountID == 0 {
		o.AccountID = s.cfg.AccountID
	}
	if _, err := s.securities.Fix(ctx, &o); err != nil {
		return o, err
	}

	current, _ := s.reconciler.Position(o.AccountID, o.SecurityID)
	if check := s.gate.Check(o, current.Quantity); !check.Passed {
		return o, fmt.Errorf("%w: blocked by gate: %v", contracts.ErrInvalidOrder, check.Violations)
	}

	created, err := s.orders.Create(o)
	if err != nil {
		return created, err
	}
	return s.orders.Send(ctx, created.ID)
}

// CancelOrder cancels an order by internal id
func (s *Session) CancelOrder(ctx context.Context, id int64) (contracts.Order, error) {
	return s.orders.Cancel(ctx, id)
}

// SyncOrders merges the broker's open orders into the Order Store
func (s *Session) SyncOrders(ctx context.Context) (int, error) {
	open, err := s.gateway.GetOpenOrders(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to get open orders: %w", err)
	}
	return s.orders.Update(open...), nil
}

// SyncAssets replaces the account's balances with the broker's
func (s *Session) SyncAssets(ctx context.Context) (int, error) {
	takenAt := time.Now()
	assets, err := s.gateway.GetAssetPositions(ctx, s.cfg.AccountID)
	if err != nil {
		return 0, fmt.Errorf("failed to get asset positions: %w", err)
	}
	return s.reconciler.UpdateAssets(ctx, s.cfg.AccountID, assets, takenAt), nil
}

// RetryParked re-applies trades waiting on security metadata and links them
// to their positions
func (s *Session) RetryParked(ctx context.Context) int {
	applied := s.reconciler.RetryParked(ctx)
	for _, t := range applied {
		s.trades.SetPositionID(t.ID, t.PositionID)
	}
	return len(applied)
}

// CloseResult is the outcome of liquidating one position
type CloseResult struct {
	PositionID   int64                `json:"position_id"`
	SecurityID   int64                `json:"security_id"`
	SecurityCode string               `json:"security_code"`
	OrderID      int64                `json:"order_id"`
	Result       contracts.ResultCode `json:"result"`
}

// CloseAllPositions cancels working orders, sends a market order against every
// open position of the account and waits (bounded) for each to close.
// Failures are reported per position.
func (s *Session) CloseAllPositions(ctx context.Context) []CloseResult {
	positions := s.reconciler.Snapshot(s.cfg.AccountID).Positions
	results := make([]CloseResult, len(positions))

	for _, o := range s.orders.Open() {
		if o.AccountID != s.cfg.AccountID {
			continue
		}
		if _, err := s.orders.Cancel(ctx, o.ID); err != nil {
			s.logger.WithError(err).WithField("order_id", o.ID).Warn("Cancel before close failed")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, pos := range positions {
		results[i] = CloseResult{PositionID: pos.ID, SecurityID: pos.SecurityID, SecurityCode: pos.SecurityCode}

		orderID, err := s.sendClose(ctx, pos)
		results[i].OrderID = orderID
		if err != nil {
			results[i].Result = contracts.ResultOf(err)
			continue
		}

		i, pos := i, pos
		g.Go(func() error {
			err := s.reconciler.WaitClosed(gctx, pos.AccountID, pos.SecurityID, s.cfg.Close)
			results[i].Result = contracts.ResultOf(err)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		s.logger.WithFields(map[string]interface{}{
			"position_id":   r.PositionID,
			"security_code": r.SecurityCode,
			"order_id":      r.OrderID,
			"result":        r.Result,
		}).Info("Close position result")
	}
	return results
}

func (s *Session) sendClose(ctx context.Context, pos contracts.Position) (int64, error) {
	side := contracts.SideSell
	if pos.Quantity < 0 {
		side = contracts.SideBuy
	}

	o, err := s.orders.Create(contracts.Order{
		AccountID:      pos.AccountID,
		SecurityID:     pos.SecurityID,
		SecurityCode:   pos.SecurityCode,
		Side:           side,
		Type:           contracts.OrderTypeMarket,
		RequestedPrice: pos.Price,
		Quantity:       math.Abs(pos.Quantity),
		Comment:        "close-all",
	})
	if err != nil {
		return 0, err
	}

	sent, err := s.orders.Send(ctx, o.ID)
	return sent.ID, err
}
