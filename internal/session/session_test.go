package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/internal/execution"
	"github.com/wonny/tradebook/internal/persistence"
	"github.com/wonny/tradebook/internal/portfolio"
	"github.com/wonny/tradebook/internal/security"
	"github.com/wonny/tradebook/pkg/idgen"
	"github.com/wonny/tradebook/pkg/logger"
)

const account = int64(1)

type fixture struct {
	session *Session
	sim     *execution.Simulator
	mem     *persistence.Memory
}

func newFixture(t *testing.T, simCfg execution.SimulatorConfig, gate GateConfig, loader Loader) *fixture {
	t.Helper()
	log := logger.Nop()
	ids := idgen.New()

	reg := security.NewRegistry(log)
	require.NoError(t, reg.Add(
		contracts.Security{ID: 1, Code: "KRW"},
		contracts.Security{ID: 7, Code: "005930", QuoteID: 1, MinQuantity: 1},
		contracts.Security{ID: 8, Code: "000660", QuoteID: 1, MinQuantity: 1},
	))

	sim := execution.NewSimulator(simCfg, ids, log)
	mem := persistence.NewMemory()
	s := New(Config{
		AccountID: account,
		Close:     portfolio.MonitorConfig{PollInterval: 5 * time.Millisecond, Timeout: time.Second},
		Gate:      gate,
	}, Deps{
		Gateway:    sim,
		Securities: reg,
		Persister:  mem,
		Loader:     loader,
		IDs:        ids,
		Logger:     log,
	})
	t.Cleanup(s.Stop)

	return &fixture{session: s, sim: sim, mem: mem}
}

func limitBuy(code string, price, qty float64) contracts.Order {
	return contracts.Order{
		SecurityCode: code, Side: contracts.SideBuy, Type: contracts.OrderTypeLimit,
		RequestedPrice: price, LimitPrice: price, Quantity: qty,
	}
}

func TestSession_TradeFlowsIntoPosition(t *testing.T) {
	f := newFixture(t, execution.SimulatorConfig{}, GateConfig{}, nil)
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))

	o, err := f.session.PlaceOrder(ctx, limitBuy("005930", 100, 10))
	require.NoError(t, err)
	assert.Equal(t, account, o.AccountID)
	assert.Equal(t, int64(7), o.SecurityID)
	assert.Equal(t, contracts.StatusLive, o.Status)

	tr, err := f.sim.Fill(o.ExternalID, 100, 4)
	require.NoError(t, err)
	_, err = f.sim.Fill(o.ExternalID, 110, 6)
	require.NoError(t, err)

	pos, ok := f.session.Reconciler().Position(account, 7)
	require.True(t, ok)
	assert.InDelta(t, 10, pos.Quantity, 1e-9)
	assert.InDelta(t, 106, pos.Price, 1e-9)

	order, _ := f.session.Orders().Get(o.ID)
	assert.Equal(t, contracts.StatusFilled, order.Status)
	assert.InDelta(t, 106, order.Price, 1e-9)

	stored, ok := f.session.Trades().GetByExternalID(tr.ExternalTradeID)
	require.True(t, ok)
	assert.Equal(t, pos.ID, stored.PositionID)

	// redelivery of the same fill changes nothing
	f.sim.PublishTrade(tr)
	pos, _ = f.session.Reconciler().Position(account, 7)
	assert.InDelta(t, 10, pos.Quantity, 1e-9)
	assert.Equal(t, 2, f.session.Trades().Count())
}

func TestSession_StartTwice(t *testing.T) {
	f := newFixture(t, execution.SimulatorConfig{}, GateConfig{}, nil)
	require.NoError(t, f.session.Start(context.Background()))
	assert.ErrorIs(t, f.session.Start(context.Background()), contracts.ErrNoop)
	assert.NotEmpty(t, f.session.Reconciler().SessionID())
}

func TestSession_StopDetaches(t *testing.T) {
	f := newFixture(t, execution.SimulatorConfig{}, GateConfig{}, nil)
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))

	o, err := f.session.PlaceOrder(ctx, limitBuy("005930", 100, 10))
	require.NoError(t, err)

	f.session.Stop()
	assert.False(t, f.sim.Subscribed())

	_, err = f.sim.Fill(o.ExternalID, 100, 10)
	require.NoError(t, err)
	_, ok := f.session.Reconciler().Position(account, 7)
	assert.False(t, ok)
}

func TestSession_SyncAssetsOnStart(t *testing.T) {
	f := newFixture(t, execution.SimulatorConfig{}, GateConfig{}, nil)
	f.sim.SetBalance(contracts.Asset{AccountID: account, SecurityID: 1, SecurityCode: "KRW", Quantity: 1_000_000})

	require.NoError(t, f.session.Start(context.Background()))

	snap := f.session.Reconciler().Snapshot(account)
	require.Len(t, snap.Assets, 1)
	assert.Equal(t, "KRW", snap.Assets[0].SecurityCode)
	assert.InDelta(t, 1_000_000, snap.Assets[0].Quantity, 1e-9)

	initial, ok := f.session.Reconciler().Initial(account)
	require.True(t, ok)
	assert.Len(t, initial.Assets, 1)
}

func TestSession_AssetChangesFromFills(t *testing.T) {
	f := newFixture(t, execution.SimulatorConfig{CashSecurityID: 1}, GateConfig{}, nil)
	ctx := context.Background()
	f.sim.SetBalance(contracts.Asset{AccountID: account, SecurityID: 1, SecurityCode: "KRW", Quantity: 10_000})
	require.NoError(t, f.session.Start(ctx))

	o, err := f.session.PlaceOrder(ctx, limitBuy("005930", 100, 10))
	require.NoError(t, err)
	_, err = f.sim.Fill(o.ExternalID, 100, 10)
	require.NoError(t, err)

	byID := make(map[int64]float64)
	for _, a := range f.session.Reconciler().Snapshot(account).Assets {
		byID[a.SecurityID] = a.Quantity
	}
	assert.InDelta(t, 9_000, byID[1], 1e-9)
	assert.InDelta(t, 10, byID[7], 1e-9)
}

func TestSession_GateEnforce(t *testing.T) {
	f := newFixture(t, execution.SimulatorConfig{}, GateConfig{
		Mode:             GateModeEnforce,
		MaxOrderNotional: 500,
	}, nil)
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))

	_, err := f.session.PlaceOrder(ctx, limitBuy("005930", 100, 10))
	assert.ErrorIs(t, err, contracts.ErrInvalidOrder)
	assert.Empty(t, f.session.Orders().List())

	_, err = f.session.PlaceOrder(ctx, limitBuy("005930", 100, 5))
	assert.NoError(t, err)
}

func TestSession_PlaceOrderUnknownSecurity(t *testing.T) {
	f := newFixture(t, execution.SimulatorConfig{}, GateConfig{}, nil)
	require.NoError(t, f.session.Start(context.Background()))

	_, err := f.session.PlaceOrder(context.Background(), limitBuy("999999", 100, 1))
	assert.ErrorIs(t, err, contracts.ErrSecurityNotFound)
}

func TestSession_CancelOrder(t *testing.T) {
	f := newFixture(t, execution.SimulatorConfig{}, GateConfig{}, nil)
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))

	o, err := f.session.PlaceOrder(ctx, limitBuy("005930", 100, 10))
	require.NoError(t, err)

	cancelled, err := f.session.CancelOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusCancelled, cancelled.Status)
	assert.Empty(t, f.session.Orders().Open())
}

func TestSession_CloseAllPositions(t *testing.T) {
	f := newFixture(t, execution.SimulatorConfig{AutoFill: true}, GateConfig{}, nil)
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))

	o, err := f.session.PlaceOrder(ctx, limitBuy("005930", 100, 10))
	require.NoError(t, err)
	_, err = f.sim.Fill(o.ExternalID, 100, 10)
	require.NoError(t, err)

	working, err := f.session.PlaceOrder(ctx, limitBuy("000660", 50, 3))
	require.NoError(t, err)
	f.sim.SetPrice(7, 120)

	results := f.session.CloseAllPositions(ctx)
	require.Len(t, results, 1)
	assert.Equal(t, contracts.ResultOK, results[0].Result)
	assert.Equal(t, "005930", results[0].SecurityCode)
	assert.NotZero(t, results[0].OrderID)

	assert.True(t, f.session.Reconciler().IsClosed(account, 7))
	closed := f.session.Reconciler().Closed(account)
	require.Len(t, closed, 1)
	assert.InDelta(t, 200, closed[0].RealizedPnL(), 1e-9)

	w, _ := f.session.Orders().Get(working.ID)
	assert.Equal(t, contracts.StatusCancelled, w.Status)
}

func TestSession_CloseAllPositionsTimeout(t *testing.T) {
	f := newFixture(t, execution.SimulatorConfig{}, GateConfig{}, nil)
	f.session.cfg.Close = portfolio.MonitorConfig{PollInterval: 5 * time.Millisecond, Timeout: 50 * time.Millisecond}
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))

	o, err := f.session.PlaceOrder(ctx, limitBuy("005930", 100, 10))
	require.NoError(t, err)
	_, err = f.sim.Fill(o.ExternalID, 100, 10)
	require.NoError(t, err)

	results := f.session.CloseAllPositions(ctx)
	require.Len(t, results, 1)
	assert.Equal(t, contracts.ResultTimeout, results[0].Result)

	pos, ok := f.session.Reconciler().Position(account, 7)
	require.True(t, ok)
	assert.InDelta(t, 10, pos.Quantity, 1e-9)
}

func TestSession_CloseAllPositionsSendFailure(t *testing.T) {
	f := newFixture(t, execution.SimulatorConfig{}, GateConfig{}, nil)
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))

	o, err := f.session.PlaceOrder(ctx, limitBuy("005930", 100, 10))
	require.NoError(t, err)
	_, err = f.sim.Fill(o.ExternalID, 100, 10)
	require.NoError(t, err)

	f.sim.FailSends(assert.AnError)
	results := f.session.CloseAllPositions(ctx)
	require.Len(t, results, 1)
	assert.Equal(t, contracts.ResultSendOrderFailed, results[0].Result)
}

type fakeLoader struct {
	orders    []contracts.Order
	trades    []contracts.Trade
	positions []contracts.Position
	closed    []contracts.Position
	assets    []contracts.Asset
	residuals []contracts.Residual
	err       error
}

func (l *fakeLoader) LoadOrders(context.Context) ([]contracts.Order, error) { return l.orders, l.err }
func (l *fakeLoader) LoadTrades(context.Context) ([]contracts.Trade, error) { return l.trades, nil }
func (l *fakeLoader) LoadPositions(context.Context) ([]contracts.Position, error) {
	return l.positions, nil
}
func (l *fakeLoader) LoadClosedPositions(context.Context) ([]contracts.Position, error) {
	return l.closed, nil
}
func (l *fakeLoader) LoadAssets(context.Context) ([]contracts.Asset, error) { return l.assets, nil }
func (l *fakeLoader) LoadResiduals(context.Context) ([]contracts.Residual, error) {
	return l.residuals, nil
}

func TestSession_StartLoadsState(t *testing.T) {
	now := time.Now()
	loader := &fakeLoader{
		orders: []contracts.Order{{
			ID: 11, ExternalID: 111, AccountID: account, SecurityID: 7, SecurityCode: "005930",
			Side: contracts.SideBuy, Type: contracts.OrderTypeLimit, LimitPrice: 100,
			Quantity: 10, FilledQuantity: 10, Price: 100, Status: contracts.StatusFilled,
			CreateTime: now, UpdateTime: now,
		}},
		trades: []contracts.Trade{{
			ID: 21, ExternalTradeID: 211, OrderID: 11, ExternalOrderID: 111, PositionID: 31,
			AccountID: account, SecurityID: 7, SecurityCode: "005930",
			Side: contracts.SideBuy, Price: 100, Quantity: 10, Time: now,
		}},
		positions: []contracts.Position{{
			ID: 31, AccountID: account, SecurityID: 7, SecurityCode: "005930",
			Side: contracts.SideBuy, Quantity: 10, Price: 100, Notional: 1000,
			Long:       contracts.Leg{Quantity: 10, Price: 100, Notional: 1000},
			CreateTime: now, UpdateTime: now,
		}},
	}

	f := newFixture(t, execution.SimulatorConfig{}, GateConfig{}, loader)
	require.NoError(t, f.session.Start(context.Background()))

	_, ok := f.session.Orders().Get(11)
	assert.True(t, ok)
	_, ok = f.session.Trades().Get(21)
	assert.True(t, ok)
	pos, ok := f.session.Reconciler().Position(account, 7)
	require.True(t, ok)
	assert.Equal(t, int64(31), pos.ID)

	initial, ok := f.session.Reconciler().Initial(account)
	require.True(t, ok)
	assert.Len(t, initial.Positions, 1)
}

func TestSession_StartLoadFailure(t *testing.T) {
	f := newFixture(t, execution.SimulatorConfig{}, GateConfig{}, &fakeLoader{err: assert.AnError})
	err := f.session.Start(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, f.sim.Subscribed())
}

func TestSession_RetryParked(t *testing.T) {
	f := newFixture(t, execution.SimulatorConfig{}, GateConfig{}, nil)
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))
	assert.Equal(t, 0, f.session.RetryParked(ctx))
}
