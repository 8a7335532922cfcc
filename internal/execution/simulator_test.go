package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/pkg/idgen"
	"github.com/wonny/tradebook/pkg/logger"
)

type recorder struct {
	mu     sync.Mutex
	trades []contracts.Trade
	orders []contracts.Order
	assets []contracts.AssetChange
}

func (r *recorder) handler() contracts.ExecutionHandler {
	return contracts.ExecutionHandler{
		OnTrade: func(t contracts.Trade) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.trades = append(r.trades, t)
		},
		OnOrderState: func(o contracts.Order) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.orders = append(r.orders, o)
		},
		OnAssetChange: func(c contracts.AssetChange) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.assets = append(r.assets, c)
		},
	}
}

func (r *recorder) tradeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trades)
}

func newSim(cfg SimulatorConfig) *Simulator {
	return NewSimulator(cfg, idgen.New(), logger.Nop())
}

func marketOrder(externalID int64, side contracts.Side, qty float64) contracts.Order {
	return contracts.Order{
		ID:         externalID - 1000,
		ExternalID: externalID,
		AccountID:  1,
		SecurityID: 7,
		Side:       side,
		Type:       contracts.OrderTypeMarket,
		Quantity:   qty,
	}
}

func TestSimulator_SendFillCancel(t *testing.T) {
	sim := newSim(SimulatorConfig{FeeRate: 0.001, CashSecurityID: 1})
	rec := &recorder{}
	sim.Subscribe(rec.handler())
	ctx := context.Background()

	ack, err := sim.SendOrder(ctx, marketOrder(5001, contracts.SideBuy, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(5001), ack.ExternalOrderID)
	assert.Equal(t, contracts.StatusLive, ack.Status)

	tr, err := sim.Fill(5001, 100, 4)
	require.NoError(t, err)
	assert.Equal(t, 4.0, tr.Quantity)
	assert.InDelta(t, 0.4, tr.Fee, 1e-9)
	assert.Positive(t, tr.ExternalTradeID)

	require.Len(t, rec.trades, 1)
	require.Len(t, rec.orders, 1)
	assert.Equal(t, contracts.StatusPartialFilled, rec.orders[0].Status)
	require.Len(t, rec.assets, 2)
	assert.Equal(t, 4.0, rec.assets[0].Delta)
	assert.InDelta(t, -400.4, rec.assets[1].Delta, 1e-9)

	_, err = sim.Fill(5001, 100, 7)
	assert.Error(t, err, "overfill")

	open, err := sim.GetOpenOrders(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	ack, err = sim.CancelOrder(ctx, contracts.Order{ExternalID: 5001})
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusPartialCancelled, ack.Status)

	open, err = sim.GetOpenOrders(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, open)

	assets, err := sim.GetAssetPositions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, int64(1), assets[0].SecurityID)
	assert.Equal(t, 4.0, assets[1].Quantity)
}

func TestSimulator_Failures(t *testing.T) {
	sim := newSim(SimulatorConfig{})
	ctx := context.Background()
	boom := errors.New("gateway down")

	sim.FailSends(boom)
	ack, err := sim.SendOrder(ctx, marketOrder(5001, contracts.SideBuy, 1))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, contracts.StatusRejected, ack.Status)

	sim.FailSends(nil)
	_, err = sim.SendOrder(ctx, marketOrder(5001, contracts.SideBuy, 1))
	require.NoError(t, err)

	sim.FailCancels(boom)
	_, err = sim.CancelOrder(ctx, contracts.Order{ExternalID: 5001})
	assert.ErrorIs(t, err, boom)

	sim.FailCancels(nil)
	_, err = sim.CancelOrder(ctx, contracts.Order{ExternalID: 9999})
	assert.ErrorIs(t, err, contracts.ErrOrderNotFound)
}

func TestSimulator_AutoFill(t *testing.T) {
	sim := newSim(SimulatorConfig{AutoFill: true})
	rec := &recorder{}
	sim.Subscribe(rec.handler())
	sim.SetPrice(7, 250)

	_, err := sim.SendOrder(context.Background(), marketOrder(5001, contracts.SideSell, 3))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return rec.tradeCount() == 1 }, time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 250.0, rec.trades[0].Price)
	assert.Equal(t, contracts.SideSell, rec.trades[0].Side)
}

func TestHub_SingleSubscription(t *testing.T) {
	var hub Hub
	first, second := &recorder{}, &recorder{}

	unsubFirst := hub.Subscribe(first.handler())
	hub.Subscribe(second.handler())
	hub.PublishTrade(contracts.Trade{ID: 1})

	assert.Empty(t, first.trades)
	assert.Len(t, second.trades, 1)

	unsubFirst() // stale, must not drop the second subscriber
	assert.True(t, hub.Subscribed())
	hub.PublishTrade(contracts.Trade{ID: 2})
	assert.Len(t, second.trades, 2)
}

func TestHub_Unsubscribe(t *testing.T) {
	var hub Hub
	rec := &recorder{}
	unsub := hub.Subscribe(rec.handler())
	unsub()

	hub.PublishOrder(contracts.Order{ID: 1})
	assert.Empty(t, rec.orders)
	assert.False(t, hub.Subscribed())
}

func TestRateLimited(t *testing.T) {
	sim := newSim(SimulatorConfig{})
	gw := NewRateLimited(sim, 1, 1)

	_, err := gw.SendOrder(context.Background(), marketOrder(5001, contracts.SideBuy, 1))
	require.NoError(t, err)

	// bucket is empty; a short deadline cannot wait a full second
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = gw.GetOpenOrders(ctx, 0)
	assert.Error(t, err)

	rec := &recorder{}
	gw.Subscribe(rec.handler())
	assert.True(t, sim.Subscribed())
}
