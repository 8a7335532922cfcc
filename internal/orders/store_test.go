package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/internal/execution"
	"github.com/wonny/tradebook/internal/persistence"
	"github.com/wonny/tradebook/pkg/idgen"
	"github.com/wonny/tradebook/pkg/logger"
)

func newTestStore(t *testing.T) (*Store, *execution.Simulator, *persistence.Memory) {
	t.Helper()
	ids := idgen.New()
	sim := execution.NewSimulator(execution.SimulatorConfig{}, ids, logger.Nop())
	mem := persistence.NewMemory()
	return NewStore(sim, mem, ids, logger.Nop()), sim, mem
}

func buyOrder() contracts.Order {
	return contracts.Order{
		AccountID:      1,
		SecurityID:     7,
		SecurityCode:   "005930",
		Side:           contracts.SideBuy,
		Type:           contracts.OrderTypeLimit,
		RequestedPrice: 70000,
		LimitPrice:     70000,
		Quantity:       10,
	}
}

func TestCreate(t *testing.T) {
	s, _, mem := newTestStore(t)

	o, err := s.Create(buyOrder())
	require.NoError(t, err)
	assert.Positive(t, o.ID)
	assert.Equal(t, contracts.StatusPlacing, o.Status)
	assert.Equal(t, 70000.0, o.Price)
	assert.Zero(t, o.ExternalID)

	_, persisted := mem.Order(o.ID)
	assert.False(t, persisted, "create does no I/O")

	got, ok := s.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, o, got)

	bad := buyOrder()
	bad.Quantity = 0
	_, err = s.Create(bad)
	assert.ErrorIs(t, err, contracts.ErrInvalidOrder)
}

func TestSend(t *testing.T) {
	s, _, mem := newTestStore(t)
	ctx := context.Background()

	o, err := s.Create(buyOrder())
	require.NoError(t, err)

	sent, err := s.Send(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusLive, sent.Status)
	assert.Positive(t, sent.ExternalID)
	assert.False(t, sent.ExternalCreateTime.IsZero())

	byExt, ok := s.GetByExternalID(sent.ExternalID)
	require.True(t, ok)
	assert.Equal(t, o.ID, byExt.ID)

	saved, ok := mem.Order(o.ID)
	require.True(t, ok)
	assert.Equal(t, contracts.StatusLive, saved.Status)

	_, err = s.Send(ctx, o.ID)
	assert.ErrorIs(t, err, contracts.ErrIllegalTransition, "external id is assigned once")

	_, err = s.Send(ctx, 12345)
	assert.ErrorIs(t, err, contracts.ErrOrderNotFound)
}

func TestSend_Failure(t *testing.T) {
	s, sim, _ := newTestStore(t)
	sim.FailSends(errors.New("connection reset"))

	o, err := s.Create(buyOrder())
	require.NoError(t, err)

	failed, err := s.Send(context.Background(), o.ID)
	assert.ErrorIs(t, err, contracts.ErrSendOrderFailed)
	assert.Equal(t, contracts.ResultSendOrderFailed, contracts.ResultOf(err))
	assert.Equal(t, contracts.StatusRejected, failed.Status)
	assert.True(t, failed.IsClosed())
	assert.Empty(t, s.Open())
}

func TestCancel(t *testing.T) {
	s, sim, mem := newTestStore(t)
	ctx := context.Background()

	placing, err := s.Create(buyOrder())
	require.NoError(t, err)
	cancelled, err := s.Cancel(ctx, placing.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusCancelled, cancelled.Status)

	_, err = s.Cancel(ctx, placing.ID)
	assert.ErrorIs(t, err, contracts.ErrNoop)

	live, err := s.Create(buyOrder())
	require.NoError(t, err)
	live, err = s.Send(ctx, live.ID)
	require.NoError(t, err)

	_, err = sim.Fill(live.ExternalID, 70000, 4)
	require.NoError(t, err)
	_, err = s.Mutate(live.ID, func(o *contracts.Order) error {
		o.FilledQuantity = 4
		o.Status = contracts.StatusPartialFilled
		return nil
	})
	require.NoError(t, err)

	out, err := s.Cancel(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusPartialCancelled, out.Status)

	saved, _ := mem.Order(live.ID)
	assert.Equal(t, contracts.StatusPartialCancelled, saved.Status)
}

func TestCancel_FailureRestoresStatus(t *testing.T) {
	s, sim, _ := newTestStore(t)
	ctx := context.Background()

	o, err := s.Create(buyOrder())
	require.NoError(t, err)
	o, err = s.Send(ctx, o.ID)
	require.NoError(t, err)

	sim.FailCancels(errors.New("timeout"))
	out, err := s.Cancel(ctx, o.ID)
	assert.ErrorIs(t, err, contracts.ErrCancelOrderFailed)
	assert.Equal(t, contracts.StatusLive, out.Status)
}

func TestUpdate_TerminalNeverReopens(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	o, err := s.Create(buyOrder())
	require.NoError(t, err)
	o, err = s.Send(ctx, o.ID)
	require.NoError(t, err)

	base := time.Now().Add(time.Minute)
	state := func(status contracts.OrderStatus, at time.Time) contracts.Order {
		return contracts.Order{ExternalID: o.ExternalID, Status: status, ExternalUpdateTime: at}
	}

	assert.Equal(t, 1, s.Update(state(contracts.StatusFilled, base)))

	sequence := []contracts.OrderStatus{
		contracts.StatusLive, contracts.StatusPartialFilled, contracts.StatusSubmitting,
		contracts.StatusCancelled, contracts.StatusPlacing,
	}
	for i, st := range sequence {
		s.Update(state(st, base.Add(time.Duration(i+1)*time.Second)))
		got, _ := s.Get(o.ID)
		assert.Equal(t, contracts.StatusFilled, got.Status)
	}
}

func TestUpdate_StaleIgnored(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	o, err := s.Create(buyOrder())
	require.NoError(t, err)
	o, err = s.Send(ctx, o.ID)
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	assert.Equal(t, 1, s.Update(contracts.Order{ExternalID: o.ExternalID, Status: contracts.StatusPartialFilled, ExternalUpdateTime: later}))
	assert.Equal(t, 0, s.Update(contracts.Order{ExternalID: o.ExternalID, Status: contracts.StatusLive, ExternalUpdateTime: later.Add(-time.Second)}))

	got, _ := s.Get(o.ID)
	assert.Equal(t, contracts.StatusPartialFilled, got.Status)

	// same timestamp is idempotent
	assert.Equal(t, 1, s.Update(contracts.Order{ExternalID: o.ExternalID, Status: contracts.StatusPartialFilled, ExternalUpdateTime: later}))
}

func TestUpdate_AdoptsUnknown(t *testing.T) {
	s, _, mem := newTestStore(t)

	n := s.Update(contracts.Order{
		ExternalID: 777, AccountID: 1, SecurityID: 7, Side: contracts.SideSell,
		Quantity: 3, Status: contracts.StatusLive,
	})
	assert.Equal(t, 1, n)

	o, ok := s.GetByExternalID(777)
	require.True(t, ok)
	assert.Positive(t, o.ID)
	_, saved := mem.Order(o.ID)
	assert.True(t, saved)

	assert.Equal(t, 0, s.Update(contracts.Order{ID: 5}), "no external id")
	assert.Len(t, s.Open(), 1)
}

func TestConcurrentMutate(t *testing.T) {
	s, _, _ := newTestStore(t)
	o, err := s.Create(buyOrder())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Mutate(o.ID, func(cur *contracts.Order) error {
				cur.FilledQuantity += 0.1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, _ := s.Get(o.ID)
	assert.InDelta(t, 5.0, got.FilledQuantity, 1e-9)
}

func TestLoadAndList(t *testing.T) {
	s, _, _ := newTestStore(t)
	t0 := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)

	s.Load([]contracts.Order{
		{ID: 2, ExternalID: 20, Status: contracts.StatusFilled, CreateTime: t0.Add(time.Second)},
		{ID: 1, ExternalID: 10, Status: contracts.StatusLive, CreateTime: t0},
	})

	all := s.List()
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)

	open := s.Open()
	require.Len(t, open, 1)
	assert.Equal(t, int64(10), open[0].ExternalID)
}
