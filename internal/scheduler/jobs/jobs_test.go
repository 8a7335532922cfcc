package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/tradebook/pkg/logger"
)

type fakeSyncer struct {
	orders, assets, parked int
	err                    error
	flushed                bool
}

func (f *fakeSyncer) SyncOrders(context.Context) (int, error) { return f.orders, f.err }
func (f *fakeSyncer) SyncAssets(context.Context) (int, error) { return f.assets, f.err }
func (f *fakeSyncer) RetryParked(context.Context) int         { return f.parked }
func (f *fakeSyncer) Flush(context.Context) error {
	f.flushed = true
	return f.err
}

func TestOrderSweepJob(t *testing.T) {
	s := &fakeSyncer{orders: 3}
	job := NewOrderSweepJob(s, "*/30 * * * * *", logger.Nop())

	assert.Equal(t, "order_sweep", job.Name())
	assert.Equal(t, "*/30 * * * * *", job.Schedule())
	n, err := job.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	s.err = errors.New("broker down")
	n, err = job.Run(context.Background())
	assert.ErrorIs(t, err, s.err)
	assert.Zero(t, n)
}

func TestAssetSweepJob(t *testing.T) {
	s := &fakeSyncer{assets: 1}
	job := NewAssetSweepJob(s, "0 * * * * *", logger.Nop())

	assert.Equal(t, "asset_sweep", job.Name())
	n, err := job.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	s.err = errors.New("broker down")
	_, err = job.Run(context.Background())
	assert.Error(t, err)
}

func TestRetryParkedJob(t *testing.T) {
	job := NewRetryParkedJob(&fakeSyncer{parked: 2}, "*/10 * * * * *", logger.Nop())
	assert.Equal(t, "retry_parked", job.Name())
	n, err := job.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFlushJob(t *testing.T) {
	s := &fakeSyncer{}
	job := NewFlushJob(s, logger.Nop())
	n, err := job.Run(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, s.flushed)
}
