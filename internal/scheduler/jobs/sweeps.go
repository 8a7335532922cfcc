package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/tradebook/pkg/logger"
)

// OrderSyncer pulls the broker's open orders into the Order Store
type OrderSyncer interface {
	SyncOrders(ctx context.Context) (int, error)
}

// AssetSyncer replaces local balances with the broker's
type AssetSyncer interface {
	SyncAssets(ctx context.Context) (int, error)
}

// OrderSweepJob reconciles order states the push channel may have missed
// ⭐ SSOT: 주문 상태 보정 스케줄은 이 Job에서만
type OrderSweepJob struct {
	syncer   OrderSyncer
	schedule string
	logger   *logger.Logger
}

// NewOrderSweepJob creates a new order sweep job
func NewOrderSweepJob(syncer OrderSyncer, schedule string, log *logger.Logger) *OrderSweepJob {
	return &OrderSweepJob{
		syncer:   syncer,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *OrderSweepJob) Name() string {
	return "order_sweep"
}

// Schedule returns the cron schedule
func (j *OrderSweepJob) Schedule() string {
	return j.schedule
}

// Run executes the order sweep
func (j *OrderSweepJob) Run(ctx context.Context) (int, error) {
	n, err := j.syncer.SyncOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync orders: %w", err)
	}
	if n > 0 {
		j.logger.WithField("updated", n).Info("Order sweep applied broker states")
	}
	return n, nil
}

// AssetSweepJob refreshes balances from the broker
type AssetSweepJob struct {
	syncer   AssetSyncer
	schedule string
	logger   *logger.Logger
}

// NewAssetSweepJob creates a new asset sweep job
func NewAssetSweepJob(syncer AssetSyncer, schedule string, log *logger.Logger) *AssetSweepJob {
	return &AssetSweepJob{
		syncer:   syncer,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *AssetSweepJob) Name() string {
	return "asset_sweep"
}

// Schedule returns the cron schedule
func (j *AssetSweepJob) Schedule() string {
	return j.schedule
}

// Run executes the asset sweep
func (j *AssetSweepJob) Run(ctx context.Context) (int, error) {
	n, err := j.syncer.SyncAssets(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync assets: %w", err)
	}
	j.logger.WithField("changed", n).Debug("Asset sweep completed")
	return n, nil
}
