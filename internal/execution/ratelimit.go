package execution

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/wonny/tradebook/internal/contracts"
)

// RateLimited throttles every request to the wrapped gateway.
// Callbacks are not throttled.
type RateLimited struct {
	next    contracts.ExecutionGateway
	limiter *rate.Limiter
}

var _ contracts.ExecutionGateway = (*RateLimited)(nil)

// NewRateLimited wraps next with a token bucket of rps requests per second
func NewRateLimited(next contracts.ExecutionGateway, rps float64, burst int) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// SendOrder implements contracts.ExecutionGateway
func (r *RateLimited) SendOrder(ctx context.Context, order contracts.Order) (contracts.OrderAck, error) {
	if err := r.wait(ctx); err != nil {
		return contracts.OrderAck{}, err
	}
	return r.next.SendOrder(ctx, order)
}

// CancelOrder implements contracts.ExecutionGateway
func (r *RateLimited) CancelOrder(ctx context.Context, order contracts.Order) (contracts.OrderAck, error) {
	if err := r.wait(ctx); err != nil {
		return contracts.OrderAck{}, err
	}
	return r.next.CancelOrder(ctx, order)
}

// GetOpenOrders implements contracts.ExecutionGateway
func (r *RateLimited) GetOpenOrders(ctx context.Context, securityID int64) ([]contracts.Order, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.GetOpenOrders(ctx, securityID)
}

// GetAssetPositions implements contracts.ExecutionGateway
func (r *RateLimited) GetAssetPositions(ctx context.Context, accountID int64) ([]contracts.Asset, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.GetAssetPositions(ctx, accountID)
}

// Subscribe implements contracts.ExecutionGateway
func (r *RateLimited) Subscribe(handler contracts.ExecutionHandler) func() {
	return r.next.Subscribe(handler)
}
