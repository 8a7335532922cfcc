package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: 외부 협력자 인터페이스

// OrderAck is the broker's answer to a send or cancel request
type OrderAck struct {
	ExternalOrderID int64       `json:"external_order_id"`
	Status          OrderStatus `json:"status"`
	Message         string      `json:"message,omitempty"`
	Time            time.Time   `json:"time"`
}

// ExecutionHandler receives callbacks from the execution channel.
// Nil fields are skipped.
type ExecutionHandler struct {
	OnTrade       func(Trade)
	OnOrderState  func(Order)
	OnAssetChange func(AssetChange)
}

// ExecutionGateway is the broker/exchange adapter
type ExecutionGateway interface {
	SendOrder(ctx context.Context, order Order) (OrderAck, error)
	CancelOrder(ctx context.Context, order Order) (OrderAck, error)
	GetOpenOrders(ctx context.Context, securityID int64) ([]Order, error) // 0 = all securities
	GetAssetPositions(ctx context.Context, accountID int64) ([]Asset, error)

	// Subscribe replaces any previous subscription; call the returned func to stop.
	Subscribe(handler ExecutionHandler) (unsubscribe func())
}

// SecurityCarrier is any entity that references a security by id and/or code
type SecurityCarrier interface {
	SecurityRef() (id int64, code string)
	SetSecurityRef(id int64, code string)
}

// SecurityReference resolves trading-rule metadata
type SecurityReference interface {
	Resolve(ctx context.Context, id int64) (*Security, error)
	ResolveCode(ctx context.Context, code string) (*Security, error)
	// Fix back-fills the missing half of a carrier's security reference.
	Fix(ctx context.Context, c SecurityCarrier) (*Security, error)
}

// Persister is best-effort durability; failures are reported through logs, not returned.
type Persister interface {
	SaveOrders(orders ...Order)
	SaveTrades(trades ...Trade)
	SavePositions(positions ...Position)
	SaveAssets(assets ...Asset)
	DeleteAssets(assets ...Asset)
	SaveResiduals(residuals ...Residual)
	DeleteResiduals(residuals ...Residual)
}
