package contracts

import (
	"fmt"
	"time"
)

// Trade is an immutable execution fact: one maker/taker match.
// OrderID, SecurityID/Code, AccountID and FeeAssetID are back-filled once at ingestion.
type Trade struct {
	ID              int64     `json:"id"`
	ExternalTradeID int64     `json:"external_trade_id"`
	ExternalOrderID int64     `json:"external_order_id"`
	OrderID         int64     `json:"order_id"`
	AccountID       int64     `json:"account_id"`
	SecurityID      int64     `json:"security_id"`
	SecurityCode    string    `json:"security_code"`
	PositionID      int64     `json:"position_id"`
	Side            Side      `json:"side"`
	Price           float64   `json:"price"`
	Quantity        float64   `json:"quantity"`
	Fee             float64   `json:"fee"`
	FeeAssetID      int64     `json:"fee_asset_id"`
	FeeAssetCode    string    `json:"fee_asset_code"`
	BrokerID        int64     `json:"broker_id"`
	IsCoarse        bool      `json:"is_coarse"`
	IsOperational   bool      `json:"is_operational"`
	Time            time.Time `json:"time"`
}

// Notional is price * quantity of the execution
func (t *Trade) Notional() float64 {
	return t.Price * t.Quantity
}

// SignedQuantity is +quantity for buys and -quantity for sells
func (t *Trade) SignedQuantity() float64 {
	return t.Side.Sign() * t.Quantity
}

// SecurityRef implements SecurityCarrier
func (t *Trade) SecurityRef() (int64, string) { return t.SecurityID, t.SecurityCode }

// SetSecurityRef implements SecurityCarrier
func (t *Trade) SetSecurityRef(id int64, code string) { t.SecurityID, t.SecurityCode = id, code }

// ValidateExternal checks the external identifiers required for ingestion
func (t *Trade) ValidateExternal() error {
	if t.ExternalTradeID <= 0 {
		return fmt.Errorf("%w: external trade id %d", ErrInvalidTrade, t.ExternalTradeID)
	}
	if t.ExternalOrderID <= 0 {
		return fmt.Errorf("%w: external order id %d", ErrInvalidTrade, t.ExternalOrderID)
	}
	return nil
}

// ValidateExecution checks the fields a position needs to apply the trade
func (t *Trade) ValidateExecution() error {
	if !t.Side.Valid() {
		return fmt.Errorf("%w: side %q", ErrInvalidTrade, t.Side)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("%w: quantity %v", ErrInvalidTrade, t.Quantity)
	}
	if t.Price < 0 {
		return fmt.Errorf("%w: price %v", ErrInvalidTrade, t.Price)
	}
	return nil
}
