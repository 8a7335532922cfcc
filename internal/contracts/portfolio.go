package contracts

import "time"

// PortfolioSnapshot is a read-only copy of one account's open positions and assets
type PortfolioSnapshot struct {
	SessionID string     `json:"session_id"`
	AccountID int64      `json:"account_id"`
	Positions []Position `json:"positions"`
	Assets    []Asset    `json:"assets"`
	Residuals []Residual `json:"residuals"`
	TakenAt   time.Time  `json:"taken_at"`
}

// QuantityBySecurity sums open position quantity per security
func (s *PortfolioSnapshot) QuantityBySecurity() map[int64]float64 {
	out := make(map[int64]float64, len(s.Positions))
	for _, p := range s.Positions {
		out[p.SecurityID] += p.Quantity
	}
	return out
}

// PositionDiff is the change of one security's exposure since the initial snapshot
type PositionDiff struct {
	SecurityID      int64   `json:"security_id"`
	SecurityCode    string  `json:"security_code"`
	InitialQuantity float64 `json:"initial_quantity"`
	CurrentQuantity float64 `json:"current_quantity"`
	Delta           float64 `json:"delta"`
}

// PositionEventType classifies a PositionEvent
type PositionEventType string

const (
	PositionOpened  PositionEventType = "opened"
	PositionUpdated PositionEventType = "updated"
	PositionClosed  PositionEventType = "closed"
)

// PositionEvent is published after the reconciler changes a position
type PositionEvent struct {
	Type     PositionEventType `json:"type"`
	Position Position          `json:"position"`
	TradeID  int64             `json:"trade_id"`
}
