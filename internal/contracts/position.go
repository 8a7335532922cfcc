package contracts

import (
	"fmt"
	"math"
	"time"
)

// Leg is one direction (long or short) of a position, averaged before netting
type Leg struct {
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Notional float64 `json:"notional"`
}

func (l *Leg) add(price, qty float64) {
	l.Price = WeightedAverage(l.Price, l.Quantity, price, qty)
	l.Quantity += qty
	l.Notional = l.Price * l.Quantity
}

func (l *Leg) remove(qty float64) {
	l.Quantity -= qty
	l.Notional = l.Price * l.Quantity
}

// Position is the aggregated exposure to one security for one account.
//
// Quantity is signed (long - short). Notional is the net cost basis
// (long notional - short notional): while open it equals Price * Quantity,
// once closed its negation is the realized P&L.
type Position struct {
	ID           int64   `json:"id"`
	AccountID    int64   `json:"account_id"`
	SecurityID   int64   `json:"security_id"`
	SecurityCode string  `json:"security_code"`
	Side         Side    `json:"side"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price"`
	Notional     float64 `json:"notional"`
	Long         Leg     `json:"long"`
	Short        Leg     `json:"short"`

	StartOrderID    int64   `json:"start_order_id"`
	EndOrderID      int64   `json:"end_order_id"`
	StartTradeID    int64   `json:"start_trade_id"`
	EndTradeID      int64   `json:"end_trade_id"`
	TradeCount      int     `json:"trade_count"`
	AccumulatedFee  float64 `json:"accumulated_fee"`
	CarriedQuantity float64 `json:"carried_quantity"` // residual seeded from a previous position

	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
	CloseTime  time.Time `json:"close_time"` // zero until closed
}

// NewPosition creates an empty open position for account/security
func NewPosition(id, accountID int64, sec *Security, at time.Time) *Position {
	return &Position{
		ID:           id,
		AccountID:    accountID,
		SecurityID:   sec.ID,
		SecurityCode: sec.Code,
		Side:         SideHold,
		CreateTime:   at,
		UpdateTime:   at,
	}
}

// IsArchived reports whether the position was closed and must not change again
func (p *Position) IsArchived() bool {
	return !p.CloseTime.IsZero()
}

// IsFlat applies the closure predicate to the current quantity
func (p *Position) IsFlat(sec *Security) bool {
	return sec.IsZeroQuantity(p.Quantity)
}

// RealizedPnL is the profit of a closed position, 0 while open
func (p *Position) RealizedPnL() float64 {
	if !p.IsArchived() {
		return 0
	}
	return -p.Notional
}

// UnrealizedPnL marks an open position to price
func (p *Position) UnrealizedPnL(price float64) float64 {
	if p.IsArchived() {
		return 0
	}
	return price*p.Quantity - p.Notional
}

// SecurityRef implements SecurityCarrier
func (p *Position) SecurityRef() (int64, string) { return p.SecurityID, p.SecurityCode }

// SetSecurityRef implements SecurityCarrier
func (p *Position) SetSecurityRef(id int64, code string) { p.SecurityID, p.SecurityCode = id, code }

// Apply adds trade t to the position and reports whether it closed it.
// A closed position is immutable; a mismatched trade is a caller bug and is rejected.
func (p *Position) Apply(t *Trade, sec *Security) (closed bool, err error) {
	if p.IsArchived() {
		return false, fmt.Errorf("%w: position %d", ErrPositionClosed, p.ID)
	}
	if t.SecurityID != p.SecurityID || t.AccountID != p.AccountID {
		return false, fmt.Errorf("%w: trade %d (account %d, security %d) vs position %d (account %d, security %d)",
			ErrPositionMismatch, t.ID, t.AccountID, t.SecurityID, p.ID, p.AccountID, p.SecurityID)
	}
	if sec.ID != p.SecurityID {
		return false, fmt.Errorf("%w: security %d vs position security %d", ErrPositionMismatch, sec.ID, p.SecurityID)
	}
	if err := t.ValidateExecution(); err != nil {
		return false, err
	}

	if p.TradeCount == 0 {
		p.StartOrderID = t.OrderID
		p.StartTradeID = t.ID
		if p.Side == SideHold {
			p.Side = t.Side
		}
	}

	if t.Side == SideBuy {
		p.Long.add(t.Price, t.Quantity)
	} else {
		p.Short.add(t.Price, t.Quantity)
	}
	p.recompute()

	p.UpdateTime = t.Time
	p.TradeCount++
	p.AccumulatedFee += t.Fee
	p.EndOrderID = t.OrderID
	p.EndTradeID = t.ID

	if p.IsFlat(sec) {
		p.CloseTime = t.Time
		if p.CloseTime.IsZero() {
			p.CloseTime = time.Now()
		}
		return true, nil
	}
	return false, nil
}

// SplitClosing divides t at flatness when it would carry the position through
// zero. It returns the part that closes the position and the signed quantity
// beyond flat (0 when t does not cross).
func (p *Position) SplitClosing(t Trade) (Trade, float64) {
	if p.IsArchived() || p.Quantity == 0 {
		return t, 0
	}
	opposite := (p.Quantity > 0 && t.Side == SideSell) || (p.Quantity < 0 && t.Side == SideBuy)
	held := math.Abs(p.Quantity)
	over := t.Quantity - held
	if !opposite || over <= zeroTolerance {
		return t, 0
	}

	closing := t
	closing.Quantity = held
	if t.Side == SideSell {
		return closing, -over
	}
	return closing, over
}

// SeedResidual carries a residual quantity left by a previous position into this one
func (p *Position) SeedResidual(r Residual) {
	if r.Quantity > 0 {
		p.Long.add(r.Price, r.Quantity)
		p.Side = SideBuy
	} else if r.Quantity < 0 {
		p.Short.add(r.Price, -r.Quantity)
		p.Side = SideSell
	}
	p.CarriedQuantity += r.Quantity
	p.recompute()
}

// DetachResidual moves the leftover quantity of a closed position into a Residual
// keyed by baseSecurityID. The position is left exactly flat, so -Notional stays
// the realized P&L and the leftover is carried at its own leg's price.
func (p *Position) DetachResidual(baseSecurityID int64) Residual {
	r := Residual{
		AccountID:        p.AccountID,
		BaseSecurityID:   baseSecurityID,
		SecurityID:       p.SecurityID,
		Quantity:         p.Quantity,
		SourcePositionID: p.ID,
		Time:             p.CloseTime,
	}

	switch {
	case p.Quantity > 0:
		r.Price = p.Long.Price
		p.Long.remove(p.Quantity)
	case p.Quantity < 0:
		r.Price = p.Short.Price
		p.Short.remove(-p.Quantity)
	default:
		return r
	}
	p.recompute()
	p.Quantity = 0
	return r
}

func (p *Position) recompute() {
	p.Quantity = p.Long.Quantity - p.Short.Quantity
	p.Notional = p.Long.Notional - p.Short.Notional
	if p.Quantity != 0 {
		p.Price = p.Notional / p.Quantity
	}
}

// OvershootResidual records the quantity a closing trade carried past flat.
// It is priced at the trade price and stamped with the close time.
func (p *Position) OvershootResidual(baseSecurityID int64, quantity, price float64) Residual {
	return Residual{
		AccountID:        p.AccountID,
		BaseSecurityID:   baseSecurityID,
		SecurityID:       p.SecurityID,
		Quantity:         quantity,
		Price:            price,
		SourcePositionID: p.ID,
		Time:             p.CloseTime,
	}
}

// Residual is quantity left over after a closing trade overshot flatness.
// It is keyed by (AccountID, BaseSecurityID) and seeds the next position.
type Residual struct {
	AccountID        int64     `json:"account_id"`
	BaseSecurityID   int64     `json:"base_security_id"`
	SecurityID       int64     `json:"security_id"`
	Quantity         float64   `json:"quantity"` // signed
	Price            float64   `json:"price"`
	SourcePositionID int64     `json:"source_position_id"`
	Time             time.Time `json:"time"`
}
