package contracts

import (
	"math"
	"time"
)

// Asset is a non-directional balance held by an account
type Asset struct {
	ID             int64     `json:"id"`
	AccountID      int64     `json:"account_id"`
	SecurityID     int64     `json:"security_id"`
	SecurityCode   string    `json:"security_code"`
	Quantity       float64   `json:"quantity"`
	LockedQuantity float64   `json:"locked_quantity"`
	CreateTime     time.Time `json:"create_time"`
	UpdateTime     time.Time `json:"update_time"`
}

// IsEmpty applies the closure predicate to the free quantity
func (a *Asset) IsEmpty(sec *Security) bool {
	return sec.IsZeroQuantity(a.Quantity)
}

// IsCleared reports a balance with nothing free or locked left.
// A dust balance below the minimum quantity is still held.
func (a *Asset) IsCleared() bool {
	return math.Abs(a.Quantity) <= zeroTolerance && math.Abs(a.LockedQuantity) <= zeroTolerance
}

// Apply adds a balance delta
func (a *Asset) Apply(c AssetChange) {
	a.Quantity += c.Delta
	a.LockedQuantity += c.LockedDelta
	if c.Time.After(a.UpdateTime) {
		a.UpdateTime = c.Time
	}
}

// SecurityRef implements SecurityCarrier
func (a *Asset) SecurityRef() (int64, string) { return a.SecurityID, a.SecurityCode }

// SetSecurityRef implements SecurityCarrier
func (a *Asset) SetSecurityRef(id int64, code string) { a.SecurityID, a.SecurityCode = id, code }

// AssetChange is a balance delta pushed by the execution channel
type AssetChange struct {
	AccountID    int64     `json:"account_id"`
	SecurityID   int64     `json:"security_id"`
	SecurityCode string    `json:"security_code"`
	Delta        float64   `json:"delta"`
	LockedDelta  float64   `json:"locked_delta"`
	Time         time.Time `json:"time"`
}

// SecurityRef implements SecurityCarrier
func (c *AssetChange) SecurityRef() (int64, string) { return c.SecurityID, c.SecurityCode }

// SetSecurityRef implements SecurityCarrier
func (c *AssetChange) SetSecurityRef(id int64, code string) { c.SecurityID, c.SecurityCode = id, code }
