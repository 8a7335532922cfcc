package contracts

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// zeroTolerance is the closure threshold for securities without a minimum quantity
const zeroTolerance = 1e-9

// Security is the trading-rule metadata of one instrument
type Security struct {
	ID                int64   `yaml:"id" json:"id"`
	Code              string  `yaml:"code" json:"code"`
	Name              string  `yaml:"name" json:"name"`
	Exchange          string  `yaml:"exchange" json:"exchange"`
	BaseID            int64   `yaml:"base_id" json:"base_id"` // 0 = the security itself
	QuoteID           int64   `yaml:"quote_id" json:"quote_id"`
	MinQuantity       float64 `yaml:"min_quantity" json:"min_quantity"`
	MinNotional       float64 `yaml:"min_notional" json:"min_notional"`
	PricePrecision    int32   `yaml:"price_precision" json:"price_precision"`
	QuantityPrecision int32   `yaml:"quantity_precision" json:"quantity_precision"`
}

// BaseAssetID is the id residual quantities are tracked under
func (s *Security) BaseAssetID() int64 {
	if s.BaseID > 0 {
		return s.BaseID
	}
	return s.ID
}

// RoundPrice rounds p to the security's price precision
func (s *Security) RoundPrice(p float64) float64 {
	return round(p, s.PricePrecision)
}

// RoundQuantity rounds q to the security's quantity precision
func (s *Security) RoundQuantity(q float64) float64 {
	return round(q, s.QuantityPrecision)
}

// IsZeroQuantity is the closure predicate: |q| <= MinQuantity, or q == 0
// (within float tolerance) when no minimum is defined.
func (s *Security) IsZeroQuantity(q float64) bool {
	if s.MinQuantity > 0 {
		return math.Abs(q) <= s.MinQuantity
	}
	return math.Abs(q) <= zeroTolerance
}

// Validate checks the reference data is usable for closure detection
func (s *Security) Validate() error {
	switch {
	case s.ID <= 0:
		return fmt.Errorf("security id must be positive, got %d", s.ID)
	case s.Code == "":
		return fmt.Errorf("security %d has no code", s.ID)
	case s.MinQuantity < 0:
		return fmt.Errorf("security %s: min_quantity must not be negative", s.Code)
	case s.PricePrecision < 0 || s.QuantityPrecision < 0:
		return fmt.Errorf("security %s: precision must not be negative", s.Code)
	}
	return nil
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// WeightedAverage returns (p1*q1 + p2*q2) / (q1 + q2), or 0 when both quantities are zero.
func WeightedAverage(p1, q1, p2, q2 float64) float64 {
	total := decimal.NewFromFloat(q1).Add(decimal.NewFromFloat(q2))
	if total.IsZero() {
		return 0
	}
	sum := decimal.NewFromFloat(p1).Mul(decimal.NewFromFloat(q1)).
		Add(decimal.NewFromFloat(p2).Mul(decimal.NewFromFloat(q2)))
	return sum.DivRound(total, 12).InexactFloat64()
}
