package contracts

import (
	"cmp"
	"time"
)

// CompareOrders orders by (CreateTime, ID)
func CompareOrders(a, b Order) int {
	if c := a.CreateTime.Compare(b.CreateTime); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// CompareTrades orders by (Time, ExternalTradeID, ID)
func CompareTrades(a, b Trade) int {
	if c := a.Time.Compare(b.Time); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ExternalTradeID, b.ExternalTradeID); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// ComparePositions orders by (AccountID, SecurityID, CreateTime, ID)
func ComparePositions(a, b Position) int {
	if c := cmp.Compare(a.AccountID, b.AccountID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.SecurityID, b.SecurityID); c != 0 {
		return c
	}
	if c := a.CreateTime.Compare(b.CreateTime); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// CompareAssets orders by (AccountID, SecurityID)
func CompareAssets(a, b Asset) int {
	if c := cmp.Compare(a.AccountID, b.AccountID); c != 0 {
		return c
	}
	return cmp.Compare(a.SecurityID, b.SecurityID)
}

// InRange reports from <= t < to; a zero bound is open.
func InRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
