package trades

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/internal/orders"
	"github.com/wonny/tradebook/pkg/idgen"
	"github.com/wonny/tradebook/pkg/logger"
)

// Sink receives trades that may affect positions and reports the position they landed in
type Sink interface {
	Reconcile(ctx context.Context, t contracts.Trade) (positionID int64, err error)
}

// Store ingests trade notifications, links them to orders and rolls fills back
// into the Order Store.
//
// Lock order is fixed: order key lock (orders.Store.Mutate), then s.mu.
// Both are released before the trade is forwarded to the Sink.
// ⭐ SSOT: 체결 수신/중복제거는 여기서만
type Store struct {
	mu         sync.RWMutex
	byID       map[int64]contracts.Trade
	byExternal map[int64]int64
	byOrder    map[int64][]int64

	orders     *orders.Store
	securities contracts.SecurityReference
	fees       *FeeAssets
	sink       Sink
	persister  contracts.Persister
	ids        *idgen.Generator
	logger     *logger.Logger
}

// NewStore creates an empty trade store. sink may be set later with SetSink.
func NewStore(orderStore *orders.Store, securities contracts.SecurityReference, persister contracts.Persister, ids *idgen.Generator, log *logger.Logger) *Store {
	return &Store{
		byID:       make(map[int64]contracts.Trade),
		byExternal: make(map[int64]int64),
		byOrder:    make(map[int64][]int64),
		orders:     orderStore,
		securities: securities,
		fees:       NewFeeAssets(securities),
		persister:  persister,
		ids:        ids,
		logger:     log,
	}
}

// SetSink wires the reconciler
func (s *Store) SetSink(sink Sink) {
	s.sink = sink
}

// FeeAssets exposes the fee asset mapping
func (s *Store) FeeAssets() *FeeAssets {
	return s.fees
}

// Ingest processes one trade notification. Invalid and orphan trades are
// reported and dropped; a redelivered trade updates the stored copy in place
// and is not forwarded again.
func (s *Store) Ingest(ctx context.Context, t contracts.Trade) (contracts.Trade, error) {
	log := s.logger.WithFields(map[string]interface{}{
		"external_trade_id": t.ExternalTradeID,
		"external_order_id": t.ExternalOrderID,
	})

	if err := t.ValidateExternal(); err != nil {
		log.WithError(err).Warn("Invalid trade dropped")
		return t, err
	}

	order, ok := s.orders.GetByExternalID(t.ExternalOrderID)
	if !ok {
		log.Warn("Orphan trade dropped")
		return t, fmt.Errorf("%w: external order id %d", contracts.ErrOrphanTrade, t.ExternalOrderID)
	}

	t.OrderID = order.ID
	t.AccountID = order.AccountID
	t.SecurityID = order.SecurityID
	t.SecurityCode = order.SecurityCode
	t.IsOperational = order.IsOperational
	t.IsCoarse = false
	if t.BrokerID == 0 {
		t.BrokerID = order.BrokerID
	}
	if t.Time.IsZero() {
		t.Time = time.Now()
	}

	sec, err := s.securities.Fix(ctx, &t)
	if err != nil {
		// roll-up still happens, unrounded; the reconciler parks the trade
		log.WithError(err).Warn("Security unresolved for trade")
	}
	s.fees.Resolve(ctx, &t)

	var duplicate bool
	_, err = s.orders.Mutate(order.ID, func(o *contracts.Order) error {
		s.mu.Lock()
		duplicate = s.storeLocked(&t)
		price, filled := s.rollupLocked(o.ID)
		s.mu.Unlock()

		s.applyRollup(o, sec, price, filled)
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Order roll-up failed")
		return t, err
	}

	if duplicate {
		log.WithField("trade_id", t.ID).Debug("Duplicate trade updated in place")
		s.persister.SaveTrades(t)
		return t, nil
	}

	if !t.IsOperational && s.sink != nil {
		positionID, err := s.sink.Reconcile(ctx, t)
		if err != nil {
			log.WithField("trade_id", t.ID).WithError(err).Warn("Trade not applied to portfolio")
		}
		if positionID > 0 {
			t.PositionID = positionID
			s.setPosition(t.ID, positionID)
		}
	}

	s.persister.SaveTrades(t)
	return t, nil
}

// storeLocked inserts t or updates the copy with the same external id.
// It reports whether t was already known.
func (s *Store) storeLocked(t *contracts.Trade) bool {
	if id, seen := s.byExternal[t.ExternalTradeID]; seen {
		prev := s.byID[id]
		t.ID = prev.ID
		t.PositionID = prev.PositionID
		s.byID[id] = *t
		return true
	}

	t.ID = s.ids.Next(idgen.KindTrade)
	s.byID[t.ID] = *t
	s.byExternal[t.ExternalTradeID] = t.ID
	s.byOrder[t.OrderID] = append(s.byOrder[t.OrderID], t.ID)
	return false
}

// rollupLocked returns the quantity-weighted average price and summed quantity of an order's trades
func (s *Store) rollupLocked(orderID int64) (price, filled float64) {
	notional, qty := decimal.Zero, decimal.Zero
	for _, id := range s.byOrder[orderID] {
		t := s.byID[id]
		q := decimal.NewFromFloat(t.Quantity)
		notional = notional.Add(decimal.NewFromFloat(t.Price).Mul(q))
		qty = qty.Add(q)
	}
	if qty.IsZero() {
		return 0, 0
	}
	return notional.DivRound(qty, 12).InexactFloat64(), qty.InexactFloat64()
}

func (s *Store) applyRollup(o *contracts.Order, sec *contracts.Security, price, filled float64) {
	if sec != nil {
		price = sec.RoundPrice(price)
	}
	o.Price = price

	if filled > o.Quantity {
		s.logger.WithFields(map[string]interface{}{
			"order_id": o.ID,
			"quantity": o.Quantity,
			"filled":   filled,
		}).Error("Trades exceed order quantity, capping filled quantity")
		filled = o.Quantity
	}
	o.FilledQuantity = filled

	next := o.Status
	switch {
	case filled >= o.Quantity:
		next = contracts.StatusFilled
	case filled > 0 && (o.Status == contracts.StatusLive || o.Status == contracts.StatusSubmitting):
		next = contracts.StatusPartialFilled
	}
	if contracts.CanTransition(o.Status, next) {
		o.Status = next
	}
	o.UpdateTime = time.Now()
}

func (s *Store) setPosition(tradeID, positionID int64) (contracts.Trade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[tradeID]
	if ok {
		t.PositionID = positionID
		s.byID[tradeID] = t
	}
	return t, ok
}

// SetPositionID links a stored trade to the position it was applied to later,
// e.g. after sitting in the reconciler's parked queue.
func (s *Store) SetPositionID(tradeID, positionID int64) bool {
	t, ok := s.setPosition(tradeID, positionID)
	if ok {
		s.persister.SaveTrades(t)
	}
	return ok
}

// Load indexes persisted trades. Nothing is forwarded or re-persisted.
func (s *Store) Load(trades []contracts.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range trades {
		if _, seen := s.byExternal[t.ExternalTradeID]; seen {
			continue
		}
		s.byID[t.ID] = t
		s.byExternal[t.ExternalTradeID] = t.ID
		s.byOrder[t.OrderID] = append(s.byOrder[t.OrderID], t.ID)
		s.ids.Observe(idgen.KindTrade, t.ID)
		s.fees.learn(t.FeeAssetID, t.FeeAssetCode)
	}
}

// Get returns a trade by internal id
func (s *Store) Get(id int64) (contracts.Trade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	return t, ok
}

// GetByExternalID returns a trade by its dedup key
func (s *Store) GetByExternalID(externalTradeID int64) (contracts.Trade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalTradeID]
	if !ok {
		return contracts.Trade{}, false
	}
	return s.byID[id], true
}

// GetByOrder returns an order's trades in execution order
func (s *Store) GetByOrder(orderID int64) []contracts.Trade {
	s.mu.RLock()
	ids := s.byOrder[orderID]
	out := make([]contracts.Trade, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	s.mu.RUnlock()

	slices.SortFunc(out, contracts.CompareTrades)
	return out
}

// Find returns trades of a security within [from, to); 0 matches every security
// and zero times leave the range open.
func (s *Store) Find(securityID int64, from, to time.Time) []contracts.Trade {
	s.mu.RLock()
	out := make([]contracts.Trade, 0)
	for _, t := range s.byID {
		if securityID > 0 && t.SecurityID != securityID {
			continue
		}
		if contracts.InRange(t.Time, from, to) {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, contracts.CompareTrades)
	return out
}

// Count returns the number of stored trades
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
