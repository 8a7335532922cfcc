package execution

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/pkg/idgen"
	"github.com/wonny/tradebook/pkg/logger"
)

// SimulatorConfig configures the paper broker
type SimulatorConfig struct {
	AutoFill       bool    // fill market orders right after the ack
	FeeRate        float64 // fee = price * quantity * FeeRate
	FeeAssetCode   string
	CashSecurityID int64 // 0 = cash balance not tracked
	FillDelay      time.Duration
}

// Simulator is a paper ExecutionGateway.
// It acks every order, fills on demand (or automatically for market orders)
// and keeps per-account balances.
// ⭐ 실제 운영에서는 브로커 어댑터로 교체
type Simulator struct {
	Hub

	cfg    SimulatorConfig
	ids    *idgen.Generator
	logger *logger.Logger

	mu       sync.Mutex
	orders   map[int64]*contracts.Order // by external id
	prices   map[int64]float64          // by security id
	balances map[int64]map[int64]*contracts.Asset

	sendErr   error
	cancelErr error
}

var _ contracts.ExecutionGateway = (*Simulator)(nil)

// NewSimulator creates a paper broker
func NewSimulator(cfg SimulatorConfig, ids *idgen.Generator, log *logger.Logger) *Simulator {
	return &Simulator{
		cfg:      cfg,
		ids:      ids,
		logger:   log,
		orders:   make(map[int64]*contracts.Order),
		prices:   make(map[int64]float64),
		balances: make(map[int64]map[int64]*contracts.Asset),
	}
}

// SetPrice sets the fill price used for market orders
func (s *Simulator) SetPrice(securityID int64, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[securityID] = price
}

// SetBalance overwrites one balance
func (s *Simulator) SetBalance(a contracts.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance(a.AccountID, a.SecurityID, a.SecurityCode).Quantity = a.Quantity
}

// FailSends makes every SendOrder fail with err until reset with nil
func (s *Simulator) FailSends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = err
}

// FailCancels makes every CancelOrder fail with err until reset with nil
func (s *Simulator) FailCancels(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelErr = err
}

// SendOrder accepts the order and acks it live
func (s *Simulator) SendOrder(ctx context.Context, order contracts.Order) (contracts.OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return contracts.OrderAck{}, err
	}

	s.mu.Lock()
	if s.sendErr != nil {
		err := s.sendErr
		s.mu.Unlock()
		return contracts.OrderAck{Status: contracts.StatusRejected, Message: err.Error()}, err
	}

	now := time.Now()
	if order.ExternalID == 0 {
		order.ExternalID = s.ids.Next(idgen.KindExternalOrder)
	}
	if _, dup := s.orders[order.ExternalID]; dup {
		s.mu.Unlock()
		err := fmt.Errorf("duplicate external order id %d", order.ExternalID)
		return contracts.OrderAck{Status: contracts.StatusRejected, Message: err.Error()}, err
	}
	order.Status = contracts.StatusLive
	order.ExternalCreateTime = now
	order.ExternalUpdateTime = now
	order.UpdateTime = now
	s.orders[order.ExternalID] = &order

	price := s.prices[order.SecurityID]
	if price == 0 {
		price = order.RequestedPrice
	}
	autoFill := s.cfg.AutoFill && order.Type == contracts.OrderTypeMarket && price > 0
	s.mu.Unlock()

	if autoFill {
		externalID, qty := order.ExternalID, order.Quantity
		time.AfterFunc(s.cfg.FillDelay, func() {
			if _, err := s.Fill(externalID, price, qty); err != nil {
				s.logger.WithError(err).WithField("external_order_id", externalID).Warn("Paper auto-fill failed")
			}
		})
	}

	return contracts.OrderAck{
		ExternalOrderID: order.ExternalID,
		Status:          contracts.StatusLive,
		Message:         "accepted",
		Time:            now,
	}, nil
}

// CancelOrder cancels the unfilled remainder
func (s *Simulator) CancelOrder(ctx context.Context, order contracts.Order) (contracts.OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return contracts.OrderAck{}, err
	}

	s.mu.Lock()
	if s.cancelErr != nil {
		err := s.cancelErr
		s.mu.Unlock()
		return contracts.OrderAck{}, err
	}
	o, ok := s.orders[order.ExternalID]
	if !ok {
		s.mu.Unlock()
		return contracts.OrderAck{}, fmt.Errorf("%w: external id %d", contracts.ErrOrderNotFound, order.ExternalID)
	}
	if !o.IsClosed() {
		if o.FilledQuantity > 0 {
			o.Status = contracts.StatusPartialCancelled
		} else {
			o.Status = contracts.StatusCancelled
		}
		o.ExternalUpdateTime = time.Now()
		o.UpdateTime = o.ExternalUpdateTime
	}
	snapshot := *o
	s.mu.Unlock()

	s.PublishOrder(snapshot)
	return contracts.OrderAck{
		ExternalOrderID: snapshot.ExternalID,
		Status:          snapshot.Status,
		Time:            snapshot.ExternalUpdateTime,
	}, nil
}

// Fill executes qty of a live order at price and publishes the trade,
// the balance deltas and the new order state.
func (s *Simulator) Fill(externalOrderID int64, price, qty float64) (contracts.Trade, error) {
	s.mu.Lock()
	o, ok := s.orders[externalOrderID]
	if !ok {
		s.mu.Unlock()
		return contracts.Trade{}, fmt.Errorf("%w: external id %d", contracts.ErrOrderNotFound, externalOrderID)
	}
	if !o.IsActive() {
		s.mu.Unlock()
		return contracts.Trade{}, fmt.Errorf("order %d is %s", externalOrderID, o.Status)
	}
	if qty <= 0 || qty > o.RemainingQuantity() {
		s.mu.Unlock()
		return contracts.Trade{}, fmt.Errorf("fill quantity %v exceeds remaining %v", qty, o.RemainingQuantity())
	}

	now := time.Now()
	o.FilledQuantity += qty
	if o.RemainingQuantity() == 0 {
		o.Status = contracts.StatusFilled
	} else {
		o.Status = contracts.StatusPartialFilled
	}
	o.ExternalUpdateTime = now
	o.UpdateTime = now

	t := contracts.Trade{
		ExternalTradeID: s.ids.Next(idgen.KindExternalTrade),
		ExternalOrderID: externalOrderID,
		AccountID:       o.AccountID,
		SecurityID:      o.SecurityID,
		SecurityCode:    o.SecurityCode,
		Side:            o.Side,
		Price:           price,
		Quantity:        qty,
		Fee:             price * qty * s.cfg.FeeRate,
		FeeAssetCode:    s.cfg.FeeAssetCode,
		BrokerID:        o.BrokerID,
		Time:            now,
	}

	changes := []contracts.AssetChange{s.applyBalance(o.AccountID, o.SecurityID, o.SecurityCode, t.SignedQuantity(), now)}
	if s.cfg.CashSecurityID > 0 {
		cash := -t.SignedQuantity()*price - t.Fee
		changes = append(changes, s.applyBalance(o.AccountID, s.cfg.CashSecurityID, "", cash, now))
	}
	snapshot := *o
	s.mu.Unlock()

	s.PublishTrade(t)
	s.PublishOrder(snapshot)
	for _, c := range changes {
		s.PublishAssetChange(c)
	}
	return t, nil
}

// GetOpenOrders returns working orders, optionally for one security
func (s *Simulator) GetOpenOrders(ctx context.Context, securityID int64) ([]contracts.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]contracts.Order, 0)
	for _, o := range s.orders {
		if !o.IsActive() || (securityID > 0 && o.SecurityID != securityID) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

// GetAssetPositions returns the account's balances
func (s *Simulator) GetAssetPositions(ctx context.Context, accountID int64) ([]contracts.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]contracts.Asset, 0, len(s.balances[accountID]))
	for _, a := range s.balances[accountID] {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SecurityID < out[j].SecurityID })
	return out, nil
}

// balance must be called with s.mu held
func (s *Simulator) balance(accountID, securityID int64, code string) *contracts.Asset {
	byAccount, ok := s.balances[accountID]
	if !ok {
		byAccount = make(map[int64]*contracts.Asset)
		s.balances[accountID] = byAccount
	}
	a, ok := byAccount[securityID]
	if !ok {
		now := time.Now()
		a = &contracts.Asset{
			AccountID:    accountID,
			SecurityID:   securityID,
			SecurityCode: code,
			CreateTime:   now,
			UpdateTime:   now,
		}
		byAccount[securityID] = a
	}
	return a
}

// applyBalance must be called with s.mu held
func (s *Simulator) applyBalance(accountID, securityID int64, code string, delta float64, at time.Time) contracts.AssetChange {
	c := contracts.AssetChange{
		AccountID:    accountID,
		SecurityID:   securityID,
		SecurityCode: code,
		Delta:        delta,
		Time:         at,
	}
	s.balance(accountID, securityID, code).Apply(c)
	return c
}
