package persistence

import (
	"sync"

	"github.com/wonny/tradebook/internal/contracts"
)

// Memory is an in-process Persister that keeps the last saved copy of every entity.
// Used by tests and by runs without a database.
type Memory struct {
	mu        sync.Mutex
	Orders    map[int64]contracts.Order
	Trades    map[int64]contracts.Trade
	Positions map[int64]contracts.Position
	Assets    map[[2]int64]contracts.Asset
	Residuals map[[2]int64]contracts.Residual
}

var _ contracts.Persister = (*Memory)(nil)

// NewMemory creates an empty in-process persister
func NewMemory() *Memory {
	return &Memory{
		Orders:    make(map[int64]contracts.Order),
		Trades:    make(map[int64]contracts.Trade),
		Positions: make(map[int64]contracts.Position),
		Assets:    make(map[[2]int64]contracts.Asset),
		Residuals: make(map[[2]int64]contracts.Residual),
	}
}

func (m *Memory) SaveOrders(orders ...contracts.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range orders {
		m.Orders[o.ID] = o
	}
}

func (m *Memory) SaveTrades(trades ...contracts.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range trades {
		m.Trades[t.ID] = t
	}
}

func (m *Memory) SavePositions(positions ...contracts.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range positions {
		m.Positions[p.ID] = p
	}
}

func (m *Memory) SaveAssets(assets ...contracts.Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range assets {
		m.Assets[[2]int64{a.AccountID, a.SecurityID}] = a
	}
}

func (m *Memory) DeleteAssets(assets ...contracts.Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range assets {
		delete(m.Assets, [2]int64{a.AccountID, a.SecurityID})
	}
}

func (m *Memory) SaveResiduals(residuals ...contracts.Residual) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range residuals {
		m.Residuals[[2]int64{r.AccountID, r.BaseSecurityID}] = r
	}
}

func (m *Memory) DeleteResiduals(residuals ...contracts.Residual) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range residuals {
		delete(m.Residuals, [2]int64{r.AccountID, r.BaseSecurityID})
	}
}

// Order returns the last saved copy of an order
func (m *Memory) Order(id int64) (contracts.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[id]
	return o, ok
}

// Position returns the last saved copy of a position
func (m *Memory) Position(id int64) (contracts.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Positions[id]
	return p, ok
}

// Counts returns the number of stored orders, trades and positions
func (m *Memory) Counts() (orders, trades, positions int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Orders), len(m.Trades), len(m.Positions)
}
