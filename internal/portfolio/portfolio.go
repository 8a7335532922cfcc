package portfolio

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/wonny/tradebook/internal/contracts"
)

// Portfolio holds one account's open positions, assets and residuals.
// Only the Reconciler mutates it; every read returns copies.
type Portfolio struct {
	mu        sync.RWMutex
	accountID int64

	positions  map[int64]*contracts.Position // open, by position id
	bySecurity map[int64]int64               // security id -> open position id
	assets     map[int64]*contracts.Asset    // by security id
	residuals  map[int64]contracts.Residual  // by base security id
}

func newPortfolio(accountID int64) *Portfolio {
	return &Portfolio{
		accountID:  accountID,
		positions:  make(map[int64]*contracts.Position),
		bySecurity: make(map[int64]int64),
		assets:     make(map[int64]*contracts.Asset),
		residuals:  make(map[int64]contracts.Residual),
	}
}

// AccountID returns the owning account
func (p *Portfolio) AccountID() int64 {
	return p.accountID
}

// Position returns a copy of the open position for security
func (p *Portfolio) Position(securityID int64) (contracts.Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.bySecurity[securityID]
	if !ok {
		return contracts.Position{}, false
	}
	return *p.positions[id], true
}

// Positions returns copies of every open position ordered by security
func (p *Portfolio) Positions() []contracts.Position {
	p.mu.RLock()
	out := make([]contracts.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	p.mu.RUnlock()

	slices.SortFunc(out, contracts.ComparePositions)
	return out
}

// Asset returns a copy of the balance for security
func (p *Portfolio) Asset(securityID int64) (contracts.Asset, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	a, ok := p.assets[securityID]
	if !ok {
		return contracts.Asset{}, false
	}
	return *a, true
}

// Assets returns copies of every balance ordered by security
func (p *Portfolio) Assets() []contracts.Asset {
	p.mu.RLock()
	out := make([]contracts.Asset, 0, len(p.assets))
	for _, a := range p.assets {
		out = append(out, *a)
	}
	p.mu.RUnlock()

	slices.SortFunc(out, contracts.CompareAssets)
	return out
}

// Residual returns the carried quantity waiting for the next position on base
func (p *Portfolio) Residual(baseSecurityID int64) (contracts.Residual, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.residuals[baseSecurityID]
	return r, ok
}

// Snapshot copies the whole portfolio
func (p *Portfolio) Snapshot() contracts.PortfolioSnapshot {
	snap := contracts.PortfolioSnapshot{
		AccountID: p.accountID,
		Positions: p.Positions(),
		Assets:    p.Assets(),
		TakenAt:   time.Now(),
	}

	p.mu.RLock()
	snap.Residuals = make([]contracts.Residual, 0, len(p.residuals))
	for _, r := range p.residuals {
		snap.Residuals = append(snap.Residuals, r)
	}
	p.mu.RUnlock()

	slices.SortFunc(snap.Residuals, func(a, b contracts.Residual) int {
		return cmp.Compare(a.BaseSecurityID, b.BaseSecurityID)
	})
	return snap
}

func (p *Portfolio) putPosition(pos contracts.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pos.IsArchived() {
		if id, ok := p.bySecurity[pos.SecurityID]; ok && id == pos.ID {
			delete(p.bySecurity, pos.SecurityID)
		}
		delete(p.positions, pos.ID)
		return
	}
	p.positions[pos.ID] = &pos
	p.bySecurity[pos.SecurityID] = pos.ID
}

// takeResidual removes and returns the residual for base
func (p *Portfolio) takeResidual(baseSecurityID int64) (contracts.Residual, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.residuals[baseSecurityID]
	if ok {
		delete(p.residuals, baseSecurityID)
	}
	return r, ok
}

// addResidual stores r, merging it with a residual already waiting on the same base
func (p *Portfolio) addResidual(r contracts.Residual) contracts.Residual {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.residuals[r.BaseSecurityID]; ok {
		r = mergeResiduals(prev, r)
	}
	p.residuals[r.BaseSecurityID] = r
	return r
}

func (p *Portfolio) putAsset(a contracts.Asset) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assets[a.SecurityID] = &a
}

// updateAsset runs fn on the asset for security as one atomic step.
// fn receives a copy (zero value with exists=false when absent) and returns
// the new value and whether it should be kept.
func (p *Portfolio) updateAsset(securityID int64, fn func(a contracts.Asset, exists bool) (contracts.Asset, bool)) (contracts.Asset, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var cur contracts.Asset
	old, exists := p.assets[securityID]
	if exists {
		cur = *old
	}

	next, keep := fn(cur, exists)
	if keep {
		p.assets[securityID] = &next
	} else {
		delete(p.assets, securityID)
	}
	return next, keep
}

// mergeResiduals nets two signed residuals; the price follows the side that survives
func mergeResiduals(a, b contracts.Residual) contracts.Residual {
	out := b
	out.Quantity = a.Quantity + b.Quantity

	switch {
	case out.Quantity == 0:
		out.Price = 0
	case (a.Quantity > 0) == (b.Quantity > 0):
		out.Price = contracts.WeightedAverage(a.Price, abs(a.Quantity), b.Price, abs(b.Quantity))
	case (out.Quantity > 0) == (a.Quantity > 0):
		out.Price = a.Price
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
