package portfolio

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/pkg/idgen"
	"github.com/wonny/tradebook/pkg/logger"
	"github.com/wonny/tradebook/pkg/syncx"
)

type positionKey struct {
	accountID  int64
	securityID int64
}

// Reconciler turns trades and balance notifications into positions and assets.
// It is the only writer of every Portfolio. Trades for one (account, security)
// are applied one at a time in arrival order; other keys proceed in parallel.
// ⭐ SSOT: 포지션 계산 로직은 여기서만
type Reconciler struct {
	mu         sync.RWMutex
	portfolios map[int64]*Portfolio

	initialMu sync.RWMutex
	sessionID string
	initial   map[int64]contracts.PortfolioSnapshot

	closedMu sync.RWMutex
	closed   map[int64]contracts.Position

	parkedMu sync.Mutex
	parked   map[int64]contracts.Trade

	locks      *syncx.KeyedMutex[positionKey]
	events     *eventBus
	securities contracts.SecurityReference
	persister  contracts.Persister
	ids        *idgen.Generator
	logger     *logger.Logger
}

// NewReconciler creates a reconciler with no portfolios
func NewReconciler(securities contracts.SecurityReference, persister contracts.Persister, ids *idgen.Generator, log *logger.Logger) *Reconciler {
	return &Reconciler{
		portfolios: make(map[int64]*Portfolio),
		initial:    make(map[int64]contracts.PortfolioSnapshot),
		closed:     make(map[int64]contracts.Position),
		parked:     make(map[int64]contracts.Trade),
		locks:      syncx.NewKeyedMutex[positionKey](),
		events:     newEventBus(log),
		securities: securities,
		persister:  persister,
		ids:        ids,
		logger:     log,
	}
}

// Reconcile applies one trade and returns the id of the position it landed in.
// A trade whose security cannot be resolved is parked for RetryParked.
// Failures never escape as panics.
func (r *Reconciler) Reconcile(ctx context.Context, t contracts.Trade) (positionID int64, err error) {
	log := r.logger.WithFields(map[string]interface{}{
		"trade_id":    t.ID,
		"account_id":  t.AccountID,
		"security_id": t.SecurityID,
	})

	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", rec).Error("Panic while reconciling trade")
			positionID, err = 0, fmt.Errorf("reconcile trade %d: panic: %v", t.ID, rec)
		}
	}()

	if t.IsOperational {
		return 0, contracts.ErrNoop
	}

	sec, err := r.securities.Fix(ctx, &t)
	if err != nil {
		r.park(t)
		log.WithError(err).Warn("Trade parked until its security resolves")
		return 0, err
	}

	unlock := r.locks.Lock(positionKey{t.AccountID, sec.ID})
	defer unlock()

	pos, event, err := r.createOrApply(&t, sec)
	if err != nil {
		// mismatches and invalid executions are caller bugs: report loudly
		log.WithError(err).Error("Trade rejected by position")
		return 0, err
	}

	r.events.publish(contracts.PositionEvent{Type: event, Position: pos, TradeID: t.ID})
	return pos.ID, nil
}

func (r *Reconciler) createOrApply(t *contracts.Trade, sec *contracts.Security) (contracts.Position, contracts.PositionEventType, error) {
	if err := t.ValidateExecution(); err != nil {
		return contracts.Position{}, "", err
	}

	pf := r.portfolio(t.AccountID)
	event := contracts.PositionUpdated

	pos, ok := pf.Position(sec.ID)
	if !ok {
		// closed positions are never reopened: a fresh one picks up any carried residual
		pos = *contracts.NewPosition(r.ids.Next(idgen.KindPosition), t.AccountID, sec, t.Time)
		if res, found := pf.takeResidual(sec.BaseAssetID()); found {
			pos.SeedResidual(res)
			r.persister.DeleteResiduals(res)
			r.logger.WithFields(map[string]interface{}{
				"position_id": pos.ID,
				"carried":     res.Quantity,
				"source":      res.SourcePositionID,
			}).Info("Residual carried into new position")
		}
		event = contracts.PositionOpened
	}

	// a trade that goes through zero closes the position; the rest is carried over
	closing, overshoot := pos.SplitClosing(*t)
	closed, err := pos.Apply(&closing, sec)
	if err != nil {
		return contracts.Position{}, "", err
	}

	if closed {
		r.closePosition(pf, &pos, sec, overshoot, t.Price)
		event = contracts.PositionClosed
	}

	pf.putPosition(pos)
	r.persister.SavePositions(pos)
	return pos, event, nil
}

// closePosition moves any leftover and the closing trade's overshoot into the
// residual table and archives pos
func (r *Reconciler) closePosition(pf *Portfolio, pos *contracts.Position, sec *contracts.Security, overshoot, price float64) {
	log := r.logger.WithFields(map[string]interface{}{
		"position_id": pos.ID,
		"security_id": pos.SecurityID,
	})

	var carried []contracts.Residual
	if pos.Quantity != 0 {
		if sec.RoundQuantity(pos.Quantity) == 0 {
			log.WithField("leftover", pos.Quantity).Debug("Leftover below quantity increment treated as zero")
		} else {
			carried = append(carried, pos.DetachResidual(sec.BaseAssetID()))
		}
	}
	if overshoot != 0 {
		if sec.RoundQuantity(overshoot) == 0 {
			log.WithField("overshoot", overshoot).Debug("Overshoot below quantity increment treated as zero")
		} else {
			carried = append(carried, pos.OvershootResidual(sec.BaseAssetID(), overshoot, price))
		}
	}

	for _, c := range carried {
		res := pf.addResidual(c)
		r.persister.SaveResiduals(res)
		log.WithField("residual", res.Quantity).Info("Closing trade left a residual")
	}

	r.closedMu.Lock()
	r.closed[pos.ID] = *pos
	r.closedMu.Unlock()

	log.WithFields(map[string]interface{}{
		"realized_pnl": pos.RealizedPnL(),
		"trade_count":  pos.TradeCount,
	}).Info("Position closed")
}

func (r *Reconciler) park(t contracts.Trade) {
	r.parkedMu.Lock()
	defer r.parkedMu.Unlock()
	r.parked[t.ID] = t
}

// Parked returns the trades waiting for a security to resolve
func (r *Reconciler) Parked() []contracts.Trade {
	r.parkedMu.Lock()
	out := make([]contracts.Trade, 0, len(r.parked))
	for _, t := range r.parked {
		out = append(out, t)
	}
	r.parkedMu.Unlock()

	slices.SortFunc(out, contracts.CompareTrades)
	return out
}

// RetryParked re-applies parked trades in trade order and returns the ones that
// landed, with PositionID set. Trades that fail again stay parked.
func (r *Reconciler) RetryParked(ctx context.Context) []contracts.Trade {
	r.parkedMu.Lock()
	pending := make([]contracts.Trade, 0, len(r.parked))
	for _, t := range r.parked {
		pending = append(pending, t)
	}
	clear(r.parked)
	r.parkedMu.Unlock()

	slices.SortFunc(pending, contracts.CompareTrades)

	applied := make([]contracts.Trade, 0, len(pending))
	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			r.park(t)
			continue
		}
		positionID, err := r.Reconcile(ctx, t)
		if err != nil {
			continue
		}
		t.PositionID = positionID
		applied = append(applied, t)
	}

	if len(pending) > 0 {
		r.logger.WithFields(map[string]interface{}{
			"pending": len(pending),
			"applied": len(applied),
		}).Info("Parked trades retried")
	}
	return applied
}

func (r *Reconciler) portfolio(accountID int64) *Portfolio {
	r.mu.RLock()
	pf, ok := r.portfolios[accountID]
	r.mu.RUnlock()
	if ok {
		return pf
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if pf, ok = r.portfolios[accountID]; !ok {
		pf = newPortfolio(accountID)
		r.portfolios[accountID] = pf
	}
	return pf
}

// Portfolio returns the account's portfolio for reading. An unknown account
// yields an empty portfolio that is not registered.
func (r *Reconciler) Portfolio(accountID int64) *Portfolio {
	if pf, ok := r.lookup(accountID); ok {
		return pf
	}
	return newPortfolio(accountID)
}

func (r *Reconciler) lookup(accountID int64) (*Portfolio, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pf, ok := r.portfolios[accountID]
	return pf, ok
}

// Accounts lists accounts that have a portfolio
func (r *Reconciler) Accounts() []int64 {
	r.mu.RLock()
	out := make([]int64, 0, len(r.portfolios))
	for id := range r.portfolios {
		out = append(out, id)
	}
	r.mu.RUnlock()

	slices.Sort(out)
	return out
}

// Position returns the open position of account in security
func (r *Reconciler) Position(accountID, securityID int64) (contracts.Position, bool) {
	pf, ok := r.lookup(accountID)
	if !ok {
		return contracts.Position{}, false
	}
	return pf.Position(securityID)
}

// OpenPositions returns every open position across accounts
func (r *Reconciler) OpenPositions() []contracts.Position {
	var out []contracts.Position
	for _, id := range r.Accounts() {
		out = append(out, r.portfolio(id).Positions()...)
	}
	return out
}

// Closed returns archived positions, filtered by account when accountID > 0
func (r *Reconciler) Closed(accountID int64) []contracts.Position {
	r.closedMu.RLock()
	out := make([]contracts.Position, 0, len(r.closed))
	for _, p := range r.closed {
		if accountID > 0 && p.AccountID != accountID {
			continue
		}
		out = append(out, p)
	}
	r.closedMu.RUnlock()

	slices.SortFunc(out, contracts.ComparePositions)
	return out
}

// ClosedPosition looks up an archived position by id
func (r *Reconciler) ClosedPosition(id int64) (contracts.Position, bool) {
	r.closedMu.RLock()
	defer r.closedMu.RUnlock()
	p, ok := r.closed[id]
	return p, ok
}

// Load restores persisted state. Archived positions go to the closed archive.
func (r *Reconciler) Load(positions []contracts.Position, assets []contracts.Asset, residuals []contracts.Residual) {
	for _, p := range positions {
		r.ids.Observe(idgen.KindPosition, p.ID)
		if p.IsArchived() {
			r.closedMu.Lock()
			r.closed[p.ID] = p
			r.closedMu.Unlock()
			continue
		}
		r.portfolio(p.AccountID).putPosition(p)
	}
	for _, a := range assets {
		r.ids.Observe(idgen.KindAsset, a.ID)
		r.portfolio(a.AccountID).putAsset(a)
	}
	for _, res := range residuals {
		r.portfolio(res.AccountID).addResidual(res)
	}

	r.logger.WithFields(map[string]interface{}{
		"positions": len(positions),
		"assets":    len(assets),
		"residuals": len(residuals),
	}).Info("Portfolio state loaded")
}

// CaptureInitial snapshots every portfolio under a new session id.
// accounts forces an (empty) snapshot for accounts without state yet.
func (r *Reconciler) CaptureInitial(accounts ...int64) string {
	for _, id := range accounts {
		r.portfolio(id)
	}

	sessionID := uuid.NewString()
	snaps := make(map[int64]contracts.PortfolioSnapshot)
	for _, id := range r.Accounts() {
		snap := r.portfolio(id).Snapshot()
		snap.SessionID = sessionID
		snaps[id] = snap
	}

	r.initialMu.Lock()
	r.sessionID = sessionID
	r.initial = snaps
	r.initialMu.Unlock()

	r.logger.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"accounts":   len(snaps),
	}).Info("Initial portfolio captured")
	return sessionID
}

// SessionID returns the id of the last initial capture
func (r *Reconciler) SessionID() string {
	r.initialMu.RLock()
	defer r.initialMu.RUnlock()
	return r.sessionID
}

// Initial returns the snapshot taken at session start
func (r *Reconciler) Initial(accountID int64) (contracts.PortfolioSnapshot, bool) {
	r.initialMu.RLock()
	defer r.initialMu.RUnlock()
	snap, ok := r.initial[accountID]
	return snap, ok
}

// Snapshot returns the current state of an account
func (r *Reconciler) Snapshot(accountID int64) contracts.PortfolioSnapshot {
	pf, ok := r.lookup(accountID)
	if !ok {
		pf = newPortfolio(accountID)
	}
	snap := pf.Snapshot()
	snap.SessionID = r.SessionID()
	return snap
}

// Diff lists securities whose open quantity changed since the initial snapshot
func (r *Reconciler) Diff(accountID int64) []contracts.PositionDiff {
	initial, _ := r.Initial(accountID)
	current := r.Snapshot(accountID)

	before := initial.QuantityBySecurity()
	after := current.QuantityBySecurity()
	codes := make(map[int64]string)
	for _, p := range initial.Positions {
		codes[p.SecurityID] = p.SecurityCode
	}
	for _, p := range current.Positions {
		codes[p.SecurityID] = p.SecurityCode
	}

	out := make([]contracts.PositionDiff, 0)
	for secID, code := range codes {
		d := contracts.PositionDiff{
			SecurityID:      secID,
			SecurityCode:    code,
			InitialQuantity: before[secID],
			CurrentQuantity: after[secID],
		}
		d.Delta = d.CurrentQuantity - d.InitialQuantity
		if d.Delta != 0 {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b contracts.PositionDiff) int {
		return cmp.Compare(a.SecurityID, b.SecurityID)
	})
	return out
}

// Subscribe registers a listener for position events; call the returned func to stop.
// Listeners run on the reconciling goroutine and must not block.
func (r *Reconciler) Subscribe(fn func(contracts.PositionEvent)) (unsubscribe func()) {
	return r.events.subscribe(fn)
}

// IsClosed reports whether account holds no open position in security
func (r *Reconciler) IsClosed(accountID, securityID int64) bool {
	_, open := r.Position(accountID, securityID)
	return !open
}

// HasAccount reports whether a portfolio exists for account
func (r *Reconciler) HasAccount(accountID int64) bool {
	_, ok := r.lookup(accountID)
	return ok
}
