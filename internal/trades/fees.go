package trades

import (
	"context"
	"sync"

	"github.com/wonny/tradebook/internal/contracts"
)

// FeeAssets is the fee asset code <-> id mapping shared by every ingest
type FeeAssets struct {
	mu     sync.RWMutex
	byCode map[string]int64
	byID   map[int64]string
	ref    contracts.SecurityReference
}

// NewFeeAssets creates a mapping that falls back to ref on a miss
func NewFeeAssets(ref contracts.SecurityReference) *FeeAssets {
	return &FeeAssets{
		byCode: make(map[string]int64),
		byID:   make(map[int64]string),
		ref:    ref,
	}
}

// Resolve fills whichever of FeeAssetID / FeeAssetCode the trade is missing.
// Unresolvable fee assets are left as they are.
func (f *FeeAssets) Resolve(ctx context.Context, t *contracts.Trade) {
	switch {
	case t.FeeAssetID == 0 && t.FeeAssetCode != "":
		if id, ok := f.idFor(t.FeeAssetCode); ok {
			t.FeeAssetID = id
			return
		}
		if sec, err := f.ref.ResolveCode(ctx, t.FeeAssetCode); err == nil {
			t.FeeAssetID = sec.ID
			f.learn(sec.ID, sec.Code)
		}
	case t.FeeAssetID > 0 && t.FeeAssetCode == "":
		if code, ok := f.codeFor(t.FeeAssetID); ok {
			t.FeeAssetCode = code
			return
		}
		if sec, err := f.ref.Resolve(ctx, t.FeeAssetID); err == nil {
			t.FeeAssetCode = sec.Code
			f.learn(sec.ID, sec.Code)
		}
	}
}

func (f *FeeAssets) idFor(code string) (int64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.byCode[code]
	return id, ok
}

func (f *FeeAssets) codeFor(id int64) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	code, ok := f.byID[id]
	return code, ok
}

func (f *FeeAssets) learn(id int64, code string) {
	if id <= 0 || code == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byCode[code] = id
	f.byID[id] = code
}

// Len returns the number of known fee assets
func (f *FeeAssets) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.byCode)
}
