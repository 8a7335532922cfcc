package portfolio

import (
	"context"
	"time"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/pkg/idgen"
)

// UpdateAssets merges a full balance snapshot for account, as returned by the
// gateway. Entries older than the local copy are ignored, cleared balances are
// removed, and local balances missing from the snapshot are dropped unless
// they changed after the snapshot was taken.
func (r *Reconciler) UpdateAssets(ctx context.Context, accountID int64, assets []contracts.Asset, takenAt time.Time) int {
	pf := r.portfolio(accountID)
	takenAt = nowOr(takenAt)
	seen := make(map[int64]bool, len(assets))
	applied := 0

	for _, a := range assets {
		a.AccountID = accountID
		sec, err := r.securities.Fix(ctx, &a)
		if err != nil {
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"account_id":    accountID,
				"security_id":   a.SecurityID,
				"security_code": a.SecurityCode,
			}).Warn("Asset with unknown security dropped")
			continue
		}
		seen[sec.ID] = true
		if a.UpdateTime.IsZero() {
			a.UpdateTime = takenAt
		}

		var stale bool
		next, keep := pf.updateAsset(sec.ID, func(cur contracts.Asset, exists bool) (contracts.Asset, bool) {
			if exists && cur.UpdateTime.After(a.UpdateTime) {
				stale = true
				return cur, true
			}
			a.ID, a.CreateTime = r.assetIdentity(cur, exists, a.UpdateTime)
			return a, !a.IsCleared()
		})
		if stale {
			continue
		}
		r.persistAsset(next, keep)
		applied++
	}

	for _, a := range pf.Assets() {
		if seen[a.SecurityID] {
			continue
		}
		// 판단은 락 안에서: 목록을 복사한 뒤 들어온 변경은 스냅샷보다 새롭다
		var removed bool
		last, _ := pf.updateAsset(a.SecurityID, func(cur contracts.Asset, exists bool) (contracts.Asset, bool) {
			if !exists || cur.UpdateTime.After(takenAt) {
				return cur, exists
			}
			removed = true
			return cur, false
		})
		if removed {
			r.persister.DeleteAssets(last)
			applied++
		}
	}

	return applied
}

// ApplyAssetChange applies one balance delta notification
func (r *Reconciler) ApplyAssetChange(ctx context.Context, change contracts.AssetChange) (contracts.Asset, error) {
	sec, err := r.securities.Fix(ctx, &change)
	if err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"account_id":    change.AccountID,
			"security_code": change.SecurityCode,
		}).Warn("Asset change with unknown security dropped")
		return contracts.Asset{}, err
	}
	change.Time = nowOr(change.Time)

	next, keep := r.portfolio(change.AccountID).updateAsset(sec.ID, func(cur contracts.Asset, exists bool) (contracts.Asset, bool) {
		cur.ID, cur.CreateTime = r.assetIdentity(cur, exists, change.Time)
		cur.AccountID = change.AccountID
		cur.SecurityID = sec.ID
		cur.SecurityCode = sec.Code
		cur.Apply(change)
		// dust below the minimum quantity is still a balance
		return cur, !cur.IsCleared()
	})
	r.persistAsset(next, keep)
	return next, nil
}

func (r *Reconciler) assetIdentity(cur contracts.Asset, exists bool, at time.Time) (int64, time.Time) {
	if exists {
		return cur.ID, cur.CreateTime
	}
	return r.ids.Next(idgen.KindAsset), at
}

func (r *Reconciler) persistAsset(a contracts.Asset, keep bool) {
	if keep {
		r.persister.SaveAssets(a)
		return
	}
	r.persister.DeleteAssets(a)
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
