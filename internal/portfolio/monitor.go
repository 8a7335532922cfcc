package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/tradebook/internal/contracts"
)

// MonitorConfig bounds a close wait
type MonitorConfig struct {
	PollInterval time.Duration // 포지션 조회 주기
	Timeout      time.Duration // 최대 대기 시간
}

// WaitClosed polls until account has no open position in security.
// A timeout is reported as ErrCloseTimeout; the position is left as it is.
func (r *Reconciler) WaitClosed(ctx context.Context, accountID, securityID int64, cfg MonitorConfig) error {
	if r.IsClosed(accountID, securityID) {
		return nil
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	timeout := time.NewTimer(cfg.Timeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timeout.C:
			pos, _ := r.Position(accountID, securityID)
			r.logger.WithFields(map[string]interface{}{
				"account_id":  accountID,
				"security_id": securityID,
				"quantity":    pos.Quantity,
				"timeout":     cfg.Timeout.String(),
			}).Warn("Position close wait timed out")
			return fmt.Errorf("%w: account %d security %d after %s", contracts.ErrCloseTimeout, accountID, securityID, cfg.Timeout)

		case <-ticker.C:
			if r.IsClosed(accountID, securityID) {
				return nil
			}
		}
	}
}
