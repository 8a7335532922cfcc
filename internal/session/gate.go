package session

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/pkg/logger"
)

// =============================================================================
// Gate - 주문 전 체크
// =============================================================================

// GateMode 게이트 동작 모드
type GateMode string

const (
	GateModeShadow  GateMode = "shadow"  // 로깅만, 실제 차단 안함
	GateModeEnforce GateMode = "enforce" // 실제 차단
	GateModeOff     GateMode = "off"     // 비활성화
)

// GateConfig 게이트 설정
type GateConfig struct {
	Mode                GateMode
	MaxOrderNotional    float64  // 0 = 제한 없음
	MaxPositionQuantity float64  // 0 = 제한 없음
	BlackList           []string // 주문 금지 종목 코드
}

// GateCheckResult 게이트 체크 결과
type GateCheckResult struct {
	Passed     bool      `json:"passed"`
	Mode       GateMode  `json:"mode"`
	WouldBlock bool      `json:"would_block"` // Shadow 모드에서 차단됐을지 여부
	Violations []string  `json:"violations"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Gate checks new orders against static limits before they reach the broker.
// Liquidations issued by the session bypass it.
// ⭐ SSOT: 주문 전 체크는 여기서만
type Gate struct {
	cfg    GateConfig
	logger *logger.Logger
}

// NewGate creates a gate; an empty mode means off
func NewGate(cfg GateConfig, log *logger.Logger) *Gate {
	if cfg.Mode == "" {
		cfg.Mode = GateModeOff
	}
	return &Gate{cfg: cfg, logger: log}
}

// Mode returns the configured mode
func (g *Gate) Mode() GateMode {
	return g.cfg.Mode
}

// Check evaluates order against the account's current quantity in the security
func (g *Gate) Check(order contracts.Order, currentQuantity float64) GateCheckResult {
	result := GateCheckResult{
		Mode:      g.cfg.Mode,
		CheckedAt: time.Now(),
	}

	if g.cfg.Mode == GateModeOff {
		result.Passed = true
		return result
	}

	result.Violations = g.violations(order, currentQuantity)
	if len(result.Violations) == 0 {
		result.Passed = true
		return result
	}

	result.WouldBlock = true
	fields := map[string]interface{}{
		"account_id":    order.AccountID,
		"security_code": order.SecurityCode,
		"side":          order.Side,
		"quantity":      order.Quantity,
		"violations":    strings.Join(result.Violations, "; "),
	}

	switch g.cfg.Mode {
	case GateModeShadow:
		result.Passed = true
		g.logger.WithFields(fields).Warn("Order would be blocked (shadow)")
	default:
		result.Passed = false
		g.logger.WithFields(fields).Warn("Order blocked")
	}
	return result
}

func (g *Gate) violations(order contracts.Order, currentQuantity float64) []string {
	out := make([]string, 0)

	if slices.Contains(g.cfg.BlackList, order.SecurityCode) {
		out = append(out, fmt.Sprintf("%s is blacklisted", order.SecurityCode))
	}

	price := order.RequestedPrice
	if order.LimitPrice > 0 {
		price = order.LimitPrice
	}
	if notional := price * order.Quantity; g.cfg.MaxOrderNotional > 0 && notional > g.cfg.MaxOrderNotional {
		out = append(out, fmt.Sprintf("notional %.2f exceeds %.2f", notional, g.cfg.MaxOrderNotional))
	}

	projected := currentQuantity + order.Side.Sign()*order.Quantity
	growing := math.Abs(projected) > math.Abs(currentQuantity)
	if g.cfg.MaxPositionQuantity > 0 && growing && math.Abs(projected) > g.cfg.MaxPositionQuantity {
		out = append(out, fmt.Sprintf("position %.4f would exceed %.4f", projected, g.cfg.MaxPositionQuantity))
	}

	return out
}
