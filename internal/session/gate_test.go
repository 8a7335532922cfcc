package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/pkg/logger"
)

func TestGate_Check(t *testing.T) {
	cfg := GateConfig{
		MaxOrderNotional:    10_000,
		MaxPositionQuantity: 100,
		BlackList:           []string{"035720"},
	}
	buy := func(code string, price, qty float64) contracts.Order {
		return contracts.Order{SecurityCode: code, Side: contracts.SideBuy, LimitPrice: price, Quantity: qty}
	}
	sell := func(code string, price, qty float64) contracts.Order {
		o := buy(code, price, qty)
		o.Side = contracts.SideSell
		return o
	}

	tests := []struct {
		name       string
		mode       GateMode
		order      contracts.Order
		current    float64
		passed     bool
		wouldBlock bool
		violations int
	}{
		{"off ignores everything", GateModeOff, buy("035720", 1_000, 1_000), 0, true, false, 0},
		{"enforce passes clean order", GateModeEnforce, buy("005930", 100, 10), 0, true, false, 0},
		{"enforce blocks blacklist", GateModeEnforce, buy("035720", 100, 1), 0, false, true, 1},
		{"enforce blocks notional", GateModeEnforce, buy("005930", 1_000, 11), 0, false, true, 1},
		{"enforce blocks growth past limit", GateModeEnforce, buy("005930", 10, 20), 90, false, true, 1},
		{"reducing is allowed over limit", GateModeEnforce, sell("005930", 10, 20), 150, true, false, 0},
		{"short growth counts", GateModeEnforce, sell("005930", 10, 30), -80, false, true, 1},
		{"shadow only warns", GateModeShadow, buy("035720", 1_000, 200), 0, true, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			c.Mode = tt.mode
			res := NewGate(c, logger.Nop()).Check(tt.order, tt.current)

			assert.Equal(t, tt.passed, res.Passed)
			assert.Equal(t, tt.wouldBlock, res.WouldBlock)
			assert.Len(t, res.Violations, tt.violations)
			assert.Equal(t, tt.mode, res.Mode)
		})
	}
}

func TestGate_DefaultsToOff(t *testing.T) {
	g := NewGate(GateConfig{MaxOrderNotional: 1}, logger.Nop())
	assert.Equal(t, GateModeOff, g.Mode())
	assert.True(t, g.Check(contracts.Order{Side: contracts.SideBuy, LimitPrice: 10, Quantity: 10}, 0).Passed)
}

func TestGate_RequestedPriceFallback(t *testing.T) {
	g := NewGate(GateConfig{Mode: GateModeEnforce, MaxOrderNotional: 500}, logger.Nop())
	res := g.Check(contracts.Order{Side: contracts.SideBuy, Type: contracts.OrderTypeMarket, RequestedPrice: 100, Quantity: 10}, 0)
	assert.False(t, res.Passed)
}
