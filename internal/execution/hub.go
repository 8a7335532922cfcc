package execution

import (
	"sync"

	"github.com/wonny/tradebook/internal/contracts"
)

// Hub fans execution callbacks out to at most one subscriber.
// Subscribing again drops the previous handler first.
type Hub struct {
	mu      sync.RWMutex
	handler *contracts.ExecutionHandler
	gen     uint64
}

// Subscribe installs handler and returns its unsubscribe func.
// A stale unsubscribe (after a newer Subscribe) is a no-op.
func (h *Hub) Subscribe(handler contracts.ExecutionHandler) (unsubscribe func()) {
	h.mu.Lock()
	h.gen++
	gen := h.gen
	h.handler = &handler
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.gen == gen {
			h.handler = nil
		}
	}
}

// Subscribed reports whether a handler is installed
func (h *Hub) Subscribed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.handler != nil
}

func (h *Hub) current() *contracts.ExecutionHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.handler
}

// PublishTrade delivers a trade notification
func (h *Hub) PublishTrade(t contracts.Trade) {
	if hd := h.current(); hd != nil && hd.OnTrade != nil {
		hd.OnTrade(t)
	}
}

// PublishOrder delivers an order state notification
func (h *Hub) PublishOrder(o contracts.Order) {
	if hd := h.current(); hd != nil && hd.OnOrderState != nil {
		hd.OnOrderState(o)
	}
}

// PublishAssetChange delivers a balance delta
func (h *Hub) PublishAssetChange(c contracts.AssetChange) {
	if hd := h.current(); hd != nil && hd.OnAssetChange != nil {
		hd.OnAssetChange(c)
	}
}
