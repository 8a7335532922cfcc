package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wonny/tradebook/internal/contracts"
)

// ============================================================
// Orders
// ============================================================

// ListOrders returns every order, or only working ones with ?open=true
// GET /api/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	store := h.session.Orders()
	orders := store.List()
	if r.URL.Query().Get("open") == "true" {
		orders = store.Open()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrder returns one order
// GET /api/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, found := h.session.Orders().Get(id)
	if !found {
		respondError(w, http.StatusNotFound, string(contracts.ResultOrderNotFound))
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// PlaceOrderRequest is the body of POST /api/orders
type PlaceOrderRequest struct {
	AccountID    int64                 `json:"account_id"`
	SecurityID   int64                 `json:"security_id"`
	SecurityCode string                `json:"security_code"`
	Side         contracts.Side        `json:"side"`
	Type         contracts.OrderType   `json:"type"`
	Price        float64               `json:"price"`
	LimitPrice   float64               `json:"limit_price"`
	StopPrice    float64               `json:"stop_price"`
	Quantity     float64               `json:"quantity"`
	TimeInForce  contracts.TimeInForce `json:"time_in_force"`
	Comment      string                `json:"comment"`
}

// PlaceOrder creates and sends an order
// POST /api/orders
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.session.PlaceOrder(r.Context(), contracts.Order{
		AccountID:      req.AccountID,
		SecurityID:     req.SecurityID,
		SecurityCode:   req.SecurityCode,
		Side:           req.Side,
		Type:           req.Type,
		RequestedPrice: req.Price,
		LimitPrice:     req.LimitPrice,
		StopPrice:      req.StopPrice,
		Quantity:       req.Quantity,
		TimeInForce:    req.TimeInForce,
		Comment:        req.Comment,
	})
	if err != nil {
		h.logger.WithError(err).WithField("security_code", req.SecurityCode).Warn("Place order failed")
	}
	respondResult(w, err, o)
}

// CancelOrder cancels an order
// DELETE /api/orders/{id}
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.session.CancelOrder(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("order_id", id).Warn("Cancel order failed")
	}
	respondResult(w, err, o)
}

// GetOrderTrades returns the fills of an order
// GET /api/orders/{id}/trades
func (h *Handler) GetOrderTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, found := h.session.Orders().Get(id); !found {
		respondError(w, http.StatusNotFound, string(contracts.ResultOrderNotFound))
		return
	}
	trades := h.session.Trades().GetByOrder(id)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// ============================================================
// Trades
// ============================================================

// FindTrades returns trades by security and time range
// GET /api/trades?security_id=&from=&to=
func (h *Handler) FindTrades(w http.ResponseWriter, r *http.Request) {
	securityID, ok := queryInt(w, r, "security_id")
	if !ok {
		return
	}
	from, ok := queryTime(w, r, "from")
	if !ok {
		return
	}
	to, ok := queryTime(w, r, "to")
	if !ok {
		return
	}

	trades := h.session.Trades().Find(securityID, from, to)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}
