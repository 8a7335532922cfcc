package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/internal/session"
	"github.com/wonny/tradebook/pkg/logger"
)

// Handler serves the reconciliation state over HTTP
// ⭐ SSOT: API 핸들러는 이 구조체에서만
type Handler struct {
	session *session.Session
	logger  *logger.Logger
}

// New creates a new handler
func New(s *session.Session, log *logger.Logger) *Handler {
	return &Handler{
		session: s,
		logger:  log,
	}
}

// ============================================================
// Portfolio
// ============================================================

// GetPortfolio returns positions, balances and residuals of an account
// GET /api/portfolio/{account}
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r, "account")
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.session.Reconciler().Snapshot(accountID))
}

// GetDiff returns quantity changes since the session started
// GET /api/portfolio/{account}/diff
func (h *Handler) GetDiff(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r, "account")
	if !ok {
		return
	}
	rec := h.session.Reconciler()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": rec.SessionID(),
		"account_id": accountID,
		"diff":       rec.Diff(accountID),
	})
}

// GetClosedPositions returns archived positions
// GET /api/positions/closed?account=
func (h *Handler) GetClosedPositions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := queryInt(w, r, "account")
	if !ok {
		return
	}
	closed := h.session.Reconciler().Closed(accountID)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"positions": closed,
		"count":     len(closed),
	})
}

// ============================================================
// Helpers
// ============================================================

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondResult maps a core error to its result code and HTTP status
func respondResult(w http.ResponseWriter, err error, data interface{}) {
	code := contracts.ResultOf(err)
	status := http.StatusOK
	switch code {
	case contracts.ResultOK:
		respondJSON(w, status, data)
		return
	case contracts.ResultNoop:
		respondJSON(w, status, map[string]interface{}{"result": code, "data": data})
		return
	case contracts.ResultInvalidOrder, contracts.ResultInvalidTrade, contracts.ResultSecurityNotFound:
		status = http.StatusBadRequest
	case contracts.ResultOrderNotFound:
		status = http.StatusNotFound
	case contracts.ResultIllegalTransition, contracts.ResultPositionClosed, contracts.ResultPositionMismatch:
		status = http.StatusConflict
	case contracts.ResultSendOrderFailed, contracts.ResultCancelOrderFailed:
		status = http.StatusBadGateway
	case contracts.ResultTimeout:
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusInternalServerError
	}
	respondError(w, status, string(code))
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer parameter; missing = 0
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}

// queryTime parses an optional RFC3339 or YYYY-MM-DD parameter
func queryTime(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	respondError(w, http.StatusBadRequest, "invalid "+name)
	return time.Time{}, false
}
