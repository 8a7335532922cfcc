package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/tradebook/internal/contracts"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	streamBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamPositions pushes position events to a websocket client.
// A client that cannot keep up is disconnected.
// GET /ws/positions?account=
func (h *Handler) StreamPositions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := queryInt(w, r, "account")
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events := make(chan contracts.PositionEvent, streamBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	unsubscribe := h.session.Reconciler().Subscribe(func(ev contracts.PositionEvent) {
		if accountID > 0 && ev.Position.AccountID != accountID {
			return
		}
		select {
		case events <- ev:
		default:
			once.Do(func() { close(overflow) })
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	log := h.logger.WithField("remote", r.RemoteAddr)
	log.Debug("Position stream connected")

	for {
		select {
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.WithError(err).Debug("Position stream write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-overflow:
			log.Warn("Position stream client too slow, disconnecting")
			return
		case <-closed:
			log.Debug("Position stream disconnected")
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readPump consumes control frames and reports when the client goes away
func (h *Handler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
