package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bennydictor/visualmath/internal/config"
	"github.com/bennydictor/visualmath/internal/platform/logger"
	"github.com/bennydictor/visualmath/pkg/interfaces"
)

// Handler upgrades HTTP requests to websocket connections and pumps their
// inbound frames through the event router, one frame at a time.
type Handler struct {
	router   interfaces.EventRouter
	cfg      *config.WebSocketConfig
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewHandler creates a handler. An empty allowedOrigins list, or one
// containing "*", accepts any origin.
func NewHandler(router interfaces.EventRouter, cfg *config.WebSocketConfig, allowedOrigins []string, log *logger.Logger) *Handler {
	h := &Handler{
		router: router,
		cfg:    cfg,
		log:    log.With("component", "websocket"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}

// HandleWebSocket upgrades the request and serves the connection until the
// client goes away. Authentication happens per event, not at upgrade time.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	conn := NewConnection(ws, h.cfg.BufferSize, h.cfg.WriteTimeout)
	h.log.Debug("connection opened", "connection_id", conn.ID(), "remote", r.RemoteAddr)

	go h.handleConnection(conn)
}

func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		// Leaving is implicit when the socket goes away.
		h.router.Disconnect(conn)
		_ = conn.Close()
		h.log.Debug("connection closed", "connection_id", conn.ID())
	}()

	ws := conn.conn
	if h.cfg.MaxMessageSize > 0 {
		ws.SetReadLimit(h.cfg.MaxMessageSize)
	}
	if err := ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		h.log.Warn("failed to set read deadline", "error", err)
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", "connection_id", conn.ID(), "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		reply := h.router.Dispatch(conn.ctx, conn, data)
		if reply == nil {
			continue
		}
		if err := conn.WriteJSON(reply); err != nil {
			h.log.Warn("failed to write reply", "connection_id", conn.ID(), "event", reply.Event, "error", err)
			return
		}
	}
}

func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = conn.Close()
				return
			}
		case <-conn.Done():
			return
		}
	}
}
