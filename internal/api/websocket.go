package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/config"
	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/logging"
	"github.com/nerrad567/gatekeeper-core/internal/notify"
)

// newUpgrader configures the WebSocket upgrader. Browser origins are held
// to the same allow list as CORS; requests without an Origin header come
// from non-browser clients and are accepted.
func (s *Server) newUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.allowOrigin(origin) != ""
		},
	}
}

// wsClient is one live-channel connection. It owns exactly one hub
// observer for the lifetime of the connection.
type wsClient struct {
	hub    ObserverHub
	obs    *notify.Observer
	conn   *websocket.Conn
	logger *logging.Logger
}

// handleWebSocket upgrades the connection and joins it to the hub. Events
// published before the join are not delivered.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.newUpgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Warn("websocket upgrade failed", "error", err, "origin", r.Header.Get("Origin"))
		return
	}

	obs := s.hub.Join()
	client := &wsClient{
		hub:    s.hub,
		obs:    obs,
		conn:   conn,
		logger: s.logger.With("observer_id", obs.ID()),
	}
	client.logger.Debug("websocket client connected", "remote_addr", r.RemoteAddr)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump keeps the connection's read side alive. Clients have nothing to
// send; anything they do send only extends the read deadline. It leaves
// the hub when the connection ends.
func (c *wsClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Leave(c.obs)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			} else {
				c.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection alive
		// even if browser doesn't respond to protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.logger.Debug("websocket message ignored", "bytes", len(message))
	}
}

// writePump drains the observer queue onto the connection as JSON text
// frames and sends keepalive pings. It returns when the hub lets the
// observer go or a write fails.
func (c *wsClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.hub.Leave(c.obs)
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case ev := <-c.obs.Events():
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-c.obs.Done():
			// Left, dropped as too slow, or hub shutting down.
			//nolint:errcheck // Best-effort close message
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
