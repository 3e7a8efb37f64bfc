// internal/notification/realtime/websocket.go
package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// NewUpgrader allows any origin when allowedOrigin is empty or "*".
func NewUpgrader(allowedOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
}

// Serve upgrades the request, registers the connection for userID and blocks until
// the client goes away. Inbound frames are discarded; the stream is server-to-client.
func (h *Hub) Serve(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := h.Register(userID, conn)
	defer func() {
		h.Unregister(client)
		conn.Close()
		h.logger.Debug("connection closed", map[string]interface{}{"userId": userID})
	}()

	_ = client.write(map[string]string{"status": "connected", "userId": userID}, h.writeTimeout)

	done := make(chan struct{})
	defer close(done)
	go h.ping(client, done)

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", map[string]interface{}{"userId": userID, "error": err})
			}
			return nil
		}
	}
}

func (h *Hub) ping(c *Client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	ws, ok := c.conn.(*websocket.Conn)
	if !ok {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
