package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Stream handles GET /api/screens/{screenId}/ws
// Sends the current view, then every view published after a state change
func (h *ScreenHandler) Stream(w http.ResponseWriter, r *http.Request) {
	s, ok := h.screenFromRequest(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	views, cancel := s.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go readPump(conn, closed)

	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(s.View()); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case v, open := <-views:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !open {
				// Screen unmounted
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "screen unmounted"))
				return
			}
			if err := conn.WriteJSON(v); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// readPump drains client messages so control frames are processed, and
// signals when the client goes away
func readPump(c *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	c.SetReadLimit(4096)
	c.SetReadDeadline(time.Now().Add(wsPongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
