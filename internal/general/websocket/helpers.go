package websocket

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// writePump is the only writer of v.conn once the viewer is registered.
func (h *Hub) writePump(ctx context.Context, v *viewer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = v.conn.Close()
	}()

	for {
		select {
		case frame := <-v.send:
			if err := writeFrame(v.conn, websocket.TextMessage, frame, h.writeTimeout); err != nil {
				h.prune(ctx, v, "write failed")
				return
			}
		case <-ticker.C:
			if err := v.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				h.prune(ctx, v, "ping failed")
				return
			}
		case <-v.done:
			writeClose(v.conn, websocket.CloseNormalClosure, "bye")
			return
		}
	}
}

// writeFrame sets a short write deadline and writes a message.
func writeFrame(conn *websocket.Conn, mt int, payload []byte, timeout time.Duration) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	return conn.WriteMessage(mt, payload)
}

// writeClose sends a close control frame with the given code and reason.
func writeClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
}
