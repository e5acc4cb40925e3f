package relay

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Options tune the streaming transports.
type Options struct {
	Keepalive    time.Duration // ping / comment interval
	WriteTimeout time.Duration // per-frame write deadline
}

func (o Options) withDefaults() Options {
	if o.Keepalive <= 0 {
		o.Keepalive = 15 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	return o
}

// maxClientFrame caps inbound frames; viewers have nothing to say.
const maxClientFrame = 512

// WebSocketHandler serves viewers over WebSocket. Frames are JSON
// {"event": "all_alerts"|"new_alert", "data": ...}.
func WebSocketHandler(h *Hub, opts Options) http.Handler {
	opts = opts.withDefaults()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		// Overlays are loaded from streaming software on arbitrary origins.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client.
			slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		defer conn.Close()

		v := h.Connect(TransportWebSocket, 0)
		defer h.Disconnect(v)

		pongWait := 2 * opts.Keepalive
		go readLoop(conn, h, v, pongWait)

		ping := time.NewTicker(opts.Keepalive)
		defer ping.Stop()

		for {
			select {
			case m := <-v.Messages():
				_ = conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, m.Frame()); err != nil {
					slog.Debug("websocket write failed", "viewer", v.ID, "err", err)
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-v.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "reconnect to resync"),
					time.Now().Add(opts.WriteTimeout))
				return
			}
		}
	})
}

// readLoop discards client frames and disconnects the viewer when the
// connection drops or stops answering pings.
func readLoop(conn *websocket.Conn, h *Hub, v *Viewer, pongWait time.Duration) {
	defer h.Disconnect(v)
	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
