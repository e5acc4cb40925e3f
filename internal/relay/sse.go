package relay

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// SSEHandler serves viewers as a Server-Sent Events stream. Each frame's
// id is the newest log sequence it covers, so a reconnecting client that
// sends Last-Event-ID is replayed only what it missed.
func SSEHandler(h *Hub, opts Options) http.Handler {
	opts = opts.withDefaults()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		var since uint64
		if id := r.Header.Get("Last-Event-ID"); id != "" {
			if n, err := strconv.ParseUint(id, 10, 64); err == nil {
				since = n
			}
		}

		v := h.Connect(TransportSSE, since)
		defer h.Disconnect(v)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		rc := http.NewResponseController(w)
		deadline := func() { _ = rc.SetWriteDeadline(time.Now().Add(opts.WriteTimeout)) }

		keepalive := time.NewTicker(opts.Keepalive)
		defer keepalive.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-v.Done():
				return
			case m := <-v.Messages():
				deadline()
				if err := writeSSE(w, m); err != nil {
					return
				}
				flusher.Flush()
			case <-keepalive.C:
				deadline()
				if _, err := fmt.Fprint(w, ":keepalive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	})
}

func writeSSE(w http.ResponseWriter, m Message) error {
	_, err := fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", m.Seq, m.Event, m.Data)
	return err
}
