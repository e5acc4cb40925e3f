// Package relay fans alerts out to connected overlay viewers and replays
// the alert log to each viewer when it connects.
package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/alertrelay/internal/alert"
	"github.com/gyaneshwarpardhi/alertrelay/internal/metrics"
)

// Server-to-viewer message types.
const (
	MessageAllAlerts = "all_alerts"
	MessageNewAlert  = "new_alert"
)

// Transport names, used for logging and metrics.
const (
	TransportWebSocket = "websocket"
	TransportSSE       = "sse"
)

const defaultViewerBuffer = 64

// Source is the read side of the alert log.
type Source interface {
	Snapshot() []alert.Alert
}

// Message is one server-to-viewer frame. Data is already JSON-encoded so a
// publish is marshalled once no matter how many viewers receive it.
type Message struct {
	Event string
	Seq   uint64 // newest log sequence covered by this message
	Data  json.RawMessage
}

// Frame encodes m as {"event": ..., "data": ...}.
func (m Message) Frame() []byte {
	b, _ := json.Marshal(struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}{m.Event, m.Data})
	return b
}

// Viewer is one connected overlay surface.
type Viewer struct {
	ID          string
	Transport   string
	ConnectedAt time.Time

	send      chan Message
	done      chan struct{}
	closeOnce sync.Once
	replayed  uint64 // log length included in the replay; guarded by Hub.mu
}

// Messages delivers frames in order. The first one is always all_alerts.
func (v *Viewer) Messages() <-chan Message { return v.send }

// Done is closed when the viewer is disconnected or evicted.
func (v *Viewer) Done() <-chan struct{} { return v.done }

// Hub tracks connected viewers. Publishes must be issued in log order,
// one at a time; intake does this under its own lock.
type Hub struct {
	src    Source
	buffer int

	mu      sync.Mutex
	viewers map[*Viewer]struct{}
}

// NewHub creates a Hub replaying from src. buffer bounds each viewer's
// send queue; a viewer whose queue is full is evicted.
func NewHub(src Source, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultViewerBuffer
	}
	return &Hub{
		src:     src,
		buffer:  buffer,
		viewers: make(map[*Viewer]struct{}),
	}
}

// Connect registers a viewer and queues its all_alerts replay. Only alerts
// with a sequence above since are replayed; since is ignored if it is
// beyond the end of the log (the log was reset by a restart).
func (h *Hub) Connect(transport string, since uint64) *Viewer {
	v := &Viewer{
		ID:          uuid.NewString(),
		Transport:   transport,
		ConnectedAt: time.Now(),
		send:        make(chan Message, h.buffer+1),
		done:        make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Snapshot and registration happen under mu so no publish can slip
	// between them.
	snap := h.src.Snapshot()
	v.replayed = uint64(len(snap))
	if since > v.replayed {
		since = 0
	}
	replay := snap[since:]

	data, err := json.Marshal(replay)
	if err != nil {
		slog.Error("encoding replay failed", "viewer", v.ID, "err", err)
		data = []byte("[]")
	}
	v.send <- Message{Event: MessageAllAlerts, Seq: v.replayed, Data: data}
	h.viewers[v] = struct{}{}

	metrics.ViewersConnected.WithLabelValues(transport).Inc()
	metrics.ViewerMessages.WithLabelValues(MessageAllAlerts).Inc()
	slog.Info("viewer connected", "viewer", v.ID, "transport", transport, "replayed", len(replay))
	return v
}

// Publish queues a new_alert message for every connected viewer whose
// replay did not already include a. It never blocks: a viewer that cannot
// keep up is evicted and will catch up from the log when it reconnects.
func (h *Hub) Publish(a alert.Alert) {
	data, err := json.Marshal(a)
	if err != nil {
		slog.Error("encoding alert failed", "alert_id", a.ID, "err", err)
		return
	}
	msg := Message{Event: MessageNewAlert, Seq: a.Seq, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.viewers {
		if a.Seq != 0 && a.Seq <= v.replayed {
			continue
		}
		select {
		case v.send <- msg:
			metrics.ViewerMessages.WithLabelValues(MessageNewAlert).Inc()
		default:
			slog.Warn("viewer too slow, evicting", "viewer", v.ID, "transport", v.Transport)
			metrics.ViewersEvicted.Inc()
			h.removeLocked(v)
		}
	}
}

// Disconnect removes v from the broadcast set. It is safe to call more
// than once.
func (h *Hub) Disconnect(v *Viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.viewers[v]; ok {
		h.removeLocked(v)
		slog.Info("viewer disconnected", "viewer", v.ID, "transport", v.Transport,
			"connected_for", time.Since(v.ConnectedAt).Round(time.Second))
	}
}

func (h *Hub) removeLocked(v *Viewer) {
	delete(h.viewers, v)
	v.closeOnce.Do(func() { close(v.done) })
	metrics.ViewersConnected.WithLabelValues(v.Transport).Dec()
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.viewers {
		h.removeLocked(v)
	}
}
