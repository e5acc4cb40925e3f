// Package sink mirrors inserted alerts to external message brokers for
// consumers that are not overlay viewers.
package sink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gyaneshwarpardhi/alertrelay/internal/alert"
	"github.com/gyaneshwarpardhi/alertrelay/internal/metrics"
)

// Sink receives a copy of every alert inserted into the log.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	Publish(ctx context.Context, a alert.Alert) error
	Close() error
}

const publishTimeout = 10 * time.Second

// Forwarder hands alerts to every sink on a single background worker so
// mirrors see alerts in log order. It never blocks the caller.
type Forwarder struct {
	sinks []Sink
	pool  *workerPool[alert.Alert]
}

// NewForwarder starts a forwarder with the given queue depth. It is valid
// with no sinks; Enqueue is then a no-op.
func NewForwarder(ctx context.Context, queueDepth int, sinks ...Sink) *Forwarder {
	if queueDepth <= 0 {
		queueDepth = 1000
	}
	f := &Forwarder{sinks: sinks}
	f.pool = newWorkerPool[alert.Alert](ctx, 1, queueDepth, f.forward)
	return f
}

// Enqueue schedules a for mirroring. It returns false if the alert was
// dropped because the queue is full or the forwarder is closed.
func (f *Forwarder) Enqueue(a alert.Alert) bool {
	if len(f.sinks) == 0 {
		return true
	}
	if !f.pool.Submit(a) {
		metrics.SinkDropped.Inc()
		slog.Warn("sink queue full or closed, alert not mirrored", "alert_id", a.ID)
		return false
	}
	return true
}

// Sinks returns the names of the configured sinks.
func (f *Forwarder) Sinks() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return names
}

// QueueUtilization returns queue used / capacity (0–1).
func (f *Forwarder) QueueUtilization() float64 {
	if f.pool.QueueCap() == 0 {
		return 0
	}
	return float64(f.pool.QueueLen()) / float64(f.pool.QueueCap())
}

func (f *Forwarder) forward(ctx context.Context, a alert.Alert) {
	for _, s := range f.sinks {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := s.Publish(pctx, a)
		cancel()
		if err != nil {
			metrics.SinkPublished.WithLabelValues(s.Name(), "error").Inc()
			slog.Error("sink publish failed", "sink", s.Name(), "alert_id", a.ID, "err", err)
			continue
		}
		metrics.SinkPublished.WithLabelValues(s.Name(), "success").Inc()
	}
}

// Close drains queued alerts, then closes every sink.
func (f *Forwarder) Close() error {
	f.pool.Drain()
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
