// Package intake turns verified provider webhooks into alerts: verify,
// decode, append to the log, then publish to viewers.
package intake

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/alertrelay/internal/alert"
	"github.com/gyaneshwarpardhi/alertrelay/internal/metrics"
	"github.com/gyaneshwarpardhi/alertrelay/internal/store"
	"github.com/gyaneshwarpardhi/alertrelay/internal/webhook"
)

// Outcome is where a webhook call ended up.
type Outcome int

const (
	Rejected  Outcome = iota + 1 // signature check failed
	Malformed                    // body could not be parsed
	Ignored                      // event type not acted on
	Appended                     // new alert stored and published
	Duplicate                    // alert id already in the log
)

func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case Malformed:
		return "malformed"
	case Ignored:
		return "ignored"
	case Appended:
		return "appended"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Accepted reports whether the provider should be told the call succeeded.
func (o Outcome) Accepted() bool {
	return o == Ignored || o == Appended || o == Duplicate
}

// Log is the write side of the alert log.
type Log interface {
	Append(a alert.Alert) (alert.Alert, store.AppendResult)
	Len() int
}

// Publisher pushes a stored alert to live viewers.
type Publisher interface {
	Publish(a alert.Alert)
}

// Mirror receives stored alerts for out-of-band delivery.
type Mirror interface {
	Enqueue(a alert.Alert) bool
}

// Result describes one handled webhook.
type Result struct {
	Outcome Outcome
	Alert   alert.Alert // set for Appended and Duplicate
	Err     error       // set for Rejected, Malformed and Ignored
}

// Service is the webhook intake pipeline. It is safe for concurrent use;
// append-then-publish runs under one lock so viewers see alerts in log order.
type Service struct {
	log    Log
	pub    Publisher
	mirror Mirror

	secret atomic.Pointer[string]
	codec  atomic.Pointer[alert.Codec]

	mu sync.Mutex
}

// New creates a Service. mirror may be nil.
func New(log Log, pub Publisher, mirror Mirror, secret string, defaults alert.Defaults) *Service {
	s := &Service{log: log, pub: pub, mirror: mirror}
	s.SetSecret(secret)
	s.SetDefaults(defaults)
	return s
}

// SetSecret swaps the shared webhook secret (used on config reload).
func (s *Service) SetSecret(secret string) {
	s.secret.Store(&secret)
}

// SetDefaults swaps the values used for fields a payload omits.
func (s *Service) SetDefaults(d alert.Defaults) {
	s.codec.Store(alert.NewCodec(d))
}

// Handle runs one webhook body through the pipeline. body must be the
// bytes exactly as received.
func (s *Service) Handle(body []byte, signature string) Result {
	start := time.Now()
	res := s.handle(body, signature)
	metrics.Webhooks.WithLabelValues(res.Outcome.String()).Inc()
	metrics.WebhookDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	return res
}

func (s *Service) handle(body []byte, signature string) Result {
	if err := webhook.Check(body, signature, *s.secret.Load()); err != nil {
		slog.Warn("invalid webhook signature", "err", err)
		return Result{Outcome: Rejected, Err: err}
	}

	a, err := s.codec.Load().Decode(body)
	switch {
	case errors.Is(err, alert.ErrUnhandledEventType):
		slog.Debug("webhook event ignored", "err", err)
		return Result{Outcome: Ignored, Err: err}
	case err != nil:
		slog.Warn("malformed webhook body", "err", err)
		return Result{Outcome: Malformed, Err: err}
	}

	s.mu.Lock()
	stored, appended := s.log.Append(a)
	if appended == store.Inserted {
		s.pub.Publish(stored)
		if s.mirror != nil {
			s.mirror.Enqueue(stored)
		}
	}
	size := s.log.Len()
	s.mu.Unlock()

	if appended == store.DuplicateIgnored {
		slog.Info("duplicate webhook ignored", "alert_id", a.ID)
		return Result{Outcome: Duplicate, Alert: stored}
	}

	metrics.AlertsAppended.Inc()
	metrics.AlertLogSize.Set(float64(size))
	slog.Info("alert appended", "alert_id", stored.ID, "seq", stored.Seq,
		"name", stored.Name, "currency", stored.Currency)
	return Result{Outcome: Appended, Alert: stored}
}
