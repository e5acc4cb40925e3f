package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/alertrelay/internal/alert"
	"github.com/gyaneshwarpardhi/alertrelay/internal/config"
	"github.com/gyaneshwarpardhi/alertrelay/internal/intake"
	"github.com/gyaneshwarpardhi/alertrelay/internal/metrics"
	"github.com/gyaneshwarpardhi/alertrelay/internal/payment"
	"github.com/gyaneshwarpardhi/alertrelay/internal/qrcode"
	"github.com/gyaneshwarpardhi/alertrelay/internal/relay"
)

// fallbackSignatureHeader is accepted when the configured header is absent.
const fallbackSignatureHeader = "X-Signature"

// AlertSource is the read side of the alert log.
type AlertSource interface {
	Snapshot() []alert.Alert
	Len() int
}

// QueueReporter reports how full a background queue is (0–1).
type QueueReporter interface {
	QueueUtilization() float64
}

// Deps are the components the HTTP surface is wired to.
type Deps struct {
	Loader  *config.Loader
	Intake  *intake.Service
	Alerts  AlertSource
	Hub     *relay.Hub
	Links   payment.LinkCreator
	Mirrors QueueReporter // optional
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	Deps
	mux *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(d Deps) http.Handler {
	h := &Handler{Deps: d, mux: http.NewServeMux()}
	cfg := d.Loader.Config()

	relayOpts := relay.Options{
		Keepalive:    cfg.Relay.Keepalive(),
		WriteTimeout: cfg.Relay.WriteTimeout(),
	}
	limiter := newIPRateLimiter(cfg.PaymentLinks.RatePerSecond, cfg.PaymentLinks.Burst)

	h.mux.HandleFunc("POST /razorpay-webhook", h.receiveWebhook)
	h.mux.HandleFunc("POST /webhook", h.receiveWebhook)
	h.mux.HandleFunc("GET /alerts", h.listAlerts)
	h.mux.Handle("POST /create_payment_link", limiter.middleware(http.HandlerFunc(h.createPaymentLink)))
	h.mux.HandleFunc("GET /qrcode", h.qrCode)
	h.mux.Handle("GET /ws", relay.WebSocketHandler(d.Hub, relayOpts))
	h.mux.Handle("GET /events", relay.SSEHandler(d.Hub, relayOpts))
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	if dir := cfg.Server.StaticDir; dir != "" {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			h.mux.Handle("GET /", http.FileServer(http.Dir(dir)))
		} else {
			slog.Info("static directory not found, not serving assets", "dir", dir)
		}
	}

	var handler http.Handler = h.mux
	handler = limitBody(cfg.Server.MaxBodyBytes, handler)
	handler = corsMiddleware(cfg.Server.CORSOrigin, handler)
	return loggingMiddleware(handler)
}

// POST /razorpay-webhook: provider callback. The body is verified as raw
// bytes before anything parses it.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}

	sig := r.Header.Get(h.Loader.Config().Webhook.SignatureHeader)
	if sig == "" {
		sig = r.Header.Get(fallbackSignatureHeader)
	}

	res := h.Intake.Handle(body, sig)
	switch res.Outcome {
	case intake.Rejected:
		writeError(w, http.StatusBadRequest, "invalid signature")
	case intake.Malformed:
		writeError(w, http.StatusBadRequest, "invalid json")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": res.Outcome.String()})
	}
}

// GET /alerts: alert log snapshot for non-streaming consumers.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": h.Alerts.Snapshot(),
	})
}

// POST /create_payment_link: create a donation link with the provider.
func (h *Handler) createPaymentLink(w http.ResponseWriter, r *http.Request) {
	var req payment.LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	req = req.WithDefaults(h.Loader.Config().PaymentLinks.DefaultAmount)

	link, err := h.Links.CreateLink(r.Context(), req)
	if err != nil {
		metrics.PaymentLinks.WithLabelValues("error").Inc()
		var pe *payment.ProviderError
		switch {
		case errors.Is(err, payment.ErrInvalidAmount):
			writeFailure(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &pe):
			slog.Error("payment link rejected by provider", "status", pe.Status, "code", pe.Code, "err", err)
			writeFailure(w, http.StatusBadGateway, pe.Error())
		default:
			slog.Error("payment link creation failed", "err", err)
			writeFailure(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	metrics.PaymentLinks.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"link":    link,
	})
}

// GET /qrcode?url=: QR image data URI for a payment link.
func (h *Handler) qrCode(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "missing url")
		return
	}
	dataURL, err := qrcode.DataURL(url)
	if err != nil {
		slog.Error("qr code generation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "qr error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"qrcode": dataURL})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the mirror queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	var util float64
	if h.Mirrors != nil {
		util = h.Mirrors.QueueUtilization()
	}
	status, code := "ready", http.StatusOK
	if util > 0.8 {
		status, code = "overloaded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":            status,
		"viewers":           h.Hub.Count(),
		"alerts":            h.Alerts.Len(),
		"queue_utilization": util,
	})
}
