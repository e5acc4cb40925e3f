package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/alertrelay/internal/alert"
	"github.com/gyaneshwarpardhi/alertrelay/internal/api"
	"github.com/gyaneshwarpardhi/alertrelay/internal/config"
	"github.com/gyaneshwarpardhi/alertrelay/internal/intake"
	"github.com/gyaneshwarpardhi/alertrelay/internal/payment"
	"github.com/gyaneshwarpardhi/alertrelay/internal/relay"
	"github.com/gyaneshwarpardhi/alertrelay/internal/sink"
	"github.com/gyaneshwarpardhi/alertrelay/internal/store"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive webhooks and relay alerts to overlay viewers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, err := config.NewLoader(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg := loader.Config()
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("config validation failed: %w", err)
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if cfg.Webhook.Secret == "" {
				slog.Warn("no webhook secret configured; every webhook will be rejected")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, loader, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	return cmd
}

func alertDefaults(cfg *config.Config) alert.Defaults {
	return alert.Defaults{
		Currency:       cfg.Alerts.DefaultCurrency,
		AnonymousLabel: cfg.Alerts.AnonymousLabel,
		IDPrefix:       cfg.Alerts.IDPrefix,
	}
}

// openSinks connects every configured mirror. A sink that cannot connect
// is skipped so a broker outage never blocks startup.
func openSinks(cfg config.SinksConf) []sink.Sink {
	var sinks []sink.Sink
	if cfg.NATS.URL != "" {
		n, err := sink.NewNATS(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			slog.Warn("nats sink unavailable", "url", cfg.NATS.URL, "err", err)
		} else {
			sinks = append(sinks, n)
		}
	}
	if cfg.Kafka.Brokers != "" {
		k, err := sink.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			slog.Warn("kafka sink unavailable", "brokers", cfg.Kafka.Brokers, "err", err)
		} else {
			sinks = append(sinks, k)
		}
	}
	return sinks
}

func serve(ctx context.Context, loader *config.Loader, addr string) error {
	cfg := loader.Config()

	log := store.NewLog()
	hub := relay.NewHub(log, cfg.Relay.ViewerBuffer)

	fwdCtx, cancelFwd := context.WithCancel(context.Background())
	defer cancelFwd()
	forwarder := sink.NewForwarder(fwdCtx, cfg.Sinks.QueueDepth, openSinks(cfg.Sinks)...)
	slog.Info("alert mirroring", "sinks", forwarder.Sinks())

	svc := intake.New(log, hub, forwarder, cfg.Webhook.Secret, alertDefaults(cfg))
	links := payment.NewRazorpay(cfg.Razorpay.BaseURL, cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)

	loader.OnChange(func(c *config.Config) {
		svc.SetSecret(c.Webhook.Secret)
		svc.SetDefaults(alertDefaults(c))
		slog.Info("config reloaded", "path", loader.Path())
	})
	if loader.Path() != "" {
		stopWatch, err := loader.Watch()
		if err != nil {
			slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			defer stopWatch()
		}
	}

	srv := &http.Server{
		Addr: addr,
		Handler: api.New(api.Deps{
			Loader:  loader,
			Intake:  svc,
			Alerts:  log,
			Hub:     hub,
			Links:   links,
			Mirrors: forwarder,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: /ws and /events are long-lived; the relay sets
		// its own per-frame deadlines.
		IdleTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case serveErr = <-errc:
		if serveErr != nil {
			slog.Error("server error", "err", serveErr)
		}
	}

	// Viewers first so Shutdown does not wait on open streams.
	hub.Close()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	if err := forwarder.Close(); err != nil {
		slog.Warn("closing sinks", "err", err)
	}
	slog.Info("goodbye", "alerts", log.Len())
	return serveErr
}
