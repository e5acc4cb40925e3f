package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for:
//   - Values that must be positive
//   - A three-letter default currency
//   - Sinks with an address but no destination
//
// A missing webhook secret is not an error: the service starts and rejects
// every webhook until one is configured.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if cfg.Server.MaxBodyBytes < 0 {
		errs = append(errs, "server.max_body_bytes must not be negative")
	}
	if cfg.Webhook.SignatureHeader == "" {
		errs = append(errs, "webhook.signature_header is required")
	}
	if c := cfg.Alerts.DefaultCurrency; len(c) != 3 || strings.ToUpper(c) != c {
		errs = append(errs, fmt.Sprintf("alerts.default_currency %q must be a 3-letter upper-case code", c))
	}
	if cfg.Relay.ViewerBuffer < 1 {
		errs = append(errs, "relay.viewer_buffer must be at least 1")
	}
	if cfg.Relay.KeepaliveSeconds < 1 {
		errs = append(errs, "relay.keepalive_seconds must be at least 1")
	}
	if cfg.Relay.WriteTimeoutSeconds < 1 {
		errs = append(errs, "relay.write_timeout_seconds must be at least 1")
	}
	if cfg.PaymentLinks.RatePerSecond <= 0 {
		errs = append(errs, "payment_links.rate_per_second must be positive")
	}
	if cfg.PaymentLinks.Burst < 1 {
		errs = append(errs, "payment_links.burst must be at least 1")
	}
	if cfg.PaymentLinks.DefaultAmount <= 0 {
		errs = append(errs, "payment_links.default_amount must be positive")
	}
	if cfg.Sinks.QueueDepth < 1 {
		errs = append(errs, "sinks.queue_depth must be at least 1")
	}
	if cfg.Sinks.NATS.URL != "" && cfg.Sinks.NATS.Subject == "" {
		errs = append(errs, "sinks.nats.subject is required when sinks.nats.url is set")
	}
	if cfg.Sinks.Kafka.Brokers != "" && cfg.Sinks.Kafka.Topic == "" {
		errs = append(errs, "sinks.kafka.topic is required when sinks.kafka.brokers is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
