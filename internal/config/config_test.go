package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "alertrelay.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func noEnv(string) string { return "" }

func TestLoad_Defaults(t *testing.T) {
	l, err := newLoader("", noEnv)
	if err != nil {
		t.Fatal(err)
	}
	cfg := l.Config()
	if cfg.Server.Addr != ":3000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Webhook.SignatureHeader != "X-Razorpay-Signature" {
		t.Errorf("signature header = %q", cfg.Webhook.SignatureHeader)
	}
	if cfg.Alerts.DefaultCurrency != "INR" || cfg.Alerts.AnonymousLabel != "Anonymous" {
		t.Errorf("alerts = %+v", cfg.Alerts)
	}
	if cfg.Relay.Keepalive() != 15*time.Second || cfg.Relay.WriteTimeout() != 10*time.Second {
		t.Errorf("relay = %+v", cfg.Relay)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
server:
  addr: ":8080"
webhook:
  secret: from-file
alerts:
  default_currency: USD
sinks:
  nats:
    url: nats://localhost:4222
`)
	env := map[string]string{
		"PORT":                    "9000",
		"RAZORPAY_WEBHOOK_SECRET": "from-env",
		"RAZORPAY_KEY_ID":         "rzp_test_key",
	}
	l, err := newLoader(path, func(k string) string { return env[k] })
	if err != nil {
		t.Fatal(err)
	}
	cfg := l.Config()

	if cfg.Server.Addr != ":9000" {
		t.Errorf("env PORT should override file: addr = %q", cfg.Server.Addr)
	}
	if cfg.Webhook.Secret != "from-env" {
		t.Errorf("secret = %q", cfg.Webhook.Secret)
	}
	if cfg.Razorpay.KeyID != "rzp_test_key" {
		t.Errorf("key id = %q", cfg.Razorpay.KeyID)
	}
	if cfg.Alerts.DefaultCurrency != "USD" {
		t.Errorf("currency = %q", cfg.Alerts.DefaultCurrency)
	}
	if cfg.Sinks.NATS.Subject != "alerts.donation" {
		t.Errorf("nats subject default = %q", cfg.Sinks.NATS.Subject)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := newLoader(filepath.Join(t.TempDir(), "missing.yaml"), noEnv); err == nil {
		t.Error("expected error for missing file")
	}
	path := writeConfig(t, t.TempDir(), "server: [not, a, map]")
	if _, err := newLoader(path, noEnv); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	l, _ := newLoader("", noEnv)
	cfg := *l.Config()
	cfg.Alerts.DefaultCurrency = "rupees"
	cfg.Relay.ViewerBuffer = -1
	cfg.Sinks.Kafka.Brokers = "localhost:9092"
	cfg.Sinks.Kafka.Topic = ""

	err := Validate(&cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"default_currency", "viewer_buffer", "sinks.kafka.topic"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestReload_InvokesCallbacks(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "webhook:\n  secret: one\n")
	l, err := newLoader(path, noEnv)
	if err != nil {
		t.Fatal(err)
	}
	var got string
	l.OnChange(func(c *Config) { got = c.Webhook.Secret })

	writeConfig(t, dir, "webhook:\n  secret: two\n")
	if _, err := l.Reload(); err != nil {
		t.Fatal(err)
	}
	if got != "two" || l.Config().Webhook.Secret != "two" {
		t.Errorf("callback saw %q, current %q", got, l.Config().Webhook.Secret)
	}

	writeConfig(t, dir, "alerts:\n  default_currency: bad\n")
	if _, err := l.Reload(); err == nil {
		t.Error("invalid config should not reload")
	}
	if l.Config().Webhook.Secret != "two" {
		t.Error("invalid reload replaced current config")
	}
}

func TestWatch_RotatesSecret(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "webhook:\n  secret: old\n")
	l, err := newLoader(path, noEnv)
	if err != nil {
		t.Fatal(err)
	}
	changed := make(chan string, 4)
	l.OnChange(func(c *Config) { changed <- c.Webhook.Secret })

	stop, err := l.Watch()
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	writeConfig(t, dir, "webhook:\n  secret: new\n")
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-changed:
			if s == "new" {
				return
			}
		case <-deadline:
			t.Fatal("watcher did not pick up the change")
		}
	}
}

func TestWatch_NoFile(t *testing.T) {
	l, _ := newLoader("", noEnv)
	if _, err := l.Watch(); err == nil {
		t.Error("expected error watching without a file")
	}
}

func TestLoad_SampleConfig(t *testing.T) {
	l, err := newLoader(filepath.Join("..", "..", "configs", "alertrelay.yaml"), noEnv)
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(l.Config()); err != nil {
		t.Errorf("sample config should validate: %v", err)
	}
}
