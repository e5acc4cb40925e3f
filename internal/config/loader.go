package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads an optional YAML config file, overlays environment
// variables, and watches the file for changes.
type Loader struct {
	path     string
	getenv   func(string) string
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// NewLoader creates a Loader and performs the initial load. An empty path
// means defaults plus environment only.
func NewLoader(path string) (*Loader, error) {
	return newLoader(path, os.Getenv)
}

func newLoader(path string, getenv func(string) string) (*Loader, error) {
	l := &Loader{path: path, getenv: getenv}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Path returns the config file path, or "" when running without one.
func (l *Loader) Path() string { return l.path }

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the config on file changes.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	if l.path == "" {
		return nil, errors.New("no config file to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	// Watch the directory: editors and secret mounts replace the file
	// rather than writing it in place.
	dir := filepath.Dir(l.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", dir, err)
	}
	target := filepath.Clean(l.path)

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("config reload failed, keeping previous", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read. The new config replaces the current
// one only if it validates.
func (l *Loader) Reload() (*Config, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Config), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) load() (*Config, error) {
	var cfg Config
	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", l.path, err)
		}
	}
	applyEnv(&cfg, l.getenv)
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyEnv overlays the variables the service has always been deployed with.
func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	if port := getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	set(&cfg.Webhook.Secret, "RAZORPAY_WEBHOOK_SECRET")
	set(&cfg.Razorpay.KeyID, "RAZORPAY_KEY_ID")
	set(&cfg.Razorpay.KeySecret, "RAZORPAY_KEY_SECRET")
	set(&cfg.Sinks.NATS.URL, "NATS_URL")
	set(&cfg.Sinks.Kafka.Brokers, "KAFKA_BROKERS")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":3000"
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = "public"
	}
	if cfg.Server.CORSOrigin == "" {
		cfg.Server.CORSOrigin = "*"
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Webhook.SignatureHeader == "" {
		cfg.Webhook.SignatureHeader = "X-Razorpay-Signature"
	}
	if cfg.Alerts.DefaultCurrency == "" {
		cfg.Alerts.DefaultCurrency = "INR"
	}
	if cfg.Alerts.AnonymousLabel == "" {
		cfg.Alerts.AnonymousLabel = "Anonymous"
	}
	if cfg.Alerts.IDPrefix == "" {
		cfg.Alerts.IDPrefix = "alert"
	}
	if cfg.Relay.ViewerBuffer == 0 {
		cfg.Relay.ViewerBuffer = 64
	}
	if cfg.Relay.KeepaliveSeconds == 0 {
		cfg.Relay.KeepaliveSeconds = 15
	}
	if cfg.Relay.WriteTimeoutSeconds == 0 {
		cfg.Relay.WriteTimeoutSeconds = 10
	}
	if cfg.Razorpay.BaseURL == "" {
		cfg.Razorpay.BaseURL = "https://api.razorpay.com/v1"
	}
	if cfg.PaymentLinks.RatePerSecond == 0 {
		cfg.PaymentLinks.RatePerSecond = 1
	}
	if cfg.PaymentLinks.Burst == 0 {
		cfg.PaymentLinks.Burst = 5
	}
	if cfg.PaymentLinks.DefaultAmount == 0 {
		cfg.PaymentLinks.DefaultAmount = 10
	}
	if cfg.Sinks.QueueDepth == 0 {
		cfg.Sinks.QueueDepth = 1000
	}
	if cfg.Sinks.NATS.Subject == "" {
		cfg.Sinks.NATS.Subject = "alerts.donation"
	}
	if cfg.Sinks.Kafka.Topic == "" {
		cfg.Sinks.Kafka.Topic = "donation-alerts"
	}
}
