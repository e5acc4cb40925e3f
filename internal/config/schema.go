package config

import "time"

// Config is the top-level YAML structure.
type Config struct {
	Server       ServerConf       `yaml:"server"`
	Webhook      WebhookConf      `yaml:"webhook"`
	Alerts       AlertsConf       `yaml:"alerts"`
	Relay        RelayConf        `yaml:"relay"`
	Razorpay     RazorpayConf     `yaml:"razorpay"`
	PaymentLinks PaymentLinksConf `yaml:"payment_links"`
	Sinks        SinksConf        `yaml:"sinks"`
}

// ServerConf holds HTTP listener settings.
type ServerConf struct {
	Addr         string `yaml:"addr"`
	StaticDir    string `yaml:"static_dir"`
	CORSOrigin   string `yaml:"cors_origin"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// WebhookConf configures provider callback verification.
type WebhookConf struct {
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header"`
}

// AlertsConf holds the values used when a payload omits a field.
type AlertsConf struct {
	DefaultCurrency string `yaml:"default_currency"`
	AnonymousLabel  string `yaml:"anonymous_label"`
	IDPrefix        string `yaml:"id_prefix"`
}

// RelayConf tunes viewer connections.
type RelayConf struct {
	ViewerBuffer        int `yaml:"viewer_buffer"`
	KeepaliveSeconds    int `yaml:"keepalive_seconds"`
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
}

func (r RelayConf) Keepalive() time.Duration {
	return time.Duration(r.KeepaliveSeconds) * time.Second
}

func (r RelayConf) WriteTimeout() time.Duration {
	return time.Duration(r.WriteTimeoutSeconds) * time.Second
}

// RazorpayConf holds API credentials for payment link creation.
type RazorpayConf struct {
	KeyID     string `yaml:"key_id"`
	KeySecret string `yaml:"key_secret"`
	BaseURL   string `yaml:"base_url"`
}

// PaymentLinksConf limits and defaults for POST /create_payment_link.
type PaymentLinksConf struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	DefaultAmount float64 `yaml:"default_amount"`
}

// SinksConf configures alert mirroring. A sink is enabled when its
// address is set.
type SinksConf struct {
	QueueDepth int       `yaml:"queue_depth"`
	NATS       NATSConf  `yaml:"nats"`
	Kafka      KafkaConf `yaml:"kafka"`
}

type NATSConf struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type KafkaConf struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}
