package config

// Config is the root configuration for WhatsHub.
type Config struct {
	Server      ServerConfig      `yaml:"server,omitempty"`
	Store       StoreConfig       `yaml:"store,omitempty"`
	Webhook     WebhookConfig     `yaml:"webhook,omitempty"`
	Live        LiveConfig        `yaml:"live,omitempty"`
	Reconstruct ReconstructConfig `yaml:"reconstruct,omitempty"`
	Notify      NotifyConfig      `yaml:"notify,omitempty"`
	Logging     LoggingConfig     `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
	// WebhookRPS rate-limits POST /api/webhook/whatsapp per source IP.
	WebhookRPS   float64 `yaml:"webhookRps,omitempty"`
	WebhookBurst int     `yaml:"webhookBurst,omitempty"`
}

// StoreConfig selects the backing store.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "postgres"
	DSN    string `yaml:"dsn,omitempty"`    // file path or postgres URL; supports ${ENV}
}

// WebhookConfig configures the outbound delivery endpoints.
type WebhookConfig struct {
	PrimaryURL             string `yaml:"primaryUrl,omitempty"`
	FallbackURL            string `yaml:"fallbackUrl,omitempty"`
	TimeoutSeconds         int    `yaml:"timeoutSeconds,omitempty"`
	FallbackTimeoutSeconds int    `yaml:"fallbackTimeoutSeconds,omitempty"`
}

// LiveConfig controls the live update coordinator.
type LiveConfig struct {
	PollIntervalSeconds int `yaml:"pollIntervalSeconds,omitempty"`
}

// ReconstructConfig tunes the conversation grouping policy. The operator
// attach window and naming rules are heuristics, not business contracts,
// so they stay configurable per deployment.
type ReconstructConfig struct {
	GroupPrefix                 string `yaml:"groupPrefix,omitempty"`
	OperatorAttachWindowMinutes int    `yaml:"operatorAttachWindowMinutes,omitempty"`
	MinNumberDigits             int    `yaml:"minNumberDigits,omitempty"`
}

// NotifyConfig configures notification sinks beyond the built-in log
// and websocket broadcast.
type NotifyConfig struct {
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq,omitempty"`
}

// RabbitMQConfig enables publishing new-message events to a queue.
// Disabled when URL is empty.
type RabbitMQConfig struct {
	URL   string `yaml:"url,omitempty"` // supports ${ENV}
	Queue string `yaml:"queue,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}
