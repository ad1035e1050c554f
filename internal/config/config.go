// Package config loads and validates WhatsHub configuration from YAML,
// .env files, and environment variables.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         4000,
			Bind:         "loopback",
			WebhookRPS:   5,
			WebhookBurst: 10,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Webhook: WebhookConfig{
			TimeoutSeconds:         5,
			FallbackTimeoutSeconds: 3,
		},
		Live: LiveConfig{
			PollIntervalSeconds: 2,
		},
		Reconstruct: ReconstructConfig{
			GroupPrefix:                 "whatsapp_",
			OperatorAttachWindowMinutes: 5,
			MinNumberDigits:             10,
		},
		Notify: NotifyConfig{
			RabbitMQ: RabbitMQConfig{
				Queue: "whatshub_events",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}
