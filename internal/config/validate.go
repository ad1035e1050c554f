package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}
	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "server.customBindHost",
			Message: "required when server.bind is \"custom\"",
		})
	}

	validDrivers := []string{"sqlite", "postgres"}
	if cfg.Store.Driver != "" && !slices.Contains(validDrivers, cfg.Store.Driver) {
		issues = append(issues, ValidationIssue{
			Path:    "store.driver",
			Message: fmt.Sprintf("must be one of %v, got %q", validDrivers, cfg.Store.Driver),
		})
	}
	if cfg.Store.Driver == "postgres" && cfg.Store.DSN == "" {
		issues = append(issues, ValidationIssue{
			Path:    "store.dsn",
			Message: "required when store.driver is \"postgres\"",
		})
	}

	if cfg.Webhook.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "webhook.timeoutSeconds",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Webhook.TimeoutSeconds),
		})
	}
	if cfg.Webhook.FallbackTimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "webhook.fallbackTimeoutSeconds",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Webhook.FallbackTimeoutSeconds),
		})
	}
	if cfg.Webhook.FallbackURL != "" && cfg.Webhook.PrimaryURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "webhook.primaryUrl",
			Message: "fallbackUrl is set but primaryUrl is empty",
		})
	}

	if cfg.Live.PollIntervalSeconds < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "live.pollIntervalSeconds",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Live.PollIntervalSeconds),
		})
	}

	if cfg.Reconstruct.OperatorAttachWindowMinutes < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "reconstruct.operatorAttachWindowMinutes",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Reconstruct.OperatorAttachWindowMinutes),
		})
	}
	if cfg.Reconstruct.MinNumberDigits < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "reconstruct.minNumberDigits",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Reconstruct.MinNumberDigits),
		})
	}

	if cfg.Notify.RabbitMQ.URL != "" && cfg.Notify.RabbitMQ.Queue == "" {
		issues = append(issues, ValidationIssue{
			Path:    "notify.rabbitmq.queue",
			Message: "required when notify.rabbitmq.url is set",
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}
	validStyles := []string{"pretty", "json"}
	if cfg.Logging.Style != "" && !slices.Contains(validStyles, cfg.Logging.Style) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.style",
			Message: fmt.Sprintf("must be one of %v, got %q", validStyles, cfg.Logging.Style),
		})
	}

	return issues
}
