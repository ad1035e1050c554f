package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so connection strings can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Store.DSN = expandEnvVars(cfg.Store.DSN)
	cfg.Notify.RabbitMQ.URL = expandEnvVars(cfg.Notify.RabbitMQ.URL)
	cfg.Webhook.PrimaryURL = expandEnvVars(cfg.Webhook.PrimaryURL)
	cfg.Webhook.FallbackURL = expandEnvVars(cfg.Webhook.FallbackURL)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only. A .env file in
// the working directory is loaded first, without clobbering existing
// environment variables.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			expandSensitiveFields(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = def.Server.Bind
	}
	if cfg.Server.WebhookRPS == 0 {
		cfg.Server.WebhookRPS = def.Server.WebhookRPS
	}
	if cfg.Server.WebhookBurst == 0 {
		cfg.Server.WebhookBurst = def.Server.WebhookBurst
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = def.Store.Driver
	}
	if cfg.Webhook.TimeoutSeconds == 0 {
		cfg.Webhook.TimeoutSeconds = def.Webhook.TimeoutSeconds
	}
	if cfg.Webhook.FallbackTimeoutSeconds == 0 {
		cfg.Webhook.FallbackTimeoutSeconds = def.Webhook.FallbackTimeoutSeconds
	}
	if cfg.Live.PollIntervalSeconds == 0 {
		cfg.Live.PollIntervalSeconds = def.Live.PollIntervalSeconds
	}
	if cfg.Reconstruct.GroupPrefix == "" {
		cfg.Reconstruct.GroupPrefix = def.Reconstruct.GroupPrefix
	}
	if cfg.Reconstruct.OperatorAttachWindowMinutes == 0 {
		cfg.Reconstruct.OperatorAttachWindowMinutes = def.Reconstruct.OperatorAttachWindowMinutes
	}
	if cfg.Reconstruct.MinNumberDigits == 0 {
		cfg.Reconstruct.MinNumberDigits = def.Reconstruct.MinNumberDigits
	}
	if cfg.Notify.RabbitMQ.Queue == "" {
		cfg.Notify.RabbitMQ.Queue = def.Notify.RabbitMQ.Queue
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Style == "" {
		cfg.Logging.Style = def.Logging.Style
	}
}

// applyEnvOverrides reads WHATSHUB_* (and a few conventional) environment
// variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WHATSHUB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WHATSHUB_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.Driver = "postgres"
		cfg.Store.DSN = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Webhook.PrimaryURL = v
	}
	if v := os.Getenv("WEBHOOK_FALLBACK_URL"); v != "" {
		cfg.Webhook.FallbackURL = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.Notify.RabbitMQ.URL = v
	}
	if v := os.Getenv("WHATSHUB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
