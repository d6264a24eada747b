package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Retry    RetryConfig    `koanf:"retry"`
	Session  SessionConfig  `koanf:"session"`
	Logger   LoggerConfig   `koanf:"logger"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Events   EventsConfig   `koanf:"events"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
	// Debug logs full gateway error bodies.
	Debug bool `koanf:"debug"`
}

type ServerConfig struct {
	Port           string        `koanf:"port" validate:"required"`
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout   time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout    time.Duration `koanf:"idle_timeout" validate:"required"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"required"`
	// PublicURL is the externally reachable base used in gateway callback URLs.
	PublicURL string `koanf:"public_url" validate:"required,url"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// RedisConfig backs checkout sessions and transaction locks. An empty Addr
// selects the in-process implementations.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type GatewayConfig struct {
	// ConfigID is the billing system's id for this gateway configuration.
	ConfigID      int64         `koanf:"config_id" validate:"required"`
	BaseURL       string        `koanf:"base_url" validate:"required,url"`
	KeyID         string        `koanf:"key_id"`
	SecretKey     string        `koanf:"secret_key"`
	TestKeyID     string        `koanf:"test_key_id"`
	TestSecretKey string        `koanf:"test_secret_key"`
	TestMode      bool          `koanf:"test_mode"`
	Timeout       time.Duration `koanf:"timeout" validate:"required"`

	CompanyName    string `koanf:"company_name"`
	CompanyLogoURL string `koanf:"company_logo_url"`
}

// Credentials returns the key pair for the selected mode.
func (c *GatewayConfig) Credentials() (keyID, secret string, err error) {
	keyID, secret = c.KeyID, c.SecretKey
	mode := "live"
	if c.TestMode {
		keyID, secret = c.TestKeyID, c.TestSecretKey
		mode = "test"
	}
	if keyID == "" || secret == "" {
		return "", "", &ConfigurationError{
			Field:   "gateway",
			Message: fmt.Sprintf("%s key id and secret are required", mode),
		}
	}
	return keyID, secret, nil
}

type BreakerConfig struct {
	MaxRequests         uint32        `koanf:"max_requests"`
	Interval            time.Duration `koanf:"interval"`
	Timeout             time.Duration `koanf:"timeout"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
}

type RetryConfig struct {
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxRetries int32         `koanf:"max_retries"`
}

type SessionConfig struct {
	OrderTTL time.Duration `koanf:"order_ttl" validate:"required"`
	LockTTL  time.Duration `koanf:"lock_ttl" validate:"required"`
}

type LoggerConfig struct {
	Level   string `koanf:"level"`
	LokiURL string `koanf:"loki_url"`
}

type MetricsConfig struct {
	PushURL      string        `koanf:"push_url"`
	PushInterval time.Duration `koanf:"push_interval"`
}

// EventsConfig enables outcome publishing when Brokers is set.
type EventsConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// ConfigurationError is a startup-only failure of the loaded configuration.
type ConfigurationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("GATEWAY_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "GATEWAY_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	mainConfig.applyDefaults()

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, &ConfigurationError{Field: "config", Message: "validation failed", Err: err}
	}

	if _, _, err := mainConfig.Gateway.Credentials(); err != nil {
		logger.Error("gateway credentials missing", "error", err, "test_mode", mainConfig.Gateway.TestMode)
		return nil, err
	}

	if len(mainConfig.Events.Brokers) > 0 && mainConfig.Events.Topic == "" {
		return nil, &ConfigurationError{Field: "events.topic", Message: "required when brokers are set"}
	}

	return mainConfig, nil
}

func (c *Config) applyDefaults() {
	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = 1
	}
	if c.Breaker.Timeout == 0 {
		c.Breaker.Timeout = 30 * time.Second
	}
	if c.Breaker.ConsecutiveFailures == 0 {
		c.Breaker.ConsecutiveFailures = 5
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = 200 * time.Millisecond
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Metrics.PushInterval == 0 {
		c.Metrics.PushInterval = 15 * time.Second
	}
}
