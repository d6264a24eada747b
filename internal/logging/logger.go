// Package logging builds the service's slog logger: JSON on stdout, or Loki
// when a push URL is configured.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/DanielPopoola/razorpay-reconciler/internal/config"
	"github.com/grafana/loki-client-go/loki"
	slogloki "github.com/samber/slog-loki/v3"
)

const serviceName = "razorpay-reconciler"

func GetLogger(cfg config.LoggerConfig) *slog.Logger {
	level := ParseLevel(cfg.Level)
	if cfg.LokiURL == "" {
		return localLogger(level)
	}

	logger, err := remoteLogger(cfg.LokiURL, level)
	if err != nil {
		fallback := localLogger(level)
		fallback.Error("loki logger unavailable, logging locally", "error", err)
		return fallback
	}
	return logger
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func localLogger(level slog.Level) *slog.Logger {
	return slog.New(&ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	}).With("service", serviceName)
}

func remoteLogger(url string, level slog.Level) (*slog.Logger, error) {
	lokiConfig, err := loki.NewDefaultConfig(url)
	if err != nil {
		return nil, err
	}
	client, err := loki.New(lokiConfig)
	if err != nil {
		return nil, err
	}

	return slog.New(slogloki.Option{
		Level:  level,
		Client: client,
		AttrFromContext: []func(ctx context.Context) []slog.Attr{
			attrsFromContext,
		},
	}.NewLokiHandler()).With("service", serviceName), nil
}
