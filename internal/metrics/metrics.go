package metrics

import (
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/razorpay-reconciler/internal/config"
	"github.com/VictoriaMetrics/metrics"
)

// Setup starts pushing metrics when a push URL is configured.
func Setup(cfg config.MetricsConfig, logger *slog.Logger) {
	if cfg.PushURL == "" {
		return
	}

	err := metrics.InitPush(cfg.PushURL, cfg.PushInterval, `service="razorpay-reconciler"`, true)
	if err != nil {
		logger.Error("error initializing metrics push", "error", err)
	}
}

// Handler exposes all registered metrics in Prometheus text format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
}
