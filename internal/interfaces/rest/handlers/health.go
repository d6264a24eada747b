package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/interfaces/rest"
)

const pingTimeout = 2 * time.Second

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	status := healthStatus{Status: "ok", Checks: make(map[string]string, len(h.pingers))}
	code := http.StatusOK
	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			status.Checks[name] = "unavailable"
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status.Checks[name] = "ok"
	}
	rest.WriteJSON(w, code, status)
}
