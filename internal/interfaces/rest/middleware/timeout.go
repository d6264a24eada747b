package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/interfaces/rest"
)

// Timeout bounds every request, including the gateway and ledger calls it
// makes, by timeout.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	_, body := rest.BuildErrorResponse(application.NewTimeoutError(nil))
	msg, _ := json.Marshal(body)

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(msg))
	}
}
