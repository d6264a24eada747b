package rest

import (
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
)

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// BuildErrorResponse maps an application error to a status code and body.
// Wrapped causes of service errors and server-side failures are never exposed.
func BuildErrorResponse(err error) (int, ErrorResponse) {
	statusCode := application.ToHTTPStatus(err)
	message := err.Error()

	if svcErr, ok := application.IsServiceError(err); ok {
		message = svcErr.Message
	} else if statusCode >= http.StatusInternalServerError {
		message = "An internal error occurred"
	}

	return statusCode, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    application.ToErrorCode(err),
			Message: message,
		},
	}
}

// WriteError maps application errors to HTTP responses
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	statusCode, response := BuildErrorResponse(err)
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request failed", "status", statusCode, "error", err)
	}
	WriteJSON(w, statusCode, response)
}
