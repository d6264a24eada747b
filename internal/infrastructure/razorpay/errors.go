package razorpay

import (
	"encoding/json"
	"net/http"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
)

const (
	codeGatewayError = "GATEWAY_ERROR"
	codeServerError  = "SERVER_ERROR"
)

// classify turns a non-2xx response into a GatewayError.
func classify(statusCode int, body []byte) *application.GatewayError {
	gwErr := &application.GatewayError{
		StatusCode: statusCode,
		Body:       string(body),
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		gwErr.Code = errResp.Error.Code
		gwErr.Description = errResp.Error.Description
	}
	if gwErr.Description == "" {
		gwErr.Description = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusUnauthorized:
		gwErr.Kind = application.KindAuthentication
	case gwErr.Code == codeGatewayError:
		gwErr.Kind = application.KindGateway
	case statusCode >= 500 || gwErr.Code == codeServerError:
		gwErr.Kind = application.KindServer
	default:
		gwErr.Kind = application.KindBadRequest
	}
	return gwErr
}

// transportError wraps a failure to reach the gateway at all.
func transportError(err error) *application.GatewayError {
	return &application.GatewayError{
		Kind:        application.KindServer,
		Description: "request failed",
		Err:         err,
	}
}
