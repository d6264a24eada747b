package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeInvalidState  = "INVALID_STATE"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodePaymentFailed = "PAYMENT_FAILED"
	ErrCodeBusy          = "TRANSACTION_BUSY"
)

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewInvalidStateError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidState,
		Message:    "Invalid state",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewTimeoutError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeTimeout,
		Message:    "Request timed out",
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}

// NewPaymentFailedError is the only failure a buyer ever sees.
func NewPaymentFailedError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodePaymentFailed,
		Message:    "Payment failed",
		HTTPStatus: http.StatusPaymentRequired,
	}
}

func NewBusyError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeBusy,
		Message:    "Transaction is being processed. Please retry in a moment.",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}

// GATEWAY ERRORS

type GatewayErrorKind string

const (
	KindBadRequest     GatewayErrorKind = "BAD_REQUEST"
	KindAuthentication GatewayErrorKind = "AUTHENTICATION"
	KindServer         GatewayErrorKind = "SERVER"
	KindGateway        GatewayErrorKind = "GATEWAY"
)

// GatewayError is every failure reported by a GatewayClient.
type GatewayError struct {
	Kind        GatewayErrorKind
	Code        string
	Description string
	StatusCode  int
	// Body is the raw response body, kept for diagnostics.
	Body string
	Err  error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("gateway %s error", e.Kind)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Transient reports whether the caller may retry the request.
func (e *GatewayError) Transient() bool {
	return e.Kind == KindServer || e.Kind == KindGateway
}

func IsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	ok := errors.As(err, &gwErr)
	return gwErr, ok
}

// IsGatewayErrorKind checks if err is a GatewayError of the given kind
func IsGatewayErrorKind(err error, kind GatewayErrorKind) bool {
	gwErr, ok := IsGatewayError(err)
	return ok && gwErr.Kind == kind
}

// SIGNATURE AND LEDGER ERRORS

var ErrSignatureMismatch = errors.New("signature mismatch")

type SignatureVerificationError struct {
	OrderID   string
	PaymentID string
	Err       error
}

func (e *SignatureVerificationError) Error() string {
	return fmt.Sprintf("signature verification failed for order %s payment %s: %v", e.OrderID, e.PaymentID, e.Err)
}

func (e *SignatureVerificationError) Unwrap() error {
	return e.Err
}

// LedgerError is a local storage failure. After a charge was fetched it means
// funds are owed but not recorded.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

func NewLedgerError(op string, err error) *LedgerError {
	return &LedgerError{Op: op, Err: err}
}
