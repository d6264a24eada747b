package application

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
)

// ErrorCategory represents the nature of an error for the transaction record and logs
type ErrorCategory string

const (
	CategorySignature   ErrorCategory = "SIGNATURE"
	CategoryPermanent   ErrorCategory = "PERMANENT"
	CategoryFatal       ErrorCategory = "FATAL"
	CategoryTransient   ErrorCategory = "TRANSIENT"
	CategoryLedger      ErrorCategory = "LEDGER"
	CategoryClientError ErrorCategory = "CLIENT_ERROR"
)

// CategorizeError determines the error category
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	var sigErr *SignatureVerificationError
	if errors.As(err, &sigErr) || errors.Is(err, ErrSignatureMismatch) {
		return CategorySignature
	}

	if gwErr, ok := IsGatewayError(err); ok {
		switch gwErr.Kind {
		case KindAuthentication:
			return CategoryFatal
		case KindBadRequest:
			return CategoryPermanent
		default:
			return CategoryTransient
		}
	}

	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return CategoryLedger
	}

	if errors.Is(err, domain.ErrInvoiceNotFound) ||
		errors.Is(err, domain.ErrTransactionNotFound) ||
		domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField) ||
		domain.IsErrorCode(err, domain.ErrCodeInvalidAmount) {
		return CategoryClientError
	}

	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeInvalidInput:
			return CategoryClientError
		case ErrCodeTimeout, ErrCodeBusy:
			return CategoryTransient
		}
	}

	return CategoryPermanent
}

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	switch {
	case errors.Is(err, domain.ErrInvoiceNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyProcessed):
		return http.StatusConflict
	case domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField),
		domain.IsErrorCode(err, domain.ErrCodeInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}

	if _, ok := IsGatewayError(err); ok {
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// ToErrorCode clear error code for API responses
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	if gwErr, ok := IsGatewayError(err); ok {
		if gwErr.Code != "" {
			return strings.ToUpper(gwErr.Code)
		}
		return "GATEWAY_" + string(gwErr.Kind)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrCodeTimeout
	}

	return ErrCodeInternal
}
