package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Domain validation errors
const (
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrCodeInvoiceNotFound      = "INVOICE_NOT_FOUND"
	ErrCodeTransactionNotFound  = "TRANSACTION_NOT_FOUND"
	ErrCodeAlreadyProcessed     = "TRANSACTION_ALREADY_PROCESSED"
)

var (
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyProcessed    = errors.New("transaction already processed")
)

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewInvalidAmountError(amount string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %s", amount),
	}
}

func NewInvalidTransitionError(from, to ReconcileState) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Err:     ErrInvalidTransition,
	}
}

func NewInvoiceNotFoundError(id int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvoiceNotFound,
		Message: fmt.Sprintf("invoice with ID %d not found", id),
		Err:     ErrInvoiceNotFound,
	}
}

func NewTransactionNotFoundError(id int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeTransactionNotFound,
		Message: fmt.Sprintf("transaction with ID %d not found", id),
		Err:     ErrTransactionNotFound,
	}
}

func NewAlreadyProcessedError(id int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeAlreadyProcessed,
		Message: fmt.Sprintf("transaction %d is already processed", id),
		Err:     ErrAlreadyProcessed,
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
