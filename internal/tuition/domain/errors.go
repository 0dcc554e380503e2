package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation_error")
	ErrInvoiceNotFound = errors.New("invoice_not_found")
	ErrConflict        = errors.New("invoice_conflict")
)

const (
	CodeOverpayment      = "overpayment"
	CodeInvalidAmount    = "invalid_amount"
	CodeDuplicatePeriod  = "duplicate_period"
	CodeInvalidDateOrder = "invalid_date_order"
	CodeInvalidMethod    = "invalid_method"
	CodeInvalidRate      = "invalid_rate"
	CodeInvalidPeriod    = "invalid_period"
	CodeInvalidPaidAt    = "invalid_paid_at"
	CodeInvalidCategory  = "invalid_category"
	CodeInvoicePaid      = "invoice_paid"
	CodeRequired         = "required"
	CodeInvalidStatus    = "invalid_status"
)

// ValidationError describes a rejected input. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Field, e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, code, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

// ValidationCode returns the code of a wrapped ValidationError, or "".
func ValidationCode(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
