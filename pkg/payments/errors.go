package payments

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the payments service.
var (
	ErrDuplicateOrder     = errors.New("duplicate order")
	ErrDuplicatePayment   = errors.New("duplicate payment")
	ErrOrderNotFound      = errors.New("order not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrInvalidOrderRef    = errors.New("invalid order ref")
	ErrInvalidPaymentRef  = errors.New("invalid payment ref")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidAmountPaise = errors.New("invalid amount paise")
	ErrInvalidCurrency    = errors.New("invalid currency code")
	ErrInvalidAccountRef  = errors.New("invalid account ref")
	ErrInvalidEntryStatus = errors.New("invalid entry status")
	ErrInvalidService     = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
