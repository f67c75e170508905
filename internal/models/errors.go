package models

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrSubmissionInFlight = errors.New("checkout submission already in progress")
	ErrAttemptActive      = errors.New("a payment attempt is already active, reset it first")
	ErrSessionNotFound    = errors.New("checkout session not found")
	ErrAttemptNotFound    = errors.New("payment attempt not found")
	ErrUnsupportedMethod  = errors.New("payment method is not supported for online checkout")
)

// ValidationError is raised before any network call and is resolved inline on the form.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AuthError means the bearer token is missing or rejected; the shopper must log in again.
type AuthError struct {
	Op string
}

func (e *AuthError) Error() string {
	if e.Op == "" {
		return "authentication required"
	}
	return fmt.Sprintf("%s: authentication required", e.Op)
}

type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type OrderCreationError struct {
	Message string
}

func (e *OrderCreationError) Error() string {
	return fmt.Sprintf("order creation failed: %s", e.Message)
}

type PaymentInitiationError struct {
	Message string
}

func (e *PaymentInitiationError) Error() string {
	return fmt.Sprintf("payment initiation failed: %s", e.Message)
}

type PaymentTimeoutError struct {
	CorrelationID string
	Polls         int
	Err           error
}

func (e *PaymentTimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment %s not confirmed after %d status checks: %v", e.CorrelationID, e.Polls, e.Err)
	}
	return fmt.Sprintf("payment %s not confirmed after %d status checks", e.CorrelationID, e.Polls)
}

func (e *PaymentTimeoutError) Unwrap() error {
	return e.Err
}

// CartFinalizationError is logged only; it never hides a successful payment.
type CartFinalizationError struct {
	OrderID string
	Err     error
}

func (e *CartFinalizationError) Error() string {
	return fmt.Sprintf("failed to clear cart after order %s: %v", e.OrderID, e.Err)
}

func (e *CartFinalizationError) Unwrap() error {
	return e.Err
}

func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// UserMessage renders an error the way the failure screen shows it.
func UserMessage(err error) string {
	var (
		orderErr   *OrderCreationError
		initErr    *PaymentInitiationError
		timeoutErr *PaymentTimeoutError
		validErr   *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &orderErr):
		return orderErr.Message
	case errors.As(err, &initErr):
		return initErr.Message
	case errors.As(err, &timeoutErr):
		return "We could not confirm your payment in time. If you were charged, contact support with your reference."
	case errors.As(err, &validErr):
		return validErr.Message
	case IsAuthError(err):
		return "Your session has expired. Please log in again."
	case IsTransportError(err):
		return "We could not reach the payment service. Please try again."
	}
	return err.Error()
}
