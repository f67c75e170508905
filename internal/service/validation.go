package service

import (
	"regexp"
	"strings"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// MethodParams carries the method-specific inputs of the checkout form.
type MethodParams struct {
	UseBillingPhone bool
	BillingPhone    string
	PhoneNumber     string
}

// ValidateBilling reports the first missing required field in form order.
func ValidateBilling(billing models.BillingDetails) error {
	for _, field := range billing.RequiredFields() {
		if strings.TrimSpace(field[1]) == "" {
			return models.NewValidationError(field[0], "this field is required")
		}
	}
	if !emailRegex.MatchString(strings.TrimSpace(billing.Email)) {
		return models.NewValidationError("email", "invalid email format")
	}
	return nil
}

// ResolvePhone picks the number the STK push goes to: the billing phone when
// the toggle is on, the manually entered override otherwise.
func ResolvePhone(params MethodParams) (string, error) {
	if params.UseBillingPhone {
		phone := strings.TrimSpace(params.BillingPhone)
		if phone == "" {
			return "", models.NewValidationError("phone", "billing phone number is required for M-Pesa payment")
		}
		return phone, nil
	}

	phone := strings.TrimSpace(params.PhoneNumber)
	if phone == "" {
		return "", models.NewValidationError("mpesa_phone", "please enter the M-Pesa phone number")
	}
	return phone, nil
}

func validateMethod(method models.PaymentMethod) error {
	switch method {
	case models.MethodMobileMoney, models.MethodCard:
		return nil
	case "":
		return models.NewValidationError("payment_method", "please choose a payment method")
	}
	return &models.ValidationError{
		Field:   "payment_method",
		Message: models.ErrUnsupportedMethod.Error(),
		Err:     models.ErrUnsupportedMethod,
	}
}
