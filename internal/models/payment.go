package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AttemptStatus string

const (
	StatusNotStarted           AttemptStatus = "NOT_STARTED"
	StatusInitiating           AttemptStatus = "INITIATING"
	StatusAwaitingConfirmation AttemptStatus = "AWAITING_CONFIRMATION"
	StatusCompleted            AttemptStatus = "COMPLETED"
	StatusFailed               AttemptStatus = "FAILED"
	StatusTimedOut             AttemptStatus = "TIMED_OUT"
)

var allowedTransitions = map[AttemptStatus][]AttemptStatus{
	StatusNotStarted:           {StatusInitiating},
	StatusInitiating:           {StatusAwaitingConfirmation, StatusCompleted, StatusFailed},
	StatusAwaitingConfirmation: {StatusCompleted, StatusFailed, StatusTimedOut},
}

func (s AttemptStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimedOut
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// Terminal states have no outgoing transitions; only a reset leaves them.
func (s AttemptStatus) CanTransitionTo(next AttemptStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s AttemptStatus) String() string {
	return string(s)
}

type PaymentMethod string

const (
	MethodMobileMoney PaymentMethod = "mobile_money"
	MethodCard        PaymentMethod = "card"
	MethodOther       PaymentMethod = "other"
)

func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(raw))) {
	case MethodMobileMoney, "mpesa":
		return MethodMobileMoney, true
	case MethodCard, "stripe":
		return MethodCard, true
	case MethodOther:
		return MethodOther, true
	}
	return "", false
}

// ProviderStatus is the raw status reported by the mobile-money status endpoint.
type ProviderStatus string

const (
	ProviderPending   ProviderStatus = "PENDING"
	ProviderCompleted ProviderStatus = "COMPLETED"
	ProviderFailed    ProviderStatus = "FAILED"
)

// ParseProviderStatus maps anything that is not a recognised terminal value to pending.
func ParseProviderStatus(raw string) ProviderStatus {
	switch ProviderStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case ProviderCompleted:
		return ProviderCompleted
	case ProviderFailed:
		return ProviderFailed
	}
	return ProviderPending
}

// PaymentAttempt is the single record of one checkout payment attempt.
type PaymentAttempt struct {
	ID            string
	SessionID     string
	Status        AttemptStatus
	Method        PaymentMethod
	PhoneNumber   string
	Order         *Order
	CartTotal     decimal.Decimal
	CorrelationID string
	Mock          bool
	Message       string
	RequiresLogin bool
	Polls         int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Amount is the charge fixed on the order. Before the order exists it is the
// cart total the attempt was started with.
func (a *PaymentAttempt) Amount() decimal.Decimal {
	if a == nil {
		return decimal.Zero
	}
	if a.Order == nil {
		return a.CartTotal
	}
	return a.Order.Amount
}

func (a *PaymentAttempt) OrderID() string {
	if a == nil || a.Order == nil {
		return ""
	}
	return a.Order.ID
}

// Reference returns the most specific identifier the shopper can quote to support.
func (a *PaymentAttempt) Reference() string {
	if a == nil {
		return ""
	}
	if a.CorrelationID != "" {
		return a.CorrelationID
	}
	return a.OrderID()
}

type STKPushRequest struct {
	OrderID     string
	PhoneNumber string
	Amount      decimal.Decimal
}

type STKPushResult struct {
	CheckoutRequestID string
	Mock              bool
}

type PaymentIntentRequest struct {
	OrderID string
	Amount  decimal.Decimal
}

type PaymentIntent struct {
	ID string
}

type ConfirmPaymentRequest struct {
	OrderID         string
	PaymentIntentID string
}

type PaymentConfirmation struct {
	PaymentIntentID string
	Status          string
}

// Succeeded reports whether a confirmed card payment should count as paid.
func (c *PaymentConfirmation) Succeeded() bool {
	switch strings.ToLower(c.Status) {
	case "requires_payment_method", "canceled", "cancelled", "failed":
		return false
	}
	return true
}

// InitiationResult is what the payment initiator hands back to the session.
type InitiationResult struct {
	CorrelationID string
	Mock          bool
	// Settled is true when the provider already confirmed the charge and no polling is needed.
	Settled bool
}
