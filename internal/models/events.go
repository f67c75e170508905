package models

import "time"

// AttemptStateEvent is published on every attempt transition.
type AttemptStateEvent struct {
	SessionID     string         `json:"session_id"`
	AttemptID     string         `json:"attempt_id"`
	OrderID       string         `json:"order_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Method        PaymentMethod  `json:"method"`
	State         AttemptStatus  `json:"state"`
	PreviousState AttemptStatus  `json:"previous_state"`
	UIState       UIPaymentState `json:"ui_state"`
	Amount        string         `json:"amount"`
	Message       string         `json:"message,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// CheckoutView is the payload the page shell renders for a session.
type CheckoutView struct {
	SessionID     string         `json:"session_id"`
	State         UIPaymentState `json:"state"`
	AttemptID     string         `json:"attempt_id,omitempty"`
	Status        AttemptStatus  `json:"status"`
	Method        PaymentMethod  `json:"method,omitempty"`
	OrderID       string         `json:"order_id,omitempty"`
	Amount        string         `json:"amount,omitempty"`
	Reference     string         `json:"reference,omitempty"`
	Message       string         `json:"message,omitempty"`
	Redirect      string         `json:"redirect,omitempty"`
	RequiresLogin bool           `json:"requires_login,omitempty"`
	Submitting    bool           `json:"submitting"`
	// Version increases with every pushed view of the session.
	Version uint64 `json:"version"`
}

// AttemptStateInfo is the persisted view of an attempt.
type AttemptStateInfo struct {
	AttemptID     string
	SessionID     string
	OrderID       string
	CorrelationID string
	Method        string
	Amount        string
	State         string
	PreviousState string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
