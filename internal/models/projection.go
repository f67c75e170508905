package models

// UIPaymentState is the closed set of states the checkout screen renders.
type UIPaymentState string

const (
	UIIdle    UIPaymentState = "idle"
	UIPending UIPaymentState = "pending"
	UISuccess UIPaymentState = "success"
	UIFailed  UIPaymentState = "failed"
)

// Project derives the UI state from an attempt. A nil attempt is idle.
func Project(attempt *PaymentAttempt) UIPaymentState {
	if attempt == nil {
		return UIIdle
	}
	switch attempt.Status {
	case StatusInitiating, StatusAwaitingConfirmation:
		return UIPending
	case StatusCompleted:
		return UISuccess
	case StatusFailed, StatusTimedOut:
		return UIFailed
	}
	return UIIdle
}
