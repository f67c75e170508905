package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
)

// AttemptRepository defines the contract for payment attempt data access
type AttemptRepository interface {
	InsertAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
	TransitionState(ctx context.Context, attemptID string, from, to models.AttemptStatus, reason string) (int64, error)
	SetOrder(ctx context.Context, attemptID, orderID string, amount decimal.Decimal) error
	SetCorrelation(ctx context.Context, attemptID, correlationID string) error
	GetByAttemptID(ctx context.Context, attemptID string) (*models.AttemptStateInfo, error)
}
