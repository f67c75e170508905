package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
)

type EventPublisher interface {
	PublishStateChange(ctx context.Context, event models.AttemptStateEvent) error
}

// StateNotifier pushes the current checkout view to subscribers of a session.
type StateNotifier interface {
	NotifyState(ctx context.Context, view models.CheckoutView) error
}

type SessionLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
