package service

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/telemetry"
)

type Finalizer struct {
	carts interfaces.CartService
}

func NewFinalizer(carts interfaces.CartService) *Finalizer {
	return &Finalizer{carts: carts}
}

func ConfirmationPath(orderID string) string {
	return "/order-confirmation/" + url.PathEscape(orderID)
}

// OnPaymentConfirmed clears the server-side cart and returns the confirmation
// page for the order. A failed clear is logged and never blocks the redirect.
func (f *Finalizer) OnPaymentConfirmed(ctx context.Context, orderID string) string {
	if err := f.carts.ClearCart(ctx); err != nil {
		finalizationErr := &models.CartFinalizationError{OrderID: orderID, Err: err}
		telemetry.CartFinalizationFailures.Inc()
		telemetry.Logger.Error("Cart finalization failed",
			zap.String("order_id", orderID),
			zap.Error(finalizationErr),
		)
	}
	return ConfirmationPath(orderID)
}
