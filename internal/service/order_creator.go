package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/telemetry"
)

type OrderCreator struct {
	orders interfaces.OrderService
}

func NewOrderCreator(orders interfaces.OrderService) *OrderCreator {
	return &OrderCreator{orders: orders}
}

// Create persists an order for the snapshot. The returned amount is the one
// every later payment call uses; it is never recomputed from the live cart.
// Create is not idempotent: callers serialise submissions per session.
func (c *OrderCreator) Create(ctx context.Context, billing models.BillingDetails, method models.PaymentMethod, cart *models.CartSnapshot) (*models.Order, error) {
	billing = billing.Normalized()
	if err := ValidateBilling(billing); err != nil {
		return nil, err
	}
	if cart == nil || cart.IsEmpty() {
		return nil, &models.ValidationError{Field: "cart", Message: models.ErrEmptyCart.Error(), Err: models.ErrEmptyCart}
	}

	ctx, span := telemetry.Tracer.Start(ctx, "checkout.create_order")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.method", string(method)),
		attribute.String("cart.total", cart.TotalPrice().String()),
	)

	result, err := c.orders.CreateOrder(ctx, models.CreateOrderRequest{
		Billing: billing,
		Method:  method,
		Cart:    cart,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	amount := cart.TotalPrice()
	if result.Amount != nil {
		amount = *result.Amount
	}

	telemetry.OrdersCreated.WithLabelValues(string(method)).Inc()
	span.SetAttributes(attribute.String("order.id", result.OrderID))

	return &models.Order{
		ID:              result.OrderID,
		Amount:          amount,
		Method:          method,
		ShippingAddress: billing,
		BillingDetails:  billing,
	}, nil
}
