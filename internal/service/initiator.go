package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/telemetry"
)

type Initiator struct {
	gateway interfaces.PaymentGateway
}

func NewInitiator(gateway interfaces.PaymentGateway) *Initiator {
	return &Initiator{gateway: gateway}
}

// Initiate starts a payment for the order's fixed amount. Input problems are
// reported as ValidationError before any call is made.
func (i *Initiator) Initiate(ctx context.Context, order *models.Order, method models.PaymentMethod, params MethodParams) (*models.InitiationResult, error) {
	if err := validateMethod(method); err != nil {
		return nil, err
	}

	var phone string
	if method == models.MethodMobileMoney {
		resolved, err := ResolvePhone(params)
		if err != nil {
			return nil, err
		}
		phone = resolved
	}

	ctx, span := telemetry.Tracer.Start(ctx, "checkout.initiate_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("payment.method", string(method)),
		attribute.String("payment.amount", order.Amount.String()),
	)

	var (
		result *models.InitiationResult
		err    error
	)
	if method == models.MethodMobileMoney {
		result, err = i.mobileMoney(ctx, order, phone)
	} else {
		result, err = i.card(ctx, order)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.correlation_id", result.CorrelationID))
	return result, nil
}

func (i *Initiator) mobileMoney(ctx context.Context, order *models.Order, phone string) (*models.InitiationResult, error) {
	push, err := i.gateway.InitiateSTKPush(ctx, models.STKPushRequest{
		OrderID:     order.ID,
		PhoneNumber: phone,
		Amount:      order.Amount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initiate M-Pesa payment: %w", err)
	}
	return &models.InitiationResult{CorrelationID: push.CheckoutRequestID, Mock: push.Mock}, nil
}

// card creates the payment intent, then confirms it. Confirmation is never
// attempted when intent creation fails.
func (i *Initiator) card(ctx context.Context, order *models.Order) (*models.InitiationResult, error) {
	intent, err := i.gateway.CreatePaymentIntent(ctx, models.PaymentIntentRequest{
		OrderID: order.ID,
		Amount:  order.Amount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	confirmation, err := i.gateway.ConfirmPayment(ctx, models.ConfirmPaymentRequest{
		OrderID:         order.ID,
		PaymentIntentID: intent.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to confirm card payment: %w", err)
	}
	if !confirmation.Succeeded() {
		return nil, &models.PaymentInitiationError{
			Message: fmt.Sprintf("card payment was not completed (%s)", confirmation.Status),
		}
	}
	return &models.InitiationResult{CorrelationID: intent.ID, Settled: true}, nil
}
