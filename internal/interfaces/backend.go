package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
)

// CartService is the storefront cart API.
type CartService interface {
	GetCart(ctx context.Context) (*models.CartSnapshot, error)
	ClearCart(ctx context.Context) error
}

type OrderService interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResult, error)
}

// PaymentStatusChecker queries the mobile-money status of a pending STK push.
type PaymentStatusChecker interface {
	MobileMoneyStatus(ctx context.Context, checkoutRequestID string) (models.ProviderStatus, error)
}

type PaymentGateway interface {
	PaymentStatusChecker
	InitiateSTKPush(ctx context.Context, req models.STKPushRequest) (*models.STKPushResult, error)
	CreatePaymentIntent(ctx context.Context, req models.PaymentIntentRequest) (*models.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, req models.ConfirmPaymentRequest) (*models.PaymentConfirmation, error)
}

// AuthTokenProvider supplies the bearer token attached to every backend call.
type AuthTokenProvider interface {
	Token(ctx context.Context) (string, error)
}
