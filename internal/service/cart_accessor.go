package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/telemetry"
)

// CartAccessor reads point-in-time snapshots of the shopper's cart.
type CartAccessor struct {
	carts interfaces.CartService
}

func NewCartAccessor(carts interfaces.CartService) *CartAccessor {
	return &CartAccessor{carts: carts}
}

func (a *CartAccessor) Fetch(ctx context.Context) (*models.CartSnapshot, error) {
	snapshot, err := a.carts.GetCart(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return snapshot, nil
}

// FetchOrEmpty degrades any failure to an empty cart. The error is returned
// only for AuthError, which the caller must turn into a login redirect.
func (a *CartAccessor) FetchOrEmpty(ctx context.Context) (*models.CartSnapshot, error) {
	snapshot, err := a.Fetch(ctx)
	if err == nil {
		return snapshot, nil
	}

	telemetry.Logger.Warn("Cart unavailable, presenting empty cart", zap.Error(err))
	if models.IsAuthError(err) {
		return models.EmptyCartSnapshot(), err
	}
	return models.EmptyCartSnapshot(), nil
}
