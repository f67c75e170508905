package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
)

type stkPushDTO struct {
	PhoneNumber string      `json:"phone_number"`
	Amount      json.Number `json:"amount"`
	OrderID     string      `json:"order_id"`
}

type stkPushResponseDTO struct {
	CheckoutRequestID       string `json:"checkout_request_id"`
	CheckoutRequestIDDaraja string `json:"CheckoutRequestID"`
	Mock                    bool   `json:"mock"`
}

type statusResponseDTO struct {
	Status string `json:"status"`
}

type paymentIntentDTO struct {
	Amount   json.Number `json:"amount"`
	OrderID  string      `json:"order_id"`
	Currency string      `json:"currency"`
}

type paymentIntentResponseDTO struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ID              string `json:"id"`
}

type confirmPaymentDTO struct {
	PaymentIntentID string `json:"payment_intent_id"`
	OrderID         string `json:"order_id"`
}

type confirmPaymentResponseDTO struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ID              string `json:"id"`
	Status          string `json:"status"`
}

// POST /payments/mpesa/stkpush
func (c *Client) InitiateSTKPush(ctx context.Context, req models.STKPushRequest) (*models.STKPushResult, error) {
	const op = "mpesa stk push"

	resp, err := c.do(ctx, op, http.MethodPost, "/payments/mpesa/stkpush", stkPushDTO{
		PhoneNumber: req.PhoneNumber,
		Amount:      money(req.Amount),
		OrderID:     req.OrderID,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, &models.PaymentInitiationError{Message: errorMessage(resp)}
	}

	var dto stkPushResponseDTO
	if err := decode(op, resp, &dto); err != nil {
		return nil, err
	}

	result := &models.STKPushResult{CheckoutRequestID: dto.CheckoutRequestID, Mock: dto.Mock}
	if result.CheckoutRequestID == "" {
		result.CheckoutRequestID = dto.CheckoutRequestIDDaraja
	}
	if result.CheckoutRequestID == "" && !result.Mock {
		return nil, &models.PaymentInitiationError{Message: "payment provider did not return a checkout request id"}
	}
	return result, nil
}

// GET /payments/mpesa/status/{id}. Any non-2xx answer is a transport error,
// never a pending status.
func (c *Client) MobileMoneyStatus(ctx context.Context, checkoutRequestID string) (models.ProviderStatus, error) {
	const op = "mpesa status"

	resp, err := c.do(ctx, op, http.MethodGet, "/payments/mpesa/status/"+url.PathEscape(checkoutRequestID), nil)
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", &models.TransportError{Op: op, Err: fmt.Errorf("unexpected status %d: %s", resp.status, errorMessage(resp))}
	}

	var dto statusResponseDTO
	if err := decode(op, resp, &dto); err != nil {
		return "", err
	}
	return models.ParseProviderStatus(dto.Status), nil
}

// POST /stripe/create-payment-intent
func (c *Client) CreatePaymentIntent(ctx context.Context, req models.PaymentIntentRequest) (*models.PaymentIntent, error) {
	const op = "create payment intent"

	resp, err := c.do(ctx, op, http.MethodPost, "/stripe/create-payment-intent", paymentIntentDTO{
		Amount:   money(req.Amount),
		OrderID:  req.OrderID,
		Currency: c.currency,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, &models.PaymentInitiationError{Message: errorMessage(resp)}
	}

	var dto paymentIntentResponseDTO
	if err := decode(op, resp, &dto); err != nil {
		return nil, err
	}
	id := dto.PaymentIntentID
	if id == "" {
		id = dto.ID
	}
	if id == "" {
		return nil, &models.PaymentInitiationError{Message: "payment provider did not return a payment intent"}
	}
	return &models.PaymentIntent{ID: id}, nil
}

// POST /stripe/confirm-payment
func (c *Client) ConfirmPayment(ctx context.Context, req models.ConfirmPaymentRequest) (*models.PaymentConfirmation, error) {
	const op = "confirm payment"

	resp, err := c.do(ctx, op, http.MethodPost, "/stripe/confirm-payment", confirmPaymentDTO{
		PaymentIntentID: req.PaymentIntentID,
		OrderID:         req.OrderID,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, &models.PaymentInitiationError{Message: errorMessage(resp)}
	}

	var dto confirmPaymentResponseDTO
	if len(resp.body) > 0 {
		if err := decode(op, resp, &dto); err != nil {
			return nil, err
		}
	}

	confirmation := &models.PaymentConfirmation{PaymentIntentID: dto.PaymentIntentID, Status: dto.Status}
	if confirmation.PaymentIntentID == "" {
		confirmation.PaymentIntentID = dto.ID
	}
	if confirmation.PaymentIntentID == "" {
		confirmation.PaymentIntentID = req.PaymentIntentID
	}
	return confirmation, nil
}
