package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
)

type orderItemDTO struct {
	CartItemID string      `json:"cart_item_id,omitempty"`
	ProductID  string      `json:"product_id"`
	Quantity   int         `json:"quantity"`
	UnitPrice  json.Number `json:"unit_price"`
}

type createOrderDTO struct {
	models.BillingDetails
	ShippingAddress models.BillingDetails `json:"shipping_address"`
	PaymentMethod   models.PaymentMethod  `json:"payment_method"`
	Items           []orderItemDTO        `json:"items"`
	TotalAmount     json.Number           `json:"total_amount"`
}

type createOrderResponseDTO struct {
	OrderID     flexString          `json:"order_id"`
	ID          flexString          `json:"id"`
	Amount      decimal.NullDecimal `json:"amount"`
	TotalAmount decimal.NullDecimal `json:"total_amount"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// POST /orders/checkout
func (c *Client) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResult, error) {
	const op = "create order"

	items := req.Cart.Items()
	payload := createOrderDTO{
		BillingDetails:  req.Billing,
		ShippingAddress: req.Billing,
		PaymentMethod:   req.Method,
		Items:           make([]orderItemDTO, 0, len(items)),
		TotalAmount:     money(req.Cart.TotalPrice()),
	}
	for _, item := range items {
		payload.Items = append(payload.Items, orderItemDTO{
			CartItemID: item.CartItemID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  money(item.UnitPrice),
		})
	}

	resp, err := c.do(ctx, op, http.MethodPost, "/orders/checkout", payload)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, &models.OrderCreationError{Message: errorMessage(resp)}
	}

	var dto createOrderResponseDTO
	if err := decode(op, resp, &dto); err != nil {
		return nil, err
	}

	orderID := string(dto.OrderID)
	if orderID == "" {
		orderID = string(dto.ID)
	}
	if orderID == "" {
		return nil, &models.OrderCreationError{Message: "backend did not return an order id"}
	}

	result := &models.CreateOrderResult{OrderID: orderID}
	switch {
	case dto.Amount.Valid:
		result.Amount = &dto.Amount.Decimal
	case dto.TotalAmount.Valid:
		result.Amount = &dto.TotalAmount.Decimal
	}
	return result, nil
}
