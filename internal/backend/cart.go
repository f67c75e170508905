package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/telemetry"
)

type cartItemDTO struct {
	ID          flexString          `json:"id"`
	ProductID   flexString          `json:"product_id"`
	ProductName string              `json:"product_name"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	Price       decimal.NullDecimal `json:"price"`
	Quantity    int                 `json:"quantity"`
	MaxAllowed  int                 `json:"max_allowed"`
	Stock       int                 `json:"stock"`
	Product     *struct {
		Name  string              `json:"name"`
		Price decimal.NullDecimal `json:"price"`
		Stock int                 `json:"stock"`
	} `json:"product"`
}

type cartResponseDTO struct {
	Items      []cartItemDTO       `json:"items"`
	TotalPrice decimal.NullDecimal `json:"total_price"`
	ItemsCount int                 `json:"items_count"`
}

func (d cartItemDTO) toModel() models.CartItem {
	item := models.CartItem{
		CartItemID:  string(d.ID),
		ProductID:   string(d.ProductID),
		ProductName: d.ProductName,
		Quantity:    d.Quantity,
		MaxAllowed:  d.MaxAllowed,
	}

	switch {
	case d.UnitPrice.Valid:
		item.UnitPrice = d.UnitPrice.Decimal
	case d.Price.Valid:
		item.UnitPrice = d.Price.Decimal
	case d.Product != nil && d.Product.Price.Valid:
		item.UnitPrice = d.Product.Price.Decimal
	}

	if d.Product != nil {
		if item.ProductName == "" {
			item.ProductName = d.Product.Name
		}
		if item.MaxAllowed == 0 {
			item.MaxAllowed = d.Product.Stock
		}
	}
	if item.MaxAllowed == 0 {
		item.MaxAllowed = d.Stock
	}
	return item
}

// GET /cart
func (c *Client) GetCart(ctx context.Context) (*models.CartSnapshot, error) {
	const op = "get cart"

	resp, err := c.do(ctx, op, http.MethodGet, "/cart", nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, &models.TransportError{Op: op, Err: fmt.Errorf("unexpected status %d: %s", resp.status, errorMessage(resp))}
	}

	var dto cartResponseDTO
	if err := decode(op, resp, &dto); err != nil {
		return nil, err
	}

	items := make([]models.CartItem, 0, len(dto.Items))
	for _, item := range dto.Items {
		if item.Quantity < 1 {
			continue
		}
		items = append(items, item.toModel())
	}

	snapshot := models.NewCartSnapshot(items, time.Now())
	if dto.TotalPrice.Valid && !dto.TotalPrice.Decimal.Equal(snapshot.TotalPrice()) {
		telemetry.Logger.Warn("Backend cart total differs from item sum",
			zap.String("reported", dto.TotalPrice.Decimal.String()),
			zap.String("computed", snapshot.TotalPrice().String()),
		)
	}
	return snapshot, nil
}

// DELETE /cart
func (c *Client) ClearCart(ctx context.Context) error {
	const op = "clear cart"

	resp, err := c.do(ctx, op, http.MethodDelete, "/cart", nil)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return &models.TransportError{Op: op, Err: fmt.Errorf("unexpected status %d: %s", resp.status, errorMessage(resp))}
	}
	return nil
}
