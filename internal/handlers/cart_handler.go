package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/auth"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/service"
)

type CartHandler struct {
	carts    *service.CartAccessor
	loginURL string
}

func NewCartHandler(carts *service.CartAccessor, loginURL string) *CartHandler {
	return &CartHandler{carts: carts, loginURL: loginURL}
}

// GetCart renders the order summary. Backend failures show an empty cart;
// only a rejected token interrupts the page.
func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.carts.FetchOrEmpty(c.Request.Context())
	if models.IsAuthError(err) {
		auth.AbortUnauthorized(c, h.loginURL)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       cart.Items(),
		"total_price": cart.TotalPrice().StringFixed(2),
		"items_count": cart.ItemsCount(),
		"captured_at": cart.CapturedAt(),
	})
}
