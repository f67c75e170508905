package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/auth"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/service"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/telemetry"
)

type submitRequest struct {
	Billing         models.BillingDetails `json:"billing"`
	PaymentMethod   string                `json:"payment_method"`
	UseBillingPhone bool                  `json:"use_billing_phone"`
	MpesaPhone      string                `json:"mpesa_phone"`
}

type CheckoutHandler struct {
	orchestrator *service.Orchestrator
	loginURL     string
}

func NewCheckoutHandler(orchestrator *service.Orchestrator, loginURL string) *CheckoutHandler {
	return &CheckoutHandler{orchestrator: orchestrator, loginURL: loginURL}
}

func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	session := h.orchestrator.NewSession(auth.TokenFromContext(c.Request.Context()))
	c.JSON(http.StatusCreated, session.View())
}

func (h *CheckoutHandler) GetSession(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.View())
}

// Submit runs the checkout. Payment-path failures come back as a 200 whose
// view is in the failed state; only problems the form must resolve are errors.
func (h *CheckoutHandler) Submit(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.Logger.Error("Error decoding checkout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	method, known := models.ParsePaymentMethod(req.PaymentMethod)
	if !known && strings.TrimSpace(req.PaymentMethod) != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "unsupported payment method",
			"field": "payment_method",
			"view":  session.View(),
		})
		return
	}

	view, err := session.Submit(c.Request.Context(), service.SubmitRequest{
		Billing:         req.Billing,
		Method:          method,
		UseBillingPhone: req.UseBillingPhone,
		PhoneNumber:     req.MpesaPhone,
	})

	var validationErr *models.ValidationError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, view)
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": validationErr.Message,
			"field": validationErr.Field,
			"view":  view,
		})
	case models.IsAuthError(err):
		auth.AbortUnauthorized(c, h.loginURL)
	case errors.Is(err, models.ErrSubmissionInFlight), errors.Is(err, models.ErrAttemptActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "view": view})
	case errors.Is(err, models.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Checkout session not found"})
	default:
		telemetry.Logger.Error("Error processing checkout",
			zap.String("session_id", session.ID()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process checkout", "view": view})
	}
}

func (h *CheckoutHandler) Reset(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Reset())
}

// EndSession is called when the shopper navigates away from checkout.
func (h *CheckoutHandler) EndSession(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.orchestrator.EndSession(session.ID()); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Checkout session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// session resolves the path id to a session owned by the caller's token.
func (h *CheckoutHandler) session(c *gin.Context) (*service.Session, bool) {
	session, err := h.orchestrator.SessionFor(c.Param("id"), auth.TokenFromContext(c.Request.Context()))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Checkout session not found"})
		return nil, false
	}
	return session, true
}
