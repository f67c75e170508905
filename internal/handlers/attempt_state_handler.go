package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/telemetry"
)

type AttemptStateHandler struct {
	repo interfaces.AttemptRepository
}

func NewAttemptStateHandler(repo interfaces.AttemptRepository) *AttemptStateHandler {
	return &AttemptStateHandler{repo: repo}
}

func (h *AttemptStateHandler) GetAttemptState(c *gin.Context) {
	attemptID := c.Param("id")

	info, err := h.repo.GetByAttemptID(c.Request.Context(), attemptID)
	if errors.Is(err, models.ErrAttemptNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment attempt not found"})
		return
	}

	if err != nil {
		telemetry.Logger.Error("Failed to fetch attempt state",
			zap.String("attempt_id", attemptID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment attempt state"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt_id":     attemptID,
		"session_id":     info.SessionID,
		"order_id":       info.OrderID,
		"correlation_id": info.CorrelationID,
		"method":         info.Method,
		"amount":         info.Amount,
		"state":          info.State,
		"previous_state": info.PreviousState,
		"failure_reason": info.FailureReason,
		"created_at":     info.CreatedAt,
		"updated_at":     info.UpdatedAt,
	})
}
