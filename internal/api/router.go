package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/auth"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/handlers"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/service"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/telemetry"
)

const ServiceName = "checkout-orchestrator"

func NewRouter(orchestrator *service.Orchestrator, repo interfaces.AttemptRepository, loginURL string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": ServiceName})
	})

	requireAuth := auth.RequireBearer(loginURL)

	cartHandler := handlers.NewCartHandler(orchestrator.Carts(), loginURL)
	r.GET("/cart", requireAuth, cartHandler.GetCart)

	// Checkout routes
	checkoutHandler := handlers.NewCheckoutHandler(orchestrator, loginURL)
	checkout := r.Group("/checkout", requireAuth)
	checkout.POST("/sessions", checkoutHandler.CreateSession)
	checkout.GET("/sessions/:id", checkoutHandler.GetSession)
	checkout.POST("/sessions/:id/submit", checkoutHandler.Submit)
	checkout.POST("/sessions/:id/reset", checkoutHandler.Reset)
	checkout.DELETE("/sessions/:id", checkoutHandler.EndSession)

	if repo != nil {
		stateHandler := handlers.NewAttemptStateHandler(repo)
		checkout.GET("/attempts/:id/state", stateHandler.GetAttemptState)
	}

	return r
}
