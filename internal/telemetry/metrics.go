package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_created_total",
		Help: "Orders created by checkout submissions, by payment method.",
	}, []string{"method"})

	PaymentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_payment_outcomes_total",
		Help: "Payment attempts reaching a terminal state, by method and status.",
	}, []string{"method", "status"})

	StatusPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_status_polls_total",
		Help: "Mobile-money status queries, by result.",
	}, []string{"result"})

	AttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_attempt_duration_seconds",
		Help:    "Time from submission to a terminal attempt state.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 180},
	}, []string{"method", "status"})

	CartFinalizationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_cart_finalization_failures_total",
		Help: "Cart clear calls that failed after a confirmed payment.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_active_sessions",
		Help: "Checkout sessions currently held in memory.",
	})

	SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sessions_expired_total",
		Help: "Checkout sessions ended after sitting idle past the session TTL.",
	})
)
