// Package poller drives the mobile-money status poll loop for one payment attempt.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/config"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/telemetry"
)

// Result is delivered exactly once, unless the poller was cancelled first.
type Result struct {
	Status        models.AttemptStatus
	Polls         int
	Err           error
	RequiresLogin bool
}

type Poller struct {
	checker       interfaces.PaymentStatusChecker
	correlationID string
	cfg           config.PollingConfig
	onResult      func(Result)

	cancelled atomic.Bool
	mu        sync.Mutex
	started   bool
	stop      context.CancelFunc
	done      chan struct{}
}

func New(checker interfaces.PaymentStatusChecker, correlationID string, cfg config.PollingConfig, onResult func(Result)) *Poller {
	return &Poller{
		checker:       checker,
		correlationID: correlationID,
		cfg:           cfg,
		onResult:      onResult,
		done:          make(chan struct{}),
	}
}

// Start launches the loop. The first status query runs immediately; later
// calls are no-ops.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.stop = cancel
	if p.cancelled.Load() {
		cancel()
	}
	go p.run(runCtx, cancel)
}

// Cancel stops the loop and aborts an in-flight query. A query that still
// completes afterwards is discarded.
func (p *Poller) Cancel() {
	p.cancelled.Store(true)

	p.mu.Lock()
	stop := p.stop
	p.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Done is closed when the loop goroutine exits. It never closes for a poller
// that was not started.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) Cancelled() bool {
	return p.cancelled.Load()
}

func (p *Poller) run(ctx context.Context, cancel context.CancelFunc) {
	defer close(p.done)
	defer cancel()

	logger := telemetry.Logger.With(zap.String("correlation_id", p.correlationID))
	deadline := time.Now().Add(p.cfg.MaxWait)

	timer := time.NewTimer(0)
	defer timer.Stop()

	var (
		polls             int
		consecutiveErrors int
		lastErr           error
	)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Status polling stopped", zap.Int("polls", polls))
			return
		case <-timer.C:
		}

		if p.cancelled.Load() {
			return
		}

		polls++
		status, err := p.query(ctx, polls)

		if p.cancelled.Load() || ctx.Err() != nil {
			return
		}

		switch {
		case err != nil && models.IsAuthError(err):
			telemetry.StatusPolls.WithLabelValues("auth_error").Inc()
			logger.Warn("Status polling stopped: authentication rejected", zap.Int("polls", polls))
			p.deliver(Result{
				Status:        models.StatusTimedOut,
				Polls:         polls,
				Err:           &models.PaymentTimeoutError{CorrelationID: p.correlationID, Polls: polls, Err: err},
				RequiresLogin: true,
			})
			return

		case err != nil:
			consecutiveErrors++
			lastErr = err
			telemetry.StatusPolls.WithLabelValues("error").Inc()
			logger.Warn("Status query failed",
				zap.Int("polls", polls),
				zap.Int("consecutive_errors", consecutiveErrors),
				zap.Error(err),
			)
			if consecutiveErrors >= p.cfg.MaxConsecutiveErrors {
				p.deliver(Result{
					Status: models.StatusTimedOut,
					Polls:  polls,
					Err:    &models.PaymentTimeoutError{CorrelationID: p.correlationID, Polls: polls, Err: lastErr},
				})
				return
			}

		case status == models.ProviderCompleted:
			telemetry.StatusPolls.WithLabelValues("completed").Inc()
			p.deliver(Result{Status: models.StatusCompleted, Polls: polls})
			return

		case status == models.ProviderFailed:
			telemetry.StatusPolls.WithLabelValues("failed").Inc()
			p.deliver(Result{
				Status: models.StatusFailed,
				Polls:  polls,
				Err:    &models.PaymentInitiationError{Message: "The payment was declined or cancelled on the phone."},
			})
			return

		default:
			consecutiveErrors = 0
			telemetry.StatusPolls.WithLabelValues("pending").Inc()
		}

		if !time.Now().Add(p.cfg.Interval).Before(deadline) {
			logger.Warn("Status polling window exhausted", zap.Int("polls", polls))
			p.deliver(Result{
				Status: models.StatusTimedOut,
				Polls:  polls,
				Err:    &models.PaymentTimeoutError{CorrelationID: p.correlationID, Polls: polls, Err: lastErr},
			})
			return
		}
		timer.Reset(p.cfg.Interval)
	}
}

func (p *Poller) query(ctx context.Context, poll int) (models.ProviderStatus, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "poller.query")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.correlation_id", p.correlationID),
		attribute.Int("payment.poll", poll),
	)

	status, err := p.checker.MobileMoneyStatus(ctx, p.correlationID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("payment.provider_status", string(status)))
	return status, nil
}

func (p *Poller) deliver(result Result) {
	if p.cancelled.Load() {
		return
	}
	p.onResult(result)
}
