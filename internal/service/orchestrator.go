package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/config"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/telemetry"
)

const sideChannelTimeout = 5 * time.Second

// Dependencies are the collaborators of the orchestrator. Repo, Events,
// Notifier and Lock are side channels and may be nil.
type Dependencies struct {
	Carts    interfaces.CartService
	Orders   interfaces.OrderService
	Payments interfaces.PaymentGateway
	Repo     interfaces.AttemptRepository
	Events   interfaces.EventPublisher
	Notifier interfaces.StateNotifier
	Lock     interfaces.SessionLock
}

// Orchestrator owns the checkout sessions of this process and the components
// they share.
type Orchestrator struct {
	deps      Dependencies
	accessor  *CartAccessor
	creator   *OrderCreator
	initiator *Initiator
	finalizer *Finalizer
	polling   config.PollingConfig
	lockTTL   time.Duration

	sessionTTL time.Duration

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSessionTTL expires sessions that have seen no shopper activity for ttl.
// Without it sessions live until EndSession or Shutdown.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.sessionTTL = ttl
	}
}

func NewOrchestrator(deps Dependencies, polling config.PollingConfig, lockTTL time.Duration, opts ...Option) *Orchestrator {
	baseCtx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		deps:       deps,
		accessor:   NewCartAccessor(deps.Carts),
		creator:    NewOrderCreator(deps.Orders),
		initiator:  NewInitiator(deps.Payments),
		finalizer:  NewFinalizer(deps.Carts),
		polling:    polling,
		lockTTL:    lockTTL,
		baseCtx:    baseCtx,
		cancelBase: cancel,
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sessionTTL > 0 {
		go o.expireLoop()
	}
	return o
}

func (o *Orchestrator) Carts() *CartAccessor {
	return o.accessor
}

// NewSession opens a checkout session for the shopper holding token.
func (o *Orchestrator) NewSession(token string) *Session {
	s := newSession(uuid.NewString(), token, o)

	o.mu.Lock()
	o.sessions[s.id] = s
	o.mu.Unlock()
	telemetry.ActiveSessions.Inc()

	telemetry.Logger.Info("Checkout session opened", zap.String("session_id", s.id))
	return s
}

func (o *Orchestrator) Session(id string) (*Session, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

// SessionFor looks up a session on behalf of the shopper holding token and
// counts as activity. Sessions opened with another token are reported as not
// found.
func (o *Orchestrator) SessionFor(id, token string) (*Session, error) {
	s, err := o.Session(id)
	if err != nil {
		return nil, err
	}
	if !s.OwnedBy(token) {
		return nil, models.ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// EndSession is called when the shopper leaves checkout: polling stops and no
// further state updates are produced for the session.
func (o *Orchestrator) EndSession(id string) error {
	o.mu.Lock()
	s, ok := o.sessions[id]
	delete(o.sessions, id)
	o.mu.Unlock()
	if !ok {
		return models.ErrSessionNotFound
	}

	s.close()
	telemetry.ActiveSessions.Dec()
	telemetry.Logger.Info("Checkout session closed", zap.String("session_id", id))
	return nil
}

func (o *Orchestrator) expireLoop() {
	interval := max(o.sessionTTL/2, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.baseCtx.Done():
			return
		case now := <-ticker.C:
			o.expireIdle(now)
		}
	}
}

// expireIdle ends every session idle for at least the session TTL, except
// one that is mid-submission. It returns the number of sessions ended.
func (o *Orchestrator) expireIdle(now time.Time) int {
	var idle []string
	o.mu.RLock()
	for id, s := range o.sessions {
		if s.idleSince(now) >= o.sessionTTL && !s.busy() {
			idle = append(idle, id)
		}
	}
	o.mu.RUnlock()

	expired := 0
	for _, id := range idle {
		if o.EndSession(id) == nil {
			expired++
			telemetry.SessionsExpired.Inc()
		}
	}
	if expired > 0 {
		telemetry.Logger.Info("Expired idle checkout sessions", zap.Int("count", expired))
	}
	return expired
}

// Shutdown cancels every outstanding poller.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	sessions := o.sessions
	o.sessions = make(map[string]*Session)
	o.mu.Unlock()

	for _, s := range sessions {
		s.close()
		telemetry.ActiveSessions.Dec()
	}
	o.cancelBase()
}

// sideContext detaches side-channel writes from the request that caused them.
func (o *Orchestrator) sideContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(o.baseCtx, sideChannelTimeout)
}

// record persists and publishes a transition. Failures are logged only; the
// in-memory attempt stays the source of truth.
func (o *Orchestrator) record(attempt models.PaymentAttempt, from models.AttemptStatus) {
	ctx, cancel := o.sideContext()
	defer cancel()

	logger := telemetry.Logger.With(
		zap.String("session_id", attempt.SessionID),
		zap.String("attempt_id", attempt.ID),
	)

	if o.deps.Repo != nil {
		if from == models.StatusNotStarted {
			if err := o.deps.Repo.InsertAttempt(ctx, &attempt); err != nil {
				logger.Error("Failed to persist attempt", zap.Error(err))
			}
		}
		rows, err := o.deps.Repo.TransitionState(ctx, attempt.ID, from, attempt.Status, attempt.Message)
		switch {
		case err != nil:
			logger.Error("Failed to persist attempt transition", zap.Error(err))
		case rows == 0:
			logger.Warn("Persisted attempt state out of sync",
				zap.String("from_state", string(from)),
				zap.String("to_state", string(attempt.Status)),
			)
		}
	}

	if o.deps.Events != nil {
		event := models.AttemptStateEvent{
			SessionID:     attempt.SessionID,
			AttemptID:     attempt.ID,
			OrderID:       attempt.OrderID(),
			CorrelationID: attempt.CorrelationID,
			Method:        attempt.Method,
			State:         attempt.Status,
			PreviousState: from,
			UIState:       models.Project(&attempt),
			Amount:        attempt.Amount().StringFixed(2),
			Message:       attempt.Message,
			Timestamp:     attempt.UpdatedAt,
		}
		if err := o.deps.Events.PublishStateChange(ctx, event); err != nil {
			logger.Error("Failed to publish state change", zap.Error(err))
		}
	}

	logger.Info("Payment attempt transition",
		zap.String("order_id", attempt.OrderID()),
		zap.String("correlation_id", attempt.CorrelationID),
		zap.String("from_state", string(from)),
		zap.String("to_state", string(attempt.Status)),
	)
}

func (o *Orchestrator) notify(ctx context.Context, view models.CheckoutView) {
	if o.deps.Notifier == nil {
		return
	}
	if err := o.deps.Notifier.NotifyState(ctx, view); err != nil {
		telemetry.Logger.Error("Failed to push checkout state",
			zap.String("session_id", view.SessionID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) persistOrder(attempt models.PaymentAttempt) {
	if o.deps.Repo == nil {
		return
	}
	ctx, cancel := o.sideContext()
	defer cancel()
	if err := o.deps.Repo.SetOrder(ctx, attempt.ID, attempt.OrderID(), attempt.Amount()); err != nil {
		telemetry.Logger.Error("Failed to persist attempt order",
			zap.String("attempt_id", attempt.ID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) persistCorrelation(attempt models.PaymentAttempt) {
	if o.deps.Repo == nil {
		return
	}
	ctx, cancel := o.sideContext()
	defer cancel()
	if err := o.deps.Repo.SetCorrelation(ctx, attempt.ID, attempt.CorrelationID); err != nil {
		telemetry.Logger.Error("Failed to persist attempt correlation",
			zap.String("attempt_id", attempt.ID),
			zap.Error(err),
		)
	}
}
