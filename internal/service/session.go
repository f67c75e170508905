package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/auth"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/poller"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/telemetry"
)

type SubmitRequest struct {
	Billing         models.BillingDetails
	Method          models.PaymentMethod
	UseBillingPhone bool
	PhoneNumber     string
}

// Session is one shopper's checkout. All attempt mutations go through
// transition, which drops updates from a superseded generation and refuses to
// leave a terminal state; Reset and close bump the generation.
type Session struct {
	id    string
	token string
	orc   *Orchestrator

	lastActive atomic.Int64

	mu         sync.Mutex
	generation uint64
	version    uint64
	attempt    *models.PaymentAttempt
	poller     *poller.Poller
	mockTimer  *time.Timer
	submitting bool
	redirect   string
	closed     bool

	// pushMu orders notifier pushes; pushed is the newest version sent.
	pushMu sync.Mutex
	pushed uint64
}

func newSession(id, token string, orc *Orchestrator) *Session {
	s := &Session{id: id, token: token, orc: orc}
	s.touch()
	return s
}

func (s *Session) ID() string {
	return s.id
}

// OwnedBy reports whether token is the one the session was opened with.
func (s *Session) OwnedBy(token string) bool {
	return token == s.token
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastActive.Load()))
}

// Submit creates the order and starts the payment. Validation, auth and
// concurrency problems are returned as errors and leave the attempt untouched;
// payment-path failures are reported through the returned view instead.
func (s *Session) Submit(ctx context.Context, req SubmitRequest) (models.CheckoutView, error) {
	if token := auth.TokenFromContext(ctx); token != "" && !s.OwnedBy(token) {
		return models.CheckoutView{}, models.ErrSessionNotFound
	}
	s.touch()

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return s.View(), models.ErrSessionNotFound
	case s.submitting:
		s.mu.Unlock()
		return s.View(), models.ErrSubmissionInFlight
	case s.attempt != nil:
		s.mu.Unlock()
		return s.View(), models.ErrAttemptActive
	}
	s.submitting = true
	gen := s.generation
	s.mu.Unlock()

	ctx, span := telemetry.Tracer.Start(auth.WithToken(ctx, s.token), "checkout.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("checkout.session_id", s.id),
		attribute.String("payment.method", string(req.Method)),
	)

	err := s.submit(ctx, gen, req)
	if err != nil {
		span.RecordError(err)
	}

	s.mu.Lock()
	s.submitting = false
	view := s.viewLocked()
	s.mu.Unlock()
	return view, err
}

func (s *Session) submit(ctx context.Context, gen uint64, req SubmitRequest) error {
	billing := req.Billing.Normalized()
	if err := ValidateBilling(billing); err != nil {
		return err
	}
	if err := validateMethod(req.Method); err != nil {
		return err
	}

	params := MethodParams{
		UseBillingPhone: req.UseBillingPhone,
		BillingPhone:    billing.Phone,
		PhoneNumber:     req.PhoneNumber,
	}
	var phone string
	if req.Method == models.MethodMobileMoney {
		resolved, err := ResolvePhone(params)
		if err != nil {
			return err
		}
		phone = resolved
	}

	cart, err := s.orc.accessor.FetchOrEmpty(ctx)
	if err != nil {
		return err
	}
	if cart.IsEmpty() {
		return &models.ValidationError{Field: "cart", Message: models.ErrEmptyCart.Error(), Err: models.ErrEmptyCart}
	}

	release, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer release()

	if !s.begin(gen, req.Method, phone, cart) {
		return nil
	}

	order, err := s.orc.creator.Create(ctx, billing, req.Method, cart)
	if err != nil {
		return s.fail(gen, err)
	}
	if !s.attachOrder(gen, order) {
		return nil
	}

	result, err := s.orc.initiator.Initiate(ctx, order, req.Method, params)
	if err != nil {
		return s.fail(gen, err)
	}

	if result.Settled {
		if s.transition(gen, models.StatusCompleted, func(a *models.PaymentAttempt) {
			a.CorrelationID = result.CorrelationID
		}) {
			s.finalize(gen, order.ID)
		}
		return nil
	}

	if !s.transition(gen, models.StatusAwaitingConfirmation, func(a *models.PaymentAttempt) {
		a.CorrelationID = result.CorrelationID
		a.Mock = result.Mock
	}) {
		return nil
	}

	if result.Mock {
		s.scheduleMockCompletion(gen, order.ID)
		return nil
	}
	s.startPolling(gen, result.CorrelationID, order.ID)
	return nil
}

func (s *Session) acquireLock(ctx context.Context) (func(), error) {
	noop := func() {}
	if s.orc.deps.Lock == nil {
		return noop, nil
	}

	release, err := s.orc.deps.Lock.Acquire(ctx, "checkout_lock:"+s.id, s.orc.lockTTL)
	switch {
	case err == nil:
		return release, nil
	case errors.Is(err, models.ErrSubmissionInFlight):
		return nil, err
	}

	telemetry.Logger.Warn("Checkout lock unavailable, relying on in-process guard",
		zap.String("session_id", s.id),
		zap.Error(err),
	)
	return noop, nil
}

// begin creates the attempt in INITIATING.
func (s *Session) begin(gen uint64, method models.PaymentMethod, phone string, cart *models.CartSnapshot) bool {
	s.mu.Lock()
	if gen != s.generation || s.closed || s.attempt != nil {
		s.mu.Unlock()
		return false
	}
	now := time.Now()
	s.attempt = &models.PaymentAttempt{
		ID:          uuid.NewString(),
		SessionID:   s.id,
		Status:      models.StatusInitiating,
		Method:      method,
		PhoneNumber: phone,
		CartTotal:   cart.TotalPrice(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.redirect = ""
	snapshot := *s.attempt
	view := s.nextViewLocked()
	s.mu.Unlock()

	s.orc.record(snapshot, models.StatusNotStarted)
	s.push(view)
	return true
}

func (s *Session) attachOrder(gen uint64, order *models.Order) bool {
	s.mu.Lock()
	if gen != s.generation || s.attempt == nil || s.attempt.Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	s.attempt.Order = order
	s.attempt.UpdatedAt = time.Now()
	snapshot := *s.attempt
	view := s.nextViewLocked()
	s.mu.Unlock()

	s.orc.persistOrder(snapshot)
	s.push(view)
	return true
}

// transition applies one state change. It returns false, and changes nothing,
// when the generation is stale or the state machine forbids the move.
func (s *Session) transition(gen uint64, to models.AttemptStatus, mutate func(*models.PaymentAttempt)) bool {
	s.mu.Lock()
	if gen != s.generation || s.attempt == nil || !s.attempt.Status.CanTransitionTo(to) {
		var current models.AttemptStatus
		if s.attempt != nil {
			current = s.attempt.Status
		}
		s.mu.Unlock()
		telemetry.Logger.Debug("Dropped stale attempt transition",
			zap.String("session_id", s.id),
			zap.String("current_state", string(current)),
			zap.String("to_state", string(to)),
		)
		return false
	}

	from := s.attempt.Status
	s.attempt.Status = to
	if mutate != nil {
		mutate(s.attempt)
	}
	s.attempt.UpdatedAt = time.Now()
	snapshot := *s.attempt
	view := s.nextViewLocked()
	s.mu.Unlock()

	if from == models.StatusInitiating && snapshot.CorrelationID != "" {
		s.orc.persistCorrelation(snapshot)
	}
	if to.IsTerminal() {
		telemetry.PaymentOutcomes.WithLabelValues(string(snapshot.Method), string(to)).Inc()
		telemetry.AttemptDuration.WithLabelValues(string(snapshot.Method), string(to)).
			Observe(snapshot.UpdatedAt.Sub(snapshot.CreatedAt).Seconds())
	}
	s.orc.record(snapshot, from)
	s.push(view)
	return true
}

// fail moves the attempt to FAILED. AuthError is handed back so the caller can
// redirect to login; every other payment-path error lives on in the view.
func (s *Session) fail(gen uint64, err error) error {
	telemetry.Logger.Warn("Checkout attempt failed",
		zap.String("session_id", s.id),
		zap.Error(err),
	)
	s.transition(gen, models.StatusFailed, func(a *models.PaymentAttempt) {
		a.Message = models.UserMessage(err)
		a.RequiresLogin = models.IsAuthError(err)
	})
	if models.IsAuthError(err) {
		return err
	}
	return nil
}

func (s *Session) complete(gen uint64, orderID string, mutate func(*models.PaymentAttempt)) {
	if s.transition(gen, models.StatusCompleted, mutate) {
		s.finalize(gen, orderID)
	}
}

// finalize clears the cart and records where the shell should navigate.
func (s *Session) finalize(gen uint64, orderID string) {
	ctx, cancel := s.orc.sideContext()
	defer cancel()
	redirect := s.orc.finalizer.OnPaymentConfirmed(auth.WithToken(ctx, s.token), orderID)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.redirect = redirect
	view := s.nextViewLocked()
	s.mu.Unlock()

	s.push(view)
}

// scheduleMockCompletion resolves sandbox payments after a short delay without
// querying the status endpoint.
func (s *Session) scheduleMockCompletion(gen uint64, orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.closed {
		return
	}
	s.mockTimer = time.AfterFunc(s.orc.polling.MockDelay, func() {
		s.complete(gen, orderID, nil)
	})
}

func (s *Session) startPolling(gen uint64, correlationID, orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.closed {
		return
	}

	p := poller.New(s.orc.deps.Payments, correlationID, s.orc.polling, func(result poller.Result) {
		s.onPollResult(gen, orderID, result)
	})
	s.poller = p
	p.Start(auth.WithToken(s.orc.baseCtx, s.token))
}

func (s *Session) onPollResult(gen uint64, orderID string, result poller.Result) {
	record := func(a *models.PaymentAttempt) {
		a.Polls = result.Polls
		a.Message = models.UserMessage(result.Err)
		a.RequiresLogin = result.RequiresLogin
	}
	if result.Status == models.StatusCompleted {
		s.complete(gen, orderID, record)
		return
	}
	s.transition(gen, result.Status, record)
}

// Reset discards the current attempt and returns the session to idle. It is
// both "try again" after a failure and "make another payment" after success.
func (s *Session) Reset() models.CheckoutView {
	s.touch()

	s.mu.Lock()
	s.discardLocked()
	view := s.nextViewLocked()
	s.mu.Unlock()

	s.push(view)
	return view
}

// push hands view to the notifier unless a newer view of the session has
// already gone out.
func (s *Session) push(view models.CheckoutView) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	if view.Version <= s.pushed {
		telemetry.Logger.Debug("Dropped superseded checkout view",
			zap.String("session_id", s.id),
			zap.Uint64("version", view.Version),
			zap.Uint64("pushed_version", s.pushed),
		)
		return
	}
	s.pushed = view.Version

	ctx, cancel := s.orc.sideContext()
	defer cancel()
	s.orc.notify(ctx, view)
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
	s.closed = true
}

func (s *Session) discardLocked() {
	s.generation++
	if s.poller != nil {
		s.poller.Cancel()
		s.poller = nil
	}
	if s.mockTimer != nil {
		s.mockTimer.Stop()
		s.mockTimer = nil
	}
	s.attempt = nil
	s.redirect = ""
}

func (s *Session) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// Attempt returns a copy of the current attempt, or nil when idle.
func (s *Session) Attempt() *models.PaymentAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt == nil {
		return nil
	}
	attempt := *s.attempt
	return &attempt
}

func (s *Session) View() models.CheckoutView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// nextViewLocked is viewLocked for a change that will be pushed.
func (s *Session) nextViewLocked() models.CheckoutView {
	s.version++
	return s.viewLocked()
}

func (s *Session) viewLocked() models.CheckoutView {
	view := models.CheckoutView{
		SessionID:  s.id,
		State:      models.Project(s.attempt),
		Status:     models.StatusNotStarted,
		Redirect:   s.redirect,
		Submitting: s.submitting,
		Version:    s.version,
	}
	if s.attempt == nil {
		return view
	}

	view.AttemptID = s.attempt.ID
	view.Status = s.attempt.Status
	view.Method = s.attempt.Method
	view.OrderID = s.attempt.OrderID()
	view.Reference = s.attempt.Reference()
	view.Message = s.attempt.Message
	view.RequiresLogin = s.attempt.RequiresLogin
	if amount := s.attempt.Amount(); !amount.IsZero() {
		view.Amount = amount.StringFixed(2)
	}
	return view
}
