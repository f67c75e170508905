package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/config"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
)

type statusStep struct {
	status models.ProviderStatus
	err    error
}

// fakeBackend stands in for the storefront backend. It records every call so
// tests can assert which endpoints were reached.
type fakeBackend struct {
	mu sync.Mutex

	cart     *models.CartSnapshot
	cartErr  error
	clearErr error

	orderID     string
	orderAmount *decimal.Decimal
	orderErr    error
	// orderEntered and orderRelease, when set, hold CreateOrder open.
	orderEntered chan struct{}
	orderRelease chan struct{}
	// afterOrder runs once CreateOrder has produced its result.
	afterOrder func()

	stkResult *models.STKPushResult
	stkErr    error

	intentErr     error
	confirmStatus string
	confirmErr    error

	statuses []statusStep

	calls          map[string]int
	orderRequests  []models.CreateOrderRequest
	stkRequests    []models.STKPushRequest
	intentRequests []models.PaymentIntentRequest
}

func newFakeBackend(items ...models.CartItem) *fakeBackend {
	return &fakeBackend{
		cart:          models.NewCartSnapshot(items, time.Now()),
		orderID:       "ORD-1",
		stkResult:     &models.STKPushResult{CheckoutRequestID: "ws_CO_1"},
		confirmStatus: "succeeded",
		statuses:      []statusStep{{status: models.ProviderCompleted}},
		calls:         make(map[string]int),
	}
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeBackend) setCart(snapshot *models.CartSnapshot) {
	f.mu.Lock()
	f.cart = snapshot
	f.mu.Unlock()
}

func (f *fakeBackend) GetCart(_ context.Context) (*models.CartSnapshot, error) {
	f.record("get_cart")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cartErr != nil {
		return nil, f.cartErr
	}
	return f.cart, nil
}

func (f *fakeBackend) ClearCart(_ context.Context) error {
	f.record("clear_cart")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clearErr
}

func (f *fakeBackend) CreateOrder(_ context.Context, req models.CreateOrderRequest) (*models.CreateOrderResult, error) {
	f.record("create_order")
	f.mu.Lock()
	f.orderRequests = append(f.orderRequests, req)
	entered, release := f.orderEntered, f.orderRelease
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	f.mu.Lock()
	if f.orderErr != nil {
		err := f.orderErr
		f.mu.Unlock()
		return nil, err
	}
	result := &models.CreateOrderResult{OrderID: f.orderID, Amount: f.orderAmount}
	hook := f.afterOrder
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return result, nil
}

func (f *fakeBackend) InitiateSTKPush(_ context.Context, req models.STKPushRequest) (*models.STKPushResult, error) {
	f.record("stk_push")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stkRequests = append(f.stkRequests, req)
	if f.stkErr != nil {
		return nil, f.stkErr
	}
	return f.stkResult, nil
}

func (f *fakeBackend) MobileMoneyStatus(_ context.Context, _ string) (models.ProviderStatus, error) {
	f.mu.Lock()
	i := f.calls["status"]
	f.calls["status"]++
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	step := f.statuses[i]
	f.mu.Unlock()
	return step.status, step.err
}

func (f *fakeBackend) CreatePaymentIntent(_ context.Context, req models.PaymentIntentRequest) (*models.PaymentIntent, error) {
	f.record("create_intent")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intentRequests = append(f.intentRequests, req)
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	return &models.PaymentIntent{ID: "pi_1"}, nil
}

func (f *fakeBackend) ConfirmPayment(_ context.Context, req models.ConfirmPaymentRequest) (*models.PaymentConfirmation, error) {
	f.record("confirm")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &models.PaymentConfirmation{PaymentIntentID: req.PaymentIntentID, Status: f.confirmStatus}, nil
}

type transitionRecord struct {
	attemptID string
	from, to  models.AttemptStatus
}

type fakeRepo struct {
	mu          sync.Mutex
	inserted    []string
	transitions []transitionRecord
	orders      map[string]string
	correlation map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[string]string), correlation: make(map[string]string)}
}

func (r *fakeRepo) InsertAttempt(_ context.Context, attempt *models.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted = append(r.inserted, attempt.ID)
	return nil
}

func (r *fakeRepo) TransitionState(_ context.Context, attemptID string, from, to models.AttemptStatus, _ string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, transitionRecord{attemptID: attemptID, from: from, to: to})
	return 1, nil
}

func (r *fakeRepo) SetOrder(_ context.Context, attemptID, orderID string, _ decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[attemptID] = orderID
	return nil
}

func (r *fakeRepo) SetCorrelation(_ context.Context, attemptID, correlationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.correlation[attemptID] = correlationID
	return nil
}

func (r *fakeRepo) GetByAttemptID(_ context.Context, _ string) (*models.AttemptStateInfo, error) {
	return nil, nil
}

func (r *fakeRepo) Transitions() []transitionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]transitionRecord, len(r.transitions))
	copy(out, r.transitions)
	return out
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.AttemptStateEvent
	// holdState, when set, parks the publish of that state on entered and
	// release.
	holdState models.AttemptStatus
	entered   chan struct{}
	release   chan struct{}
}

func (e *fakeEvents) hold(state models.AttemptStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.holdState = state
	e.entered = make(chan struct{}, 1)
	e.release = make(chan struct{})
}

func (e *fakeEvents) PublishStateChange(_ context.Context, event models.AttemptStateEvent) error {
	e.mu.Lock()
	e.events = append(e.events, event)
	held := e.holdState != "" && event.State == e.holdState
	entered, release := e.entered, e.release
	e.mu.Unlock()

	if held {
		entered <- struct{}{}
		<-release
	}
	return nil
}

func (e *fakeEvents) States() []models.AttemptStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	states := make([]models.AttemptStatus, 0, len(e.events))
	for _, ev := range e.events {
		states = append(states, ev.State)
	}
	return states
}

type fakeNotifier struct {
	mu    sync.Mutex
	views []models.CheckoutView
}

func (n *fakeNotifier) NotifyState(_ context.Context, view models.CheckoutView) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.views = append(n.views, view)
	return nil
}

func (n *fakeNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.views)
}

func (n *fakeNotifier) Last() models.CheckoutView {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.views) == 0 {
		return models.CheckoutView{}
	}
	return n.views[len(n.views)-1]
}

type fakeLock struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	acquired int
}

func (l *fakeLock) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[key] {
		return nil, models.ErrSubmissionInFlight
	}
	l.held[key] = true
	l.acquired++
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}

func testPolling() config.PollingConfig {
	return config.PollingConfig{
		Interval:             5 * time.Millisecond,
		MaxWait:              time.Second,
		MaxConsecutiveErrors: 3,
		MockDelay:            20 * time.Millisecond,
	}
}

type harness struct {
	backend  *fakeBackend
	repo     *fakeRepo
	events   *fakeEvents
	notifier *fakeNotifier
	lock     *fakeLock
	orc      *Orchestrator
}

func newHarness(backend *fakeBackend, polling config.PollingConfig) *harness {
	h := &harness{
		backend:  backend,
		repo:     newFakeRepo(),
		events:   &fakeEvents{},
		notifier: &fakeNotifier{},
		lock:     &fakeLock{},
	}
	h.orc = NewOrchestrator(Dependencies{
		Carts:    backend,
		Orders:   backend,
		Payments: backend,
		Repo:     h.repo,
		Events:   h.events,
		Notifier: h.notifier,
		Lock:     h.lock,
	}, polling, time.Minute)
	return h
}

func validBilling() models.BillingDetails {
	return models.BillingDetails{
		FirstName:     "Wanjiru",
		LastName:      "Kamau",
		StreetAddress: "12 Moi Avenue",
		City:          "Nairobi",
		Province:      "Nairobi",
		Zip:           "00100",
		Phone:         "0712345678",
		Email:         "wanjiru@example.com",
	}
}

func item(id string, price string, qty int) models.CartItem {
	return models.CartItem{
		CartItemID:  "ci-" + id,
		ProductID:   id,
		ProductName: "Product " + id,
		UnitPrice:   decimal.RequireFromString(price),
		Quantity:    qty,
		MaxAllowed:  10,
	}
}
