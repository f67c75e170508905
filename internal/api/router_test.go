package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/auth"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/backend"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/config"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/service"
)

// storefront emulates the backend REST API the orchestrator talks to.
type storefront struct {
	mu            sync.Mutex
	statusCalls   int
	cartCleared   int
	authHeaders   []string
	declineIntent bool
	orderBodies   []map[string]any
}

func (s *storefront) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authHeaders = append(s.authHeaders, r.Header.Get("Authorization"))

	writeJSON := func(status int, body any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}

	switch r.Method + " " + r.URL.Path {
	case "GET /cart":
		writeJSON(http.StatusOK, map[string]any{
			"items": []map[string]any{
				{"id": 1, "product_id": 7, "product_name": "Runner", "unit_price": "1500.00", "quantity": 2, "max_allowed": 5},
				{"id": 2, "product_id": 9, "product_name": "Socks", "unit_price": "502.76", "quantity": 1, "max_allowed": 5},
			},
		})
	case "DELETE /cart":
		s.cartCleared++
		w.WriteHeader(http.StatusNoContent)
	case "POST /orders/checkout":
		var body map[string]any
		decoder := json.NewDecoder(r.Body)
		decoder.UseNumber()
		_ = decoder.Decode(&body)
		s.orderBodies = append(s.orderBodies, body)
		writeJSON(http.StatusCreated, map[string]any{"order_id": "ORD-42"})
	case "POST /payments/mpesa/stkpush":
		writeJSON(http.StatusOK, map[string]any{"checkout_request_id": "ws_CO_42"})
	case "GET /payments/mpesa/status/ws_CO_42":
		s.statusCalls++
		status := "PENDING"
		if s.statusCalls >= 2 {
			status = "COMPLETED"
		}
		writeJSON(http.StatusOK, map[string]any{"status": status})
	case "POST /stripe/create-payment-intent":
		if s.declineIntent {
			writeJSON(http.StatusPaymentRequired, map[string]any{"error": "card declined"})
			return
		}
		writeJSON(http.StatusOK, map[string]any{"payment_intent_id": "pi_42"})
	case "POST /stripe/confirm-payment":
		writeJSON(http.StatusOK, map[string]any{"status": "succeeded"})
	default:
		writeJSON(http.StatusNotFound, map[string]any{"error": "not found"})
	}
}

type stubRepo struct{}

func (stubRepo) InsertAttempt(context.Context, *models.PaymentAttempt) error { return nil }
func (stubRepo) TransitionState(context.Context, string, models.AttemptStatus, models.AttemptStatus, string) (int64, error) {
	return 1, nil
}
func (stubRepo) SetOrder(context.Context, string, string, decimal.Decimal) error { return nil }
func (stubRepo) SetCorrelation(context.Context, string, string) error            { return nil }
func (stubRepo) GetByAttemptID(_ context.Context, id string) (*models.AttemptStateInfo, error) {
	if id != "attempt-1" {
		return nil, models.ErrAttemptNotFound
	}
	return &models.AttemptStateInfo{
		AttemptID: id,
		SessionID: "session-1",
		OrderID:   "ORD-42",
		Method:    "mobile_money",
		Amount:    "3502.76",
		State:     "COMPLETED",
	}, nil
}

type testServer struct {
	store  *storefront
	router http.Handler
	orc    *service.Orchestrator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := &storefront{}
	upstream := httptest.NewServer(store)
	t.Cleanup(upstream.Close)

	client := backend.New(upstream.URL, auth.ContextTokenProvider{}, 5*time.Second)
	orc := service.NewOrchestrator(service.Dependencies{
		Carts:    client,
		Orders:   client,
		Payments: client,
		Repo:     stubRepo{},
	}, config.PollingConfig{
		Interval:             5 * time.Millisecond,
		MaxWait:              2 * time.Second,
		MaxConsecutiveErrors: 3,
		MockDelay:            10 * time.Millisecond,
	}, time.Minute)
	t.Cleanup(orc.Shutdown)

	return &testServer{store: store, router: NewRouter(orc, stubRepo{}, "/login"), orc: orc}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer shopper-token")
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, req)

	var decoded map[string]any
	if recorder.Body.Len() > 0 {
		_ = json.Unmarshal(recorder.Body.Bytes(), &decoded)
	}
	return recorder, decoded
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	recorder, body := s.do(t, http.MethodPost, "/checkout/sessions", nil)
	require.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, "idle", body["state"])
	return body["session_id"].(string)
}

func billing() map[string]any {
	return map[string]any{
		"first_name":     "Wanjiru",
		"last_name":      "Kamau",
		"street_address": "12 Moi Avenue",
		"city":           "Nairobi",
		"province":       "Nairobi",
		"zip":            "00100",
		"phone":          "0712345678",
		"email":          "wanjiru@example.com",
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), ServiceName)

	recorder = httptest.NewRecorder()
	s.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestCart(t *testing.T) {
	s := newTestServer(t)

	recorder, body := s.do(t, http.MethodGet, "/cart", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "3502.76", body["total_price"])
	assert.Equal(t, float64(3), body["items_count"])
	assert.Len(t, body["items"], 2)
}

func TestCheckoutRoutesRequireBearer(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/cart", "/checkout/sessions/x"} {
		recorder := httptest.NewRecorder()
		s.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, recorder.Code, path)
		assert.Contains(t, recorder.Body.String(), `"redirect":"/login"`)
	}
}

func TestCheckout_MobileMoneyFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	recorder, body := s.do(t, http.MethodPost, "/checkout/sessions/"+id+"/submit", map[string]any{
		"billing":           billing(),
		"payment_method":    "mpesa",
		"use_billing_phone": true,
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, "ORD-42", body["order_id"])
	assert.Equal(t, "3502.76", body["amount"])

	var view map[string]any
	require.Eventually(t, func() bool {
		_, view = s.do(t, http.MethodGet, "/checkout/sessions/"+id, nil)
		return view["redirect"] != nil
	}, 3*time.Second, 5*time.Millisecond)

	assert.Equal(t, "success", view["state"])
	assert.Equal(t, "COMPLETED", view["status"])
	assert.Equal(t, "/order-confirmation/ORD-42", view["redirect"])
	assert.Equal(t, "ws_CO_42", view["reference"])

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	assert.Equal(t, 1, s.store.cartCleared)
	assert.Equal(t, 2, s.store.statusCalls)
	for _, header := range s.store.authHeaders {
		assert.Equal(t, "Bearer shopper-token", header)
	}
	require.Len(t, s.store.orderBodies, 1)
	assert.Equal(t, "3502.76", s.store.orderBodies[0]["total_amount"].(json.Number).String())
}

func TestCheckout_CardDeclined(t *testing.T) {
	s := newTestServer(t)
	s.store.mu.Lock()
	s.store.declineIntent = true
	s.store.mu.Unlock()
	id := s.createSession(t)

	recorder, body := s.do(t, http.MethodPost, "/checkout/sessions/"+id+"/submit", map[string]any{
		"billing":        billing(),
		"payment_method": "card",
	})

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "failed", body["state"])
	assert.Equal(t, "card declined", body["message"])
	assert.Nil(t, body["redirect"])

	s.store.mu.Lock()
	assert.Equal(t, 0, s.store.cartCleared)
	s.store.mu.Unlock()

	recorder, body = s.do(t, http.MethodPost, "/checkout/sessions/"+id+"/submit", map[string]any{
		"billing":        billing(),
		"payment_method": "card",
	})
	assert.Equal(t, http.StatusConflict, recorder.Code)

	recorder, body = s.do(t, http.MethodPost, "/checkout/sessions/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "idle", body["state"])
}

func TestCheckout_ValidationErrors(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	b := billing()
	delete(b, "email")
	recorder, body := s.do(t, http.MethodPost, "/checkout/sessions/"+id+"/submit", map[string]any{
		"billing":        b,
		"payment_method": "card",
	})
	require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Equal(t, "email", body["field"])

	recorder, body = s.do(t, http.MethodPost, "/checkout/sessions/"+id+"/submit", map[string]any{
		"billing":           billing(),
		"payment_method":    "mobile_money",
		"use_billing_phone": false,
	})
	require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Equal(t, "mpesa_phone", body["field"])

	recorder, body = s.do(t, http.MethodPost, "/checkout/sessions/"+id+"/submit", map[string]any{
		"billing":        billing(),
		"payment_method": "bitcoin",
	})
	require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Equal(t, "payment_method", body["field"])

	s.store.mu.Lock()
	assert.Empty(t, s.store.orderBodies)
	s.store.mu.Unlock()

	_, view := s.do(t, http.MethodGet, "/checkout/sessions/"+id, nil)
	assert.Equal(t, "idle", view["state"])
}

func TestCheckout_MalformedBody(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	req := httptest.NewRequest(http.MethodPost, "/checkout/sessions/"+id+"/submit", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer shopper-token")
	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCheckout_SessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	recorder, _ := s.do(t, http.MethodGet, "/checkout/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	id := s.createSession(t)
	recorder, _ = s.do(t, http.MethodDelete, "/checkout/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder, _ = s.do(t, http.MethodGet, "/checkout/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder, _ = s.do(t, http.MethodDelete, "/checkout/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCheckout_SessionBelongsToItsToken(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/checkout/sessions/" + id},
		{http.MethodPost, "/checkout/sessions/" + id + "/submit"},
		{http.MethodPost, "/checkout/sessions/" + id + "/reset"},
		{http.MethodDelete, "/checkout/sessions/" + id},
	} {
		payload, err := json.Marshal(map[string]any{"billing": billing(), "payment_method": "card"})
		require.NoError(t, err)
		req := httptest.NewRequest(tc.method, tc.path, bytes.NewReader(payload))
		req.Header.Set("Authorization", "Bearer someone-else")
		req.Header.Set("Content-Type", "application/json")
		recorder := httptest.NewRecorder()
		s.router.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusNotFound, recorder.Code, tc.method+" "+tc.path)
	}

	s.store.mu.Lock()
	assert.Empty(t, s.store.orderBodies)
	s.store.mu.Unlock()

	recorder, view := s.do(t, http.MethodGet, "/checkout/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "idle", view["state"])
}

func TestAttemptState(t *testing.T) {
	s := newTestServer(t)

	recorder, body := s.do(t, http.MethodGet, "/checkout/attempts/attempt-1/state", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "COMPLETED", body["state"])
	assert.Equal(t, "3502.76", body["amount"])

	recorder, _ = s.do(t, http.MethodGet, "/checkout/attempts/nope/state", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGRPCHealth(t *testing.T) {
	grpcServer, healthServer := NewGRPCServer()
	defer grpcServer.Stop()

	resp, err := healthServer.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	healthServer.Shutdown()
	resp, err = healthServer.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}
