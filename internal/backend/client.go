// Package backend is the REST client for the storefront API: cart, orders,
// M-Pesa STK push and Stripe card payments.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
	"github.com/akylbek/payment-system/checkout-orchestrator/internal/telemetry"
)

const maxBodyBytes = 1 << 20

var errUpstream = errors.New("upstream server error")

type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

type Client struct {
	baseURL  string
	http     *http.Client
	tokens   interfaces.AuthTokenProvider
	breaker  *gobreaker.CircuitBreaker[*response]
	currency string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithCurrency(currency string) Option {
	return func(c *Client) {
		c.currency = currency
	}
}

// WithBreakerSettings replaces the default circuit breaker configuration.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = newBreaker(st)
	}
}

func New(baseURL string, tokens interfaces.AuthTokenProvider, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens:   tokens,
		currency: "KES",
		breaker: newBreaker(gobreaker.Settings{
			Name:        "storefront-backend",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(st gobreaker.Settings) *gobreaker.CircuitBreaker[*response] {
	if st.ReadyToTrip == nil {
		st.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}
	if st.IsSuccessful == nil {
		st.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		}
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		telemetry.Logger.Warn("Backend circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return gobreaker.NewCircuitBreaker[*response](st)
}

// do sends one request. Transport failures and an open breaker come back as
// TransportError, a missing token as AuthError; every HTTP status, including
// 5xx, is returned to the caller for mapping.
func (c *Client) do(ctx context.Context, op, method, path string, payload any) (*response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &models.AuthError{Op: op}
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}

		result := &response{status: httpResp.StatusCode, body: data}
		if httpResp.StatusCode >= http.StatusInternalServerError {
			return result, errUpstream
		}
		return result, nil
	})
	if err != nil && !errors.Is(err, errUpstream) {
		return nil, &models.TransportError{Op: op, Err: err}
	}

	if resp.status == http.StatusUnauthorized {
		return nil, &models.AuthError{Op: op}
	}
	return resp, nil
}

func decode(op string, resp *response, v any) error {
	if err := json.Unmarshal(resp.body, v); err != nil {
		return &models.TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// errorMessage pulls the backend's `error` or `message` field out of a failure body.
func errorMessage(resp *response) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.body, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if text := http.StatusText(resp.status); text != "" {
		return text
	}
	return fmt.Sprintf("unexpected status %d", resp.status)
}

// flexString accepts identifiers the backend sends as either JSON strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
