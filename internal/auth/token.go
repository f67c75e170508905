package auth

import (
	"context"
	"strings"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
)

type tokenKey struct{}

// WithToken returns a context carrying the shopper's bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// ContextTokenProvider reads the token placed on the context by RequireBearer
// or by a checkout session running background work for its shopper.
type ContextTokenProvider struct{}

func (ContextTokenProvider) Token(ctx context.Context) (string, error) {
	token := TokenFromContext(ctx)
	if token == "" {
		return "", &models.AuthError{Op: "resolve token"}
	}
	return token, nil
}

type StaticTokenProvider string

func (p StaticTokenProvider) Token(context.Context) (string, error) {
	if p == "" {
		return "", &models.AuthError{Op: "resolve token"}
	}
	return string(p), nil
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
