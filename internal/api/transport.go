package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"planner-agent/internal/storage"
)

const (
	requestIDHeader = "X-Request-ID"
	tokenReadLimit  = 2 * time.Second
)

// storedTokenSource reads the bearer token from durable storage on every
// request, so login and logout take effect without rebuilding the client.
type storedTokenSource struct {
	store storage.Store
}

func (s storedTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tokenReadLimit)
	defer cancel()

	v, ok, err := s.store.Get(ctx, storage.KeyToken)
	if err != nil {
		return nil, err
	}
	if !ok || v == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: v, TokenType: "Bearer"}, nil
}

type requestIDKey struct{}

// WithRequestID makes backend calls made with ctx carry id, so a gateway
// request and the backend requests it causes share one id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// requestIDTransport stamps each outgoing request with the request id from
// its context, or a fresh one.
type requestIDTransport struct {
	base http.RoundTripper
}

func (t requestIDTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get(requestIDHeader) != "" {
		return t.base.RoundTrip(r)
	}
	id, _ := r.Context().Value(requestIDKey{}).(string)
	if id == "" {
		id = uuid.NewString()
	}
	r = r.Clone(r.Context())
	r.Header.Set(requestIDHeader, id)
	return t.base.RoundTrip(r)
}
