// Package api is the client for the wedding planner backend REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"planner-agent/internal/storage"
)

const maxErrorBody = 64 << 10

type Client struct {
	baseURL *url.URL
	anon    *http.Client
	bearer  *http.Client
}

type Option func(*options)

type options struct {
	timeout   time.Duration
	transport http.RoundTripper
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTransport replaces the base round tripper. Request ids and bearer
// tokens are still layered on top of it.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// New builds a client for baseURL. Authenticated calls read the bearer token
// from the token slot of tokens.
func New(baseURL string, tokens storage.Store, opts ...Option) (*Client, error) {
	o := options{timeout: 15 * time.Second, transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parsing base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be absolute", baseURL)
	}

	base := requestIDTransport{base: o.transport}

	return &Client{
		baseURL: u,
		anon: &http.Client{
			Timeout:   o.timeout,
			Transport: base,
		},
		bearer: &http.Client{
			Timeout: o.timeout,
			Transport: &oauth2.Transport{
				Source: storedTokenSource{store: tokens},
				Base:   base,
			},
		},
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// do sends body as JSON and decodes a 2xx response into out. Non-2xx
// responses become *Error.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("api: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return ErrNoToken
		}
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("api: decoding %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}

// unwrap decodes raw either from the named envelope field or, when that field
// is absent, as the bare object.
func unwrap(raw json.RawMessage, field string, out any) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("api: decoding response: %w", err)
	}
	if inner, ok := envelope[field]; ok && string(inner) != "null" {
		raw = inner
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decoding %s: %w", field, err)
	}
	return nil
}
