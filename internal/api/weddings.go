package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"planner-agent/internal/wedding"
)

// ListWeddings returns every wedding owned by the session. A 404 means the
// user has none yet and yields an empty list.
func (c *Client) ListWeddings(ctx context.Context) ([]wedding.Wedding, error) {
	var out struct {
		Weddings []wedding.Wedding `json:"weddings"`
	}
	err := c.do(ctx, c.bearer, http.MethodGet, "/weddings/all", nil, &out)
	if errors.Is(err, ErrNotFound) {
		return []wedding.Wedding{}, nil
	}
	if err != nil {
		return nil, err
	}
	if out.Weddings == nil {
		out.Weddings = []wedding.Wedding{}
	}
	return out.Weddings, nil
}

func (c *Client) GetWedding(ctx context.Context, id string) (wedding.Wedding, error) {
	return c.weddingCall(ctx, http.MethodGet, "/weddings/"+url.PathEscape(id), nil)
}

func (c *Client) CreateWedding(ctx context.Context, w wedding.Wedding) (wedding.Wedding, error) {
	w.ID = ""
	return c.weddingCall(ctx, http.MethodPost, "/weddings", w)
}

func (c *Client) UpdateWedding(ctx context.Context, id string, w wedding.Wedding) (wedding.Wedding, error) {
	w.ID = ""
	updated, err := c.weddingCall(ctx, http.MethodPut, "/weddings/"+url.PathEscape(id), w)
	if err != nil {
		return wedding.Wedding{}, err
	}
	if updated.ID == "" {
		updated.ID = id
	}
	return updated, nil
}

func (c *Client) DeleteWedding(ctx context.Context, id string) error {
	return c.do(ctx, c.bearer, http.MethodDelete, "/weddings/"+url.PathEscape(id), nil, nil)
}

func (c *Client) weddingCall(ctx context.Context, method, path string, body any) (wedding.Wedding, error) {
	var raw json.RawMessage
	if err := c.do(ctx, c.bearer, method, path, body, &raw); err != nil {
		return wedding.Wedding{}, err
	}
	var w wedding.Wedding
	if err := unwrap(raw, "wedding", &w); err != nil {
		return wedding.Wedding{}, err
	}
	return w, nil
}
