// Package storage provides durable client-side storage for the agent: the
// slots that survive a process restart (bearer token, role, selected wedding).
package storage

import (
	"context"
	"errors"
)

// Durable slot keys. The session store owns KeyToken and KeyRole; the
// selection store owns KeySelectedWedding.
const (
	KeyToken           = "token"
	KeyRole            = "role"
	KeySelectedWedding = "selectedWeddingId"
)

var ErrEmptyKey = errors.New("storage: empty key")

// Store is a namespaced string key/value store.
// Get reports ok=false for missing keys; Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Has reports whether key holds a non-empty value. Read errors count as absent.
func Has(ctx context.Context, s Store, key string) bool {
	v, ok, err := s.Get(ctx, key)
	return err == nil && ok && v != ""
}
