package store

import (
	"context"
	"errors"
	"time"
)

// Provider defines the minimal key-value operations the registries persist
// through. Values are opaque JSON blobs under fixed string keys.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrNotFound signals that a key is absent from the store.
var ErrNotFound = errors.New("key not found")

// NoopProvider implements Provider but never stores data. Registries running
// on top of it behave as purely in-memory state.
type NoopProvider struct{}

// Get always reports an absent key.
func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrNotFound
}

// Set discards the value and returns nil.
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// Del is a no-op.
func (NoopProvider) Del(context.Context, string) error { return nil }

// Close is a no-op.
func (NoopProvider) Close() error { return nil }
