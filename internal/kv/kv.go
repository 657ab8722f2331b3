// Package kv provides the key-value stores the storefront persists JSON
// documents in.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for a key that has never been set.
var ErrNotFound = errors.New("kv: not found")

// Store gets and sets opaque values by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// UpdateFunc computes the new value of a key from its current one. old is nil
// when the key does not exist.
type UpdateFunc func(old []byte) ([]byte, error)

// Updater is implemented by stores able to run a read-modify-write on one key
// without losing concurrent writes.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
