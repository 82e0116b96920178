// Package storage persists the small amount of client state that must
// survive restarts: the bearer token and the theme preference.
package storage

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("store closed")

// Store is a string key/value store with local-storage semantics: missing
// keys are not an error, Remove of a missing key is a no-op.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}
