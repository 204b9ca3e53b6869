package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key is absent or already expired.
	ErrNotFound = errors.New("kv: key not found")
	// ErrUnavailable wraps transport and server failures of the backing store.
	ErrUnavailable = errors.New("kv: store unavailable")
)

// Store is the minimal primitive set the authentication layer needs from a
// networked key/value store. Implementations must be safe for concurrent use.
//
// A key with no entry and a key whose entry has expired are indistinguishable:
// both surface as [ErrNotFound].
type Store interface {
	// Get returns the value stored at key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key. A ttl of 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only if key does not exist. The check-and-set is
	// atomic at the store. It reports whether the value was written.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// GetDel atomically reads and removes key. Returns ErrNotFound if absent.
	GetDel(ctx context.Context, key string) ([]byte, error)

	// Delete removes keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// DeleteIfEqual removes key only while it still holds value. The compare
	// and delete happen atomically at the store. It reports whether key was
	// removed.
	DeleteIfEqual(ctx context.Context, key string, value []byte) (bool, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
