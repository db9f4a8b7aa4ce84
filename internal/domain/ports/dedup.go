package ports

import (
	"context"
	"time"
)

// DedupStore remembers delivery keys for a bounded time. Implementations are
// owned by the caller and shared explicitly, never as package globals.
type DedupStore interface {
	// MarkIfAbsent records key for ttl. It returns true when the key was not
	// present, i.e. the caller is the first to see it.
	MarkIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release forgets key so a delivery whose processing failed can be retried
	Release(ctx context.Context, key string) error
}

// SecretProvider resolves a secret value by path
type SecretProvider interface {
	GetSecret(ctx context.Context, path string) (string, error)
}
