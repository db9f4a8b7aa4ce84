// Package redis provides the Redis-backed delivery dedup store.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kevin07696/settlement-recon/internal/domain/ports"
)

// Config holds Redis connection settings
type Config struct {
	Addr      string
	Password  string
	KeyPrefix string
	DB        int
}

// DedupStore implements ports.DedupStore with SET NX and a per-key TTL
type DedupStore struct {
	client    goredis.Cmdable
	keyPrefix string
}

// NewClient creates a client and verifies the connection
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// NewDedupStore wraps client. Keys are namespaced with keyPrefix.
func NewDedupStore(client goredis.Cmdable, keyPrefix string) *DedupStore {
	if keyPrefix == "" {
		keyPrefix = "settlement-recon"
	}
	return &DedupStore{client: client, keyPrefix: keyPrefix}
}

func (s *DedupStore) key(k string) string {
	return s.keyPrefix + ":dedup:" + k
}

// MarkIfAbsent records key for ttl and reports whether it was new
func (s *DedupStore) MarkIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Release forgets key
func (s *DedupStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

var _ ports.DedupStore = (*DedupStore)(nil)
