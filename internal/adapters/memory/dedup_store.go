// Package memory provides in-process adapters for tests, the CLI and
// single-instance deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kevin07696/settlement-recon/internal/domain/ports"
	"github.com/kevin07696/settlement-recon/pkg/timeutil"
)

// DedupStore implements ports.DedupStore over a guarded map. Expired keys are
// ignored on read and removed by Sweep.
type DedupStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	clock   timeutil.Clock
}

// NewDedupStore creates an empty store
func NewDedupStore(clock timeutil.Clock) *DedupStore {
	if clock == nil {
		clock = timeutil.Now
	}
	return &DedupStore{entries: make(map[string]time.Time), clock: clock}
}

// MarkIfAbsent records key until now+ttl and reports whether it was new
func (s *DedupStore) MarkIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.entries[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

// Release forgets key
func (s *DedupStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Sweep removes expired keys and returns how many were removed
func (s *DedupStore) Sweep() int {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored keys, expired or not
func (s *DedupStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ ports.DedupStore = (*DedupStore)(nil)
