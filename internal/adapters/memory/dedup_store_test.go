package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func TestDedupStore_MarkIfAbsent(t *testing.T) {
	clock := newClock()
	store := NewDedupStore(clock.Now)
	ctx := context.Background()

	first, err := store.MarkIfAbsent(ctx, "razorpay:BR-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkIfAbsent(ctx, "razorpay:BR-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := store.MarkIfAbsent(ctx, "razorpay:BR-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestDedupStore_ExpiresAfterTTL(t *testing.T) {
	clock := newClock()
	store := NewDedupStore(clock.Now)
	ctx := context.Background()

	_, _ = store.MarkIfAbsent(ctx, "k", time.Hour)

	clock.Advance(59 * time.Minute)
	ok, _ := store.MarkIfAbsent(ctx, "k", time.Hour)
	assert.False(t, ok)

	clock.Advance(time.Minute)
	ok, _ = store.MarkIfAbsent(ctx, "k", time.Hour)
	assert.True(t, ok, "key is free once the ttl has elapsed")
}

func TestDedupStore_Release(t *testing.T) {
	store := NewDedupStore(newClock().Now)
	ctx := context.Background()

	_, _ = store.MarkIfAbsent(ctx, "k", time.Hour)
	require.NoError(t, store.Release(ctx, "k"))

	ok, _ := store.MarkIfAbsent(ctx, "k", time.Hour)
	assert.True(t, ok)
	assert.NoError(t, store.Release(ctx, "never-seen"))
}

func TestDedupStore_Sweep(t *testing.T) {
	clock := newClock()
	store := NewDedupStore(clock.Now)
	ctx := context.Background()

	_, _ = store.MarkIfAbsent(ctx, "short", time.Minute)
	_, _ = store.MarkIfAbsent(ctx, "long", time.Hour)
	assert.Equal(t, 2, store.Len())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestDedupStore_ConcurrentFirstWins(t *testing.T) {
	store := NewDedupStore(nil)
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.MarkIfAbsent(ctx, "same", time.Hour); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}
