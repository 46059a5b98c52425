package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/oldrefery/summit-backend-sub001/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(store LoginAttemptStore, clock *fakeClock) *LoginRateLimiter {
	l := NewLoginRateLimiter(store, RateLimitConfig{MaxAttempts: 5, Window: 15 * time.Minute}, testLogger())
	l.SetClock(clock.Now)
	return l
}

// ============================================================================
// Counting
// ============================================================================

func TestLoginRateLimiter_LimitsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := newTestLimiter(repositories.NewMemoryLoginAttemptStore(), clock)

	for i := 0; i < 4; i++ {
		l.Increment(ctx, "203.0.113.7")
		assert.False(t, l.IsRateLimited(ctx, "203.0.113.7"), "attempt %d", i+1)
	}

	l.Increment(ctx, "203.0.113.7")
	assert.True(t, l.IsRateLimited(ctx, "203.0.113.7"))
}

func TestLoginRateLimiter_UnknownKeyNotLimited(t *testing.T) {
	l := newTestLimiter(repositories.NewMemoryLoginAttemptStore(), newFakeClock())
	assert.False(t, l.IsRateLimited(context.Background(), "never-seen"))
}

func TestLoginRateLimiter_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	l := newTestLimiter(repositories.NewMemoryLoginAttemptStore(), newFakeClock())

	for i := 0; i < 5; i++ {
		l.Increment(ctx, "a")
	}
	assert.True(t, l.IsRateLimited(ctx, "a"))
	assert.False(t, l.IsRateLimited(ctx, "b"))
	assert.False(t, l.IsRateLimited(ctx, "unknown-a"))
}

func TestLoginRateLimiter_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryLoginAttemptStore()
	l := newTestLimiter(store, newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Increment(ctx, "shared")
			_ = l.IsRateLimited(ctx, "shared")
		}()
	}
	wg.Wait()

	rec, err := store.Get(ctx, "shared")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 50, rec.Count)
}

// ============================================================================
// Window
// ============================================================================

func TestLoginRateLimiter_WindowAnchoredAtFirstAttempt(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := newTestLimiter(repositories.NewMemoryLoginAttemptStore(), clock)

	l.Increment(ctx, "k")
	clock.Advance(10 * time.Minute)
	for i := 0; i < 4; i++ {
		l.Increment(ctx, "k")
	}
	assert.True(t, l.IsRateLimited(ctx, "k"))

	// later attempts do not extend the window
	clock.Advance(5*time.Minute + time.Second)
	assert.False(t, l.IsRateLimited(ctx, "k"))
}

func TestLoginRateLimiter_ExactWindowBoundaryStillLive(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := newTestLimiter(repositories.NewMemoryLoginAttemptStore(), clock)

	for i := 0; i < 5; i++ {
		l.Increment(ctx, "k")
	}
	clock.Advance(15 * time.Minute)
	assert.True(t, l.IsRateLimited(ctx, "k"))

	clock.Advance(time.Millisecond)
	assert.False(t, l.IsRateLimited(ctx, "k"))
}

func TestLoginRateLimiter_ExpiredRecordRemovedOnRead(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := repositories.NewMemoryLoginAttemptStore()
	l := newTestLimiter(store, clock)

	for i := 0; i < 5; i++ {
		l.Increment(ctx, "k")
	}
	clock.Advance(16 * time.Minute)

	assert.False(t, l.IsRateLimited(ctx, "k"))
	assert.Equal(t, 0, store.Len())

	// a fresh window starts with the next failure
	l.Increment(ctx, "k")
	rec, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count)
	assert.Equal(t, clock.Now(), rec.WindowStart)
}

func TestLoginRateLimiter_RetryAfter(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := newTestLimiter(repositories.NewMemoryLoginAttemptStore(), clock)

	assert.Zero(t, l.RetryAfter(ctx, "k"))

	for i := 0; i < 5; i++ {
		l.Increment(ctx, "k")
	}
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 10*time.Minute, l.RetryAfter(ctx, "k"))

	clock.Advance(11 * time.Minute)
	assert.Zero(t, l.RetryAfter(ctx, "k"))
}

// ============================================================================
// Store failures
// ============================================================================

func TestLoginRateLimiter_StoreErrorsFailOpen(t *testing.T) {
	ctx := context.Background()
	store := &MockLoginAttemptStore{
		GetFunc: func(ctx context.Context, key string) (*models.LoginAttemptRecord, error) {
			return nil, errors.New("connection refused")
		},
		IncrementFunc: func(ctx context.Context, key string, now time.Time, window time.Duration) (*models.LoginAttemptRecord, error) {
			return nil, errors.New("connection refused")
		},
	}
	l := newTestLimiter(store, newFakeClock())

	assert.NotPanics(t, func() { l.Increment(ctx, "k") })
	assert.False(t, l.IsRateLimited(ctx, "k"))
	assert.Zero(t, l.RetryAfter(ctx, "k"))
}

func TestLoginRateLimiter_Defaults(t *testing.T) {
	l := NewLoginRateLimiter(repositories.NewMemoryLoginAttemptStore(), RateLimitConfig{}, testLogger())
	assert.Equal(t, 5, l.config.MaxAttempts)
	assert.Equal(t, 15*time.Minute, l.config.Window)
}
