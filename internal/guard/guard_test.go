package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamsheet/platform/internal/domain"
)

// fakeNow is a settable clock.
type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time          { return f.t }
func (f *fakeNow) advance(d time.Duration) { f.t = f.t.Add(d) }

func newFakeNow() *fakeNow {
	return &fakeNow{t: time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)}
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := rl.Check(ctx, "10.0.0.1")
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	ctx := context.Background()

	rl.Check(ctx, "10.0.0.1")
	rl.Check(ctx, "10.0.0.1")
	result := rl.Check(ctx, "10.0.0.1")

	assert.False(t, result.Allowed)
	assert.Equal(t, "rate_limiter", result.Guard)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	clock := newFakeNow()
	rl := NewRateLimiter(1, time.Minute)
	rl.now = clock.now
	ctx := context.Background()

	assert.True(t, rl.Check(ctx, "k").Allowed)
	clock.advance(20 * time.Second)
	refused := rl.Check(ctx, "k")
	assert.False(t, refused.Allowed)
	assert.Equal(t, 40*time.Second, refused.RetryAfter)
	clock.advance(41 * time.Second)
	assert.True(t, rl.Check(ctx, "k").Allowed)
}

func TestRateLimiter_ForgetsIdleKeys(t *testing.T) {
	clock := newFakeNow()
	rl := NewRateLimiter(5, time.Minute)
	rl.now = clock.now
	ctx := context.Background()

	rl.Check(ctx, "10.0.0.1")
	assert.Equal(t, 1, rl.Len())

	clock.advance(2 * time.Minute)
	rl.Check(ctx, "10.0.0.2")
	rl.prune("10.0.0.1", clock.now())
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	ctx := context.Background()

	r1 := rl.Check(ctx, "key-a")
	r2 := rl.Check(ctx, "key-b")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestLockout_LocksAfterMaxFailures(t *testing.T) {
	l := NewLockout()
	key := "los-pibes:7"

	for i := 0; i < MaxAttempts-1; i++ {
		l.RecordAttempt(key, false)
	}
	require.NoError(t, l.CheckLocked(key))

	l.RecordAttempt(key, false)
	err := l.CheckLocked(key)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, "ACCOUNT_LOCKED"))
	assert.NoError(t, l.CheckLocked("los-pibes:8"))
}

func TestLockout_WindowExpiresAndSuccessClears(t *testing.T) {
	clock := newFakeNow()
	l := NewLockout()
	l.now = clock.now

	for i := 0; i < MaxAttempts; i++ {
		l.RecordAttempt("k", false)
	}
	require.Error(t, l.CheckLocked("k"))

	clock.advance(LockoutWindow + time.Second)
	assert.NoError(t, l.CheckLocked("k"))

	for i := 0; i < MaxAttempts-1; i++ {
		l.RecordAttempt("k", false)
	}
	l.RecordAttempt("k", true)
	l.RecordAttempt("k", false)
	assert.NoError(t, l.CheckLocked("k"))
}

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	cb := NewCircuitBreaker(3, 5*time.Second)
	ctx := context.Background()

	result := cb.Check(ctx, "telegram")
	assert.True(t, result.Allowed)
}

func TestCircuitBreaker_OpensOnThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)
	ctx := context.Background()

	cb.Check(ctx, "telegram")
	cb.RecordFailure("telegram")
	cb.RecordFailure("telegram")

	result := cb.Check(ctx, "telegram")
	assert.False(t, result.Allowed)
	assert.Equal(t, "circuit_breaker", result.Guard)
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	clock := newFakeNow()
	cb := NewCircuitBreaker(1, 5*time.Second)
	cb.now = clock.now
	ctx := context.Background()

	cb.RecordFailure("telegram")
	clock.advance(2 * time.Second)
	open := cb.Check(ctx, "telegram")
	assert.False(t, open.Allowed)
	assert.Equal(t, 3*time.Second, open.RetryAfter)

	clock.advance(4 * time.Second)
	assert.True(t, cb.Check(ctx, "telegram").Allowed, "probe allowed once reset timeout passed")

	cb.RecordSuccess("telegram")
	assert.True(t, cb.Check(ctx, "telegram").Allowed)
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)
	ctx := context.Background()

	cb.Check(ctx, "telegram")
	cb.RecordFailure("telegram")
	cb.RecordSuccess("telegram")
	cb.RecordFailure("telegram")

	result := cb.Check(ctx, "telegram")
	assert.True(t, result.Allowed)
}

func TestIdempotencyGuard_BlocksDuplicate(t *testing.T) {
	ig := NewIdempotencyGuard()
	ctx := context.Background()

	assert.True(t, ig.Check(ctx, "msg-123").Allowed)
	result := ig.Check(ctx, "msg-123")

	assert.False(t, result.Allowed)
	assert.Equal(t, "idempotency", result.Guard)
}

func TestIdempotencyGuard_EmptyKeyAllowed(t *testing.T) {
	ig := NewIdempotencyGuard()
	ctx := context.Background()

	assert.True(t, ig.Check(ctx, "").Allowed)
	assert.True(t, ig.Check(ctx, "").Allowed)
}

func TestIdempotencyGuard_RemoveAllowsRetry(t *testing.T) {
	ig := NewIdempotencyGuard()
	ctx := context.Background()

	ig.Check(ctx, "msg-456")
	ig.Remove("msg-456")

	result := ig.Check(ctx, "msg-456")
	require.True(t, result.Allowed)
}

func TestIdempotencyGuard_KeysExpire(t *testing.T) {
	clock := newFakeNow()
	ig := NewIdempotencyGuard()
	ig.now = clock.now
	ctx := context.Background()

	ig.Check(ctx, "msg-789")
	clock.advance(IdempotencyTTL + time.Second)
	assert.True(t, ig.Check(ctx, "msg-789").Allowed)
}
