package util

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(remote RemoteRateChecker) (*RateLimiter, *fakeClock) {
	clock := newFakeClock()
	rl := NewRateLimiter(remote)
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiter_AllowsUpToLimitThenBlocks(t *testing.T) {
	rl, clock := newTestLimiter(nil)
	ctx := context.Background()
	rule := RateLimitRule{Requests: 3, Window: time.Hour}

	for i := 0; i < 3; i++ {
		assert.True(t, rl.IsAllowed(ctx, "lead_submit:1.2.3.4", rule), "call %d", i+1)
	}
	assert.False(t, rl.IsAllowed(ctx, "lead_submit:1.2.3.4", rule))
	assert.Equal(t, 0, rl.Remaining("lead_submit:1.2.3.4", rule))
	assert.Equal(t, time.Hour, rl.RetryAfter("lead_submit:1.2.3.4"))

	clock.Advance(30 * time.Minute)
	assert.False(t, rl.IsAllowed(ctx, "lead_submit:1.2.3.4", rule))
	assert.Equal(t, 30*time.Minute, rl.RetryAfter("lead_submit:1.2.3.4"))

	clock.Advance(30 * time.Minute)
	assert.True(t, rl.IsAllowed(ctx, "lead_submit:1.2.3.4", rule), "new window after reset time")
	assert.Equal(t, 2, rl.Remaining("lead_submit:1.2.3.4", rule))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(nil)
	ctx := context.Background()
	rule := RateLimitRule{Requests: 1, Window: time.Minute}

	assert.True(t, rl.IsAllowed(ctx, "a", rule))
	assert.False(t, rl.IsAllowed(ctx, "a", rule))
	assert.True(t, rl.IsAllowed(ctx, "b", rule))
}

func TestRateLimiter_ZeroRequestsAlwaysBlocks(t *testing.T) {
	rl, _ := newTestLimiter(nil)
	assert.False(t, rl.IsAllowed(context.Background(), "k", RateLimitRule{Requests: 0, Window: time.Minute}))
}

func TestRateLimiter_ResetAndCleanup(t *testing.T) {
	rl, clock := newTestLimiter(nil)
	ctx := context.Background()
	rule := RateLimitRule{Requests: 1, Window: time.Minute}

	rl.IsAllowed(ctx, "x", rule)
	rl.IsAllowed(ctx, "y", RateLimitRule{Requests: 1, Window: time.Hour})
	assert.False(t, rl.IsAllowed(ctx, "x", rule))

	rl.Reset("x")
	assert.True(t, rl.IsAllowed(ctx, "x", rule))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, rl.Cleanup())
	assert.Equal(t, 1, rl.Len())
	assert.Equal(t, time.Duration(0), rl.RetryAfter("x"))
}

type stubRemote struct {
	allowed bool
	err     error
	calls   int
}

func (s *stubRemote) CheckRateLimit(context.Context, string, RateLimitRule) (bool, error) {
	s.calls++
	return s.allowed, s.err
}

func TestRateLimiter_RemoteDecides(t *testing.T) {
	remote := &stubRemote{allowed: false}
	rl, _ := newTestLimiter(remote)

	assert.False(t, rl.IsAllowed(context.Background(), "k", RateLimitRule{Requests: 100, Window: time.Minute}))
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, 0, rl.Len(), "local map is untouched while remote answers")
}

func TestRateLimiter_FallsBackToLocalOnRemoteError(t *testing.T) {
	remote := &stubRemote{err: errors.New("connection refused")}
	rl, _ := newTestLimiter(remote)
	ctx := context.Background()
	rule := RateLimitRule{Requests: 2, Window: time.Minute}

	assert.True(t, rl.IsAllowed(ctx, "k", rule))
	assert.True(t, rl.IsAllowed(ctx, "k", rule))
	assert.False(t, rl.IsAllowed(ctx, "k", rule))
	assert.Equal(t, 3, remote.calls)
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(nil)
	rule := RateLimitRule{Requests: 50, Window: time.Hour}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.IsAllowed(context.Background(), "shared", rule) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestRuleFor(t *testing.T) {
	assert.Equal(t, RateLimitRule{Requests: 3, Window: time.Hour}, RuleFor(ActionLeadSubmit))
	assert.Equal(t, RateLimitRule{Requests: 30, Window: time.Minute}, RuleFor(ActionChatMessage))
	assert.Equal(t, RateLimitRule{Requests: 60, Window: time.Minute}, RuleFor("unknown"))
}

func TestRateLimiter_StartCleanupStopsOnCancel(t *testing.T) {
	rl := NewRateLimiter(nil)
	rl.IsAllowed(context.Background(), "gone", RateLimitRule{Requests: 1, Window: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	rl.StartCleanup(ctx, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return rl.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}
