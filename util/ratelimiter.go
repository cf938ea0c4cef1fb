package util

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Actions with a named rate limit rule.
const (
	ActionLeadSubmit  = "lead_submit"
	ActionChatMessage = "chat_message"
	ActionChatStart   = "chat_start"
	ActionLogin       = "login"
	ActionSignup      = "signup"
	ActionRPC         = "rpc"
)

// RateLimitRule allows Requests calls per Window for one key.
type RateLimitRule struct {
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
}

// RateLimitRules holds the per-action defaults used by the HTTP layer.
var RateLimitRules = map[string]RateLimitRule{
	ActionLeadSubmit:  {Requests: 3, Window: time.Hour},
	ActionChatStart:   {Requests: 10, Window: time.Hour},
	ActionChatMessage: {Requests: 30, Window: time.Minute},
	ActionLogin:       {Requests: 5, Window: 15 * time.Minute},
	ActionSignup:      {Requests: 3, Window: time.Hour},
	ActionRPC:         {Requests: 60, Window: time.Minute},
}

// RuleFor returns the named rule, or 60 per minute for unknown actions.
func RuleFor(action string) RateLimitRule {
	if r, ok := RateLimitRules[action]; ok {
		return r
	}
	return RateLimitRule{Requests: 60, Window: time.Minute}
}

// RateLimitEntry is the in-memory counter for one key.
type RateLimitEntry struct {
	Key             string    `json:"key"`
	Count           int       `json:"count"`
	WindowResetTime time.Time `json:"window_reset_time"`
}

// RemoteRateChecker is an authoritative counter shared between instances.
type RemoteRateChecker interface {
	CheckRateLimit(ctx context.Context, key string, rule RateLimitRule) (bool, error)
}

// RetryReporter is implemented by remote checkers that know when a key's window ends.
type RetryReporter interface {
	RetryAfter(ctx context.Context, key string) (time.Duration, error)
}

// RateLimiter is a fixed-window counter per key. When a remote checker is set it is
// asked first and the local map only decides when the remote call fails.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*RateLimitEntry
	remote  RemoteRateChecker
	now     func() time.Time
}

// NewRateLimiter returns a limiter; remote may be nil for a purely local limiter.
func NewRateLimiter(remote RemoteRateChecker) *RateLimiter {
	return &RateLimiter{
		entries: make(map[string]*RateLimitEntry),
		remote:  remote,
		now:     time.Now,
	}
}

// IsAllowed counts one call for key and reports whether it fits within rule.
func (r *RateLimiter) IsAllowed(ctx context.Context, key string, rule RateLimitRule) bool {
	if r.remote != nil {
		allowed, err := r.remote.CheckRateLimit(ctx, key, rule)
		if err == nil {
			return allowed
		}
		Logger().Warn("remote rate limit check failed, using local counter",
			zap.String("key", key), zap.Error(err))
	}
	return r.allowLocal(key, rule)
}

func (r *RateLimiter) allowLocal(key string, rule RateLimitRule) bool {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok || !now.Before(entry.WindowResetTime) {
		r.entries[key] = &RateLimitEntry{Key: key, Count: 1, WindowResetTime: now.Add(rule.Window)}
		return rule.Requests >= 1
	}
	entry.Count++
	return entry.Count <= rule.Requests
}

// Remaining reports how many calls key may still make in its current local window.
func (r *RateLimiter) Remaining(key string, rule RateLimitRule) int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok || !now.Before(entry.WindowResetTime) {
		return rule.Requests
	}
	if left := rule.Requests - entry.Count; left > 0 {
		return left
	}
	return 0
}

// RetryAfter reports how long until key's local window resets; zero when it is open.
func (r *RateLimiter) RetryAfter(key string) time.Duration {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok || !now.Before(entry.WindowResetTime) {
		return 0
	}
	return entry.WindowResetTime.Sub(now)
}

// RetryIn reports how long key must wait, asking the remote checker first when it can
// tell, and falling back to the local window.
func (r *RateLimiter) RetryIn(ctx context.Context, key string) time.Duration {
	if rep, ok := r.remote.(RetryReporter); ok {
		wait, err := rep.RetryAfter(ctx, key)
		if err == nil && wait > 0 {
			return wait
		}
		if err != nil {
			Logger().Warn("remote rate limit window unavailable", zap.String("key", key), zap.Error(err))
		}
	}
	return r.RetryAfter(key)
}

// Reset forgets the local counter for key.
func (r *RateLimiter) Reset(key string) {
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
}

// Cleanup drops entries whose window has elapsed and returns how many were removed.
func (r *RateLimiter) Cleanup() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for k, e := range r.entries {
		if !now.Before(e.WindowResetTime) {
			delete(r.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// StartCleanup runs Cleanup every interval until ctx is cancelled.
func (r *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Cleanup(); n > 0 {
					Logger().Debug("rate limit entries expired", zap.Int("removed", n))
				}
			}
		}
	}()
}
