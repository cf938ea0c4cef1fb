package util

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariebrainware/realty-leads/model"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const redisRateLimitPrefix = "ratelimit:"

// incrWithWindow increments the key and arms its expiry on the first hit of a window.
var incrWithWindow = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return current
`)

// RedisRateChecker counts calls in Redis so every instance shares one window per key.
type RedisRateChecker struct {
	client redis.Cmdable
}

func NewRedisRateChecker(client redis.Cmdable) *RedisRateChecker {
	return &RedisRateChecker{client: client}
}

// CheckRateLimit implements RemoteRateChecker.
func (c *RedisRateChecker) CheckRateLimit(ctx context.Context, key string, rule RateLimitRule) (bool, error) {
	count, err := incrWithWindow.Run(ctx, c.client, []string{redisRateLimitPrefix + key}, rule.Window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return count <= int64(rule.Requests), nil
}

// RetryAfter implements RetryReporter with the counter's remaining PTTL.
func (c *RedisRateChecker) RetryAfter(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.PTTL(ctx, redisRateLimitPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit ttl: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// ResetRedisRateLimit deletes the shared counter for key.
func ResetRedisRateLimit(ctx context.Context, client redis.Cmdable, key string) error {
	if client == nil {
		return fmt.Errorf("redis not available")
	}
	return client.Del(ctx, redisRateLimitPrefix+key).Err()
}

// DBRateChecker keeps fixed-window counters in the rate_limits table. It backs the
// check_rate_limit procedure and serves as the remote checker when Redis is absent.
type DBRateChecker struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDBRateChecker(db *gorm.DB) *DBRateChecker {
	return &DBRateChecker{db: db, now: time.Now}
}

// CheckRateLimit implements RemoteRateChecker. The upsert restarts an expired window
// and increments a live one, so concurrent first hits are all counted.
func (c *DBRateChecker) CheckRateLimit(ctx context.Context, key string, rule RateLimitRule) (bool, error) {
	now := c.now()
	reset := now.Add(rule.Window)
	var rec model.RateLimitRecord
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fresh := model.RateLimitRecord{Key: key, Count: 1, WindowResetTime: reset}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "rate_key"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "count"}, Value: gorm.Expr("CASE WHEN window_reset_time <= ? THEN 1 ELSE count + 1 END", now)},
				{Column: clause.Column{Name: "window_reset_time"}, Value: gorm.Expr("CASE WHEN window_reset_time <= ? THEN ? ELSE window_reset_time END", now, reset)},
				{Column: clause.Column{Name: "updated_at"}, Value: now},
			},
		}).Create(&fresh).Error; err != nil {
			return err
		}
		return tx.Where("rate_key = ?", key).First(&rec).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return rec.Count <= rule.Requests, nil
}

// RetryAfter implements RetryReporter from the row's window_reset_time.
func (c *DBRateChecker) RetryAfter(ctx context.Context, key string) (time.Duration, error) {
	var rec model.RateLimitRecord
	err := c.db.WithContext(ctx).Where("rate_key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit window: %w", err)
	}
	if wait := rec.WindowResetTime.Sub(c.now()); wait > 0 {
		return wait, nil
	}
	return 0, nil
}

// Cleanup deletes rows whose window ended before now.
func (c *DBRateChecker) Cleanup(ctx context.Context) (int64, error) {
	res := c.db.WithContext(ctx).Where("window_reset_time <= ?", c.now()).Delete(&model.RateLimitRecord{})
	return res.RowsAffected, res.Error
}
