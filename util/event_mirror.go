package util

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const securityEventsKey = "security_events"

// RedisEventMirror keeps the newest events in a capped Redis list, newest at the head.
type RedisEventMirror struct {
	rdb  redis.Cmdable
	key  string
	size int64
}

// NewRedisEventMirror returns a mirror holding at most size events; size <= 0 means 100.
func NewRedisEventMirror(rdb redis.Cmdable, size int) *RedisEventMirror {
	if size <= 0 {
		size = defaultMirrorSize
	}
	return &RedisEventMirror{rdb: rdb, key: securityEventsKey, size: int64(size)}
}

// Append implements EventMirror.
func (m *RedisEventMirror) Append(ctx context.Context, event SecurityEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode security event: %w", err)
	}
	pipe := m.rdb.TxPipeline()
	pipe.LPush(ctx, m.key, b)
	pipe.LTrim(ctx, m.key, 0, m.size-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Load implements EventMirror. Entries that fail to decode are skipped.
func (m *RedisEventMirror) Load(ctx context.Context) ([]SecurityEvent, error) {
	raw, err := m.rdb.LRange(ctx, m.key, 0, m.size-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]SecurityEvent, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var ev SecurityEvent
		if err := json.Unmarshal([]byte(raw[i]), &ev); err != nil {
			Logger().Warn("skipping malformed mirrored security event", zap.Error(err))
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
