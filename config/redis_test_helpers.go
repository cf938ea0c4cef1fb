package config

import (
	"sync"

	"github.com/redis/go-redis/v9"
)

// SetRedisClientForTest installs client as the shared Redis client. Tests only.
func SetRedisClientForTest(client *redis.Client) {
	redisClient = client
}

// ResetRedisClientForTest clears the shared client so ConnectRedis runs again. Tests only.
func ResetRedisClientForTest() {
	redisClient = nil
	redisOnce = sync.Once{}
}
