package util

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ariebrainware/realty-leads/config"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotCached is returned by LookupSession when Redis has no entry for a token.
var ErrSessionNotCached = errors.New("session not cached")

// CachedSession is what Redis remembers about a login token.
type CachedSession struct {
	UserID uint
	RoleID uint32
	Role   string
}

func sessionKey(token string) string       { return fmt.Sprintf("session:%s", token) }
func userSessionsKey(userID uint) string   { return fmt.Sprintf("user_sessions:%d", userID) }
func encodeSession(s CachedSession) string {
	return fmt.Sprintf("%d:%d:%s", s.UserID, s.RoleID, s.Role)
}

// decodeSession parses "<user id>:<role id>:<role name>".
func decodeSession(v string) (CachedSession, error) {
	parts := strings.SplitN(v, ":", 3)
	if len(parts) != 3 {
		return CachedSession{}, fmt.Errorf("malformed session value %q", v)
	}
	uid, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || uid == 0 {
		return CachedSession{}, fmt.Errorf("malformed session user id %q", parts[0])
	}
	rid, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return CachedSession{}, fmt.Errorf("malformed session role id: %w", err)
	}
	return CachedSession{UserID: uint(uid), RoleID: uint32(rid), Role: parts[2]}, nil
}

// SessionCache keeps login tokens in Redis so the auth middleware can skip the database.
type SessionCache struct {
	rdb redis.Cmdable
}

func NewSessionCache(rdb redis.Cmdable) *SessionCache {
	return &SessionCache{rdb: rdb}
}

// Store caches token for exp and adds it to the user's token set.
func (s *SessionCache) Store(ctx context.Context, token string, sess CachedSession, exp time.Duration) error {
	if err := s.rdb.Set(ctx, sessionKey(token), encodeSession(sess), exp).Err(); err != nil {
		return err
	}
	return s.AddToUserSet(ctx, sess.UserID, token, exp)
}

// Lookup returns the cached session for token or ErrSessionNotCached.
func (s *SessionCache) Lookup(ctx context.Context, token string) (CachedSession, error) {
	v, err := s.rdb.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return CachedSession{}, ErrSessionNotCached
	}
	if err != nil {
		return CachedSession{}, err
	}
	return decodeSession(v)
}

// AddToUserSet adds the token to the per-user set and extends the set's TTL to exp,
// so the set never outlives the longest session in it.
func (s *SessionCache) AddToUserSet(ctx context.Context, userID uint, token string, exp time.Duration) error {
	key := userSessionsKey(userID)
	if err := s.rdb.SAdd(ctx, key, token).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, exp).Err()
}

var removeTokenScript = redis.NewScript(`
local removed = redis.call('SREM', KEYS[1], ARGV[1])
if removed > 0 then
	local count = redis.call('SCARD', KEYS[1])
	if count == 0 then
		redis.call('DEL', KEYS[1])
	end
end
redis.call('DEL', KEYS[2])
return removed
`)

// Remove drops one token and deletes the user's set when it becomes empty.
func (s *SessionCache) Remove(ctx context.Context, userID uint, token string) error {
	return removeTokenScript.Run(ctx, s.rdb, []string{userSessionsKey(userID), sessionKey(token)}, token).Err()
}

// InvalidateUser deletes every cached token of userID and the set itself.
func (s *SessionCache) InvalidateUser(ctx context.Context, userID uint) error {
	key := userSessionsKey(userID)
	members, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for _, tok := range members {
		_ = s.rdb.Del(ctx, sessionKey(tok)).Err()
	}
	return s.rdb.Del(ctx, key).Err()
}

func defaultSessionCache() *SessionCache {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	return NewSessionCache(rdb)
}

// StoreSession caches a login on the shared Redis client. It is a no-op without Redis.
func StoreSession(ctx context.Context, token string, sess CachedSession, exp time.Duration) error {
	if sc := defaultSessionCache(); sc != nil {
		return sc.Store(ctx, token, sess, exp)
	}
	return nil
}

// LookupSession reads a cached login. Without Redis it always reports ErrSessionNotCached.
func LookupSession(ctx context.Context, token string) (CachedSession, error) {
	if sc := defaultSessionCache(); sc != nil {
		return sc.Lookup(ctx, token)
	}
	return CachedSession{}, ErrSessionNotCached
}

// RemoveSessionTokenFromUserSet forgets a single token.
func RemoveSessionTokenFromUserSet(ctx context.Context, userID uint, token string) error {
	if sc := defaultSessionCache(); sc != nil {
		return sc.Remove(ctx, userID, token)
	}
	return nil
}

// InvalidateUserSessions drops all cached tokens for userID. Best-effort: callers may
// ignore the error.
func InvalidateUserSessions(ctx context.Context, userID uint) error {
	if sc := defaultSessionCache(); sc != nil {
		return sc.InvalidateUser(ctx, userID)
	}
	return nil
}
