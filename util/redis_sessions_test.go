package util

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariebrainware/realty-leads/config"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCache_AddToUserSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	userID := uint(123)
	token := "test-token-123"
	exp := 24 * time.Hour
	userSetKey := fmt.Sprintf("user_sessions:%d", userID)

	mock.ExpectSAdd(userSetKey, token).SetVal(1)
	mock.ExpectExpire(userSetKey, exp).SetVal(true)

	err := NewSessionCache(db).AddToUserSet(context.Background(), userID, token, exp)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCache_AddToUserSet_SAddError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	userSetKey := fmt.Sprintf("user_sessions:%d", 123)
	expectedErr := errors.New("redis connection error")
	mock.ExpectSAdd(userSetKey, "tok").SetErr(expectedErr)

	err := NewSessionCache(db).AddToUserSet(context.Background(), 123, "tok", time.Hour)
	assert.EqualError(t, err, expectedErr.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCache_AddToUserSet_ExpireError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	userSetKey := fmt.Sprintf("user_sessions:%d", 123)
	mock.ExpectSAdd(userSetKey, "tok").SetVal(1)
	expectedErr := errors.New("expire failed")
	mock.ExpectExpire(userSetKey, time.Hour).SetErr(expectedErr)

	err := NewSessionCache(db).AddToUserSet(context.Background(), 123, "tok", time.Hour)
	assert.EqualError(t, err, expectedErr.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCache_InvalidateUser(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	userSetKey := fmt.Sprintf("user_sessions:%d", 123)
	tokens := []string{"token1", "token2", "token3"}

	mock.ExpectSMembers(userSetKey).SetVal(tokens)
	for _, tok := range tokens {
		mock.ExpectDel(fmt.Sprintf("session:%s", tok)).SetVal(1)
	}
	mock.ExpectDel(userSetKey).SetVal(1)

	require.NoError(t, NewSessionCache(db).InvalidateUser(context.Background(), 123))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCache_InvalidateUser_SMembersNil(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	userSetKey := fmt.Sprintf("user_sessions:%d", 123)
	mock.ExpectSMembers(userSetKey).RedisNil()
	// Even with redis.Nil, we should still try to delete the key
	mock.ExpectDel(userSetKey).SetVal(0)

	require.NoError(t, NewSessionCache(db).InvalidateUser(context.Background(), 123))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCache_InvalidateUser_SMembersError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	userSetKey := fmt.Sprintf("user_sessions:%d", 123)
	expectedErr := errors.New("redis connection error")
	mock.ExpectSMembers(userSetKey).SetErr(expectedErr)

	err := NewSessionCache(db).InvalidateUser(context.Background(), 123)
	assert.EqualError(t, err, expectedErr.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCache_StoreLookupRemove(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sc := NewSessionCache(rdb)

	require.NoError(t, sc.Store(ctx, "tok-a", CachedSession{UserID: 7, RoleID: 1, Role: "Admin"}, time.Hour))
	require.NoError(t, sc.Store(ctx, "tok-b", CachedSession{UserID: 7, RoleID: 1, Role: "Admin"}, time.Hour))

	got, err := sc.Lookup(ctx, "tok-a")
	require.NoError(t, err)
	assert.Equal(t, CachedSession{UserID: 7, RoleID: 1, Role: "Admin"}, got)

	members, err := mr.Members("user_sessions:7")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tok-a", "tok-b"}, members)

	require.NoError(t, sc.Remove(ctx, 7, "tok-a"))
	_, err = sc.Lookup(ctx, "tok-a")
	assert.ErrorIs(t, err, ErrSessionNotCached)
	assert.True(t, mr.Exists("user_sessions:7"))

	require.NoError(t, sc.Remove(ctx, 7, "tok-b"))
	assert.False(t, mr.Exists("user_sessions:7"), "empty set should be deleted")
}

func TestSessionCache_Expiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sc := NewSessionCache(rdb)
	require.NoError(t, sc.Store(ctx, "short", CachedSession{UserID: 1, Role: "User"}, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := sc.Lookup(ctx, "short")
	assert.ErrorIs(t, err, ErrSessionNotCached)
	assert.False(t, mr.Exists("user_sessions:1"))
}

func TestSessionCache_MalformedValue(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	sc := NewSessionCache(rdb)
	for _, v := range []string{"not-a-session", "abc:1:Admin", "0:1:Admin", "5:x:Admin", "5:1"} {
		require.NoError(t, mr.Set("session:bad", v))
		_, err := sc.Lookup(context.Background(), "bad")
		assert.Error(t, err, v)
		assert.NotErrorIs(t, err, ErrSessionNotCached, v)
	}
}

func TestSessionHelpers_NoRedis(t *testing.T) {
	config.ResetRedisClientForTest()
	defer config.ResetRedisClientForTest()

	ctx := context.Background()
	assert.NoError(t, StoreSession(ctx, "t", CachedSession{UserID: 1}, time.Hour))
	assert.NoError(t, RemoveSessionTokenFromUserSet(ctx, 1, "t"))
	assert.NoError(t, InvalidateUserSessions(ctx, 1))
	_, err := LookupSession(ctx, "t")
	assert.ErrorIs(t, err, ErrSessionNotCached)
}

func TestSessionHelpers_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	config.SetRedisClientForTest(rdb)
	defer config.ResetRedisClientForTest()

	ctx := context.Background()
	require.NoError(t, StoreSession(ctx, "tok", CachedSession{UserID: 9, Role: "Agent"}, time.Hour))
	got, err := LookupSession(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, uint(9), got.UserID)

	require.NoError(t, InvalidateUserSessions(ctx, 9))
	_, err = LookupSession(ctx, "tok")
	assert.ErrorIs(t, err, ErrSessionNotCached)
}
