package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRemote struct{}

func (failingRemote) CheckRateLimit(context.Context, string, util.RateLimitRule) (bool, error) {
	return false, errors.New("remote down")
}

func newRateLimitedRouter(sec *Security, rule util.RateLimitRule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityMiddleware(sec))
	r.POST("/leads", RateLimitWithRule(util.ActionLeadSubmit, rule), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	return r
}

func postFrom(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/leads", nil)
	req.RemoteAddr = ip + ":1234"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitWithRule_LocalLimiter(t *testing.T) {
	mon := util.NewSecurityMonitor(util.MonitorOptions{})
	r := newRateLimitedRouter(NewSecurity(util.NewRateLimiter(nil), mon),
		util.RateLimitRule{Requests: 3, Window: time.Hour})

	for i := 0; i < 3; i++ {
		w := postFrom(r, "192.168.1.1")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := postFrom(r, "192.168.1.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Another client has its own window.
	assert.Equal(t, http.StatusOK, postFrom(r, "192.168.1.2").Code)

	events := mon.Events(util.EventFilter{Type: util.EventRateLimitExceeded})
	require.Len(t, events, 1)
	assert.Equal(t, "192.168.1.1", events[0].IP)
	assert.Equal(t, util.ActionLeadSubmit, events[0].Details["action"])
}

func TestRateLimitWithRule_RemoteFailureFallsBackToLocal(t *testing.T) {
	r := newRateLimitedRouter(NewSecurity(util.NewRateLimiter(failingRemote{}), util.NewSecurityMonitor(util.MonitorOptions{})),
		util.RateLimitRule{Requests: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, postFrom(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, postFrom(r, "10.0.0.1").Code)
}

func TestRateLimitWithRule_RedisShared(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rule := util.RateLimitRule{Requests: 2, Window: time.Minute}
	checker := util.NewRedisRateChecker(rdb)
	mon := util.NewSecurityMonitor(util.MonitorOptions{})

	// Two instances share one Redis counter.
	a := newRateLimitedRouter(NewSecurity(util.NewRateLimiter(checker), mon), rule)
	b := newRateLimitedRouter(NewSecurity(util.NewRateLimiter(checker), mon), rule)

	assert.Equal(t, http.StatusOK, postFrom(a, "172.16.0.9").Code)
	assert.Equal(t, http.StatusOK, postFrom(b, "172.16.0.9").Code)

	w := postFrom(a, "172.16.0.9")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	// The wait comes from the shared counter's TTL.
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	mr.FastForward(45 * time.Second)
	w = postFrom(b, "172.16.0.9")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "15", w.Header().Get("Retry-After"))
}

func TestRateLimitAction_UsesRegisteredRule(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityMiddleware(NewSecurity(nil, util.NewSecurityMonitor(util.MonitorOptions{}))))
	r.POST("/login", RateLimitAction(util.ActionLogin), func(c *gin.Context) { c.Status(http.StatusOK) })

	limit := util.RuleFor(util.ActionLogin).Requests
	for i := 0; i < limit; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/login", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimitKey(t *testing.T) {
	assert.Equal(t, "chat_message:1.2.3.4", RateLimitKey(util.ActionChatMessage, "1.2.3.4"))
}
