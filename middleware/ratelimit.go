package middleware

import (
	"fmt"

	"github.com/ariebrainware/realty-leads/metrics"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
)

// RateLimitKey is the limiter key for action from ip.
func RateLimitKey(action, ip string) string {
	return fmt.Sprintf("%s:%s", action, ip)
}

// RateLimitAction limits requests per client IP with the rule registered for action.
func RateLimitAction(action string) gin.HandlerFunc {
	return RateLimitWithRule(action, util.RuleFor(action))
}

// RateLimitWithRule limits requests per client IP with an explicit rule. A rejected
// request gets 429 with Retry-After and is reported to the security monitor.
func RateLimitWithRule(action string, rule util.RateLimitRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		sec := GetSecurity(c)
		clientIP := c.ClientIP()
		key := RateLimitKey(action, clientIP)

		if sec.Limiter.IsAllowed(c.Request.Context(), key, rule) {
			c.Next()
			return
		}

		sec.Monitor.LogRateLimitExceeded(clientIP, action, c.Request.URL.Path)
		metrics.RateLimitHits.WithLabelValues(action).Inc()

		retry := sec.Limiter.RetryIn(c.Request.Context(), key)
		if retry <= 0 {
			retry = rule.Window
		}
		util.CallTooManyRequests(c, util.APIErrorParams{
			Msg: "Too many requests. Please try again later.",
			Err: fmt.Errorf("rate limit exceeded"),
		}, retry)
		c.Abort()
	}
}
