package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariebrainware/realty-leads/metrics"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// skipEventPaths are served too often to be worth a security event.
var skipEventPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// EndpointCallLogger exports request count and latency to Prometheus and writes a zap
// line for every route. Only admin routes (admin_action) and failed requests
// (data_access, 404 and 5xx) reach the security monitor; 401, 403 and 429 are already
// recorded by the auth and rate limit middleware.
func EndpointCallLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(duration.Seconds())

		if skipEventPaths[c.Request.URL.Path] {
			return
		}

		userID, _ := GetUserID(c)
		util.Logger().Debug("request served",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip", c.ClientIP()),
			zap.Uint("user_id", userID),
		)

		admin := strings.HasPrefix(c.Request.URL.Path, "/admin")
		if !admin && status != http.StatusNotFound && status < http.StatusInternalServerError {
			return
		}

		roleID, _ := GetRoleID(c)

		details := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"raw_path":    c.Request.URL.Path,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"query":       c.Request.URL.RawQuery,
		}
		if userID != 0 {
			details["user_id"] = userID
		}
		if roleID != 0 {
			details["role_id"] = roleID
		}

		eventType := util.EventDataAccess
		severity := util.SeverityLow
		if status >= http.StatusInternalServerError {
			severity = util.SeverityMedium
		}
		if admin {
			eventType = util.EventAdminAction
			if c.Request.Method != http.MethodGet {
				severity = util.SeverityMedium
			}
		}

		monitorFor(c).LogEvent(util.SecurityEvent{
			Type:      eventType,
			Severity:  severity,
			UserID:    fmt.Sprintf("%d", userID),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Message:   fmt.Sprintf("%s %s -> %d", c.Request.Method, c.Request.URL.Path, status),
			Details:   details,
		})
	}
}
