package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a generic 500 and a critical security event.
// The panic value and stack only go to the application log.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			util.Logger().Error("panic recovered",
				zap.Any("panic", rec),
				zap.String("path", c.Request.URL.Path),
				zap.ByteString("stack", debug.Stack()))

			monitorFor(c).LogEvent(util.SecurityEvent{
				Type:      util.EventSuspiciousActivity,
				Severity:  util.SeverityCritical,
				IP:        c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
				Message:   fmt.Sprintf("Unhandled panic on %s %s", c.Request.Method, c.Request.URL.Path),
				Details:   map[string]interface{}{"reason": "panic"},
			})

			if !c.Writer.Written() {
				util.CallServerError(c, util.APIErrorParams{
					Msg: "Internal server error",
					Err: fmt.Errorf("internal error"),
				})
			}
			c.Abort()
		}()
		c.Next()
	}
}
