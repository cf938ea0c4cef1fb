package middleware

import (
	"fmt"
	"net/url"

	"github.com/ariebrainware/realty-leads/metrics"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
)

const securityContextKey = "security"

// Security bundles the request-path enforcement state shared by every handler.
type Security struct {
	Limiter *util.RateLimiter
	Monitor *util.SecurityMonitor
}

// NewSecurity returns a Security; nil arguments get a local limiter and the default monitor.
func NewSecurity(limiter *util.RateLimiter, monitor *util.SecurityMonitor) *Security {
	if limiter == nil {
		limiter = util.NewRateLimiter(nil)
	}
	if monitor == nil {
		monitor = util.DefaultSecurityMonitor()
	}
	return &Security{Limiter: limiter, Monitor: monitor}
}

// SecurityMiddleware makes sec available to handlers through GetSecurity.
func SecurityMiddleware(sec *Security) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(securityContextKey, sec)
		c.Next()
	}
}

// GetSecurity returns the request's Security, or a default one when none was installed.
func GetSecurity(c *gin.Context) *Security {
	if v, ok := c.Get(securityContextKey); ok {
		if sec, ok := v.(*Security); ok && sec != nil {
			return sec
		}
	}
	sec := NewSecurity(nil, nil)
	c.Set(securityContextKey, sec)
	return sec
}

func monitorFor(c *gin.Context) *util.SecurityMonitor {
	return GetSecurity(c).Monitor
}

// CheckFields validates fields with opts. When any field carries a threat the input is
// reported to the monitor and counted per threat category. The returned bool is false
// when the caller should reject the request.
func (s *Security) CheckFields(c *gin.Context, fields map[string]string, opts util.ValidationOptions) (util.FieldValidation, bool) {
	res := util.ValidateFields(fields, opts)
	if len(res.Threats) > 0 {
		for name, value := range fields {
			threats := util.DetectThreats(value)
			if len(threats) == 0 {
				continue
			}
			s.Monitor.LogSuspiciousInput(c.ClientIP(), c.Request.UserAgent(), name, threats, util.RiskScore(threats))
		}
		for _, t := range res.Threats {
			metrics.RejectedInputs.WithLabelValues(string(t)).Inc()
		}
	}
	return res, res.Valid()
}

// RejectSuspiciousQuery aborts with 400 when any query parameter carries an attack pattern.
func RejectSuspiciousQuery() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		if len(query) == 0 {
			c.Next()
			return
		}
		fields := flattenQuery(query)
		res, ok := GetSecurity(c).CheckFields(c, fields, util.ValidationOptions{MaxLength: 200})
		if ok {
			c.Next()
			return
		}
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid query parameters",
			Err: fmt.Errorf("rejected query: %v", res.Threats),
		})
		c.Abort()
	}
}

func flattenQuery(q url.Values) map[string]string {
	out := make(map[string]string, len(q))
	for k, vs := range q {
		for i, v := range vs {
			key := k
			if i > 0 {
				key = fmt.Sprintf("%s[%d]", k, i)
			}
			out[key] = v
		}
	}
	return out
}
