package endpoint

import (
	"fmt"
	"net/http"

	"github.com/ariebrainware/realty-leads/assistant"
	"github.com/ariebrainware/realty-leads/middleware"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps is everything the router needs. Zero values are usable in tests.
type Deps struct {
	AppName     string
	DB          *gorm.DB
	Security    *middleware.Security
	Chat        *assistant.Store
	RateStore   util.RemoteRateChecker
	MapboxToken string
	CORSOrigins []string

	MetricsEnabled bool
	MetricsToken   string
}

// SetupRouter wires middleware and routes onto a new engine.
func SetupRouter(d Deps) *gin.Engine {
	if d.Security == nil {
		d.Security = middleware.NewSecurity(nil, nil)
	}
	if d.Chat == nil {
		d.Chat = assistant.NewStore(0)
	}
	if d.RateStore == nil && d.DB != nil {
		d.RateStore = util.NewDBRateChecker(d.DB)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.CORSMiddleware(d.CORSOrigins...))
	r.Use(middleware.DatabaseMiddleware(d.DB))
	r.Use(middleware.SecurityMiddleware(d.Security))
	r.Use(middleware.EndpointCallLogger())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Welcome to %s!", d.AppName)})
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.MetricsEnabled {
		r.GET("/metrics", middleware.RequireBearerToken(d.MetricsToken), gin.WrapH(promhttp.Handler()))
	}

	scan := middleware.RejectSuspiciousQuery()
	r.GET("/properties", scan, ListProperties)
	r.GET("/property/:id", GetProperty)
	r.GET("/locations", ListLocations)
	r.GET("/locations/:id", scan, GetLocation)
	r.GET("/config/map", MapConfig(d.MapboxToken))

	r.POST("/leads", middleware.RateLimitAction(util.ActionLeadSubmit), CreateLead)

	chat := r.Group("/chat")
	chat.POST("", middleware.RateLimitAction(util.ActionChatStart), StartChat(d.Chat))
	chat.GET("/:id", GetChat(d.Chat))
	chat.POST("/:id/message", middleware.RateLimitAction(util.ActionChatMessage), SendChatMessage(d.Chat))

	r.POST("/signup", middleware.RateLimitAction(util.ActionSignup), Signup)
	r.POST("/login", middleware.RateLimitAction(util.ActionLogin), Login)

	rpc := r.Group("/rpc", middleware.RateLimitAction(util.ActionRPC))
	rpc.POST("/check_rate_limit", CheckRateLimit(d.RateStore))

	authed := r.Group("/", middleware.ValidateLoginToken())
	authed.DELETE("/logout", Logout)
	authed.GET("/token/validate", ValidateToken)
	authedRPC := authed.Group("/rpc", middleware.RateLimitAction(util.ActionRPC))
	authedRPC.POST("/has_role", HasRole)
	authedRPC.POST("/is_admin", IsAdmin)
	authedRPC.POST("/bootstrap_admin", BootstrapAdmin)

	admin := r.Group("/admin", middleware.ValidateLoginToken(), middleware.RequireAdmin())
	admin.POST("/properties", CreateProperty)
	admin.PATCH("/properties/:id", UpdateProperty)
	admin.DELETE("/properties/:id", DeleteProperty)

	admin.GET("/leads", scan, ListLeads)
	admin.GET("/leads/:id", GetLead)
	admin.PATCH("/leads/:id", UpdateLead)
	admin.DELETE("/leads/:id", DeleteLead)

	admin.GET("/security/events", ListSecurityEvents)
	admin.GET("/security/stats", GetSecurityStats)
	admin.GET("/security/logs", ListSecurityLogs)
	admin.POST("/maintenance/cleanup", RunCleanup)

	return r
}
