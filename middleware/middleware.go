package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const dbContextKey = "db"

// CORSMiddleware configures CORS headers for incoming requests. With no origins
// configured every origin is allowed.
func CORSMiddleware(origins ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		setCorsHeaders(c, origins...)

		// For preflight requests, respond with 204 and abort further processing.
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func setCorsHeaders(c *gin.Context, origins ...string) {
	allow := "*"
	if len(origins) > 0 {
		allow = ""
		if origin := c.Request.Header.Get("Origin"); util.Contains(origin, origins) {
			allow = origin
		}
		c.Writer.Header().Add("Vary", "Origin")
	}
	if allow != "" {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allow)
	}
	c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE, PATCH")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type, Authorization, session-token")
	c.Writer.Header().Set("Access-Control-Max-Age", "86400")
	c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
	c.Writer.Header().Set("Content-Type", "application/json")
}

// DatabaseMiddleware makes db available to handlers through GetDB.
func DatabaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(dbContextKey, db)
		c.Next()
	}
}

// GetDB returns the request's database handle or nil when DatabaseMiddleware was not installed.
func GetDB(c *gin.Context) *gorm.DB {
	v, ok := c.Get(dbContextKey)
	if !ok {
		return nil
	}
	db, _ := v.(*gorm.DB)
	return db
}

// RequireBearerToken guards an endpoint with a static "Authorization: Bearer <token>".
// An empty token disables the check.
func RequireBearerToken(token string) gin.HandlerFunc {
	expected := "Bearer " + token
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		if !tokenValidator(c, expected) {
			return
		}
		c.Next()
	}
}

// tokenValidator compares the Authorization header with expected. Preflight requests
// pass unchecked. On mismatch the request is aborted with 401.
func tokenValidator(c *gin.Context, expected string) bool {
	if c.Request.Method == http.MethodOptions {
		return true
	}
	got := strings.TrimSpace(c.GetHeader("Authorization"))
	if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1 {
		return true
	}
	util.CallUserNotAuthorized(c, util.APIErrorParams{
		Msg: "Invalid or missing API token",
		Err: fmt.Errorf("invalid api token"),
	})
	c.Abort()
	return false
}
