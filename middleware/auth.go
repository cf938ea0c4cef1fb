package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/ariebrainware/realty-leads/model"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Context keys set by ValidateLoginToken.
const (
	UserIDKey       = "user_id"
	RoleIDKey       = "role_id"
	RoleNameKey     = "role_name"
	SessionTokenKey = "session_token"
)

// SessionTokenHeader carries the token issued by /login.
const SessionTokenHeader = "session-token"

var errUnauthorized = errors.New("unauthorized")

type sessionRow struct {
	UserID   uint
	RoleID   uint32
	RoleName string
}

// ValidateLoginToken resolves the session-token header to a user. The Redis session
// cache is consulted first; a miss or an unreadable entry falls back to the sessions
// table. On success UserIDKey, RoleIDKey and RoleNameKey are set on the context.
func ValidateLoginToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(SessionTokenHeader)
		if token == "" {
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Session token is required",
				Err: errUnauthorized,
			})
			c.Abort()
			return
		}

		db := GetDB(c)
		if db == nil {
			util.CallServerError(c, util.APIErrorParams{
				Msg: "Database connection not available",
				Err: fmt.Errorf("db is nil"),
			})
			c.Abort()
			return
		}

		cached, err := util.LookupSession(c.Request.Context(), token)
		if err == nil {
			setIdentity(c, token, sessionRow{UserID: cached.UserID, RoleID: cached.RoleID, RoleName: cached.Role})
			c.Next()
			return
		}
		if !errors.Is(err, util.ErrSessionNotCached) {
			util.Logger().Debug("session cache unusable, falling back to database", zap.Error(err))
		}

		row, err := lookupSessionRow(db, token)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				util.Logger().Error("session lookup failed", zap.Error(err))
			}
			monitorFor(c).LogUnauthorizedAccess("", c.ClientIP(), c.Request.URL.Path, "invalid or expired session token")
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Invalid or expired session token",
				Err: errUnauthorized,
			})
			c.Abort()
			return
		}

		setIdentity(c, token, row)
		c.Next()
	}
}

func lookupSessionRow(db *gorm.DB, token string) (sessionRow, error) {
	var row sessionRow
	err := db.Table("sessions").
		Select("sessions.user_id AS user_id, users.role_id AS role_id, roles.name AS role_name").
		Joins("JOIN users ON users.id = sessions.user_id AND users.deleted_at IS NULL").
		Joins("LEFT JOIN roles ON roles.id = users.role_id").
		Where("sessions.session_token = ? AND sessions.expires_at > ? AND sessions.deleted_at IS NULL", token, time.Now()).
		Take(&row).Error
	return row, err
}

func setIdentity(c *gin.Context, token string, row sessionRow) {
	c.Set(UserIDKey, row.UserID)
	c.Set(RoleIDKey, row.RoleID)
	c.Set(RoleNameKey, row.RoleName)
	c.Set(SessionTokenKey, token)
}

// RequireRole lets the request through only when ValidateLoginToken resolved one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := GetRoleName(c)
		if util.Contains(name, roles) {
			c.Next()
			return
		}
		uid, _ := GetUserID(c)
		monitorFor(c).LogUnauthorizedAccess(fmt.Sprintf("%d", uid), c.ClientIP(), c.Request.URL.Path,
			fmt.Sprintf("role %q not permitted", name))
		util.CallForbidden(c, util.APIErrorParams{
			Msg: "You do not have permission to access this resource",
			Err: fmt.Errorf("forbidden"),
		})
		c.Abort()
	}
}

// RequireAdmin is RequireRole(model.RoleAdmin).
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(model.RoleAdmin)
}

// GetUserID returns the authenticated user's ID.
func GetUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// GetRoleID returns the authenticated user's role ID.
func GetRoleID(c *gin.Context) (uint32, bool) {
	v, ok := c.Get(RoleIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint32)
	return id, ok
}

func GetRoleName(c *gin.Context) string {
	return c.GetString(RoleNameKey)
}

func GetSessionToken(c *gin.Context) string {
	return c.GetString(SessionTokenKey)
}
