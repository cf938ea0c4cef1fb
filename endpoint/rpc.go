package endpoint

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariebrainware/realty-leads/metrics"
	"github.com/ariebrainware/realty-leads/middleware"
	"github.com/ariebrainware/realty-leads/model"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errAdminExists = errors.New("an admin already exists")

// HasRoleRequest names the role to test the caller against.
type HasRoleRequest struct {
	Role string `json:"role" binding:"required" example:"Agent"`
}

// HasRole godoc
// @Summary      Check caller role
// @Tags         RPC
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body HasRoleRequest true "Role"
// @Success      200 {object} util.APIResponse "Role check"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Router       /rpc/has_role [post]
func HasRole(c *gin.Context) {
	var req HasRoleRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	has := strings.EqualFold(middleware.GetRoleName(c), strings.TrimSpace(req.Role))
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Role checked", Data: gin.H{"has_role": has}})
}

// IsAdmin godoc
// @Summary      Check if caller is an admin
// @Tags         RPC
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse "Admin check"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Router       /rpc/is_admin [post]
func IsAdmin(c *gin.Context) {
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Role checked",
		Data: gin.H{"is_admin": middleware.GetRoleName(c) == model.RoleAdmin},
	})
}

// BootstrapAdmin godoc
// @Summary      Promote the first admin
// @Description  Grants the Admin role to the caller when no admin exists yet
// @Tags         RPC
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse "Promoted"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      403 {object} util.APIResponse "An admin already exists"
// @Router       /rpc/bootstrap_admin [post]
func BootstrapAdmin(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Unauthorized", Err: fmt.Errorf("no identity on request")})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		admin, err := model.FindRoleByName(tx, model.RoleAdmin)
		if err != nil {
			return fmt.Errorf("find admin role: %w", err)
		}
		var admins int64
		if err := tx.Model(&model.User{}).Where("role_id = ?", admin.ID).Count(&admins).Error; err != nil {
			return err
		}
		if admins > 0 {
			return errAdminExists
		}
		return tx.Model(&model.User{}).Where("id = ?", userID).Update("role_id", admin.ID).Error
	})
	if errors.Is(err, errAdminExists) {
		middleware.GetSecurity(c).Monitor.LogUnauthorizedAccess(fmt.Sprint(userID), c.ClientIP(), c.Request.URL.Path, "admin already bootstrapped")
		util.CallForbidden(c, util.APIErrorParams{Msg: "An admin already exists", Err: err})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to promote user", Err: err})
		return
	}

	// Cached sessions still carry the old role.
	if err := util.InvalidateUserSessions(c.Request.Context(), userID); err != nil {
		util.Logger().Warn("failed to invalidate cached sessions", zap.Uint("user_id", userID), zap.Error(err))
	}
	logAdminAction(c, "bootstrap_admin", map[string]interface{}{"user_id": userID})
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "You are now an admin", Data: gin.H{"role": model.RoleAdmin}})
}

// CheckRateLimitRequest selects a named rule by action, or a custom rule by key.
type CheckRateLimitRequest struct {
	Action        string `json:"action" example:"lead_submit"`
	Key           string `json:"key" example:"newsletter"`
	MaxRequests   int    `json:"max_requests" example:"10"`
	WindowSeconds int    `json:"window_seconds" example:"60"`
}

func (r CheckRateLimitRequest) rule() (string, util.RateLimitRule, error) {
	if r.Action != "" {
		if _, ok := util.RateLimitRules[r.Action]; !ok {
			return "", util.RateLimitRule{}, fmt.Errorf("%w: unknown action %q", util.ErrInvalidInput, r.Action)
		}
		return r.Action, util.RuleFor(r.Action), nil
	}
	key := strings.TrimSpace(r.Key)
	if key == "" || len(key) > 64 {
		return "", util.RateLimitRule{}, fmt.Errorf("%w: action or key is required", util.ErrInvalidInput)
	}
	if r.MaxRequests <= 0 || r.WindowSeconds <= 0 {
		return "", util.RateLimitRule{}, fmt.Errorf("%w: max_requests and window_seconds must be positive", util.ErrInvalidInput)
	}
	return key, util.RateLimitRule{Requests: r.MaxRequests, Window: time.Duration(r.WindowSeconds) * time.Second}, nil
}

// CheckRateLimit godoc
// @Summary      Check a rate limit
// @Description  Counts one attempt against the caller's IP and reports whether it is allowed
// @Tags         RPC
// @Accept       json
// @Produce      json
// @Param        request body CheckRateLimitRequest true "Rule"
// @Success      200 {object} util.APIResponse "Rate limit checked"
// @Failure      400 {object} util.APIResponse "Invalid rule"
// @Router       /rpc/check_rate_limit [post]
func CheckRateLimit(checker util.RemoteRateChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckRateLimitRequest
		if !bindJSONOrRespond(c, &req, "Invalid request payload") {
			return
		}
		name, rule, err := req.rule()
		if err != nil {
			util.CallUserError(c, util.APIErrorParams{Msg: "Invalid rate limit rule", Err: err})
			return
		}
		if _, ok := validateOrRespond(c, map[string]string{"key": name}, util.ValidationOptions{MaxLength: 64}); !ok {
			return
		}

		key := middleware.RateLimitKey("rpc:"+name, c.ClientIP())
		sec := middleware.GetSecurity(c)
		allowed := checkRemoteOrLocal(c, checker, sec.Limiter, key, rule)
		if !allowed {
			label := req.Action
			if label == "" {
				label = "custom"
			}
			metrics.RateLimitHits.WithLabelValues(label).Inc()
			sec.Monitor.LogRateLimitExceeded(c.ClientIP(), name, c.Request.URL.Path)
		}
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "Rate limit checked", Data: gin.H{"allowed": allowed}})
	}
}

func checkRemoteOrLocal(c *gin.Context, checker util.RemoteRateChecker, limiter *util.RateLimiter, key string, rule util.RateLimitRule) bool {
	if checker != nil {
		allowed, err := checker.CheckRateLimit(c.Request.Context(), key, rule)
		if err == nil {
			return allowed
		}
		util.Logger().Warn("rate limit store unavailable", zap.String("key", key), zap.Error(err))
	}
	return limiter.IsAllowed(c.Request.Context(), key, rule)
}
