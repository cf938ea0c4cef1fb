package endpoint

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariebrainware/realty-leads/middleware"
	"github.com/ariebrainware/realty-leads/model"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxFailedAttempts = 5
	lockoutDuration   = 15 * time.Minute
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"agent@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
}

type LoginResponse struct {
	Token     string    `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Role      string    `json:"role" example:"Admin"`
	UserID    uint      `json:"user_id" example:"1"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login godoc
// @Summary      User login
// @Description  Authenticate with email and password and receive a session token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} util.APIResponse{data=LoginResponse} "Login successful"
// @Failure      400 {object} util.APIResponse "Invalid request payload"
// @Failure      429 {object} util.APIResponse "Too many requests"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /login [post]
func Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	a := &loginAttempt{
		c:       c,
		db:      db,
		email:   strings.ToLower(strings.TrimSpace(req.Email)),
		ip:      c.ClientIP(),
		agent:   c.Request.UserAgent(),
		monitor: middleware.GetSecurity(c).Monitor,
	}
	if !a.loadUser() || !a.checkLock() || !a.checkPassword(req.Password) {
		return
	}
	a.complete(req.Password)
}

// Unknown email and wrong password answer identically.
var errInvalidCredentials = errors.New("invalid credentials")

// loginAttempt carries one POST /login through its checks. Each step answers
// the request itself and returns false when the attempt ends there.
type loginAttempt struct {
	c       *gin.Context
	db      *gorm.DB
	email   string
	ip      string
	agent   string
	monitor *util.SecurityMonitor
	user    model.User
}

func (a *loginAttempt) reject(reason, msg string, err error) bool {
	a.monitor.LogLoginFailure(a.email, a.ip, a.agent, reason)
	util.CallUserError(a.c, util.APIErrorParams{Msg: msg, Err: err})
	return false
}

func (a *loginAttempt) fail(reason, msg string, err error) bool {
	a.monitor.LogLoginFailure(a.email, a.ip, a.agent, reason)
	util.CallServerError(a.c, util.APIErrorParams{Msg: msg, Err: err})
	return false
}

func (a *loginAttempt) loadUser() bool {
	err := a.db.Where("email = ?", a.email).First(&a.user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return a.reject("user not found", "Invalid email or password", errInvalidCredentials)
	case err != nil:
		return a.fail("database error", "Database error", err)
	}
	return true
}

// checkLock rejects a locked account. An expired lock starts a fresh count of
// failed attempts.
func (a *loginAttempt) checkLock() bool {
	until := a.user.LockedUntil
	if until == nil {
		return true
	}
	if *until <= time.Now().Unix() {
		a.clearFailures()
		return true
	}
	msg := fmt.Sprintf("Account is locked until %s due to multiple failed login attempts", time.Unix(*until, 0).Format(time.RFC3339))
	return a.reject("account locked", msg, errors.New("account locked"))
}

func (a *loginAttempt) checkPassword(plain string) bool {
	match, err := util.VerifyPassword(plain, a.user.Password, a.user.PasswordSalt)
	if err != nil {
		return a.fail("password verification error", "Password verification failed", err)
	}
	if !match {
		a.countFailure()
		return a.reject("invalid password", "Invalid email or password", errInvalidCredentials)
	}
	return true
}

// countFailure bumps failed_attempts and locks the account for lockoutDuration
// once maxFailedAttempts is reached.
func (a *loginAttempt) countFailure() {
	u := &a.user
	u.FailedAttempts++
	if u.FailedAttempts >= maxFailedAttempts {
		until := time.Now().Add(lockoutDuration).Unix()
		u.LockedUntil = &until
		a.monitor.LogAccountLocked(u.ID, u.Email, a.ip, "too many failed login attempts")
	}
	if err := a.db.Model(u).Select("failed_attempts", "locked_until").Updates(u).Error; err != nil {
		util.Logger().Warn("failed to update failed attempts", zap.Uint("user_id", u.ID), zap.Error(err))
	}
}

func (a *loginAttempt) clearFailures() {
	u := &a.user
	if u.FailedAttempts == 0 && u.LockedUntil == nil {
		return
	}
	u.FailedAttempts, u.LockedUntil = 0, nil
	if err := a.db.Model(u).Select("failed_attempts", "locked_until").Updates(u).Error; err != nil {
		util.Logger().Warn("failed to reset failed attempts", zap.Uint("user_id", u.ID), zap.Error(err))
	}
}

func (a *loginAttempt) complete(plain string) {
	u := &a.user
	a.clearFailures()
	// The login still succeeds with the legacy hash if the upgrade fails.
	_ = upgradeLegacyPassword(a.db, u, plain)

	var role model.Role
	if err := a.db.First(&role, u.RoleID).Error; err != nil {
		a.fail("role not found", "Role not found", err)
		return
	}

	token, expires, err := util.IssueSessionToken(u.ID, u.Email, role.ID, util.SessionTTL)
	if err != nil {
		a.fail("token generation failed", "Could not generate token", err)
		return
	}
	session := model.Session{UserID: u.ID, SessionToken: token, ExpiresAt: expires, ClientIP: a.ip, Browser: a.agent}
	if err := a.db.Create(&session).Error; err != nil {
		a.fail("session creation failed", "Failed to record session", err)
		return
	}

	cached := util.CachedSession{UserID: u.ID, RoleID: role.ID, Role: role.Name}
	if err := util.StoreSession(a.c.Request.Context(), token, cached, time.Until(expires)); err != nil {
		util.Logger().Warn("failed to cache session", zap.Uint("user_id", u.ID), zap.Error(err))
	}

	a.monitor.LogLoginSuccess(u.ID, u.Email, a.ip, a.agent)
	util.CallSuccessOK(a.c, util.APISuccessParams{
		Msg:  "Login successful",
		Data: LoginResponse{Token: token, Role: role.Name, UserID: u.ID, ExpiresAt: expires},
	})
}

// upgradeLegacyPassword rehashes a pre-argon2 password once the plaintext is known.
func upgradeLegacyPassword(db *gorm.DB, user *model.User, plain string) error {
	if util.IsArgon2Hash(user.Password) {
		return nil
	}
	hashed, salt, err := hashNewPassword(plain)
	if err != nil {
		return err
	}
	if err := db.Model(user).Updates(map[string]interface{}{"password": hashed, "password_salt": salt}).Error; err != nil {
		util.Logger().Warn("failed to upgrade password hash", zap.Uint("user_id", user.ID), zap.Error(err))
		return err
	}
	user.Password, user.PasswordSalt = hashed, salt
	util.Logger().Info("upgraded password hash to argon2", zap.Uint("user_id", user.ID))
	return nil
}

func hashNewPassword(plain string) (hashed, salt string, err error) {
	if salt, err = util.GenerateSalt(); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	if hashed, err = util.HashPasswordArgon2(plain, salt); err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}
	return hashed, salt, nil
}

// Logout godoc
// @Summary      User logout
// @Description  Invalidate the session token
// @Tags         Authentication
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse "Logout successful"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /logout [delete]
func Logout(c *gin.Context) {
	sessionToken := middleware.GetSessionToken(c)
	if sessionToken == "" {
		sessionToken = c.GetHeader(middleware.SessionTokenHeader)
	}
	if sessionToken == "" {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Session token not provided",
			Err: fmt.Errorf("session token not provided"),
		})
		c.Abort()
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var session model.Session
	if err := db.Where("session_token = ?", sessionToken).First(&session).Error; err != nil {
		util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Session not found", Err: err})
		return
	}

	var user model.User
	if err := db.First(&user, session.UserID).Error; err == nil {
		middleware.GetSecurity(c).Monitor.LogLogout(user.ID, user.Email, c.ClientIP(), c.Request.UserAgent())
	}

	if err := db.Where("session_token = ?", sessionToken).Delete(&model.Session{}).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete session", Err: err})
		return
	}
	if err := util.RemoveSessionTokenFromUserSet(c.Request.Context(), session.UserID, sessionToken); err != nil {
		util.Logger().Warn("failed to drop cached session", zap.Uint("user_id", session.UserID), zap.Error(err))
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Logout successful"})
}

type SignupRequest struct {
	Name     string `json:"name" binding:"required" example:"John Doe"`
	Email    string `json:"email" binding:"required,email" example:"john@example.com"`
	Password string `json:"password" binding:"required,min=8" example:"password123"`
}

// SignupResponse describes the account that was created.
type SignupResponse struct {
	UserID uint   `json:"user_id" example:"3"`
	Email  string `json:"email" example:"john@example.com"`
	Role   string `json:"role" example:"User"`
}

// Signup godoc
// @Summary      User signup
// @Description  Register an account with the User role. Admins are promoted through bootstrap_admin.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request body SignupRequest true "Signup details"
// @Success      201 {object} util.APIResponse{data=SignupResponse} "Signup successful"
// @Failure      400 {object} util.APIResponse "Invalid request or email already exists"
// @Failure      429 {object} util.APIResponse "Too many requests"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /signup [post]
func Signup(c *gin.Context) {
	var req SignupRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	name := util.NormalizeName(req.Name)
	if err := util.ValidateName(name); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid name", Err: err})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var taken int64
	if err := db.Model(&model.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: err})
		return
	}
	if taken > 0 {
		util.CallUserError(c, util.APIErrorParams{Msg: "Email already exists", Err: errors.New("email already exists")})
		return
	}

	role, err := model.FindRoleByName(db, model.RoleUser)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Role not found", Err: err})
		return
	}
	hashed, salt, err := hashNewPassword(req.Password)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to hash password", Err: err})
		return
	}

	newUser := model.User{Name: name, Email: email, Password: hashed, PasswordSalt: salt, RoleID: role.ID}
	if err := db.Create(&newUser).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create new user", Err: err})
		return
	}

	util.Logger().Info("user signed up", zap.Uint("user_id", newUser.ID))
	util.CallCreated(c, util.APISuccessParams{
		Msg:  "Signup successful",
		Data: SignupResponse{UserID: newUser.ID, Email: newUser.Email, Role: role.Name},
	})
}
