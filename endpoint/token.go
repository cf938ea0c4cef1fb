package endpoint

import (
	"fmt"

	"github.com/ariebrainware/realty-leads/middleware"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
)

// TokenInfo describes the identity behind a valid session token.
type TokenInfo struct {
	UserID uint   `json:"user_id" example:"1"`
	RoleID uint32 `json:"role_id" example:"1"`
	Role   string `json:"role" example:"Admin"`
}

// ValidateToken godoc
// @Summary      Validate session token
// @Description  Validate if the session token is valid and not expired
// @Tags         Authentication
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=TokenInfo} "Valid session token"
// @Failure      401 {object} util.APIResponse "Invalid or expired session token"
// @Router       /token/validate [get]
func ValidateToken(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Invalid session token",
			Err: fmt.Errorf("no identity on request"),
		})
		return
	}
	roleID, _ := middleware.GetRoleID(c)

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Valid session token",
		Data: TokenInfo{UserID: userID, RoleID: roleID, Role: middleware.GetRoleName(c)},
	})
}
