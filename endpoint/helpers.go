package endpoint

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ariebrainware/realty-leads/middleware"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func bindJSONOrRespond(c *gin.Context, dst interface{}, msg string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: msg, Err: err})
		return false
	}
	return true
}

func getDBOrRespond(c *gin.Context) (*gorm.DB, bool) {
	db := middleware.GetDB(c)
	if db == nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Database connection not available", Err: fmt.Errorf("db is nil")})
		return nil, false
	}
	return db, true
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid id", Err: fmt.Errorf("invalid %s %q", name, c.Param(name))})
		return 0, false
	}
	return uint(id), true
}

// respondFindError maps a gorm lookup error to 404 or 500.
func respondFindError(c *gin.Context, what string, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: fmt.Sprintf("%s not found", what), Err: err})
		return
	}
	util.CallServerError(c, util.APIErrorParams{Msg: fmt.Sprintf("Failed to retrieve %s", what), Err: err})
}

type pagination struct {
	Limit  int
	Offset int
}

// parsePagination reads limit/offset, clamping limit to 1..100.
func parsePagination(c *gin.Context) pagination {
	p := pagination{Limit: defaultPageLimit}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		p.Limit = v
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		p.Offset = v
	}
	return p
}

// listResponse is the data shape of every list endpoint.
type listResponse struct {
	Total        int64       `json:"total"`
	TotalFetched int         `json:"total_fetched"`
	Limit        int         `json:"limit"`
	Offset       int         `json:"offset"`
	Items        interface{} `json:"items"`
}

// validateOrRespond runs fields through the security validator and answers 400 on failure.
func validateOrRespond(c *gin.Context, fields map[string]string, opts util.ValidationOptions) (map[string]string, bool) {
	res, ok := middleware.GetSecurity(c).CheckFields(c, fields, opts)
	if !ok {
		util.CallValidationError(c, util.APIErrorParams{
			Msg: "Invalid input",
			Err: fmt.Errorf("validation failed"),
		}, res.Errors)
		return nil, false
	}
	return res.Sanitized, true
}

func currentUserID(c *gin.Context) uint {
	id, _ := middleware.GetUserID(c)
	return id
}

func logAdminAction(c *gin.Context, action string, details map[string]interface{}) {
	middleware.GetSecurity(c).Monitor.LogAdminAction(currentUserID(c), c.ClientIP(), action, details)
}
