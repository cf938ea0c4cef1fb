package endpoint

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ariebrainware/realty-leads/middleware"
	"github.com/ariebrainware/realty-leads/model"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

func parseEventFilter(c *gin.Context) (util.EventFilter, error) {
	f := util.EventFilter{
		Type:        util.SecurityEventType(c.Query("type")),
		MinSeverity: util.Severity(c.Query("severity")),
		IP:          c.Query("ip"),
		Limit:       defaultEventLimit,
	}
	switch f.MinSeverity {
	case "", util.SeverityLow, util.SeverityMedium, util.SeverityHigh, util.SeverityCritical:
	default:
		return f, fmt.Errorf("%w: unknown severity %q", util.ErrInvalidInput, f.MinSeverity)
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%w: since must be RFC3339", util.ErrInvalidInput)
		}
		f.Since = t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("%w: limit must be positive", util.ErrInvalidInput)
		}
		f.Limit = min(n, maxEventLimit)
	}
	return f, nil
}

// ListSecurityEvents godoc
// @Summary      List security events
// @Description  Recent events from the in-memory monitor, newest first
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        type     query string false "Event type"
// @Param        severity query string false "Minimum severity"
// @Param        ip       query string false "Client IP"
// @Param        since    query string false "RFC3339 timestamp"
// @Param        limit    query int    false "Max events (default 100)"
// @Success      200 {object} util.APIResponse{data=[]util.SecurityEvent} "Events retrieved"
// @Failure      400 {object} util.APIResponse "Invalid filter"
// @Router       /admin/security/events [get]
func ListSecurityEvents(c *gin.Context) {
	filter, err := parseEventFilter(c)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid filter", Err: err})
		return
	}
	events := middleware.GetSecurity(c).Monitor.Events(filter)
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Events retrieved", Data: events})
}

// SecurityStats is the dashboard summary.
type SecurityStats struct {
	util.MonitorStats
	PersistedLogs   int64      `json:"persisted_logs"`
	LastDataCleanup *time.Time `json:"last_data_cleanup,omitempty"`
}

// GetSecurityStats godoc
// @Summary      Security statistics
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=SecurityStats} "Stats retrieved"
// @Router       /admin/security/stats [get]
func GetSecurityStats(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	stats := SecurityStats{MonitorStats: middleware.GetSecurity(c).Monitor.Stats()}
	if err := db.Model(&model.SecurityLog{}).Count(&stats.PersistedLogs).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to count security logs", Err: err})
		return
	}
	last, err := lastDataCleanup(db)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to read settings", Err: err})
		return
	}
	stats.LastDataCleanup = last

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Stats retrieved", Data: stats})
}

// ListSecurityLogs godoc
// @Summary      List persisted security logs
// @Description  High and critical events stored in the database
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        type   query string false "Event type"
// @Param        limit  query int    false "Page size (max 100)"
// @Param        offset query int    false "Offset"
// @Success      200 {object} util.APIResponse{data=listResponse} "Logs retrieved"
// @Router       /admin/security/logs [get]
func ListSecurityLogs(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	q := db.Model(&model.SecurityLog{})
	if v := c.Query("type"); v != "" {
		q = q.Where("event_type = ?", v)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to count security logs", Err: err})
		return
	}
	page := parsePagination(c)
	var logs []model.SecurityLog
	if err := q.Session(&gorm.Session{}).Order("created_at DESC").
		Limit(page.Limit).Offset(page.Offset).Find(&logs).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve security logs", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Logs retrieved",
		Data: listResponse{Total: total, TotalFetched: len(logs), Limit: page.Limit, Offset: page.Offset, Items: logs},
	})
}

func lastDataCleanup(db *gorm.DB) (*time.Time, error) {
	var s model.Setting
	err := db.Where(&model.Setting{Key: model.SettingLastDataCleanup}).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s.Value)
	if err != nil {
		return nil, nil
	}
	return &t, nil
}
