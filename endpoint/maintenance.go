package endpoint

import (
	"time"

	"github.com/ariebrainware/realty-leads/middleware"
	"github.com/ariebrainware/realty-leads/model"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	securityLogRetention = 90 * 24 * time.Hour
	eventRetention       = 24 * time.Hour
)

// CleanupResult reports what the retention pass removed.
type CleanupResult struct {
	RateLimitRows   int64     `json:"rate_limit_rows"`
	SecurityLogs    int64     `json:"security_logs"`
	BufferedEvents  int       `json:"buffered_events"`
	LimiterEntries  int       `json:"limiter_entries"`
	LastDataCleanup time.Time `json:"last_data_cleanup"`
}

// RunCleanup godoc
// @Summary      Run data retention
// @Description  Drops expired rate limit windows, security logs older than 90 days and buffered events older than 24h
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=CleanupResult} "Cleanup complete"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /admin/maintenance/cleanup [post]
func RunCleanup(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	sec := middleware.GetSecurity(c)

	res, err := cleanupData(c, db, sec, time.Now())
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Cleanup failed", Err: err})
		return
	}

	logAdminAction(c, "data_cleanup", map[string]interface{}{
		"rate_limit_rows": res.RateLimitRows,
		"security_logs":   res.SecurityLogs,
		"buffered_events": res.BufferedEvents,
	})
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Cleanup complete", Data: res})
}

func cleanupData(c *gin.Context, db *gorm.DB, sec *middleware.Security, now time.Time) (CleanupResult, error) {
	ctx := c.Request.Context()
	res := CleanupResult{LastDataCleanup: now.UTC()}

	n, err := util.NewDBRateChecker(db).Cleanup(ctx)
	if err != nil {
		return res, err
	}
	res.RateLimitRows = n

	del := db.WithContext(ctx).Unscoped().Where("created_at < ?", now.Add(-securityLogRetention)).Delete(&model.SecurityLog{})
	if del.Error != nil {
		return res, del.Error
	}
	res.SecurityLogs = del.RowsAffected

	res.BufferedEvents = sec.Monitor.Prune(eventRetention)
	res.LimiterEntries = sec.Limiter.Cleanup()

	marker := model.Setting{Key: model.SettingLastDataCleanup, Value: res.LastDataCleanup.Format(time.RFC3339)}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&marker).Error; err != nil {
		return res, err
	}

	util.Logger().Info("data cleanup finished",
		zap.Int64("rate_limit_rows", res.RateLimitRows),
		zap.Int64("security_logs", res.SecurityLogs),
		zap.Int("buffered_events", res.BufferedEvents),
		zap.Int("limiter_entries", res.LimiterEntries),
	)
	return res, nil
}
