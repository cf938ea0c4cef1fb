package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestSecurityLogModel_Create(t *testing.T) {
	db := setupTestDB(t, "security_logs", &SecurityLog{})

	entry := SecurityLog{
		EventID:   "evt-1",
		EventType: "auth_failure",
		Severity:  "medium",
		IP:        "203.0.113.7",
		Location:  "Dubai/United Arab Emirates",
		Message:   "Login failed: invalid password",
		Details:   datatypes.JSON(`{"email":"x@example.com"}`),
	}
	require.NoError(t, db.Create(&entry).Error)

	var found SecurityLog
	require.NoError(t, db.Where("event_id = ?", "evt-1").First(&found).Error)
	assert.Equal(t, "auth_failure", found.EventType)
	assert.Equal(t, "medium", found.Severity)
	assert.JSONEq(t, `{"email":"x@example.com"}`, string(found.Details))
}

func TestRateLimitRecord_TableName(t *testing.T) {
	db := setupTestDB(t, "rate_limits", &RateLimitRecord{})
	assert.True(t, db.Migrator().HasTable("rate_limits"))
}
