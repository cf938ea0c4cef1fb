package util

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariebrainware/realty-leads/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSecurityLog redirects the [SECURITY] logger into a buffer for the test.
func captureSecurityLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := GetSecurityLoggerForTest()
	SetSecurityLoggerForTest(log.New(&buf, "[SECURITY] ", log.Lmsgprefix))
	t.Cleanup(func() { SetSecurityLoggerForTest(orig) })
	return &buf
}

func newTestMonitor(opts MonitorOptions) (*SecurityMonitor, *fakeClock) {
	clock := newFakeClock()
	m := NewSecurityMonitor(opts)
	m.now = clock.Now
	return m, clock
}

func TestSecurityMonitor_LogEventFillsDefaults(t *testing.T) {
	captureSecurityLog(t)
	m, clock := newTestMonitor(MonitorOptions{})

	ev := m.LogEvent(SecurityEvent{Type: EventDataAccess, Message: "viewed lead"})
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, SeverityLow, ev.Severity)
	assert.Equal(t, clock.Now(), ev.Timestamp)
	assert.Equal(t, 1, m.Len())
}

func TestSecurityMonitor_CapsBufferDroppingOldest(t *testing.T) {
	captureSecurityLog(t)
	m, _ := newTestMonitor(MonitorOptions{})

	for i := 0; i < defaultMaxEvents+5; i++ {
		m.LogEvent(SecurityEvent{Type: EventDataAccess, Message: fmt.Sprintf("event %d", i)})
	}
	assert.Equal(t, defaultMaxEvents, m.Len())

	all := m.Events(EventFilter{})
	require.Len(t, all, defaultMaxEvents)
	assert.Equal(t, fmt.Sprintf("event %d", defaultMaxEvents+4), all[0].Message, "newest first")
	assert.Equal(t, "event 5", all[len(all)-1].Message, "oldest five were dropped")
}

func TestSecurityMonitor_DetectsRepeatedAuthFailures(t *testing.T) {
	captureSecurityLog(t)
	var seen []SecurityEvent
	m, clock := newTestMonitor(MonitorOptions{OnEvent: func(e SecurityEvent) { seen = append(seen, e) }})

	for i := 0; i < 2; i++ {
		m.LogEvent(SecurityEvent{Type: EventAuthFailure, IP: "203.0.113.9"})
	}
	assert.Empty(t, m.Events(EventFilter{Type: EventSuspiciousActivity}))

	m.LogEvent(SecurityEvent{Type: EventAuthFailure, IP: "203.0.113.9"})
	derived := m.Events(EventFilter{Type: EventSuspiciousActivity})
	require.Len(t, derived, 1)
	assert.Equal(t, SeverityHigh, derived[0].Severity)
	assert.Equal(t, "203.0.113.9", derived[0].IP)
	assert.Equal(t, "repeated_auth_failures", derived[0].Details["reason"])

	// Further failures inside the same window do not repeat the alert.
	m.LogEvent(SecurityEvent{Type: EventAuthFailure, IP: "203.0.113.9"})
	assert.Len(t, m.Events(EventFilter{Type: EventSuspiciousActivity}), 1)

	// Another address is tracked on its own.
	m.LogEvent(SecurityEvent{Type: EventAuthFailure, IP: "198.51.100.1"})
	assert.Len(t, m.Events(EventFilter{Type: EventSuspiciousActivity}), 1)

	clock.Advance(6 * time.Minute)
	for i := 0; i < 3; i++ {
		m.LogEvent(SecurityEvent{Type: EventAuthFailure, IP: "203.0.113.9"})
	}
	assert.Len(t, m.Events(EventFilter{Type: EventSuspiciousActivity}), 2)

	assert.Len(t, seen, 10, "hook sees every recorded event")
}

func TestSecurityMonitor_FailuresOutsideWindowDoNotCount(t *testing.T) {
	captureSecurityLog(t)
	m, clock := newTestMonitor(MonitorOptions{})

	m.LogEvent(SecurityEvent{Type: EventAuthFailure, IP: "10.1.1.1"})
	m.LogEvent(SecurityEvent{Type: EventAuthFailure, IP: "10.1.1.1"})
	clock.Advance(5*time.Minute + time.Second)
	m.LogEvent(SecurityEvent{Type: EventAuthFailure, IP: "10.1.1.1"})

	assert.Empty(t, m.Events(EventFilter{Type: EventSuspiciousActivity}))
}

func TestSecurityMonitor_DetectsRateLimitBursts(t *testing.T) {
	captureSecurityLog(t)
	m, _ := newTestMonitor(MonitorOptions{})

	for i := 0; i < 4; i++ {
		m.LogEvent(SecurityEvent{Type: EventRateLimitExceeded, IP: "192.0.2.44"})
	}
	assert.Nil(t, m.DetectSuspiciousActivity("192.0.2.44"))

	m.LogEvent(SecurityEvent{Type: EventRateLimitExceeded, IP: "192.0.2.44"})
	derived := m.Events(EventFilter{Type: EventSuspiciousActivity})
	require.Len(t, derived, 1)
	assert.Equal(t, "repeated_rate_limit_hits", derived[0].Details["reason"])
}

func TestSecurityMonitor_EventsFilterAndStats(t *testing.T) {
	captureSecurityLog(t)
	m, clock := newTestMonitor(MonitorOptions{})

	m.LogEvent(SecurityEvent{Type: EventDataAccess, Severity: SeverityLow, IP: "a"})
	clock.Advance(time.Minute)
	m.LogEvent(SecurityEvent{Type: EventAdminAction, Severity: SeverityMedium, IP: "b"})
	clock.Advance(time.Minute)
	m.LogEvent(SecurityEvent{Type: EventAuthFailure, Severity: SeverityCritical, IP: "a"})

	assert.Len(t, m.Events(EventFilter{IP: "a"}), 2)
	assert.Len(t, m.Events(EventFilter{MinSeverity: SeverityMedium}), 2)
	assert.Len(t, m.Events(EventFilter{Since: clock.Now().Add(-time.Minute)}), 2)
	assert.Len(t, m.Events(EventFilter{Limit: 1}), 1)

	st := m.Stats()
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.ByType[EventAdminAction])
	assert.Equal(t, 1, st.BySeverity[SeverityCritical])
	require.NotNil(t, st.Oldest)
	assert.True(t, st.Oldest.Before(*st.Newest))
}

func TestSecurityMonitor_Prune(t *testing.T) {
	captureSecurityLog(t)
	m, clock := newTestMonitor(MonitorOptions{})

	m.LogEvent(SecurityEvent{Type: EventDataAccess, Message: "old"})
	clock.Advance(2 * time.Hour)
	m.LogEvent(SecurityEvent{Type: EventDataAccess, Message: "new"})

	assert.Equal(t, 1, m.Prune(time.Hour))
	events := m.Events(EventFilter{})
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].Message)
	assert.Equal(t, 0, m.Prune(time.Hour))
}

func TestSecurityMonitor_PersistsHighSeverity(t *testing.T) {
	captureSecurityLog(t)
	db := setupTestDB(t, "seclog", &model.SecurityLog{})
	m, _ := newTestMonitor(MonitorOptions{DB: db})

	m.LogEvent(SecurityEvent{Type: EventDataAccess, Severity: SeverityLow, Message: "low"})
	m.LogEvent(SecurityEvent{Type: EventAuthFailure, Severity: SeverityHigh, IP: "1.2.3.4", Message: "locked",
		Details: map[string]interface{}{"email": "x@example.com"}})

	var rows []model.SecurityLog
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "auth_failure", rows[0].EventType)
	assert.Equal(t, "high", rows[0].Severity)
	assert.Contains(t, string(rows[0].Details), "x@example.com")
}

func TestSecurityMonitor_LogLineIsSanitized(t *testing.T) {
	buf := captureSecurityLog(t)
	m, _ := newTestMonitor(MonitorOptions{})

	m.LogEvent(SecurityEvent{Type: EventAuthFailure, UserAgent: "evil\nEvent=admin_action", Message: strings.Repeat("x", 300)})

	out := strings.TrimRight(buf.String(), "\n")
	assert.NotContains(t, out, "\n")
	assert.Contains(t, out, "Event=auth_failure")
	assert.Contains(t, out, "UserAgent=evil Event=admin_action")
	assert.Contains(t, out, strings.Repeat("x", 200)+"...")
}

func TestSanitizeLogValue(t *testing.T) {
	assert.Equal(t, "a b c", sanitizeLogValue("a\nb\rc"))
	assert.Equal(t, "tab here", sanitizeLogValue("tab\there"))
	long := strings.Repeat("y", 250)
	assert.Equal(t, strings.Repeat("y", 200)+"...", sanitizeLogValue(long))
}

func TestSecurityMonitor_MirrorAndRestore(t *testing.T) {
	captureSecurityLog(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	mirror := NewRedisEventMirror(rdb, 0)
	m, clock := newTestMonitor(MonitorOptions{Mirror: mirror})
	for i := 0; i < 105; i++ {
		clock.Advance(time.Second)
		m.LogEvent(SecurityEvent{Type: EventDataAccess, Message: fmt.Sprintf("e%d", i)})
	}

	n, err := rdb.LLen(context.Background(), "security_events").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)

	restored := NewSecurityMonitor(MonitorOptions{Mirror: mirror})
	count, err := restored.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, count)

	events := restored.Events(EventFilter{})
	assert.Equal(t, "e104", events[0].Message)
	assert.Equal(t, "e5", events[len(events)-1].Message)

	// Restoring into a non-empty buffer is a no-op.
	count, err = restored.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRedisEventMirror_SkipsMalformed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	_, err := mr.Lpush("security_events", "{not json")
	require.NoError(t, err)
	mirror := NewRedisEventMirror(rdb, 10)
	require.NoError(t, mirror.Append(context.Background(), SecurityEvent{ID: "ok", Type: EventAdminAction}))

	events, err := mirror.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].ID)
}

func TestSecurityMonitor_MirrorFailureDoesNotBlock(t *testing.T) {
	captureSecurityLog(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	mr.Close()

	m, _ := newTestMonitor(MonitorOptions{Mirror: NewRedisEventMirror(rdb, 10)})
	m.LogEvent(SecurityEvent{Type: EventAdminAction})
	assert.Equal(t, 1, m.Len())
}

func TestLogHelpersUseDefaultMonitor(t *testing.T) {
	captureSecurityLog(t)
	orig := DefaultSecurityMonitor()
	m := NewSecurityMonitor(MonitorOptions{})
	SetSecurityMonitor(m)
	defer SetSecurityMonitor(orig)

	LogLoginFailure("a@example.com", "203.0.113.1", "ua", "invalid password")
	LogLoginSuccess(1, "a@example.com", "203.0.113.1", "ua")
	LogLogout(1, "a@example.com", "203.0.113.1", "ua")
	LogAccountLocked(1, "a@example.com", "203.0.113.1", "too many attempts")
	LogUnauthorizedAccess("2", "203.0.113.2", "/admin/leads", "not admin")
	LogRateLimitExceeded("203.0.113.3", ActionLeadSubmit, "/leads")
	LogAdminAction(1, "203.0.113.1", "delete_property", map[string]interface{}{"property_id": 3})
	LogSuspiciousInput("203.0.113.4", "ua", "message", []ThreatCategory{ThreatXSS, ThreatSQLInjection}, 80)

	st := m.Stats()
	assert.Equal(t, 3, st.ByType[EventAuthFailure])
	assert.Equal(t, 2, st.ByType[EventDataAccess])
	assert.Equal(t, 1, st.ByType[EventAdminAction])
	assert.Equal(t, 1, st.ByType[EventRateLimitExceeded])
	assert.Equal(t, 1, st.ByType[EventSuspiciousActivity])

	admin := m.Events(EventFilter{Type: EventAdminAction})
	require.Len(t, admin, 1)
	assert.Equal(t, "delete_property", admin[0].Details["action"])
}

func TestSecurityMonitor_LogDataAccess(t *testing.T) {
	captureSecurityLog(t)
	m := NewSecurityMonitor(MonitorOptions{})

	m.LogDataAccess(4, "198.51.100.7", "leads", 25)

	events := m.Events(EventFilter{Type: EventDataAccess})
	require.Len(t, events, 1)
	assert.Equal(t, "4", events[0].UserID)
	assert.Equal(t, SeverityLow, events[0].Severity)
	assert.Equal(t, 25, events[0].Details["records"])
}
