package util

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariebrainware/realty-leads/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SecurityEventType represents different types of security events
type SecurityEventType string

const (
	EventAuthFailure        SecurityEventType = "auth_failure"
	EventRateLimitExceeded  SecurityEventType = "rate_limit_exceeded"
	EventSuspiciousActivity SecurityEventType = "suspicious_activity"
	EventAdminAction        SecurityEventType = "admin_action"
	EventDataAccess         SecurityEventType = "data_access"
)

// Severity ranks a security event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	}
	return 0
}

const (
	defaultMaxEvents      = 1000
	defaultMirrorSize     = 100
	suspiciousWindow      = 5 * time.Minute
	authFailureThreshold  = 3
	rateLimitHitThreshold = 5
)

// SecurityEvent represents a security event to be logged
type SecurityEvent struct {
	ID        string                 `json:"id"`
	Type      SecurityEventType      `json:"type"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"user_id,omitempty"`
	IP        string                 `json:"ip,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	Location  string                 `json:"location,omitempty"`
}

// EventMirror keeps a short tail of events outside the process so it survives restarts.
type EventMirror interface {
	Append(ctx context.Context, event SecurityEvent) error
	Load(ctx context.Context) ([]SecurityEvent, error)
}

// MonitorOptions configures a SecurityMonitor. Zero values take the defaults.
type MonitorOptions struct {
	MaxEvents   int
	DB          *gorm.DB
	Mirror      EventMirror
	Development bool
	// OnEvent is called after an event is recorded, outside the monitor lock.
	OnEvent func(SecurityEvent)
}

// SecurityMonitor buffers recent security events in memory, mirrors a tail of them,
// persists the serious ones and raises suspicious_activity on simple thresholds.
type SecurityMonitor struct {
	mu          sync.RWMutex
	events      []SecurityEvent
	maxEvents   int
	db          *gorm.DB
	mirror      EventMirror
	development bool
	onEvent     func(SecurityEvent)
	lastDerived map[string]time.Time
	now         func() time.Time
}

var securityLogger = log.New(os.Stdout, "[SECURITY] ", log.LstdFlags|log.Lmsgprefix)

// NewSecurityMonitor builds a monitor from opts.
func NewSecurityMonitor(opts MonitorOptions) *SecurityMonitor {
	max := opts.MaxEvents
	if max <= 0 {
		max = defaultMaxEvents
	}
	return &SecurityMonitor{
		events:      make([]SecurityEvent, 0, 64),
		maxEvents:   max,
		db:          opts.DB,
		mirror:      opts.Mirror,
		development: opts.Development,
		onEvent:     opts.OnEvent,
		lastDerived: make(map[string]time.Time),
		now:         time.Now,
	}
}

// sanitizeLogValue removes newlines and other characters that could break log parsing
func sanitizeLogValue(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\t", " ")
	// Truncate very long values to prevent log flooding
	if len(value) > 200 {
		value = value[:200] + "..."
	}
	return value
}

// LogEvent records event and then checks the buffer for suspicious patterns.
// It never fails; storage errors are logged and swallowed.
func (m *SecurityMonitor) LogEvent(event SecurityEvent) SecurityEvent {
	event = m.record(event)
	if event.Type != EventSuspiciousActivity {
		m.DetectSuspiciousActivity(event.IP)
	}
	return event
}

func (m *SecurityMonitor) record(event SecurityEvent) SecurityEvent {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now()
	}
	if event.Severity == "" {
		event.Severity = SeverityLow
	}
	if event.Location == "" && event.IP != "" {
		event.Location = GetIPLocation(event.IP).String()
	}

	m.mu.Lock()
	m.events = append(m.events, event)
	if over := len(m.events) - m.maxEvents; over > 0 {
		kept := make([]SecurityEvent, m.maxEvents, m.maxEvents+64)
		copy(kept, m.events[over:])
		m.events = kept
	}
	m.mu.Unlock()

	m.writeLogLine(event)
	m.mirrorEvent(event)
	if event.Severity.rank() >= SeverityHigh.rank() {
		m.persist(event)
	}
	if m.onEvent != nil {
		m.onEvent(event)
	}
	return event
}

func (m *SecurityMonitor) writeLogLine(event SecurityEvent) {
	msg := fmt.Sprintf("Event=%s Severity=%s UserID=%s IP=%s UserAgent=%s Message=%s",
		sanitizeLogValue(string(event.Type)),
		sanitizeLogValue(string(event.Severity)),
		sanitizeLogValue(event.UserID),
		sanitizeLogValue(event.IP),
		sanitizeLogValue(event.UserAgent),
		sanitizeLogValue(event.Message),
	)
	if len(event.Details) > 0 {
		// Details are persisted, not printed, to keep the line injection-safe.
		msg = fmt.Sprintf("%s DetailsCount=%d", msg, len(event.Details))
	}
	securityLogger.Println(msg)

	if m.development {
		Logger().Debug("security event",
			zap.String("id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("severity", string(event.Severity)),
			zap.String("ip", event.IP),
			zap.Any("details", event.Details),
		)
	}
}

func (m *SecurityMonitor) mirrorEvent(event SecurityEvent) {
	if m.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := m.mirror.Append(ctx, event); err != nil {
		Logger().Warn("failed to mirror security event", zap.String("id", event.ID), zap.Error(err))
	}
}

func (m *SecurityMonitor) persist(event SecurityEvent) {
	if m.db == nil {
		return
	}
	var details datatypes.JSON
	if event.Details != nil {
		if b, err := json.Marshal(event.Details); err == nil {
			details = datatypes.JSON(b)
		}
	}
	entry := model.SecurityLog{
		EventID:   event.ID,
		EventType: string(event.Type),
		Severity:  string(event.Severity),
		UserID:    event.UserID,
		IP:        sanitizeLogValue(event.IP),
		Location:  sanitizeLogValue(event.Location),
		UserAgent: sanitizeLogValue(event.UserAgent),
		Message:   sanitizeLogValue(event.Message),
		Details:   details,
	}
	if err := m.db.Create(&entry).Error; err != nil {
		securityLogger.Printf("Failed to persist security event: %v", err)
	}
}

// DetectSuspiciousActivity looks at the last five minutes of events from ip and emits a
// suspicious_activity event when auth failures or rate limit hits cross their threshold.
// At most one derived event per ip and reason is emitted per window.
func (m *SecurityMonitor) DetectSuspiciousActivity(ip string) *SecurityEvent {
	now := m.now()
	since := now.Add(-suspiciousWindow)

	m.mu.Lock()
	authFailures, rateHits := 0, 0
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if e.Timestamp.Before(since) {
			break
		}
		if e.IP != ip {
			continue
		}
		switch e.Type {
		case EventAuthFailure:
			authFailures++
		case EventRateLimitExceeded:
			rateHits++
		}
	}

	reason := ""
	switch {
	case authFailures >= authFailureThreshold:
		reason = "repeated_auth_failures"
	case rateHits >= rateLimitHitThreshold:
		reason = "repeated_rate_limit_hits"
	}
	if reason == "" {
		m.mu.Unlock()
		return nil
	}
	dedupeKey := ip + "|" + reason
	if last, ok := m.lastDerived[dedupeKey]; ok && now.Sub(last) < suspiciousWindow {
		m.mu.Unlock()
		return nil
	}
	m.lastDerived[dedupeKey] = now
	m.mu.Unlock()

	derived := m.record(SecurityEvent{
		Type:     EventSuspiciousActivity,
		Severity: SeverityHigh,
		IP:       ip,
		Message:  fmt.Sprintf("Suspicious activity detected: %s", reason),
		Details: map[string]interface{}{
			"reason":         reason,
			"auth_failures":  authFailures,
			"rate_limit_hit": rateHits,
			"window_seconds": int(suspiciousWindow.Seconds()),
		},
	})
	return &derived
}

// EventFilter narrows Events. Zero fields match everything.
type EventFilter struct {
	Type        SecurityEventType
	MinSeverity Severity
	IP          string
	Since       time.Time
	Limit       int
}

// Events returns matching events, newest first.
func (m *SecurityMonitor) Events(filter EventFilter) []SecurityEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SecurityEvent, 0)
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.MinSeverity != "" && e.Severity.rank() < filter.MinSeverity.rank() {
			continue
		}
		if filter.IP != "" && e.IP != filter.IP {
			continue
		}
		if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// MonitorStats summarises the in-memory buffer.
type MonitorStats struct {
	Total      int                       `json:"total"`
	ByType     map[SecurityEventType]int `json:"by_type"`
	BySeverity map[Severity]int          `json:"by_severity"`
	Oldest     *time.Time                `json:"oldest,omitempty"`
	Newest     *time.Time                `json:"newest,omitempty"`
}

func (m *SecurityMonitor) Stats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := MonitorStats{
		Total:      len(m.events),
		ByType:     map[SecurityEventType]int{},
		BySeverity: map[Severity]int{},
	}
	for _, e := range m.events {
		st.ByType[e.Type]++
		st.BySeverity[e.Severity]++
	}
	if len(m.events) > 0 {
		oldest := m.events[0].Timestamp
		newest := m.events[len(m.events)-1].Timestamp
		st.Oldest, st.Newest = &oldest, &newest
	}
	return st
}

// Len returns the number of buffered events.
func (m *SecurityMonitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// Prune drops events older than maxAge and returns how many were removed.
func (m *SecurityMonitor) Prune(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	idx := sort.Search(len(m.events), func(i int) bool {
		return !m.events[i].Timestamp.Before(cutoff)
	})
	if idx == 0 {
		return 0
	}
	m.events = append(m.events[:0:0], m.events[idx:]...)
	for k, t := range m.lastDerived {
		if t.Before(cutoff) {
			delete(m.lastDerived, k)
		}
	}
	return idx
}

// StartPruning calls Prune(maxAge) every interval until ctx is cancelled.
func (m *SecurityMonitor) StartPruning(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Prune(maxAge); n > 0 {
					Logger().Debug("security events pruned", zap.Int("removed", n))
				}
			}
		}
	}()
}

// Restore loads the mirrored tail into an empty buffer. Call it once on startup.
func (m *SecurityMonitor) Restore(ctx context.Context) (int, error) {
	if m.mirror == nil {
		return 0, nil
	}
	events, err := m.mirror.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load mirrored security events: %w", err)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) > 0 {
		return 0, nil
	}
	if len(events) > m.maxEvents {
		events = events[len(events)-m.maxEvents:]
	}
	m.events = append(m.events, events...)
	return len(events), nil
}

var (
	defaultMonitor   = NewSecurityMonitor(MonitorOptions{})
	defaultMonitorMu sync.RWMutex
)

// SetSecurityMonitor replaces the process-wide monitor used by LogSecurityEvent.
// Call this during application startup after DB and Redis initialization.
func SetSecurityMonitor(m *SecurityMonitor) {
	defaultMonitorMu.Lock()
	defaultMonitor = m
	defaultMonitorMu.Unlock()
}

// DefaultSecurityMonitor returns the process-wide monitor.
func DefaultSecurityMonitor() *SecurityMonitor {
	defaultMonitorMu.RLock()
	defer defaultMonitorMu.RUnlock()
	return defaultMonitor
}

// LogSecurityEvent logs a security event on the process-wide monitor.
func LogSecurityEvent(event SecurityEvent) SecurityEvent {
	return DefaultSecurityMonitor().LogEvent(event)
}

// LogLoginSuccess logs a successful login event
func (m *SecurityMonitor) LogLoginSuccess(userID uint, email, ip, userAgent string) {
	m.LogEvent(SecurityEvent{
		Type:      EventDataAccess,
		Severity:  SeverityLow,
		UserID:    fmt.Sprintf("%d", userID),
		IP:        ip,
		UserAgent: userAgent,
		Message:   "User logged in successfully",
		Details:   map[string]interface{}{"email": email, "action": "login"},
	})
}

// LogLoginFailure logs a failed login attempt
func (m *SecurityMonitor) LogLoginFailure(email, ip, userAgent, reason string) {
	m.LogEvent(SecurityEvent{
		Type:      EventAuthFailure,
		Severity:  SeverityMedium,
		IP:        ip,
		UserAgent: userAgent,
		Message:   fmt.Sprintf("Login failed: %s", reason),
		Details:   map[string]interface{}{"email": email, "reason": reason},
	})
}

// LogLogout logs a logout event
func (m *SecurityMonitor) LogLogout(userID uint, email, ip, userAgent string) {
	m.LogEvent(SecurityEvent{
		Type:      EventDataAccess,
		Severity:  SeverityLow,
		UserID:    fmt.Sprintf("%d", userID),
		IP:        ip,
		UserAgent: userAgent,
		Message:   "User logged out",
		Details:   map[string]interface{}{"email": email, "action": "logout"},
	})
}

// LogAccountLocked logs when an account is locked
func (m *SecurityMonitor) LogAccountLocked(userID uint, email, ip string, reason string) {
	m.LogEvent(SecurityEvent{
		Type:     EventAuthFailure,
		Severity: SeverityHigh,
		UserID:   fmt.Sprintf("%d", userID),
		IP:       ip,
		Message:  fmt.Sprintf("Account locked: %s", reason),
		Details:  map[string]interface{}{"email": email},
	})
}

// LogUnauthorizedAccess logs unauthorized access attempts
func (m *SecurityMonitor) LogUnauthorizedAccess(userID string, ip, resource, reason string) {
	m.LogEvent(SecurityEvent{
		Type:     EventAuthFailure,
		Severity: SeverityMedium,
		UserID:   userID,
		IP:       ip,
		Message:  fmt.Sprintf("Unauthorized access to %s: %s", resource, reason),
		Details:  map[string]interface{}{"resource": resource},
	})
}

// LogRateLimitExceeded logs when rate limit is exceeded
func (m *SecurityMonitor) LogRateLimitExceeded(ip, action, endpoint string) {
	m.LogEvent(SecurityEvent{
		Type:     EventRateLimitExceeded,
		Severity: SeverityMedium,
		IP:       ip,
		Message:  fmt.Sprintf("Rate limit exceeded for endpoint: %s", endpoint),
		Details:  map[string]interface{}{"action": action, "endpoint": endpoint},
	})
}

// LogAdminAction records a privileged change made through the admin API.
func (m *SecurityMonitor) LogAdminAction(userID uint, ip, action string, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["action"] = action
	m.LogEvent(SecurityEvent{
		Type:     EventAdminAction,
		Severity: SeverityMedium,
		UserID:   fmt.Sprintf("%d", userID),
		IP:       ip,
		Message:  fmt.Sprintf("Admin action: %s", action),
		Details:  details,
	})
}

// LogDataAccess records a read of lead or user data through the admin API.
func (m *SecurityMonitor) LogDataAccess(userID uint, ip, resource string, count int) {
	m.LogEvent(SecurityEvent{
		Type:     EventDataAccess,
		Severity: SeverityLow,
		UserID:   fmt.Sprintf("%d", userID),
		IP:       ip,
		Message:  fmt.Sprintf("Data access: %s", resource),
		Details:  map[string]interface{}{"resource": resource, "records": count},
	})
}

// LogSuspiciousInput records input rejected by the validator.
func (m *SecurityMonitor) LogSuspiciousInput(ip, userAgent, field string, threats []ThreatCategory, score int) {
	severity := SeverityMedium
	if score >= 70 {
		severity = SeverityHigh
	}
	names := make([]string, 0, len(threats))
	for _, t := range threats {
		names = append(names, string(t))
	}
	m.LogEvent(SecurityEvent{
		Type:      EventSuspiciousActivity,
		Severity:  severity,
		IP:        ip,
		UserAgent: userAgent,
		Message:   fmt.Sprintf("Rejected input in %s", field),
		Details:   map[string]interface{}{"field": field, "threats": names, "risk_score": score},
	})
}

// LogLoginSuccess records a successful login on the process-wide monitor.
func LogLoginSuccess(userID uint, email, ip, userAgent string) {
	DefaultSecurityMonitor().LogLoginSuccess(userID, email, ip, userAgent)
}

// LogLoginFailure records a failed login on the process-wide monitor.
func LogLoginFailure(email, ip, userAgent, reason string) {
	DefaultSecurityMonitor().LogLoginFailure(email, ip, userAgent, reason)
}

// LogLogout records a logout on the process-wide monitor.
func LogLogout(userID uint, email, ip, userAgent string) {
	DefaultSecurityMonitor().LogLogout(userID, email, ip, userAgent)
}

// LogAccountLocked records a lockout on the process-wide monitor.
func LogAccountLocked(userID uint, email, ip string, reason string) {
	DefaultSecurityMonitor().LogAccountLocked(userID, email, ip, reason)
}

// LogUnauthorizedAccess records a rejected request on the process-wide monitor.
func LogUnauthorizedAccess(userID string, ip, resource, reason string) {
	DefaultSecurityMonitor().LogUnauthorizedAccess(userID, ip, resource, reason)
}

// LogRateLimitExceeded records a rate limit hit on the process-wide monitor.
func LogRateLimitExceeded(ip, action, endpoint string) {
	DefaultSecurityMonitor().LogRateLimitExceeded(ip, action, endpoint)
}

// LogAdminAction records an admin change on the process-wide monitor.
func LogAdminAction(userID uint, ip, action string, details map[string]interface{}) {
	DefaultSecurityMonitor().LogAdminAction(userID, ip, action, details)
}

// LogDataAccess records a bulk read on the process-wide monitor.
func LogDataAccess(userID uint, ip, resource string, count int) {
	DefaultSecurityMonitor().LogDataAccess(userID, ip, resource, count)
}

// LogSuspiciousInput records rejected input on the process-wide monitor.
func LogSuspiciousInput(ip, userAgent, field string, threats []ThreatCategory, score int) {
	DefaultSecurityMonitor().LogSuspiciousInput(ip, userAgent, field, threats, score)
}

// SetSecurityLoggerForTest sets a custom logger for testing purposes
func SetSecurityLoggerForTest(logger *log.Logger) {
	securityLogger = logger
}

// GetSecurityLoggerForTest returns the current security logger for testing purposes
func GetSecurityLoggerForTest() *log.Logger {
	return securityLogger
}
