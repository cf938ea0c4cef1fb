package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realty_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Lead metrics
	LeadsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_leads_created_total",
			Help: "Total number of leads captured",
		},
		[]string{"source"},
	)

	// Assistant metrics
	ChatMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_chat_messages_total",
			Help: "Total number of chat messages processed by step and outcome (advanced or reprompt)",
		},
		[]string{"step", "outcome"},
	)

	ChatConversationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realty_chat_conversations_active",
			Help: "Number of conversations held in memory",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"action"},
	)

	// Security metrics
	SecurityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_security_events_total",
			Help: "Total number of security events recorded",
		},
		[]string{"type", "severity"},
	)

	RejectedInputs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_rejected_inputs_total",
			Help: "Total number of inputs rejected by the validator",
		},
		[]string{"threat"},
	)
)
