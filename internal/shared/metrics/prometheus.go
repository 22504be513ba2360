package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Workflow metrics
	encountersStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "encounters_started_total",
			Help: "Total number of encounters started",
		},
	)

	encountersFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encounters_finalized_total",
			Help: "Total number of encounters finalized",
		},
		[]string{"status"},
	)

	consentDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_decisions_total",
			Help: "Total number of consent records written",
		},
		[]string{"consent_type", "granted"},
	)

	transcriptChunksIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcript_chunks_ingested_total",
			Help: "Total number of non-empty transcript chunks ingested",
		},
	)

	agentDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_decisions_total",
			Help: "Total number of agent decisions logged",
		},
		[]string{"decision_type", "outcome"},
	)

	agentActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_actions_total",
			Help: "Total number of agent actions reaching a terminal state",
		},
		[]string{"action_type", "status"},
	)

	emergencyEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emergency_events_total",
			Help: "Total number of confirmed emergency escalations",
		},
	)

	auditEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Total number of audit events appended",
		},
		[]string{"action"},
	)
)

// RecordEncounterStarted increments the encounter start counter
func RecordEncounterStarted() {
	encountersStarted.Inc()
}

// RecordEncounterFinalized increments the finalize counter by result status
func RecordEncounterFinalized(status string) {
	encountersFinalized.WithLabelValues(status).Inc()
}

// RecordConsentDecision increments the consent counter
func RecordConsentDecision(consentType string, granted bool) {
	consentDecisions.WithLabelValues(consentType, strconv.FormatBool(granted)).Inc()
}

// RecordTranscriptChunk increments the ingest counter
func RecordTranscriptChunk() {
	transcriptChunksIngested.Inc()
}

// RecordAgentDecision increments the decision counter
func RecordAgentDecision(decisionType, outcome string) {
	agentDecisions.WithLabelValues(decisionType, outcome).Inc()
}

// RecordAgentAction increments the action counter by terminal status
func RecordAgentAction(actionType, status string) {
	agentActions.WithLabelValues(actionType, status).Inc()
}

// RecordEmergencyEvent increments the emergency counter
func RecordEmergencyEvent() {
	emergencyEvents.Inc()
}

// RecordAuditEvent increments the audit counter
func RecordAuditEvent(action string) {
	auditEventsTotal.WithLabelValues(action).Inc()
}

// Middleware instruments HTTP handlers with request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// Handler returns the prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
