// Package audit provides the append-only compliance event trail.
// Logging is a side channel: it never gates or blocks the clinical
// workflow that produced the event.
package audit

import (
	"time"
)

// Event is a single audit trail entry. The JSON field set is a stable
// wire format consumed by downstream compliance tooling; do not rename
// fields.
type Event struct {
	ActorID       string         `json:"actor_id"`
	Action        string         `json:"action"`
	ResourceID    string         `json:"resource_id"`
	Metadata      map[string]any `json:"metadata"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// NewEvent creates an audit event stamped with the current UTC time.
func NewEvent(actorID, action, resourceID string, metadata map[string]any) Event {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Event{
		ActorID:    actorID,
		Action:     action,
		ResourceID: resourceID,
		Metadata:   metadata,
		Timestamp:  time.Now().UTC(),
	}
}

// WithCorrelation sets the correlation ID for request tracing.
func (e Event) WithCorrelation(correlationID string) Event {
	e.CorrelationID = correlationID
	return e
}

// Workflow audit actions.
const (
	ActionEncounterStarted   = "encounter_started"
	ActionTranscriptIngested = "transcript_ingested"
	ActionEncounterFinalized = "encounter_finalized"
	ActionEmergencyTriggered = "emergency_triggered"
)
