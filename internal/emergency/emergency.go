// Package emergency implements the confirmation-gated escalation path.
// Escalation is always manual: the agent may recommend, never trigger.
package emergency

import (
	"context"
	"time"

	"github.com/meridian-care/platform/internal/audit"
	"github.com/meridian-care/platform/internal/shared/errors"
	"github.com/meridian-care/platform/internal/shared/metrics"
	"github.com/meridian-care/platform/internal/shared/types"
)

// Recommendation is advisory only. It performs no action and is always
// paired with a require-approval decision in the agent's decision log.
type Recommendation struct {
	Severity          string    `json:"severity"`
	Reason            string    `json:"reason"`
	RecommendedAction string    `json:"recommended_action"`
	Confidence        float64   `json:"confidence"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewRecommendation creates an advisory escalation recommendation.
func NewRecommendation(severity, reason string, confidence float64) Recommendation {
	return Recommendation{
		Severity:          severity,
		Reason:            reason,
		RecommendedAction: "call_911",
		Confidence:        confidence,
		CreatedAt:         time.Now().UTC(),
	}
}

// Event is a confirmed manual escalation.
type Event struct {
	EncounterID types.ID       `json:"encounter_id"`
	PatientID   string         `json:"patient_id"`
	InitiatedBy string         `json:"initiated_by"`
	Reason      string         `json:"reason"`
	Confirmed   bool           `json:"confirmed"`
	CreatedAt   time.Time      `json:"created_at"`
	Metadata    map[string]any `json:"metadata"`
}

// NewEvent creates a confirmed escalation event. Creation without
// confirmation is rejected with a permission error; there is no
// unconfirmed-to-logged transition.
func NewEvent(encounterID types.ID, patientID, initiatedBy, reason string, confirmed bool, metadata map[string]any) (*Event, error) {
	if !confirmed {
		return nil, errors.PermissionDenied("emergency calls require manual confirmation")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Event{
		EncounterID: encounterID,
		PatientID:   patientID,
		InitiatedBy: initiatedBy,
		Reason:      reason,
		Confirmed:   true,
		CreatedAt:   time.Now().UTC(),
		Metadata:    metadata,
	}, nil
}

// Manager records confirmed escalation events on the audit trail.
type Manager struct {
	sink audit.Sink
}

// NewManager creates an emergency manager writing to the given sink.
func NewManager(sink audit.Sink) *Manager {
	return &Manager{sink: sink}
}

// LogEvent appends exactly one audit event for a confirmed escalation.
func (m *Manager) LogEvent(ctx context.Context, event *Event) error {
	metadata := map[string]any{
		"patient_id": event.PatientID,
		"reason":     event.Reason,
		"confirmed":  event.Confirmed,
	}
	for k, v := range event.Metadata {
		metadata[k] = v
	}

	if err := m.sink.LogEvent(ctx, audit.NewEvent(
		event.InitiatedBy,
		audit.ActionEmergencyTriggered,
		event.EncounterID.String(),
		metadata,
	)); err != nil {
		return err
	}
	metrics.RecordEmergencyEvent()
	return nil
}
