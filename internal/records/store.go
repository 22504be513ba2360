package records

import (
	"context"
	"sync"

	"github.com/meridian-care/platform/internal/clinical"
	"github.com/meridian-care/platform/internal/ehr"
	"github.com/meridian-care/platform/internal/emergency"
	"github.com/meridian-care/platform/internal/privacy"
)

// Store persists finalized encounters and serves role-filtered views.
type Store interface {
	StoreEncounter(ctx context.Context, encounter *clinical.EncounterContext) error
	GetPatientView(ctx context.Context, patientID string, role privacy.Role, level privacy.AccessLevel) (*PatientView, error)
}

// EmergencyRecorder is an optional store capability. Stores that
// implement it keep confirmed escalations alongside the record so they
// surface in patient views.
type EmergencyRecorder interface {
	RecordEmergency(ctx context.Context, event *emergency.Event) error
}

// MemoryStore is the in-process record store.
type MemoryStore struct {
	mu          sync.RWMutex
	policy      *privacy.Policy
	encounters  map[string][]*clinical.EncounterContext
	emergencies map[string][]emergency.Event
	his         ehr.Source
}

// NewMemoryStore creates an empty store. The HIS source is optional;
// without one, lab reports and appointments stay empty.
func NewMemoryStore(policy *privacy.Policy, his ehr.Source) *MemoryStore {
	return &MemoryStore{
		policy:      policy,
		encounters:  make(map[string][]*clinical.EncounterContext),
		emergencies: make(map[string][]emergency.Event),
		his:         his,
	}
}

// StoreEncounter appends a finalized encounter to the patient's record.
func (s *MemoryStore) StoreEncounter(_ context.Context, encounter *clinical.EncounterContext) error {
	s.mu.Lock()
	patientID := encounter.PatientProfile.PatientID
	s.encounters[patientID] = append(s.encounters[patientID], encounter)
	s.mu.Unlock()
	return nil
}

// RecordEmergency appends a confirmed escalation to the patient's record.
func (s *MemoryStore) RecordEmergency(_ context.Context, event *emergency.Event) error {
	s.mu.Lock()
	s.emergencies[event.PatientID] = append(s.emergencies[event.PatientID], *event)
	s.mu.Unlock()
	return nil
}

// GetPatientView assembles the patient record and filters it for the
// role at the requested access level. An unknown patient yields an
// empty view, not an error.
func (s *MemoryStore) GetPatientView(ctx context.Context, patientID string, role privacy.Role, level privacy.AccessLevel) (*PatientView, error) {
	s.mu.RLock()
	record := &patientRecord{patientID: patientID}

	encounters := s.encounters[patientID]
	if len(encounters) > 0 {
		latest := encounters[len(encounters)-1]
		record.medications = latest.PatientProfile.Medications
		record.insurance = latest.PatientProfile.Insurance
	}
	for _, enc := range encounters {
		record.transcripts = append(record.transcripts, enc.Transcript...)
		if enc.SOAPNote != nil {
			record.clinicalNotes = append(record.clinicalNotes, *enc.SOAPNote)
		}
		record.recommendations = append(record.recommendations, enc.Recommendations...)
	}
	record.emergencyEvents = append(record.emergencyEvents, s.emergencies[patientID]...)
	s.mu.RUnlock()

	if s.his != nil {
		if reports, err := s.his.LabReports(ctx, patientID); err == nil {
			record.labReports = reports
		}
		if appointments, err := s.his.Appointments(ctx, patientID); err == nil {
			record.appointments = appointments
		}
	}

	return record.project(s.policy, role, level), nil
}

var (
	_ Store             = (*MemoryStore)(nil)
	_ EmergencyRecorder = (*MemoryStore)(nil)
)
