// Package records persists finalized encounters and serves role-scoped
// patient views. A view is a projection: fields the caller's role may
// not read come back empty, never as an error.
package records

import (
	"github.com/meridian-care/platform/internal/clinical"
	"github.com/meridian-care/platform/internal/ehr"
	"github.com/meridian-care/platform/internal/emergency"
	"github.com/meridian-care/platform/internal/privacy"
)

// PatientView is the role-filtered projection of a patient's record.
type PatientView struct {
	PatientID       string                    `json:"patient_id"`
	LabReports      []ehr.LabReport           `json:"lab_reports,omitempty"`
	Medications     []string                  `json:"medications,omitempty"`
	Appointments    []ehr.Appointment         `json:"appointments,omitempty"`
	Insurance       map[string]any            `json:"insurance,omitempty"`
	EmergencyEvents []emergency.Event         `json:"emergency_events,omitempty"`
	Transcripts     []string                  `json:"transcripts,omitempty"`
	ClinicalNotes   []clinical.SOAPNote       `json:"clinical_notes,omitempty"`
	Recommendations []clinical.Recommendation `json:"recommendations,omitempty"`
}

// patientRecord is the unfiltered material a store assembles before the
// privacy projection runs.
type patientRecord struct {
	patientID       string
	labReports      []ehr.LabReport
	medications     []string
	appointments    []ehr.Appointment
	insurance       map[string]any
	emergencyEvents []emergency.Event
	transcripts     []string
	clinicalNotes   []clinical.SOAPNote
	recommendations []clinical.Recommendation
}

// project filters the record down to what the role may access at the
// requested level. Denied fields stay zero; the projection itself
// cannot fail.
func (r *patientRecord) project(policy *privacy.Policy, role privacy.Role, level privacy.AccessLevel) *PatientView {
	view := &PatientView{PatientID: r.patientID}

	if policy.CanAccess(role, privacy.ResourceLabReports, level) {
		view.LabReports = r.labReports
	}
	if policy.CanAccess(role, privacy.ResourceMedications, level) {
		view.Medications = r.medications
	}
	if policy.CanAccess(role, privacy.ResourceAppointments, level) {
		view.Appointments = r.appointments
	}
	if policy.CanAccess(role, privacy.ResourceInsurance, level) {
		view.Insurance = r.insurance
	}
	if policy.CanAccess(role, privacy.ResourceEmergencyEvents, level) {
		view.EmergencyEvents = r.emergencyEvents
	}
	if policy.CanAccess(role, privacy.ResourceTranscripts, level) {
		view.Transcripts = r.transcripts
	}
	if policy.CanAccess(role, privacy.ResourceClinicalNotes, level) {
		view.ClinicalNotes = r.clinicalNotes
	}
	if policy.CanAccess(role, privacy.ResourceRecommendations, level) {
		view.Recommendations = r.recommendations
	}

	return view
}
