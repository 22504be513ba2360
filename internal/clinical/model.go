// Package clinical holds the clinical data model and the local NLP and
// guideline collaborators that produce notes and recommendations.
package clinical

import (
	"time"

	"github.com/meridian-care/platform/internal/shared/types"
)

// PatientProfile is the demographic and history snapshot provided by the
// clinician at encounter start.
type PatientProfile struct {
	PatientID   string         `json:"patient_id"`
	Name        string         `json:"name,omitempty"`
	DOB         string         `json:"dob,omitempty"`
	Sex         string         `json:"sex,omitempty"`
	Conditions  []string       `json:"conditions,omitempty"`
	Medications []string       `json:"medications,omitempty"`
	Allergies   []string       `json:"allergies,omitempty"`
	Insurance   map[string]any `json:"insurance,omitempty"`
}

// Observation is a discrete extracted clinical fact.
type Observation struct {
	Category   string    `json:"category"`
	Value      string    `json:"value"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Observation categories.
const (
	CategorySymptom = "symptom"
	CategoryHistory = "history"
)

// SOAPNote is a structured clinical note.
type SOAPNote struct {
	Subjective  []string  `json:"subjective"`
	Objective   []string  `json:"objective"`
	Assessment  []string  `json:"assessment"`
	Plan        []string  `json:"plan"`
	History     []string  `json:"history"`
	Symptoms    []string  `json:"symptoms"`
	Medications []string  `json:"medications"`
	Allergies   []string  `json:"allergies"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Recommendation is a guideline-derived suggestion. Recommendations are
// advisory: nothing acts on one without clinician approval.
type Recommendation struct {
	Title            string   `json:"title"`
	Rationale        string   `json:"rationale"`
	Evidence         []string `json:"evidence"`
	Confidence       float64  `json:"confidence"`
	RequiresApproval bool     `json:"requires_approval"`
	RiskLevel        string   `json:"risk_level"`
}

// EncounterContext is the working state of one clinical visit, from
// consent through finalized note. It is owned by the orchestration call
// that created it until finalize persists it.
type EncounterContext struct {
	EncounterID     types.ID         `json:"encounter_id"`
	PatientProfile  PatientProfile   `json:"patient_profile"`
	ClinicianID     string           `json:"clinician_id"`
	Transcript      []string         `json:"transcript"`
	Observations    []Observation    `json:"observations"`
	SOAPNote        *SOAPNote        `json:"soap_note,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NewEncounterContext creates an encounter context with a fresh ID.
func NewEncounterContext(profile PatientProfile, clinicianID string) *EncounterContext {
	return &EncounterContext{
		EncounterID:    types.NewID(),
		PatientProfile: profile,
		ClinicianID:    clinicianID,
		CreatedAt:      time.Now().UTC(),
	}
}
