// Package consent manages per-encounter consent records.
package consent

import (
	"sync"
	"time"
)

// Type identifies what the patient is consenting to.
type Type string

const (
	TypeAudioRecording Type = "audio_recording"
	TypeTranscription  Type = "transcription"
	TypeAIAssist       Type = "ai_assist"
)

// RequiredTypes lists the consent types every encounter must record
// before the workflow may start.
var RequiredTypes = []Type{TypeAudioRecording, TypeTranscription, TypeAIAssist}

// Record is an immutable consent decision. Denied decisions are recorded
// alongside granted ones for audit completeness.
type Record struct {
	PatientID   string    `json:"patient_id"`
	EncounterID string    `json:"encounter_id"`
	ConsentType Type      `json:"consent_type"`
	Granted     bool      `json:"granted"`
	Actor       string    `json:"actor"`
	Timestamp   time.Time `json:"timestamp"`
}

// Ledger is an append-only consent store scoped by encounter.
// There is no revocation operation: HasConsent is a monotonic OR over
// history, so a later denial does not retract an earlier grant.
type Ledger struct {
	mu      sync.RWMutex
	records map[string][]Record
}

// NewLedger creates an empty consent ledger.
func NewLedger() *Ledger {
	return &Ledger{records: make(map[string][]Record)}
}

// Record appends a consent decision. It always succeeds.
func (l *Ledger) Record(patientID, encounterID string, consentType Type, granted bool, actor string) Record {
	record := Record{
		PatientID:   patientID,
		EncounterID: encounterID,
		ConsentType: consentType,
		Granted:     granted,
		Actor:       actor,
		Timestamp:   time.Now().UTC(),
	}

	l.mu.Lock()
	l.records[encounterID] = append(l.records[encounterID], record)
	l.mu.Unlock()

	return record
}

// HasConsent reports whether at least one granted record exists for the
// encounter and consent type.
func (l *Ledger) HasConsent(encounterID string, consentType Type) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, record := range l.records[encounterID] {
		if record.ConsentType == consentType && record.Granted {
			return true
		}
	}
	return false
}

// RecordsForPatient returns every consent record for a patient across
// encounters, in append order per encounter.
func (l *Ledger) RecordsForPatient(patientID string) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Record
	for _, records := range l.records {
		for _, record := range records {
			if record.PatientID == patientID {
				out = append(out, record)
			}
		}
	}
	return out
}

// RecordsFor returns a copy of all consent records for an encounter in
// append order.
func (l *Ledger) RecordsFor(encounterID string) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := l.records[encounterID]
	out := make([]Record, len(records))
	copy(out, records)
	return out
}
