package records

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-care/platform/internal/clinical"
	"github.com/meridian-care/platform/internal/ehr"
	"github.com/meridian-care/platform/internal/emergency"
	"github.com/meridian-care/platform/internal/privacy"
	"github.com/meridian-care/platform/internal/shared/errors"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	policy *privacy.Policy
	his    ehr.Source
}

// NewPostgresStore creates a PostgreSQL-backed record store. The HIS
// source is optional.
func NewPostgresStore(pool *pgxpool.Pool, policy *privacy.Policy, his ehr.Source) *PostgresStore {
	return &PostgresStore{pool: pool, policy: policy, his: his}
}

// StoreEncounter saves a finalized encounter.
func (s *PostgresStore) StoreEncounter(ctx context.Context, encounter *clinical.EncounterContext) error {
	profileJSON, err := json.Marshal(encounter.PatientProfile)
	if err != nil {
		return errors.Wrap(err, "failed to marshal patient profile")
	}
	transcriptJSON, err := json.Marshal(encounter.Transcript)
	if err != nil {
		return errors.Wrap(err, "failed to marshal transcript")
	}
	observationsJSON, err := json.Marshal(encounter.Observations)
	if err != nil {
		return errors.Wrap(err, "failed to marshal observations")
	}
	var noteJSON []byte
	if encounter.SOAPNote != nil {
		noteJSON, err = json.Marshal(encounter.SOAPNote)
		if err != nil {
			return errors.Wrap(err, "failed to marshal clinical note")
		}
	}
	recommendationsJSON, err := json.Marshal(encounter.Recommendations)
	if err != nil {
		return errors.Wrap(err, "failed to marshal recommendations")
	}

	query := `
		INSERT INTO clinical.encounters (
			id, patient_id, clinician_id,
			profile, transcript, observations, soap_note, recommendations,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.pool.Exec(ctx, query,
		encounter.EncounterID, encounter.PatientProfile.PatientID, encounter.ClinicianID,
		profileJSON, transcriptJSON, observationsJSON, noteJSON, recommendationsJSON,
		encounter.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save encounter")
	}

	return nil
}

// RecordEmergency saves a confirmed escalation event.
func (s *PostgresStore) RecordEmergency(ctx context.Context, event *emergency.Event) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return errors.Wrap(err, "failed to marshal emergency metadata")
	}

	query := `
		INSERT INTO clinical.emergency_events (
			encounter_id, patient_id, initiated_by, reason, confirmed, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.pool.Exec(ctx, query,
		event.EncounterID, event.PatientID, event.InitiatedBy,
		event.Reason, event.Confirmed, metadataJSON, event.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save emergency event")
	}

	return nil
}

// GetPatientView assembles and filters the patient record.
func (s *PostgresStore) GetPatientView(ctx context.Context, patientID string, role privacy.Role, level privacy.AccessLevel) (*PatientView, error) {
	record := &patientRecord{patientID: patientID}

	query := `
		SELECT profile, transcript, soap_note, recommendations
		FROM clinical.encounters
		WHERE patient_id = $1
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load encounters")
	}
	defer rows.Close()

	var latestProfile clinical.PatientProfile
	for rows.Next() {
		var profileJSON, transcriptJSON, noteJSON, recommendationsJSON []byte
		if err := rows.Scan(&profileJSON, &transcriptJSON, &noteJSON, &recommendationsJSON); err != nil {
			return nil, errors.Wrap(err, "failed to scan encounter")
		}

		if err := json.Unmarshal(profileJSON, &latestProfile); err != nil {
			return nil, errors.Wrap(err, "corrupt patient profile")
		}

		var transcript []string
		if err := json.Unmarshal(transcriptJSON, &transcript); err == nil {
			record.transcripts = append(record.transcripts, transcript...)
		}

		if len(noteJSON) > 0 {
			var note clinical.SOAPNote
			if err := json.Unmarshal(noteJSON, &note); err == nil {
				record.clinicalNotes = append(record.clinicalNotes, note)
			}
		}

		var recommendations []clinical.Recommendation
		if err := json.Unmarshal(recommendationsJSON, &recommendations); err == nil {
			record.recommendations = append(record.recommendations, recommendations...)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read encounters")
	}

	record.medications = latestProfile.Medications
	record.insurance = latestProfile.Insurance

	events, err := s.loadEmergencies(ctx, patientID)
	if err != nil {
		return nil, err
	}
	record.emergencyEvents = events

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

func (s *PostgresStore) loadEmergencies(ctx context.Context, patientID string) ([]emergency.Event, error) {
	query := `
		SELECT encounter_id, patient_id, initiated_by, reason, confirmed, metadata, created_at
		FROM clinical.emergency_events
		WHERE patient_id = $1
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load emergency events")
	}
	defer rows.Close()

	var events []emergency.Event
	for rows.Next() {
		var e emergency.Event
		var metadataJSON []byte

		err := rows.Scan(
			&e.EncounterID, &e.PatientID, &e.InitiatedBy,
			&e.Reason, &e.Confirmed, &metadataJSON, &e.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan emergency event")
		}

		if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
			e.Metadata = map[string]any{}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

var (
	_ Store             = (*PostgresStore)(nil)
	_ EmergencyRecorder = (*PostgresStore)(nil)
)
