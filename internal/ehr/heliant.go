package ehr

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver

	"github.com/meridian-care/platform/internal/shared/config"
	"github.com/meridian-care/platform/internal/shared/errors"
)

// HeliantSource reads lab reports and appointments from a Heliant-style
// hospital information system over SQL Server.
type HeliantSource struct {
	db     *sql.DB
	config HeliantConfig
}

// HeliantConfig holds HIS connection and table settings.
type HeliantConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	LabResultTable   string
	AppointmentTable string
}

// DefaultHeliantConfig returns the standard table layout.
func DefaultHeliantConfig(cfg config.EHRConfig) HeliantConfig {
	return HeliantConfig{
		Host:             cfg.Host,
		Port:             cfg.Port,
		User:             cfg.User,
		Password:         cfg.Password,
		Database:         cfg.Database,
		SSLMode:          cfg.SSLMode,
		LabResultTable:   "dbo.LabResults",
		AppointmentTable: "dbo.Appointments",
	}
}

// NewHeliantSource connects to the HIS and verifies the connection.
func NewHeliantSource(ctx context.Context, cfg HeliantConfig) (*HeliantSource, error) {
	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.User,
		cfg.Password,
	)
	if cfg.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open HIS database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping HIS database")
	}

	return &HeliantSource{db: db, config: cfg}, nil
}

// Close closes the HIS connection.
func (s *HeliantSource) Close() error {
	return s.db.Close()
}

// Health checks HIS connectivity.
func (s *HeliantSource) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LabReports fetches lab results for a patient, newest first.
func (s *HeliantSource) LabReports(ctx context.Context, patientID string) ([]LabReport, error) {
	query := fmt.Sprintf(`
		SELECT
			LabResultID,
			PatientID,
			TestName,
			Value,
			Unit,
			ReferenceRange,
			CollectedAt,
			ReportedAt
		FROM %s
		WHERE PatientID = @patientID
		ORDER BY CollectedAt DESC
	`, s.config.LabResultTable)

	rows, err := s.db.QueryContext(ctx, query, sql.Named("patientID", patientID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query lab results")
	}
	defer rows.Close()

	var reports []LabReport
	for rows.Next() {
		var r LabReport
		var unit, refRange sql.NullString

		err := rows.Scan(
			&r.ID,
			&r.PatientID,
			&r.TestName,
			&r.Value,
			&unit,
			&refRange,
			&r.CollectedAt,
			&r.ReportedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan lab result")
		}

		if unit.Valid {
			r.Unit = unit.String
		}
		if refRange.Valid {
			r.ReferenceRange = refRange.String
		}

		reports = append(reports, r)
	}

	return reports, rows.Err()
}

// Appointments fetches scheduled visits for a patient, soonest first.
func (s *HeliantSource) Appointments(ctx context.Context, patientID string) ([]Appointment, error) {
	query := fmt.Sprintf(`
		SELECT
			AppointmentID,
			PatientID,
			Department,
			Clinician,
			ScheduledAt,
			Status
		FROM %s
		WHERE PatientID = @patientID
		ORDER BY ScheduledAt ASC
	`, s.config.AppointmentTable)

	rows, err := s.db.QueryContext(ctx, query, sql.Named("patientID", patientID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query appointments")
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		var a Appointment
		var clinician sql.NullString

		err := rows.Scan(
			&a.ID,
			&a.PatientID,
			&a.Department,
			&clinician,
			&a.ScheduledAt,
			&a.Status,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan appointment")
		}

		if clinician.Valid {
			a.Clinician = clinician.String
		}

		appointments = append(appointments, a)
	}

	return appointments, rows.Err()
}

var _ Source = (*HeliantSource)(nil)
