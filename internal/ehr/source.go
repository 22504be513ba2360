// Package ehr bridges the hospital information system into patient
// views. Lab reports and appointments live in the HIS; this package
// reads them, it never writes.
package ehr

import (
	"context"
	"sync"
	"time"
)

// LabReport is a single laboratory result fetched from the HIS.
type LabReport struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	TestName       string    `json:"test_name"`
	Value          string    `json:"value"`
	Unit           string    `json:"unit,omitempty"`
	ReferenceRange string    `json:"reference_range,omitempty"`
	CollectedAt    time.Time `json:"collected_at"`
	ReportedAt     time.Time `json:"reported_at"`
}

// Appointment is a scheduled visit fetched from the HIS.
type Appointment struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	Department  string    `json:"department"`
	Clinician   string    `json:"clinician,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
}

// Source provides read access to HIS records for a patient.
type Source interface {
	LabReports(ctx context.Context, patientID string) ([]LabReport, error)
	Appointments(ctx context.Context, patientID string) ([]Appointment, error)
}

// MemorySource is the in-process source, for tests and local runs.
type MemorySource struct {
	mu           sync.RWMutex
	labReports   map[string][]LabReport
	appointments map[string][]Appointment
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		labReports:   make(map[string][]LabReport),
		appointments: make(map[string][]Appointment),
	}
}

// AddLabReport stores a lab report for a patient.
func (s *MemorySource) AddLabReport(report LabReport) {
	s.mu.Lock()
	s.labReports[report.PatientID] = append(s.labReports[report.PatientID], report)
	s.mu.Unlock()
}

// AddAppointment stores an appointment for a patient.
func (s *MemorySource) AddAppointment(appointment Appointment) {
	s.mu.Lock()
	s.appointments[appointment.PatientID] = append(s.appointments[appointment.PatientID], appointment)
	s.mu.Unlock()
}

// LabReports returns all lab reports for a patient.
func (s *MemorySource) LabReports(_ context.Context, patientID string) ([]LabReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LabReport, len(s.labReports[patientID]))
	copy(out, s.labReports[patientID])
	return out, nil
}

// Appointments returns all appointments for a patient.
func (s *MemorySource) Appointments(_ context.Context, patientID string) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Appointment, len(s.appointments[patientID]))
	copy(out, s.appointments[patientID])
	return out, nil
}

var _ Source = (*MemorySource)(nil)
