package agent

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/meridian-care/platform/internal/audit"
	"github.com/meridian-care/platform/internal/clinical"
	"github.com/meridian-care/platform/internal/consent"
	"github.com/meridian-care/platform/internal/emergency"
	"github.com/meridian-care/platform/internal/privacy"
	"github.com/meridian-care/platform/internal/records"
	"github.com/meridian-care/platform/internal/shared/errors"
	"github.com/meridian-care/platform/internal/shared/metrics"
	"github.com/meridian-care/platform/internal/shared/types"
	"github.com/meridian-care/platform/internal/transcribe"
)

// Config assembles the orchestrator's collaborators. Nil fields fall
// back to in-process defaults so tests and local runs need no wiring.
type Config struct {
	AgentID         string
	RequireApproval bool

	Consents         *consent.Ledger
	AuditSink        audit.Sink
	Policy           *privacy.Policy
	Store            records.Store
	Transcriber      transcribe.SessionTranscriber
	AudioTranscriber transcribe.AudioTranscriber
	NLP              clinical.NLPService
	Guidelines       clinical.GuidelineService
}

// Orchestrator coordinates clinical encounters with human-in-the-loop
// safeguards: consent before anything, approval before recommendations
// act, confirmation before escalation.
type Orchestrator struct {
	agentID         string
	requireApproval bool

	state            *StateManager
	consents         *consent.Ledger
	auditSink        audit.Sink
	policy           *privacy.Policy
	store            records.Store
	transcriber      transcribe.SessionTranscriber
	audioTranscriber transcribe.AudioTranscriber
	nlp              clinical.NLPService
	guidelines       clinical.GuidelineService
	emergencies      *emergency.Manager

	agents []ClinicalAgent
}

// FinalizeResult is the consolidated outcome of a finalized encounter.
type FinalizeResult struct {
	Status          string                    `json:"status"`
	EncounterID     types.ID                  `json:"encounter_id"`
	SOAPNote        clinical.SOAPNote         `json:"soap_note"`
	Recommendations []clinical.Recommendation `json:"recommendations"`
	AgentTasks      map[string]map[string]any `json:"agent_tasks"`
	State           Summary                   `json:"state"`
}

// NewOrchestrator creates an orchestrator, filling unset collaborators
// with in-process defaults.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.AgentID == "" {
		cfg.AgentID = "care-agent-primary"
	}
	if cfg.Consents == nil {
		cfg.Consents = consent.NewLedger()
	}
	if cfg.AuditSink == nil {
		cfg.AuditSink = audit.NewMemorySink()
	}
	if cfg.Policy == nil {
		cfg.Policy = privacy.NewPolicy()
	}
	if cfg.Store == nil {
		cfg.Store = records.NewMemoryStore(cfg.Policy, nil)
	}
	if cfg.Transcriber == nil {
		cfg.Transcriber = transcribe.NewMemoryTranscriber()
	}
	if cfg.NLP == nil {
		cfg.NLP = clinical.NewLocalNLPService()
	}
	if cfg.Guidelines == nil {
		cfg.Guidelines = clinical.NewLocalGuidelineService()
	}

	return &Orchestrator{
		agentID:          cfg.AgentID,
		requireApproval:  cfg.RequireApproval,
		state:            NewStateManager(cfg.AgentID),
		consents:         cfg.Consents,
		auditSink:        cfg.AuditSink,
		policy:           cfg.Policy,
		store:            cfg.Store,
		transcriber:      cfg.Transcriber,
		audioTranscriber: cfg.AudioTranscriber,
		nlp:              cfg.NLP,
		guidelines:       cfg.Guidelines,
		emergencies:      emergency.NewManager(cfg.AuditSink),
		agents: []ClinicalAgent{
			NewTriageAgent(cfg.NLP),
			NewDiagnosisAgent(cfg.Guidelines),
			NewMonitoringAgent(cfg.Guidelines),
			NewFollowUpAgent(cfg.Guidelines),
			NewDocumentationAgent(cfg.NLP),
		},
	}
}

// StartEncounter records all three consent decisions, then either
// aborts on denial or opens a transcription session and returns the
// encounter context. Denied consent is still recorded for audit
// completeness before the permission error surfaces.
func (o *Orchestrator) StartEncounter(ctx context.Context, profile clinical.PatientProfile, clinicianID string, consentGranted bool) (*clinical.EncounterContext, error) {
	encounterID := types.NewID()
	o.state.SetStatus(StatusRunning)

	for _, consentType := range consent.RequiredTypes {
		o.consents.Record(profile.PatientID, encounterID.String(), consentType, consentGranted, clinicianID)
		metrics.RecordConsentDecision(string(consentType), consentGranted)
	}

	if !consentGranted {
		o.state.LogDecision(
			"consent_check",
			OutcomeAbort,
			"Consent not granted; aborting encounter",
			map[string]any{"patient_id": profile.PatientID},
		)
		return nil, errors.PermissionDenied("consent required for transcription and AI assistance")
	}

	o.logAudit(ctx, audit.NewEvent(
		clinicianID,
		audit.ActionEncounterStarted,
		encounterID.String(),
		map[string]any{"patient_id": profile.PatientID},
	))
	metrics.RecordEncounterStarted()

	o.transcriber.StartSession(encounterID.String())

	return &clinical.EncounterContext{
		EncounterID:    encounterID,
		PatientProfile: profile,
		ClinicianID:    clinicianID,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// IngestTranscriptChunk appends a transcript chunk and extracts
// observations from it. Blank chunks are silently skipped. Only the
// chunk length reaches the audit trail, never the content.
func (o *Orchestrator) IngestTranscriptChunk(ctx context.Context, encounter *clinical.EncounterContext, chunk string) error {
	if strings.TrimSpace(chunk) == "" {
		return nil
	}

	o.transcriber.IngestChunk(encounter.EncounterID.String(), chunk)
	encounter.Transcript = append(encounter.Transcript, chunk)

	extracted := o.nlp.ExtractObservations(chunk)
	encounter.Observations = append(encounter.Observations, extracted...)

	o.logAudit(ctx, audit.NewEvent(
		o.agentID,
		audit.ActionTranscriptIngested,
		encounter.EncounterID.String(),
		map[string]any{"chunk_length": len(chunk)},
	))
	metrics.RecordTranscriptChunk()

	return nil
}

// IngestAudioFromURI transcribes a recorded audio file and funnels the
// text through IngestTranscriptChunk.
func (o *Orchestrator) IngestAudioFromURI(ctx context.Context, encounter *clinical.EncounterContext, mediaURI, mediaFormat string) error {
	if o.audioTranscriber == nil {
		return errors.Configuration("audio transcription provider not configured")
	}

	jobID := "care-" + encounter.EncounterID.String()
	transcript, err := o.audioTranscriber.Transcribe(ctx, jobID, mediaURI, mediaFormat)
	if err != nil {
		return err
	}

	return o.IngestTranscriptChunk(ctx, encounter, transcript)
}

// FinalizeEncounter generates the note and recommendations, fans out to
// the specialist agents, runs the clinical_support action through the
// state machine, persists the encounter, and returns the consolidated
// result. The result status reflects the approval gate, never an
// executed treatment.
func (o *Orchestrator) FinalizeEncounter(ctx context.Context, encounter *clinical.EncounterContext) (*FinalizeResult, error) {
	o.state.SetStatus(StatusEvaluating)

	transcript := o.transcriber.Transcript(encounter.EncounterID.String())

	note := o.nlp.BuildSOAPNote(transcript, encounter.Observations, encounter.PatientProfile)
	encounter.SOAPNote = &note

	recommendations := o.guidelines.Recommendations(note, encounter.Observations, encounter.PatientProfile)
	encounter.Recommendations = recommendations

	agentTasks := o.runSpecialists(encounter)

	outcome := OutcomeProceed
	if o.requireApproval {
		outcome = OutcomeRequireApproval
	}
	o.state.LogDecision(
		"clinical_support",
		outcome,
		"Clinical recommendations generated and require clinician approval.",
		map[string]any{
			"recommendation_count": len(recommendations),
			"agent_tasks":          agentTasks,
		},
	)

	action := NewAction(
		"clinical_support",
		"Generate clinical note and recommendations",
		map[string]any{"encounter_id": encounter.EncounterID.String()},
		o.requireApproval,
		0,
	)
	if err := o.state.QueueAction(action); err != nil {
		o.state.SetStatus(StatusError)
		return nil, err
	}
	o.state.CompleteAction(map[string]any{"recommendations": len(recommendations)})
	o.state.SetStatus(StatusCompleted)

	if err := o.store.StoreEncounter(ctx, encounter); err != nil {
		o.state.SetStatus(StatusError)
		return nil, errors.Wrap(err, "failed to persist encounter")
	}

	o.logAudit(ctx, audit.NewEvent(
		o.agentID,
		audit.ActionEncounterFinalized,
		encounter.EncounterID.String(),
		map[string]any{"patient_id": encounter.PatientProfile.PatientID},
	))

	status := "completed"
	if o.requireApproval {
		status = "pending_approval"
	}
	metrics.RecordEncounterFinalized(status)

	return &FinalizeResult{
		Status:          status,
		EncounterID:     encounter.EncounterID,
		SOAPNote:        note,
		Recommendations: recommendations,
		AgentTasks:      agentTasks,
		State:           o.state.StateSummary(),
	}, nil
}

// runSpecialists fans the encounter out to every specialist agent.
func (o *Orchestrator) runSpecialists(encounter *clinical.EncounterContext) map[string]map[string]any {
	results := make(map[string]map[string]any, len(o.agents))
	for _, a := range o.agents {
		results[a.Name()] = a.Run(encounter)
	}
	return results
}

// RecommendEmergencyAction issues an advisory escalation recommendation
// and logs the require-approval decision. Nothing is called.
func (o *Orchestrator) RecommendEmergencyAction(encounter *clinical.EncounterContext, severity, reason string, confidence float64) emergency.Recommendation {
	recommendation := emergency.NewRecommendation(severity, reason, confidence)

	o.state.LogDecision(
		"emergency_recommendation",
		OutcomeRequireApproval,
		"Emergency recommendation issued; manual confirmation required.",
		map[string]any{
			"severity":   severity,
			"reason":     reason,
			"confidence": confidence,
		},
	)

	return recommendation
}

// TriggerEmergencyCall records a confirmed manual escalation. Without
// confirmation it fails with a permission error and leaves no event and
// no audit entry. On success exactly one audit event is appended.
func (o *Orchestrator) TriggerEmergencyCall(ctx context.Context, encounter *clinical.EncounterContext, initiatedBy, reason string, confirmed bool, metadata map[string]any) (*emergency.Event, error) {
	event, err := emergency.NewEvent(
		encounter.EncounterID,
		encounter.PatientProfile.PatientID,
		initiatedBy,
		reason,
		confirmed,
		metadata,
	)
	if err != nil {
		return nil, err
	}

	if recorder, ok := o.store.(records.EmergencyRecorder); ok {
		if err := recorder.RecordEmergency(ctx, event); err != nil {
			return nil, errors.Wrap(err, "failed to record emergency event")
		}
	}

	if err := o.emergencies.LogEvent(ctx, event); err != nil {
		return nil, errors.Wrap(err, "failed to audit emergency event")
	}

	return event, nil
}

// GetPatientView returns the view of a patient's record filtered for
// the role at the requested access level.
func (o *Orchestrator) GetPatientView(ctx context.Context, patientID string, role privacy.Role, level privacy.AccessLevel) (*records.PatientView, error) {
	return o.store.GetPatientView(ctx, patientID, role, level)
}

// Consents returns the consent records for an encounter.
func (o *Orchestrator) Consents(encounterID types.ID) []consent.Record {
	return o.consents.RecordsFor(encounterID.String())
}

// StateSummary returns the current agent state snapshot.
func (o *Orchestrator) StateSummary() Summary {
	return o.state.StateSummary()
}

// ExportHistory exports the full decision log and action history.
func (o *Orchestrator) ExportHistory() History {
	return o.state.ExportHistory()
}

// logAudit writes to the audit sink without gating the workflow.
func (o *Orchestrator) logAudit(ctx context.Context, event audit.Event) {
	if err := o.auditSink.LogEvent(ctx, event); err != nil {
		log.Printf("audit: failed to log %s for %s: %v", event.Action, event.ResourceID, err)
	}
}
