// Package encounter exposes the clinical workflow over HTTP.
package encounter

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-care/platform/internal/agent"
	"github.com/meridian-care/platform/internal/clinical"
	"github.com/meridian-care/platform/internal/privacy"
	"github.com/meridian-care/platform/internal/shared/auth"
	"github.com/meridian-care/platform/internal/shared/errors"
	"github.com/meridian-care/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the encounter workflow.
type Handler struct {
	orchestrator *agent.Orchestrator

	mu     sync.RWMutex
	active map[types.ID]*clinical.EncounterContext
}

// NewHandler creates an encounter handler.
func NewHandler(orchestrator *agent.Orchestrator) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		active:       make(map[types.ID]*clinical.EncounterContext),
	}
}

// Routes registers the encounter routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/encounters", func(r chi.Router) {
		r.Post("/", h.StartEncounter)

		r.Route("/{encounterID}", func(r chi.Router) {
			r.Post("/transcript", h.IngestTranscript)
			r.Post("/audio", h.IngestAudio)
			r.Post("/finalize", h.FinalizeEncounter)
			r.Post("/emergency", h.TriggerEmergency)
			r.Post("/emergency-recommendation", h.RecommendEmergency)
			r.Get("/consents", h.GetConsents)
		})
	})

	r.Get("/patients/{patientID}/view", h.GetPatientView)

	r.Route("/agent", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Get("/history", h.GetHistory)
	})

	return r
}

// StartEncounterRequest opens a new encounter.
type StartEncounterRequest struct {
	PatientProfile clinical.PatientProfile `json:"patient_profile"`
	ClinicianID    string                  `json:"clinician_id"`
	ConsentGranted bool                    `json:"consent_granted"`
}

// StartEncounter records consent and opens an encounter session.
func (h *Handler) StartEncounter(w http.ResponseWriter, r *http.Request) {
	var req StartEncounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.PatientProfile.PatientID == "" || req.ClinicianID == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"patient_profile.patient_id": "patient ID is required",
			"clinician_id":               "clinician ID is required",
		}))
		return
	}

	encounter, err := h.orchestrator.StartEncounter(r.Context(), req.PatientProfile, req.ClinicianID, req.ConsentGranted)
	if err != nil {
		writeError(w, err)
		return
	}

	h.mu.Lock()
	h.active[encounter.EncounterID] = encounter
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, encounter)
}

// IngestTranscriptRequest carries one transcript chunk.
type IngestTranscriptRequest struct {
	Chunk string `json:"chunk"`
}

// IngestTranscript appends a transcript chunk to an active encounter.
func (h *Handler) IngestTranscript(w http.ResponseWriter, r *http.Request) {
	encounter, err := h.lookupEncounter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req IngestTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := h.orchestrator.IngestTranscriptChunk(r.Context(), encounter, req.Chunk); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"encounter_id":     encounter.EncounterID,
		"transcript_lines": len(encounter.Transcript),
		"observations":     len(encounter.Observations),
	})
}

// IngestAudioRequest points at a recorded audio file.
type IngestAudioRequest struct {
	MediaURI    string `json:"media_uri"`
	MediaFormat string `json:"media_format"`
}

// IngestAudio transcribes a recorded audio file into the encounter.
func (h *Handler) IngestAudio(w http.ResponseWriter, r *http.Request) {
	encounter, err := h.lookupEncounter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req IngestAudioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.MediaURI == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"media_uri": "media URI is required",
		}))
		return
	}
	if req.MediaFormat == "" {
		req.MediaFormat = "wav"
	}

	if err := h.orchestrator.IngestAudioFromURI(r.Context(), encounter, req.MediaURI, req.MediaFormat); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"encounter_id":     encounter.EncounterID,
		"transcript_lines": len(encounter.Transcript),
	})
}

// FinalizeEncounter generates the note and recommendations and closes
// the active session.
func (h *Handler) FinalizeEncounter(w http.ResponseWriter, r *http.Request) {
	encounter, err := h.lookupEncounter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.orchestrator.FinalizeEncounter(r.Context(), encounter)
	if err != nil {
		writeError(w, err)
		return
	}

	h.mu.Lock()
	delete(h.active, encounter.EncounterID)
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, result)
}

// TriggerEmergencyRequest records a confirmed manual escalation.
type TriggerEmergencyRequest struct {
	InitiatedBy string         `json:"initiated_by"`
	Reason      string         `json:"reason"`
	Confirmed   bool           `json:"confirmed"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TriggerEmergency records a confirmed escalation for an encounter.
func (h *Handler) TriggerEmergency(w http.ResponseWriter, r *http.Request) {
	encounter, err := h.lookupEncounter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req TriggerEmergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	event, err := h.orchestrator.TriggerEmergencyCall(r.Context(), encounter, req.InitiatedBy, req.Reason, req.Confirmed, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// RecommendEmergencyRequest asks for an advisory escalation.
type RecommendEmergencyRequest struct {
	Severity   string  `json:"severity"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// RecommendEmergency issues an advisory escalation recommendation.
func (h *Handler) RecommendEmergency(w http.ResponseWriter, r *http.Request) {
	encounter, err := h.lookupEncounter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req RecommendEmergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Confidence == 0 {
		req.Confidence = 0.6
	}

	recommendation := h.orchestrator.RecommendEmergencyAction(encounter, req.Severity, req.Reason, req.Confidence)
	writeJSON(w, http.StatusOK, recommendation)
}

// GetConsents lists the consent records for an encounter.
func (h *Handler) GetConsents(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "encounterID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid encounter ID"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"encounter_id": id,
		"consents":     h.orchestrator.Consents(id),
	})
}

// GetPatientView serves the role-filtered patient record. The role
// comes from the authenticated user when present; unauthenticated
// requests are served the patient projection.
func (h *Handler) GetPatientView(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")

	role := privacy.RolePatient
	if user := auth.GetUser(r.Context()); user != nil {
		role = user.Role
	}

	view, err := h.orchestrator.GetPatientView(r.Context(), patientID, role, privacy.AccessRead)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetState returns the agent state summary.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orchestrator.StateSummary())
}

// GetHistory returns the full decision log and action history.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orchestrator.ExportHistory())
}

func (h *Handler) lookupEncounter(r *http.Request) (*clinical.EncounterContext, error) {
	id, err := types.ParseID(chi.URLParam(r, "encounterID"))
	if err != nil {
		return nil, errors.BadRequest("invalid encounter ID")
	}

	h.mu.RLock()
	encounter, ok := h.active[id]
	h.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("encounter", id.String())
	}
	return encounter, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
