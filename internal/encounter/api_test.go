package encounter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meridian-care/platform/internal/agent"
	"github.com/meridian-care/platform/internal/audit"
	"github.com/meridian-care/platform/internal/clinical"
)

func profileFixture() clinical.PatientProfile {
	return clinical.PatientProfile{
		PatientID:   "p1",
		Medications: []string{"lisinopril"},
	}
}

func newTestHandler() (*Handler, *audit.MemorySink) {
	sink := audit.NewMemorySink()
	orchestrator := agent.NewOrchestrator(agent.Config{
		AgentID:         "agent-test",
		RequireApproval: true,
		AuditSink:       sink,
	})
	return NewHandler(orchestrator), sink
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func startEncounter(t *testing.T, handler http.Handler) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/encounters", StartEncounterRequest{
		PatientProfile: profileFixture(),
		ClinicianID:    "dr-1",
		ConsentGranted: true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		EncounterID string `json:"encounter_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.EncounterID == "" {
		t.Fatal("Expected encounter ID in response")
	}
	return resp.EncounterID
}

func TestStartEncounterEndpoint(t *testing.T) {
	handler, sink := newTestHandler()
	router := handler.Routes()

	startEncounter(t, router)

	if got := len(sink.EventsFor(audit.ActionEncounterStarted)); got != 1 {
		t.Errorf("Expected 1 encounter_started audit event, got %d", got)
	}
}

func TestStartEncounterValidation(t *testing.T) {
	handler, _ := newTestHandler()
	router := handler.Routes()

	rec := doJSON(t, router, http.MethodPost, "/encounters", StartEncounterRequest{
		ClinicianID: "dr-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing patient ID, got %d", rec.Code)
	}
}

func TestStartEncounterConsentDenied(t *testing.T) {
	handler, _ := newTestHandler()
	router := handler.Routes()

	rec := doJSON(t, router, http.MethodPost, "/encounters", StartEncounterRequest{
		PatientProfile: profileFixture(),
		ClinicianID:    "dr-1",
		ConsentGranted: false,
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 on denied consent, got %d", rec.Code)
	}

	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode error: %v", err)
	}
	if resp.Code != "PERMISSION_DENIED" {
		t.Errorf("Expected PERMISSION_DENIED, got %s", resp.Code)
	}
}

func TestTranscriptAndFinalizeFlow(t *testing.T) {
	handler, _ := newTestHandler()
	router := handler.Routes()

	id := startEncounter(t, router)

	rec := doJSON(t, router, http.MethodPost, "/encounters/"+id+"/transcript", IngestTranscriptRequest{
		Chunk: "Patient reports fever and cough.",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/encounters/"+id+"/finalize", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Status     string                    `json:"status"`
		AgentTasks map[string]map[string]any `json:"agent_tasks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.Status != "pending_approval" {
		t.Errorf("Expected pending_approval, got %s", result.Status)
	}
	if len(result.AgentTasks) != 5 {
		t.Errorf("Expected 5 specialist results, got %d", len(result.AgentTasks))
	}

	// The session is closed; a second finalize is a 404.
	rec = doJSON(t, router, http.MethodPost, "/encounters/"+id+"/finalize", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after finalize, got %d", rec.Code)
	}
}

func TestUnknownEncounterReturns404(t *testing.T) {
	handler, _ := newTestHandler()
	router := handler.Routes()

	rec := doJSON(t, router, http.MethodPost, "/encounters/00000000-0000-0000-0000-000000000001/transcript", IngestTranscriptRequest{Chunk: "hello"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown encounter, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/encounters/not-a-uuid/transcript", IngestTranscriptRequest{Chunk: "hello"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed ID, got %d", rec.Code)
	}
}

func TestEmergencyEndpointRequiresConfirmation(t *testing.T) {
	handler, sink := newTestHandler()
	router := handler.Routes()

	id := startEncounter(t, router)
	before := len(sink.EventsFor(audit.ActionEmergencyTriggered))

	rec := doJSON(t, router, http.MethodPost, "/encounters/"+id+"/emergency", TriggerEmergencyRequest{
		InitiatedBy: "dr-1",
		Reason:      "cardiac symptoms",
		Confirmed:   false,
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for unconfirmed trigger, got %d", rec.Code)
	}
	if len(sink.EventsFor(audit.ActionEmergencyTriggered)) != before {
		t.Error("Expected no emergency audit events for unconfirmed trigger")
	}

	rec = doJSON(t, router, http.MethodPost, "/encounters/"+id+"/emergency", TriggerEmergencyRequest{
		InitiatedBy: "dr-1",
		Reason:      "cardiac symptoms",
		Confirmed:   true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 for confirmed trigger, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := len(sink.EventsFor(audit.ActionEmergencyTriggered)); got != before+1 {
		t.Errorf("Expected exactly 1 new emergency audit event, got %d", got-before)
	}
}

func TestEmergencyRecommendationEndpoint(t *testing.T) {
	handler, _ := newTestHandler()
	router := handler.Routes()

	id := startEncounter(t, router)

	rec := doJSON(t, router, http.MethodPost, "/encounters/"+id+"/emergency-recommendation", RecommendEmergencyRequest{
		Severity: "high",
		Reason:   "possible MI",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		RecommendedAction string  `json:"recommended_action"`
		Confidence        float64 `json:"confidence"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.RecommendedAction != "call_911" {
		t.Errorf("Expected call_911, got %s", resp.RecommendedAction)
	}
	if resp.Confidence != 0.6 {
		t.Errorf("Expected default confidence 0.6, got %f", resp.Confidence)
	}
}

func TestPatientViewEndpointDefaultsToPatientRole(t *testing.T) {
	handler, _ := newTestHandler()
	router := handler.Routes()

	id := startEncounter(t, router)
	doJSON(t, router, http.MethodPost, "/encounters/"+id+"/transcript", IngestTranscriptRequest{
		Chunk: "Patient reports fever.",
	})
	doJSON(t, router, http.MethodPost, "/encounters/"+id+"/finalize", nil)

	rec := doJSON(t, router, http.MethodGet, "/patients/p1/view", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var view map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("Failed to decode view: %v", err)
	}
	if _, leaked := view["transcripts"]; leaked {
		t.Error("Expected transcripts hidden from unauthenticated view")
	}
	if _, leaked := view["clinical_notes"]; leaked {
		t.Error("Expected clinical notes hidden from unauthenticated view")
	}
}

func TestConsentsEndpoint(t *testing.T) {
	handler, _ := newTestHandler()
	router := handler.Routes()

	id := startEncounter(t, router)

	rec := doJSON(t, router, http.MethodGet, "/encounters/"+id+"/consents", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Consents []struct {
			ConsentType string `json:"consent_type"`
			Granted     bool   `json:"granted"`
		} `json:"consents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode consents: %v", err)
	}
	if len(resp.Consents) != 3 {
		t.Fatalf("Expected 3 consent records, got %d", len(resp.Consents))
	}
	for _, c := range resp.Consents {
		if !c.Granted {
			t.Errorf("Expected granted consent for %s", c.ConsentType)
		}
	}
}

func TestAgentStateEndpoints(t *testing.T) {
	handler, _ := newTestHandler()
	router := handler.Routes()

	rec := doJSON(t, router, http.MethodGet, "/agent/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var state struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	if state.Status != "IDLE" {
		t.Errorf("Expected IDLE, got %s", state.Status)
	}

	rec = doJSON(t, router, http.MethodGet, "/agent/history", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for history, got %d", rec.Code)
	}
}
