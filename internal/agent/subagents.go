package agent

import (
	"github.com/meridian-care/platform/internal/clinical"
)

// ClinicalAgent is one specialist in the finalize fan-out. Agents are
// pure functions of encounter state; they produce advisory task results
// and never act on the record.
type ClinicalAgent interface {
	Name() string
	Run(encounter *clinical.EncounterContext) map[string]any
}

// TriageAgent assigns a working priority from reported symptoms.
type TriageAgent struct {
	nlp clinical.NLPService
}

func NewTriageAgent(nlp clinical.NLPService) *TriageAgent {
	return &TriageAgent{nlp: nlp}
}

func (a *TriageAgent) Name() string { return "triage" }

func (a *TriageAgent) Run(encounter *clinical.EncounterContext) map[string]any {
	symptoms := []string{}
	for _, obs := range encounter.Observations {
		if obs.Category == clinical.CategorySymptom {
			symptoms = append(symptoms, obs.Value)
		}
	}

	priority := "medium"
	for _, s := range symptoms {
		if s == "chest pain" || s == "shortness of breath" {
			priority = "high"
			break
		}
	}

	return map[string]any{
		"priority": priority,
		"symptoms": symptoms,
	}
}

// DiagnosisAgent drafts an assessment for clinician review.
type DiagnosisAgent struct {
	guidelines clinical.GuidelineService
}

func NewDiagnosisAgent(guidelines clinical.GuidelineService) *DiagnosisAgent {
	return &DiagnosisAgent{guidelines: guidelines}
}

func (a *DiagnosisAgent) Name() string { return "diagnosis" }

func (a *DiagnosisAgent) Run(encounter *clinical.EncounterContext) map[string]any {
	assessment := []string{}
	if encounter.SOAPNote != nil {
		assessment = encounter.SOAPNote.Assessment
	}
	return map[string]any{
		"draft_assessment": assessment,
		"requires_review":  true,
	}
}

// MonitoringAgent proposes a monitoring plan.
type MonitoringAgent struct {
	guidelines clinical.GuidelineService
}

func NewMonitoringAgent(guidelines clinical.GuidelineService) *MonitoringAgent {
	return &MonitoringAgent{guidelines: guidelines}
}

func (a *MonitoringAgent) Name() string { return "monitoring" }

func (a *MonitoringAgent) Run(_ *clinical.EncounterContext) map[string]any {
	return map[string]any{
		"monitoring_plan": []string{"Track vitals", "Monitor reported symptoms"},
		"requires_review": true,
	}
}

// FollowUpAgent proposes follow-up steps.
type FollowUpAgent struct {
	guidelines clinical.GuidelineService
}

func NewFollowUpAgent(guidelines clinical.GuidelineService) *FollowUpAgent {
	return &FollowUpAgent{guidelines: guidelines}
}

func (a *FollowUpAgent) Name() string { return "follow_up" }

func (a *FollowUpAgent) Run(_ *clinical.EncounterContext) map[string]any {
	return map[string]any{
		"follow_up":       []string{"Schedule follow-up appointment", "Provide care plan summary"},
		"requires_review": true,
	}
}

// DocumentationAgent reports note readiness and its sections.
type DocumentationAgent struct {
	nlp clinical.NLPService
}

func NewDocumentationAgent(nlp clinical.NLPService) *DocumentationAgent {
	return &DocumentationAgent{nlp: nlp}
}

func (a *DocumentationAgent) Name() string { return "documentation" }

func (a *DocumentationAgent) Run(encounter *clinical.EncounterContext) map[string]any {
	sections := map[string]any{}
	if encounter.SOAPNote != nil {
		note := encounter.SOAPNote
		sections = map[string]any{
			"subjective":  note.Subjective,
			"objective":   note.Objective,
			"assessment":  note.Assessment,
			"plan":        note.Plan,
			"history":     note.History,
			"symptoms":    note.Symptoms,
			"medications": note.Medications,
			"allergies":   note.Allergies,
		}
	}
	return map[string]any{
		"soap_note_ready": encounter.SOAPNote != nil,
		"note_sections":   sections,
	}
}

var (
	_ ClinicalAgent = (*TriageAgent)(nil)
	_ ClinicalAgent = (*DiagnosisAgent)(nil)
	_ ClinicalAgent = (*MonitoringAgent)(nil)
	_ ClinicalAgent = (*FollowUpAgent)(nil)
	_ ClinicalAgent = (*DocumentationAgent)(nil)
)
