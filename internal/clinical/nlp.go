package clinical

import (
	"sort"
	"strings"
	"time"
)

// NLPService extracts observations from transcript text and assembles
// structured notes.
type NLPService interface {
	ExtractObservations(text string) []Observation
	BuildSOAPNote(transcript string, observations []Observation, profile PatientProfile) SOAPNote
}

// symptomKeywords is the fixed vocabulary of the local extractor.
var symptomKeywords = []string{"fever", "cough", "pain", "fatigue", "nausea", "headache", "dizzy"}

// LocalNLPService is a keyword-based extractor and note builder. It is
// deliberately shallow; extraction quality is a backend concern and any
// NLPService implementation can replace it.
type LocalNLPService struct{}

// NewLocalNLPService creates the local keyword extractor.
func NewLocalNLPService() *LocalNLPService {
	return &LocalNLPService{}
}

// ExtractObservations scans a transcript chunk for known symptoms and
// history statements.
func (s *LocalNLPService) ExtractObservations(text string) []Observation {
	lowered := strings.ToLower(text)
	now := time.Now().UTC()

	var observations []Observation
	for _, symptom := range symptomKeywords {
		if strings.Contains(lowered, symptom) {
			observations = append(observations, Observation{
				Category:   CategorySymptom,
				Value:      symptom,
				Source:     "transcript",
				Confidence: 0.7,
				Timestamp:  now,
			})
		}
	}
	if strings.Contains(lowered, "history") {
		observations = append(observations, Observation{
			Category:   CategoryHistory,
			Value:      text,
			Source:     "transcript",
			Confidence: 0.5,
			Timestamp:  now,
		})
	}
	return observations
}

// BuildSOAPNote assembles a draft note from extracted observations and
// the patient profile. Symptoms are deduplicated and sorted; assessment
// and plan always defer to the clinician.
func (s *LocalNLPService) BuildSOAPNote(transcript string, observations []Observation, profile PatientProfile) SOAPNote {
	seen := make(map[string]bool)
	var symptoms []string
	var history []string
	for _, obs := range observations {
		switch obs.Category {
		case CategorySymptom:
			if !seen[obs.Value] {
				seen[obs.Value] = true
				symptoms = append(symptoms, obs.Value)
			}
		case CategoryHistory:
			history = append(history, obs.Value)
		}
	}
	sort.Strings(symptoms)

	subjective := "Patient interview completed."
	if len(symptoms) > 0 {
		subjective = "Patient reports: " + strings.Join(symptoms, ", ")
	}

	return SOAPNote{
		Subjective:  []string{subjective},
		Objective:   []string{"Vitals pending clinician entry."},
		Assessment:  []string{"Draft assessment generated; clinician review required."},
		Plan:        []string{"Await clinician approval before any action."},
		History:     history,
		Symptoms:    symptoms,
		Medications: profile.Medications,
		Allergies:   profile.Allergies,
		GeneratedAt: time.Now().UTC(),
	}
}

var _ NLPService = (*LocalNLPService)(nil)
