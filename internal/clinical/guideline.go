package clinical

// GuidelineService turns a note and observations into advisory
// recommendations. Implementations always return at least one entry.
type GuidelineService interface {
	Recommendations(note SOAPNote, observations []Observation, profile PatientProfile) []Recommendation
}

// LocalGuidelineService is a small rule-based recommender.
type LocalGuidelineService struct{}

// NewLocalGuidelineService creates the local rule-based recommender.
func NewLocalGuidelineService() *LocalGuidelineService {
	return &LocalGuidelineService{}
}

// Recommendations applies the symptom rules and falls back to a generic
// assessment recommendation when nothing fires.
func (s *LocalGuidelineService) Recommendations(note SOAPNote, observations []Observation, profile PatientProfile) []Recommendation {
	var recommendations []Recommendation

	for _, symptom := range note.Symptoms {
		if symptom == "fever" {
			recommendations = append(recommendations, Recommendation{
				Title:            "Evaluate fever",
				Rationale:        "Reported fever. Consider vitals, infection screening, and review medications.",
				Evidence:         []string{"Transcript symptom extraction", "Clinical intake protocol"},
				Confidence:       0.55,
				RequiresApproval: true,
				RiskLevel:        "medium",
			})
		}
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, Recommendation{
			Title:            "Complete clinician assessment",
			Rationale:        "No high-confidence findings detected. Continue standard assessment.",
			Evidence:         []string{"Transcript review"},
			Confidence:       0.4,
			RequiresApproval: true,
			RiskLevel:        "low",
		})
	}

	return recommendations
}

var _ GuidelineService = (*LocalGuidelineService)(nil)
