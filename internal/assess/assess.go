package assess

import (
	"context"
	"errors"
)

// ErrAnalysisUnavailable covers every way an analysis can fail: transport
// errors, non-JSON responses, and responses missing required keys. Callers
// fall back to DefaultAssessment and never surface the raw failure.
var ErrAnalysisUnavailable = errors.New("assessment analysis unavailable")

// MedicalAssessment is the structured differential-diagnosis summary. All
// four lists are non-nil after a successful parse, possibly empty.
type MedicalAssessment struct {
	PossibleCauses     []string `json:"possibleCauses"`
	KeyFindings        []string `json:"keyFindings"`
	SuggestedTests     []string `json:"suggestedTests"`
	SuggestedTreatment []string `json:"suggestedTreatment"`
}

// Client produces a MedicalAssessment from a free-text symptom narrative.
type Client interface {
	Analyze(ctx context.Context, narrative string) (*MedicalAssessment, error)
}

// DefaultAssessment is the canned fallback presented when the remote analysis
// cannot produce a valid structured result. The content is a generic chest
// pain work-up, deliberately conservative.
func DefaultAssessment() *MedicalAssessment {
	return &MedicalAssessment{
		KeyFindings: []string{
			"Chest pain or tightness",
			"Pain triggered by physical exertion",
			"Pain relieved by rest",
			"Increasing frequency of chest pain",
			"Shortness of breath on exertion",
		},
		PossibleCauses: []string{
			"Stable angina",
			"Unstable angina",
			"Myocardial infarction",
			"Gastroesophageal reflux disease (GERD)",
			"Anxiety-related chest pain",
		},
		SuggestedTests: []string{
			"Electrocardiogram (ECG)",
			"Cardiac troponin test",
			"Lipid profile",
			"Exercise stress test",
			"Chest X-ray",
		},
		SuggestedTreatment: []string{
			"Sublingual nitroglycerin for pain relief",
			"Beta-blockers or calcium channel blockers",
			"Lifestyle modifications (smoking cessation, diet, exercise)",
			"Cardiology referral",
			"Emergency evaluation if pain occurs at rest or worsens",
		},
	}
}
