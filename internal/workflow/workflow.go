package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ruralhealth/clinic-assistant/internal/assess"
	"github.com/ruralhealth/clinic-assistant/internal/store"
)

// Step of the assessment workflow. Transitions are strictly forward; there is
// no back navigation.
type Step int

const (
	StepPatientInfo Step = iota
	StepSymptomsInput
	StepAnalyzing
	StepResults
)

func (s Step) String() string {
	switch s {
	case StepPatientInfo:
		return "patient_info"
	case StepSymptomsInput:
		return "symptoms_input"
	case StepAnalyzing:
		return "analyzing"
	case StepResults:
		return "results"
	}
	return "unknown"
}

var (
	// ErrInvalidTransition is returned when an operation is attempted in the
	// wrong step (including re-entering an earlier step).
	ErrInvalidTransition = errors.New("invalid workflow transition")

	// ErrValidation covers bad patient-form fields and empty symptom text.
	// It blocks step advancement and is surfaced inline.
	ErrValidation = errors.New("validation failed")
)

// Workflow drives one patient assessment from intake to the persisted record.
type Workflow struct {
	store    store.Store
	client   assess.Client
	doctorID string

	mu           sync.Mutex
	step         Step
	patient      store.Patient
	narrative    string
	language     string
	assessment   *assess.MedicalAssessment
	editor       *Editor
	usedFallback bool
	saved        bool
}

// New creates a workflow at the patient-info step.
func New(st store.Store, client assess.Client, doctorID string) *Workflow {
	return &Workflow{
		store:    st,
		client:   client,
		doctorID: doctorID,
		step:     StepPatientInfo,
	}
}

// Step reports the current workflow step.
func (w *Workflow) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// PatientID reports the committed patient id, empty until intake succeeds.
func (w *Workflow) PatientID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.patient.ID
}

// SubmitPatient validates the intake form, creates the patient record, and
// advances to symptom capture.
func (w *Workflow) SubmitPatient(ctx context.Context, draft store.Patient) (store.Patient, error) {
	w.mu.Lock()
	if w.step != StepPatientInfo {
		w.mu.Unlock()
		return store.Patient{}, fmt.Errorf("%w: patient intake already completed", ErrInvalidTransition)
	}
	w.mu.Unlock()

	if err := validatePatient(draft); err != nil {
		return store.Patient{}, err
	}

	created, err := w.store.CreatePatient(ctx, draft)
	if err != nil {
		return store.Patient{}, fmt.Errorf("failed to create patient: %w", err)
	}

	w.mu.Lock()
	w.patient = created
	w.step = StepSymptomsInput
	w.mu.Unlock()
	return created, nil
}

func validatePatient(p store.Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: patient name is required", ErrValidation)
	}
	if p.Age < 0 || p.Age > 120 {
		return fmt.Errorf("%w: patient age must be between 0 and 120", ErrValidation)
	}
	if !p.Gender.Valid() {
		return fmt.Errorf("%w: patient gender must be male, female, or other", ErrValidation)
	}
	return nil
}

// SubmitSymptoms captures the symptom narrative, runs the remote analysis,
// and advances to results. Analysis failure is not an error here: the
// fallback assessment is installed and the workflow still reaches Results.
func (w *Workflow) SubmitSymptoms(ctx context.Context, narrative, language string) (*assess.MedicalAssessment, error) {
	if strings.TrimSpace(narrative) == "" {
		return nil, fmt.Errorf("%w: symptom narrative is empty", ErrValidation)
	}

	w.mu.Lock()
	if w.step != StepSymptomsInput {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: expected %s, at %s", ErrInvalidTransition, StepSymptomsInput, w.step)
	}
	w.narrative = narrative
	w.language = language
	w.step = StepAnalyzing
	w.mu.Unlock()

	result, err := w.client.Analyze(ctx, narrative)
	usedFallback := false
	if err != nil {
		log.Printf("analysis unavailable, presenting default assessment: %v", err)
		result = assess.DefaultAssessment()
		usedFallback = true
	}

	w.mu.Lock()
	w.assessment = result
	w.usedFallback = usedFallback
	w.editor = NewEditor(result)
	w.step = StepResults
	w.mu.Unlock()
	return result, nil
}

// Editor returns the structured result editor. Only valid at Results.
func (w *Workflow) Editor() (*Editor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepResults {
		return nil, fmt.Errorf("%w: no results to edit at %s", ErrInvalidTransition, w.step)
	}
	return w.editor, nil
}

// UsedFallback reports whether the presented assessment is the canned
// default rather than a model response.
func (w *Workflow) UsedFallback() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.usedFallback
}

// SaveAndContinue commits the edited lists, builds the immutable assessment
// record, and persists it. This ends the flow; calling it twice is a
// transition error.
func (w *Workflow) SaveAndContinue(ctx context.Context) (store.Assessment, error) {
	w.mu.Lock()
	if w.step != StepResults {
		w.mu.Unlock()
		return store.Assessment{}, fmt.Errorf("%w: nothing to save at %s", ErrInvalidTransition, w.step)
	}
	if w.saved {
		w.mu.Unlock()
		return store.Assessment{}, fmt.Errorf("%w: assessment already saved", ErrInvalidTransition)
	}
	final := w.editor.Save()
	patientID := w.patient.ID
	narrative := w.narrative
	language := w.language
	w.mu.Unlock()

	record := store.Assessment{
		PatientID:            patientID,
		DoctorID:             w.doctorID,
		Date:                 time.Now(),
		Symptoms:             final.KeyFindings,
		PossibleCauses:       final.PossibleCauses,
		SuggestedTests:       final.SuggestedTests,
		TreatmentSuggestions: final.SuggestedTreatment,
		Notes:                fmt.Sprintf("Original symptoms recorded in %s: %s", language, narrative),
	}

	saved, err := w.store.CreateAssessment(ctx, record)
	if err != nil {
		return store.Assessment{}, fmt.Errorf("failed to persist assessment: %w", err)
	}

	w.mu.Lock()
	w.saved = true
	w.mu.Unlock()
	return saved, nil
}
