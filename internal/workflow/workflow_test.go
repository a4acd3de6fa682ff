package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruralhealth/clinic-assistant/internal/assess"
	"github.com/ruralhealth/clinic-assistant/internal/store"
)

// stubAnalyzer returns a fixed assessment or a fixed error.
type stubAnalyzer struct {
	result *assess.MedicalAssessment
	err    error
	calls  int
}

func (s *stubAnalyzer) Analyze(ctx context.Context, narrative string) (*assess.MedicalAssessment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func goodAssessment() *assess.MedicalAssessment {
	return &assess.MedicalAssessment{
		PossibleCauses:     []string{"Migraine"},
		KeyFindings:        []string{"Unilateral headache"},
		SuggestedTests:     []string{"Neurological exam"},
		SuggestedTreatment: []string{"Triptans"},
	}
}

func janeDraft() store.Patient {
	return store.Patient{Name: "Jane", Age: 30, Gender: store.GenderFemale}
}

func TestWorkflowHappyPath(t *testing.T) {
	st := store.NewMemoryStore()
	an := &stubAnalyzer{result: goodAssessment()}
	w := New(st, an, "doc-1")
	ctx := context.Background()

	assert.Equal(t, StepPatientInfo, w.Step())

	created, err := w.SubmitPatient(ctx, janeDraft())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID, "patient id must be assigned on intake")
	assert.Equal(t, StepSymptomsInput, w.Step())
	assert.Equal(t, created.ID, w.PatientID())

	result, err := w.SubmitSymptoms(ctx, "throbbing pain on the right side", "english")
	require.NoError(t, err)
	assert.Equal(t, StepResults, w.Step())
	assert.Equal(t, []string{"Migraine"}, result.PossibleCauses)
	assert.False(t, w.UsedFallback())

	saved, err := w.SaveAndContinue(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, created.ID, saved.PatientID)
	assert.Equal(t, "doc-1", saved.DoctorID)
	assert.Equal(t, []string{"Unilateral headache"}, saved.Symptoms)
	assert.True(t, strings.Contains(saved.Notes, "recorded in english"))
	assert.True(t, strings.Contains(saved.Notes, "throbbing pain"))

	// The record is persisted.
	got, err := st.GetAssessment(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
}

func TestWorkflowPatientValidation(t *testing.T) {
	tests := []struct {
		name  string
		draft store.Patient
	}{
		{"empty name", store.Patient{Name: " ", Age: 30, Gender: store.GenderFemale}},
		{"negative age", store.Patient{Name: "Jane", Age: -1, Gender: store.GenderFemale}},
		{"age above 120", store.Patient{Name: "Jane", Age: 121, Gender: store.GenderFemale}},
		{"bad gender", store.Patient{Name: "Jane", Age: 30, Gender: "robot"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(store.NewMemoryStore(), &stubAnalyzer{result: goodAssessment()}, "doc-1")
			_, err := w.SubmitPatient(context.Background(), tt.draft)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, StepPatientInfo, w.Step(), "validation failure must not advance")
		})
	}
}

func TestWorkflowEmptySymptomsDoNotAdvance(t *testing.T) {
	w := New(store.NewMemoryStore(), &stubAnalyzer{result: goodAssessment()}, "doc-1")
	ctx := context.Background()
	_, err := w.SubmitPatient(ctx, janeDraft())
	require.NoError(t, err)

	_, err = w.SubmitSymptoms(ctx, "   ", "english")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, StepSymptomsInput, w.Step())
}

func TestWorkflowAnalysisFailureFallsBack(t *testing.T) {
	an := &stubAnalyzer{err: assess.ErrAnalysisUnavailable}
	w := New(store.NewMemoryStore(), an, "doc-1")
	ctx := context.Background()
	_, err := w.SubmitPatient(ctx, janeDraft())
	require.NoError(t, err)

	result, err := w.SubmitSymptoms(ctx, "chest pain on exertion", "english")
	require.NoError(t, err, "analysis failure must not fail the workflow")
	assert.Equal(t, StepResults, w.Step(), "workflow always reaches results")
	assert.True(t, w.UsedFallback())
	assert.Equal(t, assess.DefaultAssessment().PossibleCauses, result.PossibleCauses)
	assert.Equal(t, 1, an.calls, "no retry")
}

func TestWorkflowForwardOnlyTransitions(t *testing.T) {
	w := New(store.NewMemoryStore(), &stubAnalyzer{result: goodAssessment()}, "doc-1")
	ctx := context.Background()

	// Symptoms before patient intake.
	_, err := w.SubmitSymptoms(ctx, "cough", "english")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Saving before results exist.
	_, err = w.SaveAndContinue(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// No editor before results.
	_, err = w.Editor()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = w.SubmitPatient(ctx, janeDraft())
	require.NoError(t, err)

	// Re-entering patient intake after advancing is not supported.
	_, err = w.SubmitPatient(ctx, janeDraft())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWorkflowEditsReachSavedRecord(t *testing.T) {
	w := New(store.NewMemoryStore(), &stubAnalyzer{result: goodAssessment()}, "doc-1")
	ctx := context.Background()
	_, err := w.SubmitPatient(ctx, janeDraft())
	require.NoError(t, err)
	_, err = w.SubmitSymptoms(ctx, "headache", "english")
	require.NoError(t, err)

	ed, err := w.Editor()
	require.NoError(t, err)
	ed.Add(ListCauses)
	ed.Update(ListCauses, 1, "Tension headache")

	saved, err := w.SaveAndContinue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Migraine", "Tension headache"}, saved.PossibleCauses)

	// The flow is terminal after saving.
	_, err = w.SaveAndContinue(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
