package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ruralhealth/clinic-assistant/internal/assess"
)

func emptyAssessment() *assess.MedicalAssessment {
	return &assess.MedicalAssessment{
		PossibleCauses:     []string{},
		KeyFindings:        []string{},
		SuggestedTests:     []string{},
		SuggestedTreatment: []string{},
	}
}

func TestEditorAddUpdateRemoveRoundTrip(t *testing.T) {
	e := NewEditor(emptyAssessment())

	e.Add(ListTests)
	e.Update(ListTests, 0, "x")
	e.Remove(ListTests, 0)

	assert.Empty(t, e.Lists().SuggestedTests, "add+update+remove should round-trip to empty")
}

func TestEditorRemovePreservesOrder(t *testing.T) {
	e := NewEditor(&assess.MedicalAssessment{
		PossibleCauses:     []string{"a", "b", "c", "d"},
		KeyFindings:        []string{},
		SuggestedTests:     []string{},
		SuggestedTreatment: []string{},
	})

	e.Remove(ListCauses, 1)
	assert.Equal(t, []string{"a", "c", "d"}, e.Lists().PossibleCauses)
}

func TestEditorListsAreIndependent(t *testing.T) {
	e := NewEditor(emptyAssessment())

	e.Add(ListCauses)
	e.Update(ListCauses, 0, "cause")
	e.Add(ListTreatments)
	e.Update(ListTreatments, 0, "treatment")

	lists := e.Lists()
	assert.Equal(t, []string{"cause"}, lists.PossibleCauses)
	assert.Equal(t, []string{"treatment"}, lists.SuggestedTreatment)
	assert.Empty(t, lists.KeyFindings)
	assert.Empty(t, lists.SuggestedTests)
}

func TestEditorCancelRevertsToLastCommit(t *testing.T) {
	e := NewEditor(&assess.MedicalAssessment{
		PossibleCauses:     []string{"Migraine"},
		KeyFindings:        []string{"Headache"},
		SuggestedTests:     []string{},
		SuggestedTreatment: []string{},
	})

	e.Update(ListCauses, 0, "Cluster headache")
	e.Cancel()
	assert.Equal(t, []string{"Migraine"}, e.Lists().PossibleCauses, "cancel reverts to AI output")

	// After a save, cancel reverts to the saved revision instead.
	e.Update(ListCauses, 0, "Cluster headache")
	e.Save()
	e.Update(ListCauses, 0, "Sinusitis")
	e.Cancel()
	assert.Equal(t, []string{"Cluster headache"}, e.Lists().PossibleCauses)
}

func TestEditorSaveIsAtomicSnapshot(t *testing.T) {
	e := NewEditor(emptyAssessment())
	e.Add(ListFindings)
	e.Update(ListFindings, 0, "fever")

	saved := e.Save()
	assert.Equal(t, []string{"fever"}, saved.KeyFindings)

	// Mutating the editor afterwards must not alter the returned snapshot.
	e.Update(ListFindings, 0, "chills")
	assert.Equal(t, []string{"fever"}, saved.KeyFindings)
}

func TestEditorOutOfRangePanics(t *testing.T) {
	e := NewEditor(emptyAssessment())
	assert.Panics(t, func() { e.Update(ListCauses, 0, "x") })
	assert.Panics(t, func() { e.Remove(ListCauses, 0) })
	assert.Panics(t, func() { e.Add(ListKind("bogus")) })
}
