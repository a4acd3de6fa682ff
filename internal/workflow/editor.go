package workflow

import (
	"fmt"
	"sync"

	"github.com/ruralhealth/clinic-assistant/internal/assess"
)

// ListKind names one of the four editable result lists.
type ListKind string

const (
	ListCauses     ListKind = "possibleCauses"
	ListFindings   ListKind = "keyFindings"
	ListTests      ListKind = "suggestedTests"
	ListTreatments ListKind = "suggestedTreatment"
)

// Editor holds the four result lists between the AI output and the final
// save. Edits are local until Save; Cancel reverts to the lists last
// committed (the AI output, or the previous Save).
type Editor struct {
	mu        sync.Mutex
	current   assess.MedicalAssessment
	committed assess.MedicalAssessment
}

// NewEditor starts editing from the given assessment, which becomes the
// first committed revision.
func NewEditor(a *assess.MedicalAssessment) *Editor {
	e := &Editor{
		current:   cloneAssessment(a),
		committed: cloneAssessment(a),
	}
	return e
}

func cloneAssessment(a *assess.MedicalAssessment) assess.MedicalAssessment {
	return assess.MedicalAssessment{
		PossibleCauses:     append([]string{}, a.PossibleCauses...),
		KeyFindings:        append([]string{}, a.KeyFindings...),
		SuggestedTests:     append([]string{}, a.SuggestedTests...),
		SuggestedTreatment: append([]string{}, a.SuggestedTreatment...),
	}
}

func (e *Editor) list(kind ListKind) *[]string {
	switch kind {
	case ListCauses:
		return &e.current.PossibleCauses
	case ListFindings:
		return &e.current.KeyFindings
	case ListTests:
		return &e.current.SuggestedTests
	case ListTreatments:
		return &e.current.SuggestedTreatment
	}
	panic(fmt.Sprintf("unknown result list %q", kind))
}

// Add appends an empty editable entry to the list.
func (e *Editor) Add(kind ListKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l := e.list(kind)
	*l = append(*l, "")
}

// Update replaces the element at index. The index must be valid; an
// out-of-range index is a caller bug and panics.
func (e *Editor) Update(kind ListKind, index int, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	(*e.list(kind))[index] = value
}

// Remove deletes the element at index, keeping the relative order of the
// remaining entries.
func (e *Editor) Remove(kind ListKind, index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l := e.list(kind)
	*l = append((*l)[:index], (*l)[index+1:]...)
}

// Lists returns a copy of the working state of all four lists.
func (e *Editor) Lists() assess.MedicalAssessment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneAssessment(&e.current)
}

// Save commits all four lists atomically. The saved revision becomes the new
// Cancel target.
func (e *Editor) Save() assess.MedicalAssessment {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.committed = cloneAssessment(&e.current)
	return cloneAssessment(&e.committed)
}

// Cancel discards all edits since the last commit.
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = cloneAssessment(&e.committed)
}
