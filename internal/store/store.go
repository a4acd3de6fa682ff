package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Gender of a patient.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Valid reports whether g is one of the known gender values.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Patient is a patient record. ID is assigned by the store.
type Patient struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender Gender `json:"gender"`
}

// Assessment is a persisted assessment record. It is created once at the end
// of the workflow and immutable thereafter.
type Assessment struct {
	ID                   string    `json:"id"`
	PatientID            string    `json:"patientId"`
	DoctorID             string    `json:"doctorId"`
	Date                 time.Time `json:"date"`
	Symptoms             []string  `json:"symptoms"`
	PossibleCauses       []string  `json:"possibleCauses"`
	SuggestedTests       []string  `json:"suggestedTests"`
	TreatmentSuggestions []string  `json:"treatmentSuggestions"`
	Notes                string    `json:"notes"`
}

// Store is the persistence collaborator. It is constructed once per process
// and injected wherever records are read or written, never reached through
// package globals.
type Store interface {
	CreatePatient(ctx context.Context, p Patient) (Patient, error)
	GetPatient(ctx context.Context, id string) (Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)

	CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
	GetAssessment(ctx context.Context, id string) (Assessment, error)
	ListAssessments(ctx context.Context) ([]Assessment, error)
	ListAssessmentsByPatient(ctx context.Context, patientID string) ([]Assessment, error)
}
