package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used for demos and tests. An optional
// latency makes it behave like the remote persistence service it stands in
// for.
type MemoryStore struct {
	mu          sync.RWMutex
	patients    map[string]Patient
	assessments map[string]Assessment
	order       []string // assessment ids in insertion order
	latency     time.Duration
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients:    make(map[string]Patient),
		assessments: make(map[string]Assessment),
	}
}

// SetLatency makes every operation sleep for d, simulating network delay.
func (s *MemoryStore) SetLatency(d time.Duration) {
	s.latency = d
}

// SeedDemoData loads the demo patients and one historical assessment so a
// fresh deployment has something to show.
func (s *MemoryStore) SeedDemoData() {
	demo := []Patient{
		{ID: uuid.New().String(), Name: "Maria Garcia", Age: 45, Gender: GenderFemale},
		{ID: uuid.New().String(), Name: "John Smith", Age: 67, Gender: GenderMale},
		{ID: uuid.New().String(), Name: "Aisha Patel", Age: 32, Gender: GenderFemale},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range demo {
		s.patients[p.ID] = p
	}

	a := Assessment{
		ID:        uuid.New().String(),
		PatientID: demo[0].ID,
		DoctorID:  uuid.New().String(),
		Date:      time.Now().Add(-72 * time.Hour),
		Symptoms:  []string{"Persistent cough", "Fatigue", "Low-grade fever"},
		PossibleCauses: []string{
			"Upper respiratory infection", "Mild pneumonia", "Bronchitis",
		},
		SuggestedTests: []string{"Chest X-ray", "Blood culture", "Sputum analysis"},
		TreatmentSuggestions: []string{
			"Antibiotics if bacterial", "Rest", "Increased fluid intake",
		},
		Notes: "Patient reports symptoms began approximately 1 week ago.",
	}
	s.assessments[a.ID] = a
	s.order = append(s.order, a.ID)
}

func (s *MemoryStore) wait(ctx context.Context) error {
	if s.latency == 0 {
		return nil
	}
	select {
	case <-time.After(s.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *MemoryStore) CreatePatient(ctx context.Context, p Patient) (Patient, error) {
	if err := s.wait(ctx); err != nil {
		return Patient{}, err
	}
	p.ID = uuid.New().String()
	s.mu.Lock()
	s.patients[p.ID] = p
	s.mu.Unlock()
	return p, nil
}

func (s *MemoryStore) GetPatient(ctx context.Context, id string) (Patient, error) {
	if err := s.wait(ctx); err != nil {
		return Patient{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return Patient{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) ListPatients(ctx context.Context) ([]Patient, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) CreateAssessment(ctx context.Context, a Assessment) (Assessment, error) {
	if err := s.wait(ctx); err != nil {
		return Assessment{}, err
	}
	a.ID = uuid.New().String()
	if a.Date.IsZero() {
		a.Date = time.Now()
	}
	s.mu.Lock()
	s.assessments[a.ID] = a
	s.order = append(s.order, a.ID)
	s.mu.Unlock()
	return a, nil
}

func (s *MemoryStore) GetAssessment(ctx context.Context, id string) (Assessment, error) {
	if err := s.wait(ctx); err != nil {
		return Assessment{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assessments[id]
	if !ok {
		return Assessment{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) ListAssessments(ctx context.Context) ([]Assessment, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Assessment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.assessments[id])
	}
	return out, nil
}

func (s *MemoryStore) ListAssessmentsByPatient(ctx context.Context, patientID string) ([]Assessment, error) {
	all, err := s.ListAssessments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Assessment, 0)
	for _, a := range all {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, nil
}
