package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore persists patients and assessments in postgres. Schema lives
// in the migrations directory and is applied at startup.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreatePatient(ctx context.Context, p Patient) (Patient, error) {
	p.ID = uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO patients (id, name, age, gender) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Name, p.Age, string(p.Gender))
	if err != nil {
		return Patient{}, fmt.Errorf("failed to insert patient: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPatient(ctx context.Context, id string) (Patient, error) {
	var p Patient
	var gender string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, age, gender FROM patients WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Age, &gender)
	if err == sql.ErrNoRows {
		return Patient{}, ErrNotFound
	}
	if err != nil {
		return Patient{}, fmt.Errorf("failed to query patient: %w", err)
	}
	p.Gender = Gender(gender)
	return p, nil
}

func (s *PostgresStore) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, age, gender FROM patients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	out := make([]Patient, 0)
	for rows.Next() {
		var p Patient
		var gender string
		if err := rows.Scan(&p.ID, &p.Name, &p.Age, &gender); err != nil {
			return nil, err
		}
		p.Gender = Gender(gender)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateAssessment(ctx context.Context, a Assessment) (Assessment, error) {
	a.ID = uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assessments
		 (id, patient_id, doctor_id, date, symptoms, possible_causes, suggested_tests, treatment_suggestions, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.PatientID, a.DoctorID, a.Date,
		pq.Array(a.Symptoms), pq.Array(a.PossibleCauses),
		pq.Array(a.SuggestedTests), pq.Array(a.TreatmentSuggestions), a.Notes)
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to insert assessment: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) GetAssessment(ctx context.Context, id string) (Assessment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, patient_id, doctor_id, date, symptoms, possible_causes, suggested_tests, treatment_suggestions, notes
		 FROM assessments WHERE id = $1`, id)

	a, err := scanAssessment(row)
	if err == sql.ErrNoRows {
		return Assessment{}, ErrNotFound
	}
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to query assessment: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAssessments(ctx context.Context) ([]Assessment, error) {
	return s.listAssessments(ctx,
		`SELECT id, patient_id, doctor_id, date, symptoms, possible_causes, suggested_tests, treatment_suggestions, notes
		 FROM assessments ORDER BY date DESC`)
}

func (s *PostgresStore) ListAssessmentsByPatient(ctx context.Context, patientID string) ([]Assessment, error) {
	return s.listAssessments(ctx,
		`SELECT id, patient_id, doctor_id, date, symptoms, possible_causes, suggested_tests, treatment_suggestions, notes
		 FROM assessments WHERE patient_id = $1 ORDER BY date DESC`, patientID)
}

func (s *PostgresStore) listAssessments(ctx context.Context, query string, args ...any) ([]Assessment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	out := make([]Assessment, 0)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (Assessment, error) {
	var a Assessment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.Date,
		pq.Array(&a.Symptoms), pq.Array(&a.PossibleCauses),
		pq.Array(&a.SuggestedTests), pq.Array(&a.TreatmentSuggestions), &a.Notes)
	return a, err
}
