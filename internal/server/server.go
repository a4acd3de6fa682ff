package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ruralhealth/clinic-assistant/internal/assess"
	"github.com/ruralhealth/clinic-assistant/internal/diagnostics"
	"github.com/ruralhealth/clinic-assistant/internal/report"
	"github.com/ruralhealth/clinic-assistant/internal/store"
	"github.com/ruralhealth/clinic-assistant/internal/translate"
	"github.com/ruralhealth/clinic-assistant/internal/workflow"
)

// Server carries the HTTP surface: the clinic REST API plus the voice
// websocket endpoint.
type Server struct {
	store      store.Store
	analyzer   assess.Client
	translator translate.Translator
	diag       *diagnostics.Service
	reports    *report.Service
	sessions   *store.SessionCache // optional
	doctorID   string
}

type Options struct {
	Store      store.Store
	Analyzer   assess.Client
	Translator translate.Translator
	Diag       *diagnostics.Service
	Reports    *report.Service
	Sessions   *store.SessionCache
	DoctorID   string
}

func New(opts Options) *Server {
	return &Server{
		store:      opts.Store,
		analyzer:   opts.Analyzer,
		translator: opts.Translator,
		diag:       opts.Diag,
		reports:    opts.Reports,
		sessions:   opts.Sessions,
		doctorID:   opts.DoctorID,
	}
}

// Routes builds the chi router with all endpoints mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/patients", s.handleCreatePatient)
		r.Get("/patients", s.handleListPatients)
		r.Get("/patients/{id}", s.handleGetPatient)

		r.Post("/assessments", s.handleCreateAssessment)
		r.Get("/assessments", s.handleListAssessments)
		r.Get("/assessments/{id}", s.handleGetAssessment)
		r.Get("/assessments/{id}/report", s.handleAssessmentReport)

		r.Post("/analyze", s.handleAnalyze)
		r.Post("/diagnostics/analyze", s.handleDiagnostics)
		r.Get("/diagnostics/labels", s.handleDiagnosticLabels)

		r.Get("/voice-sessions/{id}", s.handleGetVoiceSession)
	})
	r.Get("/ws/voice", s.handleVoiceSocket)

	return r
}

// CORS for the browser client.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type createPatientRequest struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var req createPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := s.store.CreatePatient(r.Context(), store.Patient{
		Name:   req.Name,
		Age:    req.Age,
		Gender: store.Gender(req.Gender),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create patient")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := s.store.ListPatients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list patients")
		return
	}
	writeJSON(w, http.StatusOK, patients)
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPatient(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load patient")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type createAssessmentRequest struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
	Symptoms string `json:"symptoms"`
	Language string `json:"language"`
}

type createAssessmentResponse struct {
	PatientID    string           `json:"patientId"`
	Assessment   store.Assessment `json:"assessment"`
	UsedFallback bool             `json:"usedFallback"`
}

// handleCreateAssessment drives the full assessment workflow in one request:
// patient intake, symptom analysis (with offline fallback), and persistence.
func (s *Server) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var req createAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Language == "" {
		req.Language = "en-US"
	}

	wf := workflow.New(s.store, s.analyzer, s.doctorID)
	patient, err := wf.SubmitPatient(r.Context(), store.Patient{
		Name:   req.Name,
		Age:    req.Age,
		Gender: store.Gender(req.Gender),
	})
	if errors.Is(err, workflow.ErrValidation) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register patient")
		return
	}

	if _, err := wf.SubmitSymptoms(r.Context(), req.Symptoms, req.Language); err != nil {
		if errors.Is(err, workflow.ErrValidation) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	record, err := wf.SaveAndContinue(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save assessment")
		return
	}

	writeJSON(w, http.StatusCreated, createAssessmentResponse{
		PatientID:    patient.ID,
		Assessment:   record,
		UsedFallback: wf.UsedFallback(),
	})
}

func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	if pid := r.URL.Query().Get("patientId"); pid != "" {
		list, err := s.store.ListAssessmentsByPatient(r.Context(), pid)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list assessments")
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}
	list, err := s.store.ListAssessments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list assessments")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAssessment(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "assessment not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load assessment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAssessmentReport(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAssessment(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "assessment not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load assessment")
		return
	}
	patient, err := s.store.GetPatient(r.Context(), a.PatientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load patient")
		return
	}
	pdf, err := s.reports.Render(patient, a)
	if err != nil {
		log.Printf("Report rendering failed for assessment %s: %v", a.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=assessment-"+a.ID+".pdf")
	w.Write(pdf)
}

type analyzeRequest struct {
	Symptoms string `json:"symptoms"`
}

type analyzeResponse struct {
	Assessment   *assess.MedicalAssessment `json:"assessment"`
	UsedFallback bool                      `json:"usedFallback"`
}

// handleAnalyze runs the symptom analysis directly, without creating any
// records. Analysis failure degrades to the standard work-up, never an error.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Symptoms == "" {
		writeError(w, http.StatusUnprocessableEntity, "symptoms must not be empty")
		return
	}

	a, err := s.analyzer.Analyze(r.Context(), req.Symptoms)
	resp := analyzeResponse{Assessment: a}
	if err != nil {
		log.Printf("Analysis failed, serving fallback: %v", err)
		resp.Assessment = assess.DefaultAssessment()
		resp.UsedFallback = true
	}
	writeJSON(w, http.StatusOK, resp)
}

type diagnosticsRequest struct {
	Kind    string    `json:"kind"`
	Samples []float64 `json:"samples"`
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	var req diagnosticsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind, err := diagnostics.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	analysis, err := s.diag.Analyze(kind, req.Samples)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "diagnostic analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleDiagnosticLabels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"labels": diagnostics.Labels()})
}
