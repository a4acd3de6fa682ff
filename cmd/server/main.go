package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ruralhealth/clinic-assistant/internal/assess"
	"github.com/ruralhealth/clinic-assistant/internal/config"
	"github.com/ruralhealth/clinic-assistant/internal/diagnostics"
	"github.com/ruralhealth/clinic-assistant/internal/report"
	"github.com/ruralhealth/clinic-assistant/internal/server"
	"github.com/ruralhealth/clinic-assistant/internal/store"
	"github.com/ruralhealth/clinic-assistant/internal/telephony"
	"github.com/ruralhealth/clinic-assistant/internal/translate"
	"github.com/ruralhealth/clinic-assistant/internal/triage"
	"github.com/ruralhealth/clinic-assistant/internal/voice"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	analyzer := assess.NewChatClient(cfg.AI.Provider, cfg.AI.APIKey)
	translator := translate.NewReverieClient(cfg.Translation.APIKey, cfg.Translation.AppID)

	var sessions *store.SessionCache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		sessions = store.NewSessionCache(client, "")
		log.Printf("Session cache enabled at %s", cfg.Redis.Addr)
	}

	srv := server.New(server.Options{
		Store:      st,
		Analyzer:   analyzer,
		Translator: translator,
		Diag:       diagnostics.NewService(nil),
		Reports:    report.NewService(),
		Sessions:   sessions,
		DoctorID:   "default",
	})

	var screener *triage.Matcher
	if cfg.Triage.RulesFile != "" {
		screener, err = triage.NewMatcher(cfg.Triage.RulesFile)
		if err != nil {
			log.Fatalf("Failed to load triage rules: %v", err)
		}
	}

	var phones *telephony.Listener
	if cfg.Telephony.Enabled {
		phones = telephony.NewListener(telephony.Config{
			Host:          cfg.Telephony.Host,
			Port:          cfg.Telephony.Port,
			VoskServerURL: cfg.Telephony.VoskServerURL,
			SampleRate:    cfg.Telephony.SampleRate,
			SourceLang:    cfg.Telephony.SourceLang,
			TargetLang:    cfg.Telephony.TargetLang,
		}, translator, phoneIntake(st, analyzer, screener))
		go func() {
			if err := phones.Start(); err != nil {
				log.Fatalf("Telephony listener error: %v", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: srv.Routes()}

	go func() {
		log.Printf("Clinic assistant listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	if phones != nil {
		phones.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Database.Driver == "memory" {
		ms := store.NewMemoryStore()
		ms.SeedDemoData()
		log.Println("Using in-memory store with demo data")
		return ms, nil
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	m, err := migrate.New("file://"+cfg.Database.MigrationsDir, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("migration init failed: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("migration up failed: %w", err)
	}
	log.Println("Migrations applied")

	return store.NewPostgresStore(db), nil
}

// phoneIntake records a phone call's narrative as an assessment under a
// synthetic walk-in patient, so callers show up in the record list the same
// way in-clinic patients do.
func phoneIntake(st store.Store, analyzer assess.Client, screener *triage.Matcher) telephony.IntakeFunc {
	return func(ctx context.Context, callID string, sess voice.Session) {
		patient, err := st.CreatePatient(ctx, store.Patient{
			Name:   "Phone caller " + callID[:8],
			Age:    0,
			Gender: store.GenderOther,
		})
		if err != nil {
			log.Printf("Call %s: failed to create patient record: %v", callID, err)
			return
		}

		narrative := sess.FinalTranscript
		if sess.AccumulatedTranslation != "" {
			narrative = sess.AccumulatedTranslation
		}
		result, err := analyzer.Analyze(ctx, narrative)
		if err != nil {
			log.Printf("Call %s: analysis failed, using standard work-up: %v", callID, err)
			result = assess.DefaultAssessment()
		}

		notes := fmt.Sprintf("Phone intake call %s. Original narrative in %s: %s",
			callID, sess.SourceLanguage, sess.FinalTranscript)
		if screener != nil {
			if rule := screener.Detect(narrative); rule != nil {
				log.Printf("Call %s: triage flag raised: %s", callID, rule.Name)
				notes = fmt.Sprintf("TRIAGE FLAG: %s. %s", rule.Name, notes)
			}
		}

		record := store.Assessment{
			PatientID:            patient.ID,
			DoctorID:             "phone-intake",
			Symptoms:             result.KeyFindings,
			PossibleCauses:       result.PossibleCauses,
			SuggestedTests:       result.SuggestedTests,
			TreatmentSuggestions: result.SuggestedTreatment,
			Notes:                notes,
		}
		if _, err := st.CreateAssessment(ctx, record); err != nil {
			log.Printf("Call %s: failed to save assessment: %v", callID, err)
			return
		}
		log.Printf("Call %s: assessment recorded for patient %s", callID, patient.ID)
	}
}
