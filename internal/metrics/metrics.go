package metrics

import (
	"fmt"
	"sync"
	"time"
)

// SessionMetrics collects per-voice-session counters: how many interim and
// final segments arrived, how much text was transcribed and translated, and
// how long the first recognition result took.
type SessionMetrics struct {
	SessionID       string
	SourceLang      string
	TargetLang      string
	StartTime       time.Time
	EndTime         time.Time
	TranscriptChars int
	TranslatedChars int
	InterimCount    int
	FinalCount      int
	FirstResultTime *time.Time
	mu              sync.Mutex
}

func NewSessionMetrics(sessionID, sourceLang, targetLang string) *SessionMetrics {
	return &SessionMetrics{
		SessionID:  sessionID,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		StartTime:  time.Now(),
	}
}

func (m *SessionMetrics) AddSegment(text string, isFinal bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FirstResultTime == nil {
		now := time.Now()
		m.FirstResultTime = &now
	}

	m.TranscriptChars += len(text)
	if isFinal {
		m.FinalCount++
	} else {
		m.InterimCount++
	}
}

func (m *SessionMetrics) AddTranslation(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranslatedChars += len(text)
}

func (m *SessionMetrics) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndTime = time.Now()
}

func (m *SessionMetrics) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := m.EndTime.Sub(m.StartTime)
	var latency time.Duration
	if m.FirstResultTime != nil {
		latency = m.FirstResultTime.Sub(m.StartTime)
	}

	return fmt.Sprintf(
		"Session: %s\n"+
			"Languages: %s -> %s\n"+
			"Duration: %v\n"+
			"Transcript Length: %d chars\n"+
			"Translated Length: %d chars\n"+
			"First Result Latency: %v\n"+
			"Interim Segments: %d\n"+
			"Final Segments: %d\n",
		m.SessionID,
		m.SourceLang,
		m.TargetLang,
		duration,
		m.TranscriptChars,
		m.TranslatedChars,
		latency,
		m.InterimCount,
		m.FinalCount,
	)
}
