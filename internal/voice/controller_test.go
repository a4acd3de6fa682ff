package voice

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruralhealth/clinic-assistant/internal/speech"
	"github.com/ruralhealth/clinic-assistant/internal/translate"
)

// scriptedCapability feeds pre-built events to the driver under test control.
type scriptedCapability struct {
	mu       sync.Mutex
	sessions []chan speech.Event
}

func (s *scriptedCapability) Start(cfg speech.Config) (<-chan speech.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan speech.Event, 10)
	s.sessions = append(s.sessions, ch)
	return ch, nil
}

func (s *scriptedCapability) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.sessions); n > 0 && s.sessions[n-1] != nil {
		close(s.sessions[n-1])
		s.sessions[n-1] = nil
	}
}

func (s *scriptedCapability) emit(ev speech.Event) {
	s.mu.Lock()
	ch := s.sessions[len(s.sessions)-1]
	s.mu.Unlock()
	ch <- ev
}

// gatedTranslator holds each Translate call until the test releases its text.
type gatedTranslator struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	calls int
}

func newGatedTranslator() *gatedTranslator {
	return &gatedTranslator{gates: make(map[string]chan struct{})}
}

func (g *gatedTranslator) gate(text string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.gates[text]; !ok {
		g.gates[text] = make(chan struct{})
	}
	return g.gates[text]
}

func (g *gatedTranslator) release(text string) {
	close(g.gate(text))
}

func (g *gatedTranslator) Translate(ctx context.Context, text, srcLang, tgtLang string) string {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	<-g.gate(text)
	return "t(" + text + ")"
}

func finalEvent(texts ...string) speech.Event {
	var rs []speech.Result
	for _, t := range texts {
		rs = append(rs, speech.Result{Transcript: t, IsFinal: true})
	}
	return speech.Event{Results: rs}
}

func interimEvent(text string) speech.Event {
	return speech.Event{Results: []speech.Result{{Transcript: text, IsFinal: false}}}
}

// instantTranslator translates without blocking.
var instantTranslator = translate.Func(func(ctx context.Context, text, src, tgt string) string {
	return "t(" + text + ")"
})

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond, msg)
}

func TestControllerFinalTranscriptJoinsSegmentsInOrder(t *testing.T) {
	cap := &scriptedCapability{}
	c := NewController(cap, instantTranslator, nil)
	require.NoError(t, c.Start(context.Background(), "en-US", "en"))

	cap.emit(finalEvent("first segment"))
	cap.emit(finalEvent("second segment"))
	cap.emit(finalEvent("third segment"))

	waitFor(t, func() bool {
		return strings.Count(c.Snapshot().AccumulatedTranslation, "t(") == 3
	}, "all three segments should translate")

	s := c.Snapshot()
	assert.Equal(t, "first segment second segment third segment", s.FinalTranscript)
	assert.Equal(t, "t(first segment) t(second segment) t(third segment)", s.AccumulatedTranslation)
	c.Stop()
}

func TestControllerAppendsTranslationsInFinalizeOrder(t *testing.T) {
	cap := &scriptedCapability{}
	tr := newGatedTranslator()

	var mu sync.Mutex
	var completions []string
	c := NewController(cap, tr, func(r Result) {
		mu.Lock()
		completions = append(completions, r.Text)
		mu.Unlock()
	})
	require.NoError(t, c.Start(context.Background(), "hi-IN", "en"))

	cap.emit(finalEvent("S1"))
	cap.emit(finalEvent("S2"))

	waitFor(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.calls == 2
	}, "both translation calls should be in flight")

	// Segment 2's translation resolves before segment 1's.
	tr.release("S2")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "", c.Snapshot().AccumulatedTranslation,
		"segment 2 must wait for segment 1 before appending")

	tr.release("S1")
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(completions) == 2
	}, "both completions should fire")

	assert.Equal(t, "t(S1) t(S2)", c.Snapshot().AccumulatedTranslation)
	mu.Lock()
	assert.Equal(t, []string{"t(S1)", "t(S1) t(S2)"}, completions,
		"each callback carries the entire accumulated translation so far")
	mu.Unlock()
	c.Stop()
}

func TestControllerCompletionResultShape(t *testing.T) {
	cap := &scriptedCapability{}
	var got Result
	var mu sync.Mutex
	fired := false
	c := NewController(cap, instantTranslator, func(r Result) {
		mu.Lock()
		got = r
		fired = true
		mu.Unlock()
	})
	require.NoError(t, c.Start(context.Background(), "hi-IN", "en"))

	cap.emit(finalEvent("pet dard"))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired
	}, "completion callback should fire")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "t(pet dard)", got.Text)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, "hi-IN", got.Language, "language is the tag the words were spoken in")
	c.Stop()
}

func TestControllerInterimReplacesNeverAppends(t *testing.T) {
	cap := &scriptedCapability{}
	c := NewController(cap, instantTranslator, nil)
	require.NoError(t, c.Start(context.Background(), "en-US", "hi"))

	cap.emit(interimEvent("I have"))
	waitFor(t, func() bool { return c.Snapshot().InterimTranscript == "I have" }, "first interim")

	cap.emit(interimEvent("I have a headache"))
	waitFor(t, func() bool {
		return c.Snapshot().InterimTranscript == "I have a headache"
	}, "newer interim replaces the old one")

	// Batch without an interim segment clears both interim fields.
	cap.emit(finalEvent("I have a headache"))
	waitFor(t, func() bool {
		s := c.Snapshot()
		return s.InterimTranscript == "" && s.InterimTranslation == ""
	}, "final batch clears interim state")

	s := c.Snapshot()
	assert.Equal(t, "I have a headache", s.FinalTranscript)
	c.Stop()
}

func TestControllerInterimTranslationUpdates(t *testing.T) {
	cap := &scriptedCapability{}
	c := NewController(cap, instantTranslator, nil)
	require.NoError(t, c.Start(context.Background(), "en-US", "hi"))

	cap.emit(interimEvent("partial words"))
	waitFor(t, func() bool {
		return c.Snapshot().InterimTranslation == "t(partial words)"
	}, "interim translation should land")
	c.Stop()
}

func TestControllerStopLetsInFlightTranslationComplete(t *testing.T) {
	cap := &scriptedCapability{}
	tr := newGatedTranslator()
	var mu sync.Mutex
	var completions []string
	c := NewController(cap, tr, func(r Result) {
		mu.Lock()
		completions = append(completions, r.Text)
		mu.Unlock()
	})
	require.NoError(t, c.Start(context.Background(), "en-US", "hi"))

	cap.emit(finalEvent("last words"))
	waitFor(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.calls == 1
	}, "translation call should be in flight")

	c.Stop()
	assert.False(t, c.Snapshot().IsRecording)

	// The in-flight translation still completes, appends, and fires the
	// completion callback.
	tr.release("last words")
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(completions) == 1
	}, "post-stop completion should still fire")
	assert.Equal(t, "t(last words)", c.Snapshot().AccumulatedTranslation)
}

func TestControllerSessionEndsWhenStreamCloses(t *testing.T) {
	cap := &scriptedCapability{}
	c := NewController(cap, instantTranslator, nil)
	require.NoError(t, c.Start(context.Background(), "en-US", "hi"))

	done := c.Done()
	c.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("controller loop did not drain after stop")
	}
}

func TestControllerMetrics(t *testing.T) {
	cap := &scriptedCapability{}
	c := NewController(cap, instantTranslator, nil)
	require.NoError(t, c.Start(context.Background(), "en-US", "hi"))

	cap.emit(interimEvent("hea"))
	cap.emit(finalEvent("headache"))

	waitFor(t, func() bool {
		return c.Snapshot().AccumulatedTranslation != ""
	}, "final segment should translate")
	c.Stop()

	m := c.Metrics()
	require.NotNil(t, m)
	assert.Equal(t, 1, m.FinalCount)
	assert.Equal(t, 1, m.InterimCount)
	assert.NotZero(t, m.TranslatedChars)
}
