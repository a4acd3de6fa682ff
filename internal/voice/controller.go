package voice

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ruralhealth/clinic-assistant/internal/metrics"
	"github.com/ruralhealth/clinic-assistant/internal/speech"
	"github.com/ruralhealth/clinic-assistant/internal/translate"
)

// CompletionFunc receives one Result per finalized speech segment, in
// finalize order.
type CompletionFunc func(Result)

// Controller fuses capture-driver events with translation calls and owns the
// running session's accumulated state. All mutation happens on the event-loop
// goroutine plus translation completions, serialized by the controller mutex;
// snapshots are returned by value.
type Controller struct {
	driver     *speech.Driver
	translator translate.Translator
	onComplete CompletionFunc
	onUpdate   func(Session)

	// emitMu serializes completion-callback emission so results reach the
	// callback in flush order even when several translation goroutines finish
	// close together. Lock order is always emitMu before mu.
	emitMu sync.Mutex

	// inflight tracks spawned translation goroutines so session teardown can
	// wait for their segments to land before done closes.
	inflight sync.WaitGroup

	mu      sync.Mutex
	sess    Session
	metrics *metrics.SessionMetrics
	stopped bool
	done    chan struct{}

	// Finalized-segment translations must land in finalize order even when the
	// translation calls complete out of order. Each segment gets the next
	// index at finalize time; completed translations wait in pending until
	// every lower index has been appended.
	nextIndex   int
	nextToFlush int
	pending     map[int]string
}

// NewController creates a session controller. onComplete may be nil.
func NewController(capability speech.Capability, translator translate.Translator, onComplete CompletionFunc) *Controller {
	return &Controller{
		driver:     speech.NewDriver(capability),
		translator: translator,
		onComplete: onComplete,
	}
}

// SetUpdateHook registers a callback invoked with a fresh snapshot after every
// state change. Used by the websocket layer to push live session state.
func (c *Controller) SetUpdateHook(fn func(Session)) {
	c.onUpdate = fn
}

// Start begins a capture session translating srcLang speech into tgtLang.
func (c *Controller) Start(ctx context.Context, srcLang, tgtLang string) error {
	if err := c.driver.Start(srcLang); err != nil {
		return err
	}

	c.mu.Lock()
	c.sess = Session{
		ID:             uuid.New().String(),
		IsRecording:    true,
		SourceLanguage: c.driver.Language(),
		TargetLanguage: tgtLang,
	}
	c.metrics = metrics.NewSessionMetrics(c.sess.ID, c.sess.SourceLanguage, tgtLang)
	c.stopped = false
	c.nextIndex = 0
	c.nextToFlush = 0
	c.pending = make(map[int]string)
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.loop(ctx, c.driver.Events())
	return nil
}

// Stop signals the capture driver to stop and forces the session out of
// recording. Translation calls already in flight are allowed to complete and
// still append their segments; the completion callback still fires for them.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.sess.IsRecording = false
	c.sess.ElapsedSeconds = c.driver.Elapsed()
	m := c.metrics
	c.mu.Unlock()

	c.driver.Stop()
	if m != nil {
		m.Finalize()
	}
	c.notify()
}

// Snapshot returns the current session state by value.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sess
	if s.IsRecording {
		s.ElapsedSeconds = c.driver.Elapsed()
	}
	return s
}

// Metrics returns the metrics collector of the current session.
func (c *Controller) Metrics() *metrics.SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Done is closed once the driver's event stream has been fully drained.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Controller) loop(ctx context.Context, events <-chan speech.Event) {
	for ev := range events {
		c.handleBatch(ctx, ev)
	}
	c.inflight.Wait()
	c.mu.Lock()
	c.sess.IsRecording = false
	c.sess.ElapsedSeconds = c.driver.Elapsed()
	done := c.done
	c.mu.Unlock()
	c.notify()
	close(done)
}

// handleBatch splits one recognition event into its finalized segments and the
// at-most-one trailing interim segment, then applies the session rules.
func (c *Controller) handleBatch(ctx context.Context, ev speech.Event) {
	var finals []string
	interim := ""
	for _, r := range ev.Results {
		text := strings.TrimSpace(r.Transcript)
		if text == "" {
			continue
		}
		if r.IsFinal {
			finals = append(finals, text)
		} else {
			interim = text // only the most recent interim survives
		}
	}

	c.mu.Lock()
	src := c.sess.SourceLanguage
	tgt := c.sess.TargetLanguage
	m := c.metrics

	if interim != "" {
		c.sess.InterimTranscript = interim
		seq := c.nextIndex // interim belongs to the current segment position
		c.mu.Unlock()
		if m != nil {
			m.AddSegment(interim, false)
		}
		c.inflight.Add(1)
		go c.translateInterim(ctx, interim, src, tgt, seq)
	} else {
		c.sess.InterimTranscript = ""
		c.sess.InterimTranslation = ""
		c.mu.Unlock()
	}

	for _, segment := range finals {
		c.mu.Lock()
		if c.sess.FinalTranscript != "" {
			c.sess.FinalTranscript += " "
		}
		c.sess.FinalTranscript += segment
		c.sess.InterimTranscript = ""
		c.sess.InterimTranslation = ""
		index := c.nextIndex
		c.nextIndex++
		c.mu.Unlock()

		if m != nil {
			m.AddSegment(segment, true)
		}
		c.inflight.Add(1)
		go c.translateFinal(ctx, segment, src, tgt, index)
	}

	c.notify()
}

// translateInterim updates the interim translation unless a newer segment has
// already superseded this one.
func (c *Controller) translateInterim(ctx context.Context, text, src, tgt string, seq int) {
	defer c.inflight.Done()
	translated := c.translator.Translate(ctx, text, shortTag(src), tgt)

	c.mu.Lock()
	if c.nextIndex == seq && c.sess.InterimTranscript == text {
		c.sess.InterimTranslation = translated
	}
	c.mu.Unlock()
	c.notify()
}

// translateFinal translates one finalized segment and appends it in finalize
// order, buffering completions that arrive early.
func (c *Controller) translateFinal(ctx context.Context, text, src, tgt string, index int) {
	defer c.inflight.Done()
	translated := c.translator.Translate(ctx, text, shortTag(src), tgt)

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	var results []Result
	c.mu.Lock()
	c.pending[index] = translated
	for {
		seg, ok := c.pending[c.nextToFlush]
		if !ok {
			break
		}
		delete(c.pending, c.nextToFlush)
		c.nextToFlush++
		if seg != "" {
			if c.sess.AccumulatedTranslation != "" {
				c.sess.AccumulatedTranslation += " "
			}
			c.sess.AccumulatedTranslation += seg
			if c.metrics != nil {
				c.metrics.AddTranslation(seg)
			}
		}
		results = append(results, Result{
			Text:       c.sess.AccumulatedTranslation,
			Confidence: 1.0,
			Language:   src,
		})
	}
	c.mu.Unlock()

	for _, r := range results {
		if c.onComplete != nil {
			c.onComplete(r)
		}
	}
	if len(results) > 0 {
		c.notify()
	}
}

func (c *Controller) notify() {
	if c.onUpdate != nil {
		c.onUpdate(c.Snapshot())
	}
}

// shortTag reduces a BCP-47 tag like "en-US" to the bare language code the
// translation API expects.
func shortTag(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return tag[:i]
	}
	return tag
}
