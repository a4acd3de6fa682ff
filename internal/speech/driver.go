package speech

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// State of the capture driver.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// captureSession is the per-Start bookkeeping shared between the driver and
// its run goroutine, so a stale goroutine can never act on a newer session.
type captureSession struct {
	language string
	stopReq  bool
	out      chan Event
	tickStop chan struct{}
}

// Driver wraps a recognition Capability and presents one continuous logical
// capture session to its consumer. The underlying capability ends its session
// on silence; as long as Stop has not been called the driver immediately opens
// a new one (Active -> Active), so restarts are invisible downstream.
type Driver struct {
	capability Capability

	mu      sync.Mutex
	state   State
	elapsed int
	sess    *captureSession
}

// NewDriver creates a capture driver on top of the given capability.
func NewDriver(capability Capability) *Driver {
	return &Driver{capability: capability}
}

// Start begins a capture session. The language hint "auto" (or empty) falls
// back to en-US. Returns ErrCapabilityUnavailable (wrapped) without leaving
// Idle if the capability cannot start.
func (d *Driver) Start(languageHint string) error {
	d.mu.Lock()
	if d.state == Active {
		d.mu.Unlock()
		return fmt.Errorf("capture session already active")
	}
	d.mu.Unlock()

	lang := languageHint
	if lang == "" || lang == "auto" {
		lang = "en-US"
	}

	events, err := d.capability.Start(Config{
		Language:       lang,
		InterimResults: true,
		Continuous:     false,
	})
	if err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	sess := &captureSession{
		language: lang,
		out:      make(chan Event, 100),
		tickStop: make(chan struct{}),
	}

	d.mu.Lock()
	d.state = Active
	d.elapsed = 0
	d.sess = sess
	d.mu.Unlock()

	go d.tick(sess.tickStop)
	go d.run(sess, events)
	return nil
}

// Stop ends the capture session and forces the driver to Idle. The elapsed
// counter stops ticking but keeps its value until the next Start.
func (d *Driver) Stop() {
	d.mu.Lock()
	if d.state != Active || d.sess == nil {
		d.mu.Unlock()
		return
	}
	sess := d.sess
	sess.stopReq = true
	d.state = Idle
	close(sess.tickStop)
	sess.tickStop = nil
	d.mu.Unlock()

	d.capability.Stop()
}

// Events returns the outward event stream for the current session. The channel
// is closed once the driver settles in Idle.
func (d *Driver) Events() <-chan Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sess == nil {
		return nil
	}
	return d.sess.out
}

// State reports the current driver state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Language reports the resolved language tag of the current session.
func (d *Driver) Language() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sess == nil {
		return ""
	}
	return d.sess.language
}

// Elapsed reports the recording time in whole seconds.
func (d *Driver) Elapsed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elapsed
}

func (d *Driver) tick(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.mu.Lock()
			if d.state == Active {
				d.elapsed++
			}
			d.mu.Unlock()
		case <-stop:
			return
		}
	}
}

// run drains underlying capability sessions, restarting them until an explicit
// stop. The restart is a plain loop iteration, never callback re-entry.
func (d *Driver) run(sess *captureSession, events <-chan Event) {
	for {
		for ev := range events {
			sess.out <- ev
		}

		d.mu.Lock()
		stopped := sess.stopReq
		d.mu.Unlock()

		if stopped {
			close(sess.out)
			return
		}

		// Underlying session ended on its own while the user still intends to
		// record: Active -> Active, open a fresh capability session.
		next, err := d.capability.Start(Config{
			Language:       sess.language,
			InterimResults: true,
			Continuous:     false,
		})
		if err != nil {
			log.Printf("capture auto-restart failed: %v", err)
			d.mu.Lock()
			if d.sess == sess {
				d.state = Idle
				if sess.tickStop != nil {
					close(sess.tickStop)
					sess.tickStop = nil
				}
			}
			d.mu.Unlock()
			close(sess.out)
			return
		}
		events = next
	}
}
