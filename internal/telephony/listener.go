package telephony

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/CyCoreSystems/audiosocket"

	"github.com/ruralhealth/clinic-assistant/internal/speech"
	"github.com/ruralhealth/clinic-assistant/internal/translate"
	"github.com/ruralhealth/clinic-assistant/internal/voice"
)

type Config struct {
	Host          string
	Port          int
	VoskServerURL string
	SampleRate    int
	SourceLang    string
	TargetLang    string
}

// IntakeFunc receives the finished voice session of one phone call.
type IntakeFunc func(ctx context.Context, callID string, sess voice.Session)

// Listener accepts AudioSocket calls from the PBX and runs each one through
// the standard voice pipeline: recognizer results become capture events, the
// session controller accumulates transcript and translation, and the finished
// session is handed to the intake callback.
type Listener struct {
	config        Config
	translator    translate.Translator
	onIntake      IntakeFunc
	newRecognizer func() (Recognizer, error)

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	shutdown chan struct{}
}

func NewListener(config Config, translator translate.Translator, onIntake IntakeFunc) *Listener {
	if config.SourceLang == "" {
		config.SourceLang = "en-US"
	}
	if config.TargetLang == "" {
		config.TargetLang = config.SourceLang
	}
	l := &Listener{
		config:     config,
		translator: translator,
		onIntake:   onIntake,
		shutdown:   make(chan struct{}),
	}
	l.newRecognizer = func() (Recognizer, error) {
		return NewVoskRecognizer(config.VoskServerURL, config.SampleRate)
	}
	return l
}

func (l *Listener) Start() error {
	addr := fmt.Sprintf("%s:%d", l.config.Host, l.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	l.mu.Lock()
	l.listener = listener
	l.mu.Unlock()

	log.Printf("Telephony intake listening on %s", addr)

	for {
		select {
		case <-l.shutdown:
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-l.shutdown:
					return nil
				default:
					log.Printf("Accept error: %v", err)
					continue
				}
			}

			l.wg.Add(1)
			go l.handleCall(conn)
		}
	}
}

func (l *Listener) Stop() {
	close(l.shutdown)
	l.mu.Lock()
	if l.listener != nil {
		l.listener.Close()
	}
	l.mu.Unlock()
	l.wg.Wait()
}

// Addr reports the bound listen address, useful when Port was 0.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

func (l *Listener) handleCall(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	log.Printf("New call from %s", conn.RemoteAddr())

	id, err := audiosocket.GetID(conn)
	if err != nil {
		log.Printf("Failed to get call ID: %v", err)
		return
	}

	recognizer, err := l.newRecognizer()
	if err != nil {
		log.Printf("Call %s: failed to create recognizer: %v", id, err)
		return
	}

	capability := newRecognizerCapability(recognizer)
	ctr := voice.NewController(capability, l.translator, nil)
	if err := ctr.Start(context.Background(), l.config.SourceLang, l.config.TargetLang); err != nil {
		log.Printf("Call %s: failed to start session: %v", id, err)
		recognizer.Close()
		return
	}

	start := time.Now()
	l.pumpAudio(id.String(), conn, recognizer)

	// Hangup or read error. Flush the recognizer, let the session drain, then
	// hand the result to intake.
	ctr.Stop()
	recognizer.Close()
	<-ctr.Done()

	sess := ctr.Snapshot()
	log.Printf("Call %s ended (Duration: %v, Transcript: %d chars)",
		id, time.Since(start), len(sess.FinalTranscript))

	if l.onIntake != nil && sess.FinalTranscript != "" {
		l.onIntake(context.Background(), id.String(), sess)
	}
}

func (l *Listener) pumpAudio(id string, conn net.Conn, recognizer Recognizer) {
	for {
		msg, err := audiosocket.NextMessage(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("Call %s: failed to read message: %v", id, err)
			}
			return
		}

		switch msg.Kind() {
		case audiosocket.KindSlin:
			if payload := msg.Payload(); len(payload) > 0 {
				if err := recognizer.ProcessAudio(payload); err != nil {
					log.Printf("Call %s: failed to process audio: %v", id, err)
					return
				}
			}
		case audiosocket.KindHangup:
			log.Printf("Call %s: received hangup", id)
			return
		case audiosocket.KindError:
			log.Printf("Call %s: received error code %d", id, msg.ErrorCode())
			return
		case audiosocket.KindSilence:
			// Callers pausing mid-sentence is normal; nothing to forward.
		case audiosocket.KindDTMF:
			if p := msg.Payload(); len(p) > 0 {
				log.Printf("Call %s: DTMF digit: %c", id, p[0])
			}
		}
	}
}

// recognizerCapability bridges a call recognizer into the capture driver's
// capability contract. Partial hypotheses map to interim results, finals to
// finalized segments with an advancing result index.
type recognizerCapability struct {
	recognizer Recognizer

	mu        sync.Mutex
	exhausted bool
}

func newRecognizerCapability(r Recognizer) *recognizerCapability {
	return &recognizerCapability{recognizer: r}
}

// Start fails once the recognizer's result stream is exhausted. A recognizer
// session cannot be reopened, so without this the driver's auto-restart would
// spin: each restarted stream would end immediately against the same closed
// channel.
func (c *recognizerCapability) Start(cfg speech.Config) (<-chan speech.Event, error) {
	c.mu.Lock()
	if c.exhausted {
		c.mu.Unlock()
		return nil, speech.ErrCapabilityUnavailable
	}
	c.mu.Unlock()

	events := make(chan speech.Event, 16)
	go func() {
		index := 0
		for res := range c.recognizer.Results() {
			events <- speech.Event{
				ResultIndex: index,
				Results: []speech.Result{
					{Transcript: res.Text, IsFinal: res.IsFinal},
				},
			}
			if res.IsFinal {
				index++
			}
		}
		// Mark exhausted before closing so a restart issued on close observes
		// the failure instead of opening another dead stream.
		c.mu.Lock()
		c.exhausted = true
		c.mu.Unlock()
		close(events)
	}()
	return events, nil
}

func (c *recognizerCapability) Stop() {}
