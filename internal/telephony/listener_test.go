package telephony

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/CyCoreSystems/audiosocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ruralhealth/clinic-assistant/internal/speech"
	"github.com/ruralhealth/clinic-assistant/internal/translate"
	"github.com/ruralhealth/clinic-assistant/internal/voice"
)

type fakeRecognizer struct {
	mu       sync.Mutex
	audio    []byte
	results  chan RecognizerResult
	gotAudio chan struct{}
	once     sync.Once
	closed   bool
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{
		results:  make(chan RecognizerResult, 16),
		gotAudio: make(chan struct{}),
	}
}

func (f *fakeRecognizer) ProcessAudio(audioData []byte) error {
	f.mu.Lock()
	f.audio = append(f.audio, audioData...)
	f.mu.Unlock()
	f.once.Do(func() { close(f.gotAudio) })
	return nil
}

func (f *fakeRecognizer) Results() <-chan RecognizerResult { return f.results }

func (f *fakeRecognizer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.results)
	}
	return nil
}

func startTestListener(t *testing.T, rec Recognizer, onIntake IntakeFunc) net.Addr {
	t.Helper()
	l := NewListener(Config{
		Host:       "127.0.0.1",
		Port:       0,
		SourceLang: "en-US",
		TargetLang: "hi-IN",
	}, translate.Func(func(ctx context.Context, text, src, tgt string) string {
		return "t(" + text + ")"
	}), onIntake)
	l.newRecognizer = func() (Recognizer, error) { return rec, nil }

	go func() {
		if err := l.Start(); err != nil {
			t.Errorf("listener start failed: %v", err)
		}
	}()
	t.Cleanup(l.Stop)

	deadline := time.Now().Add(2 * time.Second)
	for l.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("listener never bound")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return l.Addr()
}

func TestCallIntake(t *testing.T) {
	rec := newFakeRecognizer()
	intake := make(chan voice.Session, 1)
	callIDs := make(chan string, 1)
	addr := startTestListener(t, rec, func(ctx context.Context, callID string, sess voice.Session) {
		callIDs <- callID
		intake <- sess
	})

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	callID := uuid.New()
	_, err = conn.Write(audiosocket.IDMessage(callID))
	require.NoError(t, err)

	audio := make([]byte, audiosocket.DefaultSlinChunkSize)
	_, err = conn.Write(audiosocket.SlinMessage(audio))
	require.NoError(t, err)

	select {
	case <-rec.gotAudio:
	case <-time.After(2 * time.Second):
		t.Fatal("recognizer never received audio")
	}

	rec.results <- RecognizerResult{Text: "i have a", IsFinal: false}
	rec.results <- RecognizerResult{Text: "i have a bad cough", IsFinal: true}

	_, err = conn.Write(audiosocket.HangupMessage())
	require.NoError(t, err)

	select {
	case sess := <-intake:
		require.Equal(t, "i have a bad cough", sess.FinalTranscript)
		require.Equal(t, "t(i have a bad cough)", sess.AccumulatedTranslation)
		require.Equal(t, "en-US", sess.SourceLanguage)
		require.Equal(t, "hi-IN", sess.TargetLanguage)
		require.False(t, sess.IsRecording)
	case <-time.After(2 * time.Second):
		t.Fatal("intake callback never fired")
	}
	require.Equal(t, callID.String(), <-callIDs)
}

func TestCapabilityFailsStartOnceStreamExhausted(t *testing.T) {
	rec := newFakeRecognizer()
	require.NoError(t, rec.Close())

	capability := newRecognizerCapability(rec)

	events, err := capability.Start(speech.Config{Language: "en-US"})
	require.NoError(t, err)
	_, open := <-events
	require.False(t, open, "stream over a dead recognizer must end")

	// The recognizer session cannot be reopened, so further starts must fail
	// instead of handing out another instantly-dead stream.
	_, err = capability.Start(speech.Config{Language: "en-US"})
	require.ErrorIs(t, err, speech.ErrCapabilityUnavailable)
}

func TestRecognizerDeathMidCallSettlesDriver(t *testing.T) {
	rec := newFakeRecognizer()
	capability := newRecognizerCapability(rec)

	d := speech.NewDriver(capability)
	require.NoError(t, d.Start("en-US"))
	events := d.Events()

	rec.results <- RecognizerResult{Text: "hello clinic", IsFinal: true}
	require.NoError(t, rec.Close()) // connection drops mid-call

	select {
	case ev := <-events:
		require.Equal(t, "hello clinic", ev.Results[0].Transcript)
	case <-time.After(2 * time.Second):
		t.Fatal("buffered result never forwarded")
	}

	// Restart against the dead recognizer fails, so the driver settles in
	// Idle and closes the stream rather than spinning on new sessions.
	select {
	case _, open := <-events:
		require.False(t, open, "stream should close after restart failure")
	case <-time.After(2 * time.Second):
		t.Fatal("stream never closed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.State() != speech.Idle {
		if time.Now().After(deadline) {
			t.Fatal("driver never settled in idle")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCallWithoutSpeechSkipsIntake(t *testing.T) {
	rec := newFakeRecognizer()
	intake := make(chan voice.Session, 1)
	addr := startTestListener(t, rec, func(ctx context.Context, callID string, sess voice.Session) {
		intake <- sess
	})

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(audiosocket.IDMessage(uuid.New()))
	require.NoError(t, err)
	_, err = conn.Write(audiosocket.HangupMessage())
	require.NoError(t, err)

	select {
	case <-intake:
		t.Fatal("intake fired for a silent call")
	case <-time.After(300 * time.Millisecond):
	}
}
