package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ruralhealth/clinic-assistant/internal/speech"
	"github.com/ruralhealth/clinic-assistant/internal/store"
	"github.com/ruralhealth/clinic-assistant/internal/voice"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Inbound websocket messages. "start" opens a session, "result" carries one
// browser recognition event batch, "stop" finishes the session.
type voiceClientMessage struct {
	Type        string `json:"type"`
	SourceLang  string `json:"sourceLang,omitempty"`
	TargetLang  string `json:"targetLang,omitempty"`
	ResultIndex int    `json:"resultIndex,omitempty"`
	Results     []struct {
		Transcript string `json:"transcript"`
		IsFinal    bool   `json:"isFinal"`
	} `json:"results,omitempty"`
}

type voiceServerMessage struct {
	Type    string         `json:"type"` // "session", "completion", "ended", "error"
	Session *voice.Session `json:"session,omitempty"`
	Result  *voice.Result  `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// socketCapability adapts the websocket event stream to the capture driver's
// capability contract: the browser on the far end is the recognition engine.
type socketCapability struct {
	mu     sync.Mutex
	events chan speech.Event
	closed bool
}

func newSocketCapability() *socketCapability {
	return &socketCapability{}
}

func (c *socketCapability) Start(cfg speech.Config) (<-chan speech.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, speech.ErrCapabilityUnavailable
	}
	c.events = make(chan speech.Event, 16)
	return c.events, nil
}

// Stop is a no-op: the remote browser owns the recognition engine and the
// socket handler closes the stream when the client finishes.
func (c *socketCapability) Stop() {}

func (c *socketCapability) push(ev speech.Event) {
	c.mu.Lock()
	events, closed := c.events, c.closed
	c.mu.Unlock()
	if events == nil || closed {
		return
	}
	select {
	case events <- ev:
	default:
		log.Printf("Voice socket: dropping event batch, session backlogged")
	}
}

func (c *socketCapability) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.events != nil {
		close(c.events)
	}
}

// voiceSocket serializes writes: session updates and completion callbacks
// arrive from controller goroutines concurrently with the read loop.
type voiceSocket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *voiceSocket) send(msg voiceServerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		log.Printf("Voice socket write failed: %v", err)
	}
}

// handleGetVoiceSession serves the cached snapshot of a live voice session,
// letting dashboards and other instances follow capture progress without
// holding the websocket.
func (s *Server) handleGetVoiceSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session cache not configured")
		return
	}
	sess, err := s.sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "voice session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load voice session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleVoiceSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Voice socket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sock := &voiceSocket{conn: conn}
	capability := newSocketCapability()

	ctr := voice.NewController(capability, s.translator, func(res voice.Result) {
		result := res
		sock.send(voiceServerMessage{Type: "completion", Result: &result})
	})
	ctr.SetUpdateHook(func(sess voice.Session) {
		sock.send(voiceServerMessage{Type: "session", Session: &sess})
		if s.sessions != nil {
			if err := s.sessions.Save(context.Background(), sess); err != nil {
				log.Printf("Session cache save failed: %v", err)
			}
		}
	})

	started := false
	finish := func() {
		if !started {
			return
		}
		ctr.Stop()
		capability.end()
		<-ctr.Done()
		snap := ctr.Snapshot()
		sock.send(voiceServerMessage{Type: "ended", Session: &snap})
		if s.sessions != nil {
			if err := s.sessions.Delete(context.Background(), snap.ID); err != nil {
				log.Printf("Session cache delete failed: %v", err)
			}
		}
		if m := ctr.Metrics(); m != nil {
			log.Printf("Voice session finished: %s", m.Summary())
		}
		started = false
	}
	defer finish()

	for {
		var msg voiceClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Voice socket read failed: %v", err)
			}
			return
		}

		switch msg.Type {
		case "start":
			if started {
				sock.send(voiceServerMessage{Type: "error", Error: "session already started"})
				continue
			}
			if err := ctr.Start(r.Context(), msg.SourceLang, msg.TargetLang); err != nil {
				sock.send(voiceServerMessage{Type: "error", Error: err.Error()})
				return
			}
			started = true
			snap := ctr.Snapshot()
			sock.send(voiceServerMessage{Type: "session", Session: &snap})

		case "result":
			if !started {
				sock.send(voiceServerMessage{Type: "error", Error: "session not started"})
				continue
			}
			ev := speech.Event{ResultIndex: msg.ResultIndex}
			for _, res := range msg.Results {
				ev.Results = append(ev.Results, speech.Result{
					Transcript: res.Transcript,
					IsFinal:    res.IsFinal,
				})
			}
			capability.push(ev)

		case "stop":
			finish()
			return

		default:
			sock.send(voiceServerMessage{Type: "error", Error: "unknown message type"})
		}
	}
}
