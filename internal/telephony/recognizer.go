package telephony

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// RecognizerResult is one partial or final recognition hypothesis for a call.
type RecognizerResult struct {
	Text    string
	IsFinal bool
}

// Recognizer turns raw call audio into a stream of recognition results. The
// results channel is closed when the underlying engine session ends.
type Recognizer interface {
	ProcessAudio(audioData []byte) error
	Results() <-chan RecognizerResult
	Close() error
}

// VoskRecognizer streams audio to a Vosk websocket server and reads partial
// and final hypotheses back.
type VoskRecognizer struct {
	conn       *websocket.Conn
	results    chan RecognizerResult
	mu         sync.Mutex
	sampleRate int
}

type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

func NewVoskRecognizer(serverURL string, sampleRate int) (*VoskRecognizer, error) {
	url := fmt.Sprintf("%s/ws?sample_rate=%d", serverURL, sampleRate)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Vosk server: %w", err)
	}

	r := &VoskRecognizer{
		conn:       conn,
		results:    make(chan RecognizerResult, 100),
		sampleRate: sampleRate,
	}
	go r.handleResults()
	return r, nil
}

func (r *VoskRecognizer) ProcessAudio(audioData []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conn.WriteMessage(websocket.BinaryMessage, audioData); err != nil {
		return fmt.Errorf("failed to send audio to Vosk: %w", err)
	}
	return nil
}

func (r *VoskRecognizer) handleResults() {
	for {
		_, message, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Vosk WebSocket error: %v", err)
			}
			close(r.results)
			return
		}

		var result voskResult
		if err := json.Unmarshal(message, &result); err != nil {
			log.Printf("Failed to parse Vosk result: %v", err)
			continue
		}

		if result.Partial != "" {
			r.results <- RecognizerResult{Text: result.Partial, IsFinal: false}
		}
		if result.Text != "" {
			r.results <- RecognizerResult{Text: result.Text, IsFinal: true}
		}
	}
}

func (r *VoskRecognizer) Results() <-chan RecognizerResult {
	return r.results
}

// Close asks Vosk for any pending final result, then drops the connection.
// The handleResults goroutine closes the results channel on read failure.
func (r *VoskRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conn.WriteMessage(websocket.TextMessage, []byte(`{"eof": 1}`)); err != nil {
		log.Printf("Failed to send EOF to Vosk: %v", err)
	}
	return r.conn.Close()
}
