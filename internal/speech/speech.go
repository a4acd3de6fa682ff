package speech

import "errors"

// ErrCapabilityUnavailable is returned by Driver.Start when no recognition
// capability is present on the host (or the remote peer never announced one).
var ErrCapabilityUnavailable = errors.New("speech recognition capability unavailable")

// Result is a single recognized alternative within an event batch.
type Result struct {
	Transcript string
	IsFinal    bool
}

// Event is one recognition event batch. A batch carries zero or more finalized
// results followed by at most one trailing interim result, mirroring the
// browser SpeechRecognition event shape.
type Event struct {
	ResultIndex int
	Results     []Result
}

// Config holds the recognition settings for one capability session.
type Config struct {
	Language       string
	InterimResults bool
	Continuous     bool
}

// Capability is the external recognition engine. Start opens one underlying
// recognition session and returns its event stream; the channel is closed when
// the session ends, whether naturally (silence timeout) or after Stop.
type Capability interface {
	Start(cfg Config) (<-chan Event, error)
	Stop()
}
