package voice

// Session is a point-in-time snapshot of one voice capture session.
// FinalTranscript and AccumulatedTranslation only ever grow; the interim pair
// is wholly replaced by each newer partial segment.
type Session struct {
	ID                     string `json:"id"`
	IsRecording            bool   `json:"isRecording"`
	ElapsedSeconds         int    `json:"elapsedSeconds"`
	InterimTranscript      string `json:"interimTranscript"`
	InterimTranslation     string `json:"interimTranslation"`
	FinalTranscript        string `json:"finalTranscript"`
	AccumulatedTranslation string `json:"accumulatedTranslation"`
	SourceLanguage         string `json:"sourceLanguage"`
	TargetLanguage         string `json:"targetLanguage"`
}

// Result is handed to the completion callback once per finalized speech
// segment. Text carries the entire accumulated translation so far, not just
// the newest segment. Language is the tag the words were spoken in (the
// session's source language), even though Text is already in the target
// language.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}
