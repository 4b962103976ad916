package session

// WelcomeFrame is the first frame sent on a new connection, carrying the
// cloned xiaozhi welcome object plus the session identifier.
type WelcomeFrame struct {
	Type    string                 `json:"type"`
	Welcome map[string]interface{} `json:"welcome"`
}

// TTSFrame reports TTS/playback state transitions to the client: start of
// a segment, stop of the whole utterance, or a stop issued by the
// catastrophic-error recovery path.
type TTSFrame struct {
	Type      string `json:"type"`
	State     string `json:"state"` // "start" | "sentence_start" | "stop"
	SessionID string `json:"session_id"`
	TextIndex int    `json:"text_index,omitempty"`
	Text      string `json:"text,omitempty"`
}

// BindFrame tells the client it must complete pairing before continuing.
type BindFrame struct {
	Type     string `json:"type"`
	BindCode string `json:"bind_code"`
}

// STTFrame reports a finalized recognition back to the client, mostly for
// on-device transcript display.
type STTFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func newTTSStopFrame(sessionID string) TTSFrame {
	return TTSFrame{Type: "tts", State: "stop", SessionID: sessionID}
}

func newTTSStartFrame(sessionID string, textIndex int, text string) TTSFrame {
	return TTSFrame{Type: "tts", State: "sentence_start", SessionID: sessionID, TextIndex: textIndex, Text: text}
}
