package types

// ClientMessage is the single inbound envelope accepted over a session
// connection. Binary payloads (chunk, data) travel base64-encoded so the
// whole envelope stays a text frame.
type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	IsLast    bool   `json:"is_last,omitempty"`
	Action    string `json:"action,omitempty"`
	Data      string `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// QuestionPayload delivers a generated question with its synthesized audio
// in one message so text and audio cannot be observed out of order.
type QuestionPayload struct {
	Type         string `json:"type"`
	AudioData    string `json:"audio_data"`
	QuestionText string `json:"question_text"`
}

// FeedbackPayload delivers per-turn analysis feedback to the client group.
type FeedbackPayload struct {
	Type          string          `json:"type"`
	Feedback      map[string]any  `json:"feedback,omitempty"`
	SpeechText    string          `json:"speech_text,omitempty"`
	VideoAnalysis []FrameAnalysis `json:"video_analysis,omitempty"`
}

// ErrorPayload reports a contained error back to the client. Type is
// "error" for processing failures and "parse_error" for malformed input.
type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewQuestionPayload builds the outbound question message.
func NewQuestionPayload(audioBase64, text string) *QuestionPayload {
	return &QuestionPayload{
		Type:         "question",
		AudioData:    audioBase64,
		QuestionText: text,
	}
}

// NewErrorPayload builds an outbound error message.
func NewErrorPayload(kind, message string) *ErrorPayload {
	return &ErrorPayload{Type: kind, Message: message}
}
