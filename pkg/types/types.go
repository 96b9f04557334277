package types

import (
	"time"
)

// Media type tags carried on every chunk and completed unit.
const (
	MediaTypeAudio = "audio"
	MediaTypeVideo = "video"
)

// Inbound message types accepted from the connection layer.
const (
	MessageTypeMediaChunk = "media_chunk"
	MessageTypeControl    = "control"
	MessageTypeImage      = "image"
)

// Conversation roles for the dialogue history.
const (
	RoleInterviewer = "interviewer"
	RoleCandidate   = "candidate"
)

// DialogueState tracks where a session sits in the question loop.
// Exactly one instance exists per session, owned by the dialogue controller.
type DialogueState string

const (
	StateAwaitingFirstQuestion DialogueState = "awaiting_first_question"
	StateQuestionAsked         DialogueState = "question_asked"
	StateAwaitingAnswer        DialogueState = "awaiting_answer"
	StateEvaluating            DialogueState = "evaluating"
	StateGeneratingNext        DialogueState = "generating_next"
	StateFinished              DialogueState = "finished"
)

// Session is the in-memory shadow of an interview session record.
// The authoritative record lives in the external store; the shadow is
// created at connection open and dropped at disconnect.
type Session struct {
	ID             string     `json:"id" db:"id"`
	UserID         string     `json:"user_id" db:"user_id"`
	ScenarioID     string     `json:"scenario_id" db:"scenario_id"`
	StartTime      time.Time  `json:"start_time" db:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty" db:"end_time"`
	TotalQuestions int        `json:"total_questions" db:"total_questions"`
	Finished       bool       `json:"finished" db:"finished"`
}

// Question is one generated interview question, persisted in ask order.
type Question struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	Number    int       `json:"number" db:"number"`
	Text      string    `json:"text" db:"text"`
	AskedAt   time.Time `json:"asked_at" db:"asked_at"`
}

// ConversationTurn is one entry of the in-memory dialogue history.
// History is append-only for the session's lifetime and is not persisted
// verbatim; only derived Question/Evaluation records reach the store.
type ConversationTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// FrameAnalysis is the expression result for one sampled video frame.
type FrameAnalysis struct {
	FrameIndex int            `json:"frame_index"`
	Timestamp  time.Duration  `json:"timestamp"`
	Features   map[string]any `json:"features"`
}

// AnalysisResult is the transient outcome of one analysis call.
// Success=false carries a descriptive error instead of a payload; failures
// never propagate past the dispatcher as panics or raw transport errors.
type AnalysisResult struct {
	Kind       string          `json:"kind"`
	Success    bool            `json:"success"`
	Transcript string          `json:"transcript,omitempty"`
	Frames     []FrameAnalysis `json:"frames,omitempty"`
	Err        string          `json:"error,omitempty"`
}

// Analysis is a persisted multimodal analysis record for one answer.
type Analysis struct {
	ID               string    `json:"id" db:"id"`
	SessionID        string    `json:"session_id" db:"session_id"`
	QuestionID       string    `json:"question_id" db:"question_id"`
	SpeechText       string    `json:"speech_text" db:"speech_text"`
	FacialExpression string    `json:"facial_expression" db:"facial_expression"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Evaluation is a persisted per-question answer evaluation.
type Evaluation struct {
	ID         string    `json:"id" db:"id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	QuestionID string    `json:"question_id" db:"question_id"`
	AnalysisID string    `json:"analysis_id" db:"analysis_id"`
	Text       string    `json:"text" db:"text"`
	Score      float64   `json:"score" db:"score"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// RecognitionResult is the speech-recognition engine contract.
type RecognitionResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Err     string `json:"error,omitempty"`
}

// SynthesisResult is the speech-synthesis engine contract.
type SynthesisResult struct {
	Success bool   `json:"success"`
	Audio   []byte `json:"-"`
	Err     string `json:"error,omitempty"`
}

// ExpressionResult is the facial-expression engine contract for one frame.
type ExpressionResult struct {
	Success  bool           `json:"success"`
	Features map[string]any `json:"features,omitempty"`
	Err      string         `json:"error,omitempty"`
}

// GenerationResult is the language-model engine contract.
type GenerationResult struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
	Err     string `json:"error,omitempty"`
}
