package dialogue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/HanphoneJan/Ai-Interview-Agent/internal/session"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/interfaces"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

type mockStore struct {
	mu          sync.Mutex
	sessions    map[string]*types.Session
	questions   []*types.Question
	analyses    []*types.Analysis
	evaluations []*types.Evaluation
	finished    map[string]bool
	failCreate  bool
}

func newMockStore() *mockStore {
	return &mockStore{
		sessions: map[string]*types.Session{
			"s1": {ID: "s1", UserID: "u1", ScenarioID: "backend"},
		},
		finished: make(map[string]bool),
	}
}

func (m *mockStore) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		return s, nil
	}
	return nil, interfaces.ErrSessionNotFound
}

func (m *mockStore) CreateSession(ctx context.Context, s *types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *mockStore) MarkSessionFinished(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[sessionID] = true
	return nil
}

func (m *mockStore) ListSessions(ctx context.Context, userID string) ([]*types.Session, error) {
	return nil, nil
}

func (m *mockStore) CreateQuestion(ctx context.Context, q *types.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return fmt.Errorf("store unavailable")
	}
	m.questions = append(m.questions, q)
	return nil
}

func (m *mockStore) CountQuestions(ctx context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, q := range m.questions {
		if q.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func (m *mockStore) CreateAnalysis(ctx context.Context, a *types.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = append(m.analyses, a)
	return nil
}

func (m *mockStore) LatestAnalysis(ctx context.Context, sessionID string) (*types.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.analyses) - 1; i >= 0; i-- {
		if m.analyses[i].SessionID == sessionID {
			return m.analyses[i], nil
		}
	}
	return nil, interfaces.ErrAnalysisNotFound
}

func (m *mockStore) AttachVideoAnalysis(ctx context.Context, sessionID, facialExpression string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.analyses) - 1; i >= 0; i-- {
		if m.analyses[i].SessionID == sessionID {
			m.analyses[i].FacialExpression = facialExpression
			return nil
		}
	}
	return interfaces.ErrAnalysisNotFound
}

func (m *mockStore) CreateEvaluation(ctx context.Context, e *types.Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations = append(m.evaluations, e)
	return nil
}

func (m *mockStore) HealthCheck(ctx context.Context) error { return nil }
func (m *mockStore) Close() error                          { return nil }

type mockGenerator struct {
	mu      sync.Mutex
	replies []string
	calls   int
	fail    bool
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, history []types.ConversationTurn) types.GenerationResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail {
		return types.GenerationResult{Success: false, Err: "model unavailable"}
	}
	reply := "Tell me about yourself."
	if len(m.replies) > 0 {
		reply = m.replies[0]
		if len(m.replies) > 1 {
			m.replies = m.replies[1:]
		}
	}
	return types.GenerationResult{Success: true, Content: reply}
}

type mockSynthesizer struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, text string) types.SynthesisResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail {
		return types.SynthesisResult{Success: false, Err: "voice unavailable"}
	}
	return types.SynthesisResult{Success: true, Audio: []byte("mp3")}
}

type mockDeliverer struct {
	mu       sync.Mutex
	payloads []any
}

func (m *mockDeliverer) Deliver(sessionID string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
}

func (m *mockDeliverer) questionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, p := range m.payloads {
		if q, ok := p.(*types.QuestionPayload); ok && q.Type == "question" {
			count++
		}
	}
	return count
}

func openHandle(t *testing.T, store interfaces.Store) *session.Handle {
	t.Helper()
	h, _, err := session.NewManager(store).Open(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Open session failed: %v", err)
	}
	return h
}

// TestController_ClosedHandleIsInert verifies analysis results landing after
// the session's last disconnect are dropped without persistence or delivery.
func TestController_ClosedHandleIsInert(t *testing.T) {
	store := newMockStore()
	gen := &mockGenerator{}
	del := &mockDeliverer{}
	c := NewController(gen, &mockSynthesizer{}, store, del, 5, time.Second)

	sessions := session.NewManager(store)
	h, _, err := sessions.Open(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Open session failed: %v", err)
	}
	if !sessions.Release("s1") {
		t.Fatal("Expected release to drop the last reference")
	}

	if err := c.Begin(context.Background(), h); err != nil {
		t.Fatalf("Begin on closed handle failed: %v", err)
	}
	audio := &types.AnalysisResult{Kind: types.MediaTypeAudio, Success: true, Transcript: "A late answer."}
	if err := c.HandleAudio(context.Background(), h, audio); err != nil {
		t.Fatalf("HandleAudio on closed handle failed: %v", err)
	}
	video := &types.AnalysisResult{Kind: types.MediaTypeVideo, Success: true,
		Frames: []types.FrameAnalysis{{FrameIndex: 0, Features: map[string]any{"expression": "calm"}}}}
	c.HandleVideo(context.Background(), h, video)

	if gen.calls != 0 {
		t.Errorf("Expected no generation for a closed session, got %d calls", gen.calls)
	}
	if len(store.analyses) != 0 || len(store.questions) != 0 {
		t.Errorf("Expected nothing persisted, got %d analyses and %d questions",
			len(store.analyses), len(store.questions))
	}
	if len(del.payloads) != 0 {
		t.Errorf("Expected no deliveries, got %d", len(del.payloads))
	}
}

// TestController_BeginAsksExactlyOneQuestion verifies the opening turn:
// one generation, one synthesis, one question delivery, state QUESTION_ASKED.
func TestController_BeginAsksExactlyOneQuestion(t *testing.T) {
	store := newMockStore()
	gen := &mockGenerator{}
	synth := &mockSynthesizer{}
	del := &mockDeliverer{}
	c := NewController(gen, synth, store, del, 5, time.Second)
	h := openHandle(t, store)

	if err := c.Begin(context.Background(), h); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if gen.calls != 1 {
		t.Errorf("Expected 1 generation call, got %d", gen.calls)
	}
	if synth.calls != 1 {
		t.Errorf("Expected 1 synthesis call, got %d", synth.calls)
	}
	if del.questionCount() != 1 {
		t.Errorf("Expected 1 question delivery, got %d", del.questionCount())
	}
	if len(store.questions) != 1 || store.questions[0].Number != 1 {
		t.Errorf("Expected one persisted question numbered 1, got %#v", store.questions)
	}
	if h.State() != types.StateQuestionAsked {
		t.Errorf("Expected state %s, got %s", types.StateQuestionAsked, h.State())
	}

	// A second Begin for the same session is a no-op.
	if err := c.Begin(context.Background(), h); err != nil {
		t.Fatalf("Second Begin failed: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("Expected no further generation calls, got %d", gen.calls)
	}
}

// TestController_EmptyTranscriptHoldsState verifies silence never advances
// the state machine or triggers evaluation.
func TestController_EmptyTranscriptHoldsState(t *testing.T) {
	store := newMockStore()
	gen := &mockGenerator{}
	c := NewController(gen, &mockSynthesizer{}, store, &mockDeliverer{}, 5, time.Second)
	h := openHandle(t, store)

	if err := c.Begin(context.Background(), h); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	callsAfterBegin := gen.calls

	result := &types.AnalysisResult{Kind: types.MediaTypeAudio, Success: true, Transcript: ""}
	if err := c.HandleAudio(context.Background(), h, result); err != nil {
		t.Fatalf("HandleAudio failed: %v", err)
	}

	if h.State() != types.StateQuestionAsked {
		t.Errorf("Expected state unchanged, got %s", h.State())
	}
	if gen.calls != callsAfterBegin {
		t.Errorf("Expected no evaluation or generation calls, got %d extra", gen.calls-callsAfterBegin)
	}
	if len(store.evaluations) != 0 {
		t.Errorf("Expected no evaluations, got %d", len(store.evaluations))
	}
}

// TestController_FailedRecognitionHoldsState verifies a failed analysis is
// treated the same as silence.
func TestController_FailedRecognitionHoldsState(t *testing.T) {
	store := newMockStore()
	c := NewController(&mockGenerator{}, &mockSynthesizer{}, store, &mockDeliverer{}, 5, time.Second)
	h := openHandle(t, store)

	if err := c.Begin(context.Background(), h); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	result := &types.AnalysisResult{Kind: types.MediaTypeAudio, Success: false, Err: "recognition timed out"}
	if err := c.HandleAudio(context.Background(), h, result); err != nil {
		t.Fatalf("HandleAudio failed: %v", err)
	}

	if h.State() != types.StateQuestionAsked {
		t.Errorf("Expected state unchanged, got %s", h.State())
	}
	if len(store.analyses) != 0 {
		t.Errorf("Expected no analysis persisted for failed recognition, got %d", len(store.analyses))
	}
}

// TestController_FullTurn verifies a non-empty answer persists the analysis
// and evaluation, then asks the next question.
func TestController_FullTurn(t *testing.T) {
	store := newMockStore()
	gen := &mockGenerator{replies: []string{
		"Tell me about yourself.",
		"Good answer. Score: 85",
		"What was your hardest bug?",
	}}
	del := &mockDeliverer{}
	c := NewController(gen, &mockSynthesizer{}, store, del, 5, time.Second)
	h := openHandle(t, store)

	if err := c.Begin(context.Background(), h); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	result := &types.AnalysisResult{Kind: types.MediaTypeAudio, Success: true, Transcript: "I build backend services."}
	if err := c.HandleAudio(context.Background(), h, result); err != nil {
		t.Fatalf("HandleAudio failed: %v", err)
	}

	if len(store.analyses) != 1 || store.analyses[0].SpeechText != "I build backend services." {
		t.Errorf("Expected persisted analysis with transcript, got %#v", store.analyses)
	}
	if len(store.evaluations) != 1 {
		t.Fatalf("Expected 1 evaluation, got %d", len(store.evaluations))
	}
	if store.evaluations[0].Score != 85 {
		t.Errorf("Expected score 85, got %v", store.evaluations[0].Score)
	}
	if store.evaluations[0].AnalysisID != store.analyses[0].ID {
		t.Error("Expected evaluation linked to the persisted analysis")
	}
	if len(store.questions) != 2 {
		t.Errorf("Expected a second question, got %d", len(store.questions))
	}
	if h.State() != types.StateQuestionAsked {
		t.Errorf("Expected state %s after turn, got %s", types.StateQuestionAsked, h.State())
	}
	if del.questionCount() != 2 {
		t.Errorf("Expected 2 question deliveries, got %d", del.questionCount())
	}
}

// TestController_MaxQuestionsFinishes verifies the question limit transitions
// to FINISHED with no further generation call for a new question.
func TestController_MaxQuestionsFinishes(t *testing.T) {
	store := newMockStore()
	gen := &mockGenerator{replies: []string{
		"Opening question?",
		"Fine. Score: 70",
	}}
	del := &mockDeliverer{}
	c := NewController(gen, &mockSynthesizer{}, store, del, 1, time.Second)
	h := openHandle(t, store)

	if err := c.Begin(context.Background(), h); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	result := &types.AnalysisResult{Kind: types.MediaTypeAudio, Success: true, Transcript: "My answer."}
	if err := c.HandleAudio(context.Background(), h, result); err != nil {
		t.Fatalf("HandleAudio failed: %v", err)
	}

	if h.State() != types.StateFinished {
		t.Errorf("Expected state %s, got %s", types.StateFinished, h.State())
	}
	if !store.finished["s1"] {
		t.Error("Expected session marked finished in store")
	}
	// One call for the opening question, one for the evaluation; none for a
	// next question.
	if gen.calls != 2 {
		t.Errorf("Expected 2 generation calls, got %d", gen.calls)
	}
	if del.questionCount() != 1 {
		t.Errorf("Expected no question after finishing, got %d deliveries", del.questionCount())
	}
}

// TestController_GenerationFailureFailStops verifies an external-call failure
// halts the turn and leaves the session answerable again, with no retry.
func TestController_GenerationFailureFailStops(t *testing.T) {
	store := newMockStore()
	gen := &mockGenerator{replies: []string{"Opening question?"}}
	c := NewController(gen, &mockSynthesizer{}, store, &mockDeliverer{}, 5, time.Second)
	h := openHandle(t, store)

	if err := c.Begin(context.Background(), h); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	gen.mu.Lock()
	gen.fail = true
	gen.mu.Unlock()

	result := &types.AnalysisResult{Kind: types.MediaTypeAudio, Success: true, Transcript: "An answer."}
	err := c.HandleAudio(context.Background(), h, result)
	if err == nil {
		t.Fatal("Expected turn to halt on evaluation failure")
	}

	if h.State() != types.StateQuestionAsked {
		t.Errorf("Expected state reverted to %s, got %s", types.StateQuestionAsked, h.State())
	}
	if len(store.evaluations) != 0 {
		t.Errorf("Expected no evaluation persisted, got %d", len(store.evaluations))
	}
}

// TestController_SynthesisFailureStillDeliversText verifies a failed TTS call
// does not block the question text from reaching the client.
func TestController_SynthesisFailureStillDeliversText(t *testing.T) {
	store := newMockStore()
	del := &mockDeliverer{}
	c := NewController(&mockGenerator{}, &mockSynthesizer{fail: true}, store, del, 5, time.Second)
	h := openHandle(t, store)

	if err := c.Begin(context.Background(), h); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if del.questionCount() != 1 {
		t.Fatalf("Expected question delivered despite synthesis failure, got %d", del.questionCount())
	}
	del.mu.Lock()
	q := del.payloads[0].(*types.QuestionPayload)
	del.mu.Unlock()
	if q.QuestionText == "" {
		t.Error("Expected question text present")
	}
	if q.AudioData != "" {
		t.Error("Expected empty audio data when synthesis fails")
	}
}

// TestController_VideoNeverDrivesState verifies video results only annotate
// the latest analysis record.
func TestController_VideoNeverDrivesState(t *testing.T) {
	store := newMockStore()
	gen := &mockGenerator{replies: []string{
		"Opening question?",
		"Fine. Score: 60",
		"Next question?",
	}}
	c := NewController(gen, &mockSynthesizer{}, store, &mockDeliverer{}, 5, time.Second)
	h := openHandle(t, store)

	if err := c.Begin(context.Background(), h); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	audio := &types.AnalysisResult{Kind: types.MediaTypeAudio, Success: true, Transcript: "Answer one."}
	if err := c.HandleAudio(context.Background(), h, audio); err != nil {
		t.Fatalf("HandleAudio failed: %v", err)
	}
	stateBefore := h.State()

	video := &types.AnalysisResult{
		Kind:    types.MediaTypeVideo,
		Success: true,
		Frames:  []types.FrameAnalysis{{FrameIndex: 0, Features: map[string]any{"expression": "calm"}}},
	}
	c.HandleVideo(context.Background(), h, video)

	if h.State() != stateBefore {
		t.Errorf("Expected state unchanged by video, got %s", h.State())
	}
	if store.analyses[0].FacialExpression == "" {
		t.Error("Expected facial features attached to the latest analysis")
	}
}

// TestController_FinishIsTerminal verifies explicit finish marks the session
// and rejects a second finish.
func TestController_FinishIsTerminal(t *testing.T) {
	store := newMockStore()
	c := NewController(&mockGenerator{}, &mockSynthesizer{}, store, &mockDeliverer{}, 5, time.Second)
	h := openHandle(t, store)

	if err := c.Finish(context.Background(), h); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if h.State() != types.StateFinished {
		t.Errorf("Expected state %s, got %s", types.StateFinished, h.State())
	}
	if err := c.Finish(context.Background(), h); err != ErrInterviewFinished {
		t.Errorf("Expected ErrInterviewFinished on second finish, got %v", err)
	}
}

// TestParseScore covers the evaluation score extraction.
func TestParseScore(t *testing.T) {
	cases := []struct {
		reply string
		want  float64
	}{
		{"Solid answer.\nScore: 85", 85},
		{"score: 42.5", 42.5},
		{"No score here", 0},
		{"Score: 150", 100},
		{"Score: -3", 0},
	}
	for _, tc := range cases {
		if got := parseScore(tc.reply); got != tc.want {
			t.Errorf("parseScore(%q) = %v, want %v", tc.reply, got, tc.want)
		}
	}
}
