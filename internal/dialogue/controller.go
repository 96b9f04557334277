package dialogue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/HanphoneJan/Ai-Interview-Agent/internal/session"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/interfaces"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

// Controller owns the per-session interview state machine. It drives
// question generation, answer evaluation and speech synthesis, persisting
// the derived records and delivering payloads to the session's clients.
type Controller struct {
	generator   interfaces.TextGenerator
	synthesizer interfaces.Synthesizer
	store       interfaces.Store
	deliverer   interfaces.Deliverer

	maxQuestions int
	callTimeout  time.Duration
}

// NewController creates a dialogue controller.
func NewController(generator interfaces.TextGenerator, synthesizer interfaces.Synthesizer, store interfaces.Store, deliverer interfaces.Deliverer, maxQuestions int, callTimeout time.Duration) *Controller {
	if maxQuestions <= 0 {
		maxQuestions = 5
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Controller{
		generator:    generator,
		synthesizer:  synthesizer,
		store:        store,
		deliverer:    deliverer,
		maxQuestions: maxQuestions,
		callTimeout:  callTimeout,
	}
}

// Begin asks the opening question for a freshly opened session. It is a
// no-op when the session already progressed past its first question.
func (c *Controller) Begin(ctx context.Context, h *session.Handle) error {
	if h.Closed() {
		return nil
	}
	if !h.Advance(types.StateAwaitingFirstQuestion, types.StateGeneratingNext) {
		return nil
	}

	if err := c.askQuestion(ctx, h, firstQuestionPrompt(h.Session.ScenarioID)); err != nil {
		h.SetState(types.StateAwaitingFirstQuestion)
		return err
	}
	return nil
}

// HandleAudio runs one answer turn: persist the analysis, evaluate the
// answer and either ask the next question or finish the interview. An
// empty transcript never advances the state.
func (c *Controller) HandleAudio(ctx context.Context, h *session.Handle, result *types.AnalysisResult) error {
	if result == nil || h.Closed() {
		return nil
	}

	h.LockTurn()
	defer h.UnlockTurn()

	if !result.Success || result.Transcript == "" {
		if result.Err != "" {
			log.Printf("Audio analysis for session %s failed: %s", h.Session.ID, result.Err)
		} else {
			log.Printf("Empty transcript for session %s, holding state", h.Session.ID)
		}
		return nil
	}

	analysis, err := c.persistAnalysis(ctx, h, result.Transcript)
	if err != nil {
		log.Printf("Failed to persist analysis for session %s: %v", h.Session.ID, err)
	}

	c.deliverer.Deliver(h.Session.ID, types.FeedbackPayload{
		Type:       "feedback",
		SpeechText: result.Transcript,
	})

	if h.State() == types.StateFinished {
		// Terminal sessions still accept media for storage, the question
		// loop stays closed.
		return nil
	}
	if !h.Advance(types.StateQuestionAsked, types.StateEvaluating) {
		return ErrTurnInProgress
	}

	h.AppendTurn(types.RoleCandidate, result.Transcript)

	if err := c.evaluate(ctx, h, analysis, result.Transcript); err != nil {
		log.Printf("Evaluation for session %s halted: %v", h.Session.ID, err)
		h.SetState(types.StateQuestionAsked)
		return err
	}

	h.SetState(types.StateGeneratingNext)

	count, err := c.store.CountQuestions(ctx, h.Session.ID)
	if err != nil {
		log.Printf("Question count for session %s failed: %v", h.Session.ID, err)
		h.SetState(types.StateQuestionAsked)
		return err
	}
	if count >= c.maxQuestions {
		return c.finish(ctx, h)
	}

	if err := c.askQuestion(ctx, h, nextQuestionPrompt(result.Transcript)); err != nil {
		h.SetState(types.StateQuestionAsked)
		return err
	}
	return nil
}

// HandleVideo attaches facial features to the latest analysis record and
// forwards them as feedback. Video never drives state transitions.
func (c *Controller) HandleVideo(ctx context.Context, h *session.Handle, result *types.AnalysisResult) {
	if result == nil || h.Closed() {
		return
	}
	if !result.Success {
		log.Printf("Video analysis for session %s failed: %s", h.Session.ID, result.Err)
		c.deliverer.Deliver(h.Session.ID, types.NewErrorPayload("video_analysis", result.Err))
		return
	}

	if len(result.Frames) > 0 {
		if err := c.store.AttachVideoAnalysis(ctx, h.Session.ID, encodeFrames(result.Frames)); err != nil {
			log.Printf("Attaching video analysis for session %s failed: %v", h.Session.ID, err)
		}
	}

	c.deliverer.Deliver(h.Session.ID, types.FeedbackPayload{
		Type:          "feedback",
		VideoAnalysis: result.Frames,
	})
}

// Finish ends the interview on explicit client request.
func (c *Controller) Finish(ctx context.Context, h *session.Handle) error {
	h.LockTurn()
	defer h.UnlockTurn()

	if h.State() == types.StateFinished {
		return ErrInterviewFinished
	}
	return c.finish(ctx, h)
}

func (c *Controller) finish(ctx context.Context, h *session.Handle) error {
	if err := c.store.MarkSessionFinished(ctx, h.Session.ID); err != nil {
		log.Printf("Marking session %s finished failed: %v", h.Session.ID, err)
		return err
	}
	h.SetState(types.StateFinished)
	c.deliverer.Deliver(h.Session.ID, map[string]any{"type": "finished", "session_id": h.Session.ID})
	log.Printf("Interview session %s finished", h.Session.ID)
	return nil
}

// askQuestion generates, persists, synthesizes and delivers one question,
// leaving the session in the question-asked state on success.
func (c *Controller) askQuestion(ctx context.Context, h *session.Handle, prompt string) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	gen := c.generator.Generate(callCtx, prompt, historyForGeneration(h.History()))
	if !gen.Success {
		return fmt.Errorf("question generation failed: %s", gen.Err)
	}

	count, err := c.store.CountQuestions(ctx, h.Session.ID)
	if err != nil {
		return fmt.Errorf("question count failed: %w", err)
	}

	question := &types.Question{
		ID:        uuid.New().String(),
		SessionID: h.Session.ID,
		Number:    count + 1,
		Text:      gen.Content,
		AskedAt:   time.Now(),
	}
	if err := c.store.CreateQuestion(ctx, question); err != nil {
		return fmt.Errorf("question persist failed: %w", err)
	}

	h.AppendTurn(types.RoleInterviewer, gen.Content)
	h.SetCurrentQuestion(question)

	synthCtx, cancelSynth := context.WithTimeout(ctx, c.callTimeout)
	defer cancelSynth()

	var audioBase64 string
	synth := c.synthesizer.Synthesize(synthCtx, gen.Content)
	if synth.Success {
		audioBase64 = base64.StdEncoding.EncodeToString(synth.Audio)
	} else {
		// Text still goes out; the client falls back to displaying it.
		log.Printf("Synthesis for session %s failed: %s", h.Session.ID, synth.Err)
	}

	c.deliverer.Deliver(h.Session.ID, types.NewQuestionPayload(audioBase64, gen.Content))
	h.SetState(types.StateQuestionAsked)
	return nil
}

// evaluate scores the answer against the current question and persists
// the evaluation record.
func (c *Controller) evaluate(ctx context.Context, h *session.Handle, analysis *types.Analysis, transcript string) error {
	questionText := ""
	if q := h.CurrentQuestion(); q != nil {
		questionText = q.Text
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	gen := c.generator.Generate(callCtx, evaluationPrompt(questionText, transcript), historyForGeneration(h.History()))
	if !gen.Success {
		return fmt.Errorf("evaluation call failed: %s", gen.Err)
	}

	eval := &types.Evaluation{
		ID:        uuid.New().String(),
		SessionID: h.Session.ID,
		Text:      gen.Content,
		Score:     parseScore(gen.Content),
		CreatedAt: time.Now(),
	}
	if q := h.CurrentQuestion(); q != nil {
		eval.QuestionID = q.ID
	}
	if analysis != nil {
		eval.AnalysisID = analysis.ID
	}
	if err := c.store.CreateEvaluation(ctx, eval); err != nil {
		return fmt.Errorf("evaluation persist failed: %w", err)
	}

	c.deliverer.Deliver(h.Session.ID, types.FeedbackPayload{
		Type: "feedback",
		Feedback: map[string]any{
			"evaluation": gen.Content,
			"score":      eval.Score,
		},
	})
	return nil
}

// encodeFrames serializes frame features for the stored analysis column.
func encodeFrames(frames []types.FrameAnalysis) string {
	encoded, err := json.Marshal(frames)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func (c *Controller) persistAnalysis(ctx context.Context, h *session.Handle, transcript string) (*types.Analysis, error) {
	analysis := &types.Analysis{
		ID:         uuid.New().String(),
		SessionID:  h.Session.ID,
		SpeechText: transcript,
		CreatedAt:  time.Now(),
	}
	if q := h.CurrentQuestion(); q != nil {
		analysis.QuestionID = q.ID
	}
	if err := c.store.CreateAnalysis(ctx, analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}
