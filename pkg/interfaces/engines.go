package interfaces

import (
	"context"

	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

// Recognizer converts normalized PCM audio (mono, 16 kHz, 16-bit) into text.
// Failures are carried inside the result; a recognizer never panics and
// never returns transport errors to the caller.
type Recognizer interface {
	Recognize(ctx context.Context, pcm []byte) types.RecognitionResult
}

// Synthesizer converts question text into playable audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) types.SynthesisResult
}

// ExpressionAnalyzer extracts facial-expression features from a single
// JPEG-encoded frame.
type ExpressionAnalyzer interface {
	AnalyzeFrame(ctx context.Context, frame []byte) types.ExpressionResult
}

// TextGenerator produces interview questions and answer evaluations from a
// prompt plus the running conversation history.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, history []types.ConversationTurn) types.GenerationResult
}
