package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/HanphoneJan/Ai-Interview-Agent/internal/media"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/interfaces"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

// Normalizer is the slice of the transcoder the dispatcher depends on.
type Normalizer interface {
	ExtractAudio(ctx context.Context, raw []byte) ([]byte, error)
	TranscodeVideo(ctx context.Context, raw []byte) ([]byte, error)
	SampleFrames(ctx context.Context, raw []byte, interval time.Duration) ([]media.Frame, error)
}

// Outcome carries the analysis results for one completed unit. Either field
// may be nil when the corresponding stream was absent or skipped.
type Outcome struct {
	Audio *types.AnalysisResult
	Video *types.AnalysisResult
}

// Dispatcher invokes speech-to-text and facial-expression analysis against
// normalized media. Every external call carries a bounded timeout; failures
// surface inside the result structure, never as panics past this boundary.
type Dispatcher struct {
	recognizer    interfaces.Recognizer
	expression    interfaces.ExpressionAnalyzer
	normalizer    Normalizer
	callTimeout   time.Duration
	frameInterval time.Duration
}

// NewDispatcher creates a dispatcher with the given engine clients.
func NewDispatcher(recognizer interfaces.Recognizer, expression interfaces.ExpressionAnalyzer,
	normalizer Normalizer, callTimeout, frameInterval time.Duration) *Dispatcher {
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	if frameInterval <= 0 {
		frameInterval = 10 * time.Second
	}
	return &Dispatcher{
		recognizer:    recognizer,
		expression:    expression,
		normalizer:    normalizer,
		callTimeout:   callTimeout,
		frameInterval: frameInterval,
	}
}

// AnalyzeAudio submits PCM audio to the speech-recognition engine under a
// bounded timeout. On timeout or transport error the result carries
// success=false, an empty transcript and a descriptive error.
func (d *Dispatcher) AnalyzeAudio(ctx context.Context, pcm []byte) types.AnalysisResult {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	resultCh := make(chan types.RecognitionResult, 1)
	go func() {
		resultCh <- d.recognizer.Recognize(callCtx, pcm)
	}()

	select {
	case res := <-resultCh:
		if !res.Success {
			return types.AnalysisResult{Kind: types.MediaTypeAudio, Success: false, Err: res.Err}
		}
		return types.AnalysisResult{Kind: types.MediaTypeAudio, Success: true, Transcript: res.Text}
	case <-callCtx.Done():
		return types.AnalysisResult{
			Kind:    types.MediaTypeAudio,
			Success: false,
			Err:     fmt.Sprintf("speech recognition timed out after %s", d.callTimeout),
		}
	}
}

// AnalyzeVideo samples frames at the configured interval and submits each
// one independently to the expression engine. A container the sampler
// cannot open gets one re-encode attempt before the whole call is declared
// a hard failure; a single frame's failure only flags the error field
// while remaining frames proceed.
func (d *Dispatcher) AnalyzeVideo(ctx context.Context, raw []byte) types.AnalysisResult {
	frames, err := d.normalizer.SampleFrames(ctx, raw, d.frameInterval)
	if err != nil {
		log.Printf("Frame sampling failed, re-encoding container: %v", err)
		transcoded, terr := d.normalizer.TranscodeVideo(ctx, raw)
		if terr == nil {
			frames, err = d.normalizer.SampleFrames(ctx, transcoded, d.frameInterval)
		}
		if terr != nil || err != nil {
			return types.AnalysisResult{
				Kind:    types.MediaTypeVideo,
				Success: false,
				Err:     "cannot open media",
				Frames:  []types.FrameAnalysis{},
			}
		}
	}

	var analyzed []types.FrameAnalysis
	var frameErrs []string

	for _, frame := range frames {
		callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
		res := d.expression.AnalyzeFrame(callCtx, frame.JPEG)
		cancel()

		if !res.Success {
			frameErrs = append(frameErrs, fmt.Sprintf("frame %d: %s", frame.Index, res.Err))
			continue
		}
		analyzed = append(analyzed, types.FrameAnalysis{
			FrameIndex: frame.Index,
			Timestamp:  frame.Timestamp,
			Features:   res.Features,
		})
	}

	// The sampling loop completed, so the call succeeded even when some
	// frames failed; per-frame failures are reported distinctly.
	return types.AnalysisResult{
		Kind:    types.MediaTypeVideo,
		Success: true,
		Frames:  analyzed,
		Err:     strings.Join(frameErrs, "; "),
	}
}

// Dispatch normalizes a completed unit and runs the applicable analyses.
// For video units the audio track extraction/recognition and the frame
// expression analysis run concurrently since they are independent.
func (d *Dispatcher) Dispatch(ctx context.Context, unit *media.CompletedUnit) Outcome {
	switch unit.MediaType {
	case types.MediaTypeAudio:
		return Outcome{Audio: d.analyzeAudioTrack(ctx, unit)}

	case types.MediaTypeVideo:
		audioCh := make(chan *types.AnalysisResult, 1)
		go func() {
			audioCh <- d.analyzeAudioTrack(ctx, unit)
		}()

		video := d.AnalyzeVideo(ctx, unit.Payload)
		return Outcome{Audio: <-audioCh, Video: &video}

	default:
		log.Printf("Unsupported media type for analysis: %s", unit.MediaType)
		return Outcome{}
	}
}

// analyzeAudioTrack extracts the PCM track and recognizes it. A container
// without an audio stream or a failed extraction degrades to nil: the turn
// proceeds without a transcript.
func (d *Dispatcher) analyzeAudioTrack(ctx context.Context, unit *media.CompletedUnit) *types.AnalysisResult {
	pcm, err := d.normalizer.ExtractAudio(ctx, unit.Payload)
	if err != nil {
		log.Printf("Audio extraction skipped: session=%s type=%s err=%v", unit.SessionID, unit.MediaType, err)
		return nil
	}

	result := d.AnalyzeAudio(ctx, pcm)
	return &result
}
