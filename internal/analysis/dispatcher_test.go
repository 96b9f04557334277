package analysis

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/HanphoneJan/Ai-Interview-Agent/internal/media"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

type mockRecognizer struct {
	result types.RecognitionResult
	delay  time.Duration
	calls  int
}

func (m *mockRecognizer) Recognize(ctx context.Context, pcm []byte) types.RecognitionResult {
	m.calls++
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return types.RecognitionResult{Success: false, Err: ctx.Err().Error()}
		}
	}
	return m.result
}

type mockExpression struct {
	results map[int]types.ExpressionResult
	fail    bool
	calls   int
}

func (m *mockExpression) AnalyzeFrame(ctx context.Context, frame []byte) types.ExpressionResult {
	m.calls++
	if m.fail {
		return types.ExpressionResult{Success: false, Err: "engine unavailable"}
	}
	if res, ok := m.results[m.calls-1]; ok {
		return res
	}
	return types.ExpressionResult{Success: true, Features: map[string]any{"expression": "neutral"}}
}

type mockNormalizer struct {
	pcm       []byte
	audioErr  error
	frames    []media.Frame
	framesErr error

	// transcoded is the payload the re-encode fallback produces; sampling
	// it succeeds even when the original payload fails.
	transcoded     []byte
	transcodeErr   error
	sampleCalls    int
	transcodeCalls int
}

func (m *mockNormalizer) ExtractAudio(ctx context.Context, raw []byte) ([]byte, error) {
	return m.pcm, m.audioErr
}

func (m *mockNormalizer) TranscodeVideo(ctx context.Context, raw []byte) ([]byte, error) {
	m.transcodeCalls++
	return m.transcoded, m.transcodeErr
}

func (m *mockNormalizer) SampleFrames(ctx context.Context, raw []byte, interval time.Duration) ([]media.Frame, error) {
	m.sampleCalls++
	if m.framesErr != nil && (len(m.transcoded) == 0 || !bytes.Equal(raw, m.transcoded)) {
		return nil, m.framesErr
	}
	return m.frames, nil
}

// TestDispatcher_AudioTimeout verifies a slow recognition call yields a soft
// failure with an empty transcript instead of hanging.
func TestDispatcher_AudioTimeout(t *testing.T) {
	rec := &mockRecognizer{delay: time.Second, result: types.RecognitionResult{Success: true, Text: "late"}}
	d := NewDispatcher(rec, &mockExpression{}, &mockNormalizer{}, 50*time.Millisecond, time.Second)

	result := d.AnalyzeAudio(context.Background(), []byte("pcm"))

	if result.Success {
		t.Error("Expected success=false on timeout")
	}
	if result.Transcript != "" {
		t.Errorf("Expected empty transcript, got %q", result.Transcript)
	}
	if result.Err == "" {
		t.Error("Expected a descriptive error on timeout")
	}
}

// TestDispatcher_AudioSuccess verifies a recognized transcript passes through.
func TestDispatcher_AudioSuccess(t *testing.T) {
	rec := &mockRecognizer{result: types.RecognitionResult{Success: true, Text: "I worked on distributed systems"}}
	d := NewDispatcher(rec, &mockExpression{}, &mockNormalizer{}, time.Second, time.Second)

	result := d.AnalyzeAudio(context.Background(), []byte("pcm"))

	if !result.Success {
		t.Fatalf("Expected success, got error %q", result.Err)
	}
	if result.Transcript != "I worked on distributed systems" {
		t.Errorf("Unexpected transcript %q", result.Transcript)
	}
}

// TestDispatcher_VideoHardError verifies an unopenable container produces the
// exact hard-failure shape (success=false, "cannot open media", empty frames)
// only after the re-encode fallback also failed.
func TestDispatcher_VideoHardError(t *testing.T) {
	norm := &mockNormalizer{
		framesErr:    errors.New("decoder exploded"),
		transcodeErr: errors.New("re-encode exploded"),
	}
	d := NewDispatcher(&mockRecognizer{}, &mockExpression{}, norm, time.Second, time.Second)

	result := d.AnalyzeVideo(context.Background(), []byte("junk"))

	if result.Success {
		t.Error("Expected success=false on hard error")
	}
	if result.Err != "cannot open media" {
		t.Errorf("Expected error %q, got %q", "cannot open media", result.Err)
	}
	if result.Frames == nil || len(result.Frames) != 0 {
		t.Errorf("Expected empty non-nil frame list, got %#v", result.Frames)
	}
	if norm.transcodeCalls != 1 {
		t.Errorf("Expected 1 re-encode attempt before the hard error, got %d", norm.transcodeCalls)
	}
}

// TestDispatcher_VideoTranscodeFallback verifies a container the sampler
// cannot open directly is re-encoded and sampled again before giving up.
func TestDispatcher_VideoTranscodeFallback(t *testing.T) {
	norm := &mockNormalizer{
		framesErr:  errors.New("moov atom not found"),
		transcoded: []byte("re-encoded"),
		frames:     []media.Frame{{Index: 0, JPEG: []byte("f0")}},
	}
	d := NewDispatcher(&mockRecognizer{}, &mockExpression{}, norm, time.Second, time.Second)

	result := d.AnalyzeVideo(context.Background(), []byte("fragmented"))

	if !result.Success {
		t.Fatalf("Expected fallback to recover, got error %q", result.Err)
	}
	if len(result.Frames) != 1 {
		t.Fatalf("Expected 1 analyzed frame after fallback, got %d", len(result.Frames))
	}
	if norm.transcodeCalls != 1 {
		t.Errorf("Expected 1 re-encode, got %d", norm.transcodeCalls)
	}
	if norm.sampleCalls != 2 {
		t.Errorf("Expected sampling of original then re-encoded payload, got %d calls", norm.sampleCalls)
	}
}

// TestDispatcher_VideoPartialFrameFailures verifies per-frame failures do not
// abort the rest and are flagged distinctly from a hard error.
func TestDispatcher_VideoPartialFrameFailures(t *testing.T) {
	norm := &mockNormalizer{frames: []media.Frame{
		{Index: 0, Timestamp: 0, JPEG: []byte("f0")},
		{Index: 1, Timestamp: 10 * time.Second, JPEG: []byte("f1")},
		{Index: 2, Timestamp: 20 * time.Second, JPEG: []byte("f2")},
	}}
	expr := &mockExpression{results: map[int]types.ExpressionResult{
		1: {Success: false, Err: "blurred face"},
	}}
	d := NewDispatcher(&mockRecognizer{}, expr, norm, time.Second, time.Second)

	result := d.AnalyzeVideo(context.Background(), []byte("video"))

	if !result.Success {
		t.Fatalf("Expected success with partial failures, got error %q", result.Err)
	}
	if len(result.Frames) != 2 {
		t.Fatalf("Expected 2 analyzed frames, got %d", len(result.Frames))
	}
	if !strings.Contains(result.Err, "frame 1") {
		t.Errorf("Expected per-frame failure flagged, got %q", result.Err)
	}
	if result.Frames[0].FrameIndex != 0 || result.Frames[1].FrameIndex != 2 {
		t.Errorf("Unexpected surviving frame indexes: %d, %d",
			result.Frames[0].FrameIndex, result.Frames[1].FrameIndex)
	}
}

// TestDispatcher_DispatchVideoRunsBothTracks verifies a video unit produces
// both an audio and a video result.
func TestDispatcher_DispatchVideoRunsBothTracks(t *testing.T) {
	rec := &mockRecognizer{result: types.RecognitionResult{Success: true, Text: "answer"}}
	norm := &mockNormalizer{
		pcm:    []byte("pcm"),
		frames: []media.Frame{{Index: 0, JPEG: []byte("f0")}},
	}
	d := NewDispatcher(rec, &mockExpression{}, norm, time.Second, time.Second)

	unit := &media.CompletedUnit{SessionID: "s1", MediaType: types.MediaTypeVideo, Payload: []byte("video")}
	outcome := d.Dispatch(context.Background(), unit)

	if outcome.Audio == nil || !outcome.Audio.Success || outcome.Audio.Transcript != "answer" {
		t.Errorf("Expected audio track recognized, got %#v", outcome.Audio)
	}
	if outcome.Video == nil || !outcome.Video.Success || len(outcome.Video.Frames) != 1 {
		t.Errorf("Expected video track analyzed, got %#v", outcome.Video)
	}
}

// TestDispatcher_DispatchAudioSkipsVideo verifies an audio unit never runs
// frame analysis.
func TestDispatcher_DispatchAudioSkipsVideo(t *testing.T) {
	rec := &mockRecognizer{result: types.RecognitionResult{Success: true, Text: "answer"}}
	expr := &mockExpression{}
	d := NewDispatcher(rec, expr, &mockNormalizer{pcm: []byte("pcm")}, time.Second, time.Second)

	unit := &media.CompletedUnit{SessionID: "s1", MediaType: types.MediaTypeAudio, Payload: []byte("audio")}
	outcome := d.Dispatch(context.Background(), unit)

	if outcome.Video != nil {
		t.Error("Expected no video result for an audio unit")
	}
	if expr.calls != 0 {
		t.Errorf("Expected no expression calls, got %d", expr.calls)
	}
	if outcome.Audio == nil || outcome.Audio.Transcript != "answer" {
		t.Errorf("Expected audio recognized, got %#v", outcome.Audio)
	}
}

// TestDispatcher_ExtractionFailureDegrades verifies a failed audio extraction
// yields no audio result rather than an error result.
func TestDispatcher_ExtractionFailureDegrades(t *testing.T) {
	norm := &mockNormalizer{audioErr: media.ErrNoAudioStream, frames: []media.Frame{}}
	rec := &mockRecognizer{}
	d := NewDispatcher(rec, &mockExpression{}, norm, time.Second, time.Second)

	unit := &media.CompletedUnit{SessionID: "s1", MediaType: types.MediaTypeVideo, Payload: []byte("video")}
	outcome := d.Dispatch(context.Background(), unit)

	if outcome.Audio != nil {
		t.Errorf("Expected nil audio result when extraction fails, got %#v", outcome.Audio)
	}
	if rec.calls != 0 {
		t.Errorf("Expected recognizer never called, got %d calls", rec.calls)
	}
}
