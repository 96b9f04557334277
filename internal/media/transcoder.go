package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Frame is one sampled video frame as JPEG bytes.
type Frame struct {
	Index     int
	Timestamp time.Duration
	JPEG      []byte
}

// Transcoder normalizes raw container bytes by invoking an external decoder
// binary. Every invocation works inside its own temporary directory, which
// is removed on every exit path; subprocess handles never outlive the call.
type Transcoder struct {
	ffmpegPath string
	workDir    string
}

// NewTranscoder creates a transcoder using the given decoder binary.
func NewTranscoder(ffmpegPath, workDir string) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Transcoder{ffmpegPath: ffmpegPath, workDir: workDir}
}

// scratchDir creates a per-call temporary directory. The caller must invoke
// the returned cleanup exactly once.
func (t *Transcoder) scratchDir() (string, func(), error) {
	dir := filepath.Join(t.workDir, "interview-media-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("Failed to remove scratch dir %s: %v", dir, err)
		}
	}
	return dir, cleanup, nil
}

// run executes the decoder with the given arguments, returning stderr on
// failure so callers can classify the error.
func (t *Transcoder) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrToolUnavailable, t.ffmpegPath)
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return fmt.Errorf("%w: %v", ErrToolUnavailable, execErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 400 {
			detail = detail[len(detail)-400:]
		}
		if strings.Contains(detail, "does not contain any stream") ||
			strings.Contains(detail, "Output file does not contain any stream") {
			return ErrNoAudioStream
		}
		return fmt.Errorf("%w: %s", ErrDecodeFailed, detail)
	}
	return nil
}

// ExtractAudio demuxes and resamples the container to mono 16 kHz signed
// 16-bit little-endian PCM. Returns ErrNoAudioStream when the container has
// no audio; all failures are soft for the caller, which proceeds without a
// transcript for that turn.
func (t *Transcoder) ExtractAudio(ctx context.Context, raw []byte) ([]byte, error) {
	dir, cleanup, err := t.scratchDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	input := filepath.Join(dir, "input")
	output := filepath.Join(dir, "audio.pcm")
	if err := os.WriteFile(input, raw, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write input file: %w", err)
	}

	err = t.run(ctx, "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vn", "-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1",
		"-f", "s16le", output)
	if err != nil {
		return nil, err
	}

	pcm, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, ErrNoAudioStream
	}
	return pcm, nil
}

// TranscodeVideo re-encodes the container into an MP4 the frame sampler can
// always open. Used when the source container cannot be decoded directly.
func (t *Transcoder) TranscodeVideo(ctx context.Context, raw []byte) ([]byte, error) {
	dir, cleanup, err := t.scratchDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	input := filepath.Join(dir, "input")
	output := filepath.Join(dir, "video.mp4")
	if err := os.WriteFile(input, raw, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write input file: %w", err)
	}

	err = t.run(ctx, "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-c:v", "libx264", "-preset", "veryfast", "-an",
		"-movflags", "+faststart", output)
	if err != nil {
		return nil, err
	}

	return os.ReadFile(output)
}

// SampleFrames extracts one JPEG frame per interval of video time. A
// container the decoder cannot open yields an error; the caller treats that
// as a hard analysis failure for the whole unit.
func (t *Transcoder) SampleFrames(ctx context.Context, raw []byte, interval time.Duration) ([]Frame, error) {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	dir, cleanup, err := t.scratchDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	input := filepath.Join(dir, "input")
	if err := os.WriteFile(input, raw, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write input file: %w", err)
	}

	pattern := filepath.Join(dir, "frame_%04d.jpg")
	fps := fmt.Sprintf("fps=1/%d", int(interval.Seconds()))
	err = t.run(ctx, "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vf", fps, "-f", "image2", pattern)
	if err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("failed to list sampled frames: %w", err)
	}
	sort.Strings(matches)

	frames := make([]Frame, 0, len(matches))
	for i, path := range matches {
		jpeg, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read frame %s: %w", path, err)
		}
		frames = append(frames, Frame{
			Index:     i,
			Timestamp: time.Duration(i) * interval,
			JPEG:      jpeg,
		})
	}
	return frames, nil
}
