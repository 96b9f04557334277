package media

import "errors"

// Reassembly error types.
var (
	ErrChunkDecode = errors.New("chunk payload is not valid base64")
	ErrEmptyChunk  = errors.New("chunk payload decoded to zero bytes")
)

// Transcoder error types. Tool failures degrade the specific call, they
// never terminate a session.
var (
	ErrToolUnavailable = errors.New("external decoder binary not available")
	ErrDecodeFailed    = errors.New("decoder exited with an error")
	ErrNoAudioStream   = errors.New("container carries no audio stream")
)
