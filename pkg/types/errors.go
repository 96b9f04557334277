package types

import "errors"

// Validation error types shared across components.
var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrInvalidMediaType   = errors.New("media_type must be 'audio' or 'video'")
	ErrMissingSessionID   = errors.New("session_id is required")
	ErrInvalidSessionID   = errors.New("invalid session_id format")
	ErrEmptyChunk         = errors.New("chunk payload cannot be empty")
	ErrEmptyImageData     = errors.New("image data cannot be empty")
)
