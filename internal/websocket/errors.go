package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrInvalidJSON      = errors.New("payload cannot be encoded as JSON")
	ErrWriteTimeout     = errors.New("write timed out")
	ErrNilConnection    = errors.New("connection is nil")
	ErrRateLimited      = errors.New("chunk rate limit exceeded")
)
