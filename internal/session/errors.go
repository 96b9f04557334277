package session

import "errors"

// Session registry error types.
var (
	ErrEmptySessionID = errors.New("session id cannot be empty")
)
