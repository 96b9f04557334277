package interfaces

import "errors"

// Common interface errors used across components.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrAnalysisNotFound = errors.New("no analysis record for session")
)
