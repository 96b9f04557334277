package dialogue

import "errors"

var (
	// ErrInterviewFinished indicates the session already reached its
	// question limit or was explicitly finished.
	ErrInterviewFinished = errors.New("interview already finished")

	// ErrTurnInProgress indicates another answer for the same session is
	// still being processed.
	ErrTurnInProgress = errors.New("turn already in progress")
)
