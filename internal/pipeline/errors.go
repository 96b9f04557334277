package pipeline

import "errors"

var (
	// ErrShuttingDown indicates the pipeline no longer accepts units.
	ErrShuttingDown = errors.New("pipeline is shutting down")

	// ErrQueueFull indicates the session's analysis queue is saturated
	// and the unit was dropped.
	ErrQueueFull = errors.New("session analysis queue is full")
)
