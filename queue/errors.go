package queue

import "errors"

var (
	// ErrEmpty is returned by Dequeue when no job is currently visible.
	ErrEmpty = errors.New("no visible jobs in queue")

	// ErrSettled is returned when a delivery is acked or failed twice.
	ErrSettled = errors.New("delivery already settled")

	// ErrInvalidConfig is returned when queue configuration is invalid.
	ErrInvalidConfig = errors.New("invalid queue configuration")
)
