package services

import "errors"

var (
	// ErrNotFound is returned when a task, project, parent or review does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidOperation is returned when an operation does not apply to the target,
	// such as rating a task that has children.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidInput is returned for malformed payloads and out-of-range ratings.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when a task already carries a review or a rating.
	ErrConflict = errors.New("conflict")
	// ErrConcurrencyConflict is returned by stores when a row changed underneath a
	// transaction. It is transient.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrStore wraps failures of the underlying persistence layer.
	ErrStore = errors.New("store error")
)
