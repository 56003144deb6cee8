package store

import "errors"

var (
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	// ErrTransient marks a unit of work that could not complete (deadlock, serialization
	// failure, timeout). Nothing was committed; the whole operation may be retried.
	ErrTransient = errors.New("transient store error")
)
