package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrRevisionConflict is returned when a conditional write sees a different revision
	// than the caller expected. The caller must refresh before retrying.
	ErrRevisionConflict = errors.New("revision conflict")
	// ErrInvalidQuantity is returned for non-positive quantities where a positive one is required.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)
