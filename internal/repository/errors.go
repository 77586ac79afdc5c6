package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a unique constraint rejected the write.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrMissingReference indicates a foreign key points at a row that does not exist.
	ErrMissingReference = errors.New("repository: missing reference")
)
