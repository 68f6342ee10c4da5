package models

import "errors"

// Domain error taxonomy. The transport layer maps these to status codes;
// the core never retries them.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyCompleted = errors.New("session already completed")
	ErrNotCompleted     = errors.New("session not completed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrIdentityConflict = errors.New("identity conflict")
	ErrZeroWeight       = errors.New("total allocation weight is zero")
)
