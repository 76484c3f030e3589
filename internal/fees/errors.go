package fees

import "errors"

var (
	// ErrValidation indicates malformed input rejected before any store access.
	ErrValidation = errors.New("fees: validation failed")
	// ErrInvariant indicates an apply would drive a cell negative or above its net charge.
	ErrInvariant = errors.New("fees: cell invariant violation")
	// ErrConflict indicates a concurrent writer won; the caller decides whether to retry.
	ErrConflict = errors.New("fees: concurrent update conflict")
	// ErrNotFound indicates an unknown student, component or receipt.
	ErrNotFound = errors.New("fees: not found")
	// ErrAlreadyDeleted indicates the receipt already carries a tombstone.
	ErrAlreadyDeleted = errors.New("fees: receipt already deleted")
)
