package domain

import "github.com/cockroachdb/errors"

// All failure kinds are expected, caller-recoverable conditions. Callers
// match them with errors.Is; operations attach detail with errors.Wrapf.
var (
	ErrNotFound           = errors.New("seat not found")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvalidInput       = errors.New("invalid input")
)
