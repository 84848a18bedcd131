package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for history store operations.
var (
	ErrCorruptHistory = errors.New("corrupt history file")
	ErrTableNotFound  = errors.New("table not found in history")
	ErrRecordNotFound = errors.New("migration record not found")
	ErrDuplicate      = errors.New("duplicate entry")
	ErrBaseRecord     = errors.New("base record has later migrations")
)

// StateError reports a history problem together with the file it concerns.
type StateError struct {
	Path string
	Err  error
}

func (e *StateError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }
