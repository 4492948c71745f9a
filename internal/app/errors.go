package app

import "errors"

// ErrNotFound and related errors describe store and persistence failures.
var (
	ErrNotFound         = errors.New("not found")
	ErrMissingParent    = errors.New("epic does not exist")
	ErrScheduleConflict = errors.New("schedule conflict")
	ErrDuplicateID      = errors.New("duplicate id")
	ErrLoadCorruption   = errors.New("stored data is unreadable")
)
