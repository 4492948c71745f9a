package domain

import "errors"

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidKind     = errors.New("invalid item kind")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidWindow   = errors.New("invalid time window")
	ErrInvalidParentID = errors.New("invalid epic id")
	ErrInvalidRecord   = errors.New("invalid record")
)
