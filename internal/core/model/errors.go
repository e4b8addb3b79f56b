package model

import "errors"

var (
	// ErrPrecondition marks an invalid call sequence, such as saving a
	// polygon before its analytics arrived.
	ErrPrecondition = errors.New("precondition violated")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)
