package engine

import "errors"

var (
	// ErrEngineClosed is returned when a task is submitted after Close.
	ErrEngineClosed = errors.New("engine: closed")

	// ErrNilTask is returned when a nil task is submitted.
	ErrNilTask = errors.New("engine: nil task")
)
