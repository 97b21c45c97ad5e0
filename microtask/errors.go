// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package microtask

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by Enqueue when the queue has not been
	// initialised, or has been torn down.
	ErrNotInitialized = errors.New("microtask: queue has not been initialised")

	// ErrAlreadyInitialized is returned by Init on a ready queue.
	ErrAlreadyInitialized = errors.New("microtask: queue is already initialised")

	// ErrNilTask is returned by Enqueue for a task without a Run func.
	ErrNilTask = errors.New("microtask: task has a nil Run func")

	// ErrDrainLimit is returned by Drain when the configured limit was hit
	// before the queue became empty.
	ErrDrainLimit = errors.New("microtask: drain limit reached")
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("microtask: task panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
