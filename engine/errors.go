// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package engine

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

var (
	// ErrSilentFailure indicates an operation failed without a retrievable
	// exception, e.g. a native callback returned false without throwing.
	// Callers must never treat it as success.
	ErrSilentFailure = errors.New("engine: operation failed without an exception")

	// ErrContextClosed is the rejection reason for promises still pending
	// when a Context is closed.
	ErrContextClosed = errors.New("engine: context closed")

	// ErrSlotReleased is thrown (as a TypeError) when a released closure slot
	// is invoked.
	ErrSlotReleased = errors.New("engine: native closure slot has been released")
)

// silentFailure is the interrupt value used to abort script execution,
// uncatchably, after a native returned false without a pending exception.
type silentFailure struct{}

// TypeError is a host error that converts to a script TypeError.
type TypeError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	if e.Message == "" {
		return "type error"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *TypeError) Unwrap() error {
	return e.Cause
}

// RangeError is a host error that converts to a script RangeError.
type RangeError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	if e.Message == "" {
		return "range error"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *RangeError) Unwrap() error {
	return e.Cause
}

// Exception carries an arbitrary script value as a Go error. Converting it
// back (see Context.ErrorValue) yields the original value.
type Exception struct {
	Value goja.Value
}

// Error implements the error interface.
func (e *Exception) Error() string {
	if e.Value == nil {
		return "exception"
	}
	return fmt.Sprintf("exception: %s", e.Value.String())
}
