// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"errors"
)

var (
	// ErrLoopClosed is returned by operations on a loop that has been shut
	// down or closed.
	ErrLoopClosed = errors.New("eventloop: loop closed")

	// ErrLoopRunning is returned by Run, if the loop is already running.
	ErrLoopRunning = errors.New("eventloop: loop already running")

	// ErrNilTask is returned by Submit and RunMacrotask, given a nil task.
	ErrNilTask = errors.New("eventloop: nil task")

	// ErrParseConfig is returned by LoadConfig, wrapping the decode error.
	ErrParseConfig = errors.New("eventloop: failed to parse config")

	// ErrInvalidConfig is returned by Config.Options.
	ErrInvalidConfig = errors.New("eventloop: invalid config")
)
