// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"errors"
	"io"
	"os"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/joeycumines/goja-async/engine"
	"github.com/joeycumines/logiface"
)

type (
	// Option configures a Loop.
	Option interface {
		applyLoop(opts *loopOptions) error
	}

	loopOptions struct {
		logger           *logiface.Logger[logiface.Event]
		runtime          *goja.Runtime
		reporter         Reporter
		mapper           SourceMapper
		diagnostic       func(engine.Diagnostic)
		drainLimit       int
		noUnhandled      bool
		noQueueMicrotask bool
		console          bool
		printer          console.Printer
	}

	loopOptionImpl struct {
		applyLoopFunc func(opts *loopOptions) error
	}
)

func (x *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return x.applyLoopFunc(opts)
}

// WithLogger configures structured logging, for the loop, and the queue and
// engine context it owns.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithRuntime uses an existing goja runtime, rather than a new one.
func WithRuntime(rt *goja.Runtime) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if rt == nil {
			return errors.New("eventloop: nil goja runtime")
		}
		opts.runtime = rt
		return nil
	}}
}

// WithReporter overrides the default reporter, which writes to stderr.
func WithReporter(reporter Reporter) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.reporter = reporter
		return nil
	}}
}

// WithSourceMapper sets the translator applied to reports.
func WithSourceMapper(mapper SourceMapper) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.mapper = mapper
		return nil
	}}
}

// WithDiagnosticHandler receives failures that could not be propagated, see
// engine.WithDiagnosticHandler.
func WithDiagnosticHandler(fn func(engine.Diagnostic)) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.diagnostic = fn
		return nil
	}}
}

// WithDrainLimit bounds the number of microtasks run per checkpoint, see
// microtask.WithDrainLimit.
func WithDrainLimit(n int) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n < 0 {
			return errors.New("eventloop: drain limit must not be negative")
		}
		opts.drainLimit = n
		return nil
	}}
}

// WithUnhandledRejections toggles reporting of unhandled rejections,
// enabled by default.
func WithUnhandledRejections(enabled bool) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.noUnhandled = !enabled
		return nil
	}}
}

// WithoutQueueMicrotask skips installing the queueMicrotask global.
func WithoutQueueMicrotask() Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.noQueueMicrotask = true
		return nil
	}}
}

// WithConsole installs the console global. A nil printer logs through the
// loop's logger, see LoggerPrinter.
func WithConsole(printer console.Printer) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.console = true
		opts.printer = printer
		return nil
	}}
}

func resolveLoopOptions(opts []Option) (*loopOptions, error) {
	var cfg loopOptions
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.reporter == nil {
		cfg.reporter = NewWriterReporter(stderr)
	}
	return &cfg, nil
}

var stderr io.Writer = os.Stderr
