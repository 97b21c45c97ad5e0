// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package engine

import (
	"errors"

	"github.com/joeycumines/logiface"
)

// ContextOption configures a Context.
type ContextOption interface {
	applyContext(*contextOptions) error
}

type contextOptions struct {
	logger            *logiface.Logger[logiface.Event]
	rejectionTracker  RejectionTracker
	diagnosticHandler func(Diagnostic)
	scavengeBatch     int
	noPromiseGlobal   bool
}

type contextOptionImpl struct {
	applyContextFunc func(*contextOptions) error
}

func (x *contextOptionImpl) applyContext(opts *contextOptions) error {
	return x.applyContextFunc(opts)
}

// WithLogger enables structured logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) ContextOption {
	return &contextOptionImpl{func(opts *contextOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithRejectionTracker installs the host promise rejection tracker, which is
// notified when a promise is rejected without handlers, and when a handler is
// later attached to such a promise.
func WithRejectionTracker(tracker RejectionTracker) ContextOption {
	return &contextOptionImpl{func(opts *contextOptions) error {
		opts.rejectionTracker = tracker
		return nil
	}}
}

// WithDiagnosticHandler receives every Diagnostic, after it is logged.
func WithDiagnosticHandler(fn func(Diagnostic)) ContextOption {
	return &contextOptionImpl{func(opts *contextOptions) error {
		opts.diagnosticHandler = fn
		return nil
	}}
}

// WithScavengeBatch sets how many registry entries Context.Scavenge checks per
// call. Defaults to 20.
func WithScavengeBatch(n int) ContextOption {
	return &contextOptionImpl{func(opts *contextOptions) error {
		if n <= 0 {
			return errors.New("engine: scavenge batch must be positive")
		}
		opts.scavengeBatch = n
		return nil
	}}
}

// WithoutPromiseGlobal leaves the runtime's Promise global untouched.
// Promises created by the host are still fully functional, but scripts can
// only observe them through the methods on their prototype.
func WithoutPromiseGlobal() ContextOption {
	return &contextOptionImpl{func(opts *contextOptions) error {
		opts.noPromiseGlobal = true
		return nil
	}}
}

func resolveContextOptions(opts []ContextOption) (*contextOptions, error) {
	cfg := &contextOptions{
		scavengeBatch: 20,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyContext(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
