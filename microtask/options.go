// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package microtask

import (
	"errors"

	"github.com/joeycumines/logiface"
)

// Option configures a Queue.
type Option interface {
	applyQueue(*queueOptions) error
}

type queueOptions struct {
	logger       *logiface.Logger[logiface.Event]
	errorHandler func(task Task, err error)
	drainLimit   int
}

type queueOptionImpl struct {
	applyQueueFunc func(*queueOptions) error
}

func (x *queueOptionImpl) applyQueue(opts *queueOptions) error {
	return x.applyQueueFunc(opts)
}

// WithLogger configures structured logging of task failures.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithErrorHandler registers a callback receiving each task's non-nil error,
// including recovered panics (as PanicError). It is called after logging.
func WithErrorHandler(fn func(task Task, err error)) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.errorHandler = fn
		return nil
	}}
}

// WithDrainLimit bounds the number of tasks a single Drain may run. Zero (the
// default) means unlimited. Negative values are invalid.
func WithDrainLimit(n int) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		if n < 0 {
			return errors.New("microtask: drain limit must not be negative")
		}
		opts.drainLimit = n
		return nil
	}}
}

func resolveQueueOptions(opts []Option) (*queueOptions, error) {
	cfg := &queueOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyQueue(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
