// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaasync

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-async/engine"
)

type (
	// Future is a host computation, producing a value or an error.
	Future[T any] func(ctx context.Context) (T, error)

	// Driver runs a future to completion. Run must not return before fn
	// has returned.
	Driver interface {
		Run(ctx context.Context, fn func(ctx context.Context))
	}

	// BlockingDriver runs futures inline, on the calling goroutine.
	BlockingDriver struct{}

	// ValueConverter may be implemented by future values and errors, to
	// control their script representation.
	ValueConverter interface {
		ToValue(rt *goja.Runtime) goja.Value
	}

	// FutureOption configures NewPromiseFromFuture.
	FutureOption interface {
		applyFuture(opts *futureOptions)
	}

	futureOptions struct {
		ctx    context.Context
		driver Driver
	}

	futureOptionImpl struct {
		applyFutureFunc func(opts *futureOptions)
	}
)

var _ Driver = BlockingDriver{}

// Run calls fn.
func (BlockingDriver) Run(ctx context.Context, fn func(ctx context.Context)) { fn(ctx) }

func (x *futureOptionImpl) applyFuture(opts *futureOptions) {
	x.applyFutureFunc(opts)
}

// WithDriver overrides the default BlockingDriver.
func WithDriver(driver Driver) FutureOption {
	return &futureOptionImpl{func(opts *futureOptions) {
		if driver != nil {
			opts.driver = driver
		}
	}}
}

// WithContext sets the context passed to the future, defaults to
// context.Background.
func WithContext(ctx context.Context) FutureOption {
	return &futureOptionImpl{func(opts *futureOptions) {
		if ctx != nil {
			opts.ctx = ctx
		}
	}}
}

func resolveFutureOptions(opts []FutureOption) *futureOptions {
	cfg := futureOptions{
		ctx:    context.Background(),
		driver: BlockingDriver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applyFuture(&cfg)
		}
	}
	return &cfg
}

// NewPromiseFromFuture drives future to completion, then settles a new
// promise with the outcome. Failure to settle is reported via
// [engine.Context.Diagnose], never thrown.
func NewPromiseFromFuture[T any](cx *engine.Context, future Future[T], opts ...FutureOption) (Promise, bool) {
	if future == nil {
		return Promise{}, cx.ThrowTypeError("future must not be nil")
	}
	if cx.Closed() {
		return Promise{}, cx.ThrowError(engine.ErrContextClosed)
	}
	cfg := resolveFutureOptions(opts)

	var (
		value T
		err   error
	)
	cfg.driver.Run(cfg.ctx, func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("gojaasync: future panicked: %v", r)
			}
		}()
		value, err = future(ctx)
	})

	p := NewPromise(cx)
	if err != nil {
		settleFuture(cx, p, "reject", func() goja.Value { return convertError(cx, err) })
	} else {
		settleFuture(cx, p, "resolve", func() goja.Value { return convertValue(cx, value) })
	}
	return p, true
}

func settleFuture(cx *engine.Context, p Promise, operation string, convert func() goja.Value) {
	var v goja.Value
	if !cx.Try(func() { v = convert() }) {
		// conversion threw, the exception becomes the rejection
		exc, _ := cx.TakePendingException()
		v, operation = exc, "reject"
	}
	var ok bool
	if operation == "reject" {
		ok = p.Reject(cx, v)
	} else {
		ok = p.Resolve(cx, v)
	}
	if ok {
		return
	}
	var cause error = errors.New("gojaasync: promise already resolved")
	if report, has := cx.ErrorReportFromPending(); has {
		cause = report
	}
	cx.Diagnose(engine.Diagnostic{
		Err:       cause,
		Source:    "future",
		Operation: operation,
		PromiseID: p.ID(),
	})
}

func convertValue[T any](cx *engine.Context, value T) goja.Value {
	if c, ok := any(value).(ValueConverter); ok {
		return c.ToValue(cx.Runtime())
	}
	return cx.Runtime().ToValue(value)
}

func convertError(cx *engine.Context, err error) goja.Value {
	var c ValueConverter
	if errors.As(err, &c) {
		return c.ToValue(cx.Runtime())
	}
	return cx.ErrorValue(err)
}
