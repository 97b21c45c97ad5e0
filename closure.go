// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaasync

import (
	"github.com/dop251/goja"
	"github.com/joeycumines/goja-async/engine"
)

type (
	// ClosureFn is a capturing host callback. A non-nil error is thrown into
	// the engine (see [engine.Context.ThrowError]), otherwise the value (if
	// non-nil) is returned to the caller.
	ClosureFn func(cx *engine.Context, args *engine.Arguments) (goja.Value, error)

	// ClosureOption configures NewClosure.
	ClosureOption interface {
		applyClosure(opts *closureOptions)
	}

	closureOptions struct {
		flags engine.Flags
	}

	closureOptionImpl struct {
		applyClosureFunc func(opts *closureOptions)
	}
)

func (x *closureOptionImpl) applyClosure(opts *closureOptions) {
	x.applyClosureFunc(opts)
}

// ClosureOnce marks the closure as one-shot: its slot is released on the
// first call, and later calls throw a TypeError.
func ClosureOnce() ClosureOption {
	return &closureOptionImpl{func(opts *closureOptions) {
		opts.flags |= engine.FlagOnce
	}}
}

// WithClosureFlags adds flags to the closure, e.g. property attributes used
// when it is defined on an object.
func WithClosureFlags(flags engine.Flags) ClosureOption {
	return &closureOptionImpl{func(opts *closureOptions) {
		opts.flags |= flags
	}}
}

func resolveClosureOptions(opts []ClosureOption) *closureOptions {
	var cfg closureOptions
	for _, opt := range opts {
		if opt != nil {
			opt.applyClosure(&cfg)
		}
	}
	return &cfg
}

// NewClosure exposes fn to scripts as a function, dispatched through the
// engine's closure trampoline. The closure is released once the function is
// collected, or after the first call if ClosureOnce is set.
func NewClosure(cx *engine.Context, name string, nargs uint16, fn ClosureFn, opts ...ClosureOption) Function {
	cfg := resolveClosureOptions(opts)
	native := guardNative(func(cx *engine.Context, args *engine.Arguments) bool {
		v, err := fn(cx, args)
		if err != nil {
			return cx.ThrowError(err)
		}
		if v != nil {
			args.SetReturn(v)
		}
		return true
	})
	return Function{cx: cx, obj: cx.NewClosureFunction(name, native, nargs, cfg.flags)}
}

// guardNative converts host panics into exceptions.
func guardNative(native engine.NativeFn) engine.NativeFn {
	return func(cx *engine.Context, args *engine.Arguments) (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = cx.RecoverPanic(r)
			}
		}()
		return native(cx, args)
	}
}
