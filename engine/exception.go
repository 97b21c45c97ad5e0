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

// Throw sets v as the pending exception. It always returns false, so natives
// may `return cx.Throw(v)`.
func (cx *Context) Throw(v goja.Value) bool {
	if v == nil {
		v = goja.Undefined()
	}
	cx.setPendingException(v, nil)
	return false
}

// ThrowTypeError sets a new TypeError as the pending exception, returning
// false.
func (cx *Context) ThrowTypeError(format string, args ...any) bool {
	msg := format
	if len(args) != 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return cx.Throw(cx.rt.NewTypeError(msg))
}

// ThrowError sets the script rendering of err as the pending exception (see
// ErrorValue), returning false.
func (cx *Context) ThrowError(err error) bool {
	return cx.Throw(cx.ErrorValue(err))
}

// IsExceptionPending reports whether an exception is pending.
func (cx *Context) IsExceptionPending() bool { return cx.hasPending }

// PendingException returns the pending exception without clearing it.
func (cx *Context) PendingException() (goja.Value, bool) {
	if !cx.hasPending {
		return nil, false
	}
	return cx.pending, true
}

// TakePendingException returns and clears the pending exception.
func (cx *Context) TakePendingException() (goja.Value, bool) {
	if !cx.hasPending {
		return nil, false
	}
	v := cx.pending
	cx.ClearPendingException()
	return v, true
}

// ClearPendingException discards any pending exception.
func (cx *Context) ClearPendingException() {
	cx.pending = nil
	cx.pendingExc = nil
	cx.hasPending = false
}

func (cx *Context) setPendingException(v goja.Value, exc *goja.Exception) {
	cx.pending = v
	cx.pendingExc = exc
	cx.hasPending = true
}

// ErrorValue converts err into a script value:
//   - *Exception, and *goja.Exception, yield the thrown value
//   - *TypeError yields a TypeError
//   - *RangeError yields a RangeError
//   - *ErrorReport yields the value it was built from
//   - anything else yields a GoError, wrapping err
func (cx *Context) ErrorValue(err error) goja.Value {
	if err == nil {
		return goja.Undefined()
	}
	var exc *Exception
	if errors.As(err, &exc) && exc.Value != nil {
		return exc.Value
	}
	var gojaExc *goja.Exception
	if errors.As(err, &gojaExc) {
		return gojaExc.Value()
	}
	var report *ErrorReport
	if errors.As(err, &report) && report.Value != nil {
		return report.Value
	}
	var typeErr *TypeError
	if errors.As(err, &typeErr) {
		return cx.rt.NewTypeError(typeErr.Error())
	}
	var rangeErr *RangeError
	if errors.As(err, &rangeErr) {
		if obj, ok := cx.newBuiltinError("RangeError", rangeErr.Error()); ok {
			return obj
		}
	}
	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) {
		if obj, ok := cx.newBuiltinError("SyntaxError", syntaxErr.Error()); ok {
			return obj
		}
	}
	return cx.rt.NewGoError(err)
}

func (cx *Context) newBuiltinError(ctor, msg string) (*goja.Object, bool) {
	obj, err := cx.rt.New(cx.rt.Get(ctor), cx.rt.ToValue(msg))
	if err != nil {
		return nil, false
	}
	return obj, true
}

// AssertSameRealm verifies obj belongs to this Context's runtime, throwing a
// TypeError (returning false) if not.
func (cx *Context) AssertSameRealm(obj *goja.Object) bool {
	if obj == nil {
		return true
	}
	// goja throws when an object crosses runtimes
	return cx.Try(func() { cx.rt.ToValue(obj) })
}

// Try runs fn, moving a script exception raised by fn onto the pending
// exception channel. Reading properties of script objects may run getters, so
// hosts wrap such access in Try.
func (cx *Context) Try(fn func()) bool {
	if exc := cx.rt.Try(fn); exc != nil {
		cx.setPendingException(exc.Value(), exc)
		return false
	}
	return true
}

// RecoverPanic converts a recovered host panic into a pending exception,
// returning false. Script exceptions are re-raised, to be handled by the
// runtime.
func (cx *Context) RecoverPanic(r any) bool {
	switch x := r.(type) {
	case *goja.Exception, *goja.InterruptedError, goja.Value:
		panic(r)
	case error:
		return cx.ThrowError(x)
	default:
		return cx.ThrowError(fmt.Errorf("panic: %v", x))
	}
}
