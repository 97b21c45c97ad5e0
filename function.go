// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaasync

import (
	"math"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-async/engine"
)

// Function is a handle to a callable script value. It does not keep the
// function alive: root it (see [engine.Scope]) if it must outlive the current
// call.
type Function struct {
	cx  *engine.Context
	obj *goja.Object
}

// NewFunction creates a script function that calls native.
func NewFunction(cx *engine.Context, name string, native engine.NativeFn, nargs uint16, flags engine.Flags) Function {
	return Function{cx: cx, obj: cx.NewFunction(name, native, nargs, flags)}
}

// FunctionFromSpec creates a script function from a declarative table entry.
func FunctionFromSpec(cx *engine.Context, spec *engine.FunctionSpec) Function {
	return Function{cx: cx, obj: cx.NewFunctionFromSpec(spec)}
}

// FunctionFromObject wraps an existing callable. If obj is not callable a
// TypeError is left pending, and it returns false.
func FunctionFromObject(cx *engine.Context, obj *goja.Object) (Function, bool) {
	if obj == nil {
		return Function{}, cx.ThrowTypeError("Object cannot be converted to Function")
	}
	if _, ok := goja.AssertFunction(obj); !ok {
		return Function{}, cx.ThrowTypeError("Object cannot be converted to Function")
	}
	return Function{cx: cx, obj: obj}, true
}

// FunctionFromValue wraps v, which must be a callable object of cx's runtime.
func FunctionFromValue(cx *engine.Context, v goja.Value) (Function, bool) {
	obj, ok := v.(*goja.Object)
	if !ok || obj == nil {
		return Function{}, cx.ThrowTypeError("Value is not an object")
	}
	if !cx.AssertSameRealm(obj) {
		return Function{}, false
	}
	return FunctionFromObject(cx, obj)
}

// Object returns the underlying function object.
func (f Function) Object() *goja.Object { return f.obj }

// Value returns the function as an invocable script value.
func (f Function) Value() goja.Value {
	if f.obj == nil {
		return goja.Undefined()
	}
	return f.obj
}

// Valid reports whether f refers to a function.
func (f Function) Valid() bool { return f.obj != nil }

// String returns the decompiled source of the function.
func (f Function) String() string {
	if f.obj == nil {
		return ""
	}
	var s string
	if !f.cx.Try(func() { s = f.obj.String() }) {
		f.cx.ClearPendingException()
	}
	return s
}

// Name returns the function's name property, if it is a string.
func (f Function) Name() (string, bool) {
	return f.stringProperty("name")
}

// DisplayName returns the displayName property, falling back to the name.
func (f Function) DisplayName() (string, bool) {
	if s, ok := f.stringProperty("displayName"); ok {
		return s, true
	}
	return f.Name()
}

func (f Function) stringProperty(name string) (s string, ok bool) {
	if f.obj == nil {
		return "", false
	}
	if !f.cx.Try(func() {
		v := f.obj.Get(name)
		if v == nil {
			return
		}
		if _, isString := v.Export().(string); isString {
			s, ok = v.String(), true
		}
	}) {
		f.cx.ClearPendingException()
		return "", false
	}
	return s, ok
}

// Nargs returns the declared arity. For script functions this is the
// initial value of length.
func (f Function) Nargs() uint16 {
	if f.obj == nil {
		return 0
	}
	if n, ok := f.cx.HostFunctionNargs(f.obj); ok {
		return n
	}
	if n, ok := f.Length(f.cx); ok {
		return n
	}
	f.cx.ClearPendingException()
	return 0
}

// Length reads the length property. If reading it throws, the exception is
// left pending and it returns false.
func (f Function) Length(cx *engine.Context) (uint16, bool) {
	if f.obj == nil {
		return 0, cx.ThrowTypeError("Function is not initialized")
	}
	var n int64
	if !cx.Try(func() {
		if v := f.obj.Get("length"); v != nil {
			n = v.ToInteger()
		}
	}) {
		return 0, false
	}
	switch {
	case n < 0:
		n = 0
	case n > math.MaxUint16:
		n = math.MaxUint16
	}
	return uint16(n), true
}

// Call invokes the function. If it throws, the exception is taken off the
// pending exception channel, and returned as an [*engine.ErrorReport]. If it
// fails without throwing, it returns [engine.ErrSilentFailure].
func (f Function) Call(cx *engine.Context, this *goja.Object, args ...goja.Value) (goja.Value, error) {
	if f.obj == nil {
		cx.ThrowTypeError("Function is not initialized")
		report, _ := cx.ErrorReportFromPending()
		return nil, report
	}
	var thisv goja.Value = goja.Undefined()
	if this != nil {
		thisv = this
	}
	v, ok := cx.Call(f.obj, thisv, args...)
	if ok {
		return v, nil
	}
	if report, ok := cx.ErrorReportFromPending(); ok {
		return nil, report
	}
	return nil, engine.ErrSilentFailure
}

// IsBound reports whether f was created by Function.prototype.bind.
func (f Function) IsBound() bool { return f.cx.IsBoundFunction(f.obj) }

// IsEval reports whether f is the builtin eval.
func (f Function) IsEval() bool { return f.cx.IsEvalFunction(f.obj) }

// IsConstructor reports whether f may be called with new.
func (f Function) IsConstructor() bool {
	if f.obj == nil {
		return false
	}
	_, ok := goja.AssertConstructor(f.obj)
	return ok
}

// IsFunctionConstructor reports whether f is the builtin Function.
func (f Function) IsFunctionConstructor() bool { return f.cx.IsFunctionConstructor(f.obj) }

// Trace reports the function object to t.
func (f Function) Trace(t engine.Tracer) {
	if f.obj != nil {
		t.Trace("function", f.obj)
	}
}
