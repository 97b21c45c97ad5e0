// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package engine

import (
	"strings"

	"github.com/dop251/goja"
)

// NativeFn is the fixed native callback ABI. It returns true on success, with
// the result set via Arguments.SetReturn. Returning false with a pending
// exception throws that exception into the script; returning false without one
// aborts the script uncatchably (see ErrSilentFailure).
type NativeFn func(cx *Context, args *Arguments) bool

// Flags configures native functions, and the properties they are defined as.
type Flags uint16

const (
	// FlagConstructor makes the function usable with `new`.
	FlagConstructor Flags = 1 << iota
	// FlagOnce releases a closure slot after its first invocation.
	FlagOnce
	// PropReadOnly defines the property as non-writable.
	PropReadOnly
	// PropEnumerable defines the property as enumerable.
	PropEnumerable
	// PropPermanent defines the property as non-configurable.
	PropPermanent

	PropConstant           = PropReadOnly | PropPermanent
	PropConstantEnumerated = PropConstant | PropEnumerable
)

// Has reports whether all bits of f2 are set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

func (f Flags) propertyFlags() (writable, configurable, enumerable goja.Flag) {
	writable, configurable, enumerable = goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE
	if f.Has(PropReadOnly) {
		writable = goja.FLAG_FALSE
	}
	if f.Has(PropPermanent) {
		configurable = goja.FLAG_FALSE
	}
	if f.Has(PropEnumerable) {
		enumerable = goja.FLAG_TRUE
	}
	return
}

// FunctionSpec declares a native function, e.g. as part of a table passed to
// DefineFunctions.
type FunctionSpec struct {
	Native NativeFn
	Name   string
	Nargs  uint16
	Flags  Flags
}

// Arguments is the argument vector passed to a NativeFn.
type Arguments struct {
	this      goja.Value
	rval      goja.Value
	newTarget *goja.Object
	argv      []goja.Value
	slot      uint64
}

// Len returns the number of arguments actually passed.
func (a *Arguments) Len() int { return len(a.argv) }

// Value returns argument i, or undefined if i is out of range.
func (a *Arguments) Value(i int) goja.Value {
	if i < 0 || i >= len(a.argv) {
		return goja.Undefined()
	}
	return a.argv[i]
}

// Values returns the arguments actually passed.
func (a *Arguments) Values() []goja.Value { return a.argv }

// This returns the receiver.
func (a *Arguments) This() goja.Value {
	if a.this == nil {
		return goja.Undefined()
	}
	return a.this
}

// ThisObject returns the receiver if it is an object, or nil.
func (a *Arguments) ThisObject() *goja.Object {
	obj, _ := a.this.(*goja.Object)
	return obj
}

// SetReturn sets the value returned to the caller. Defaults to undefined.
func (a *Arguments) SetReturn(v goja.Value) { a.rval = v }

// IsConstructing reports whether the function was invoked via `new`.
func (a *Arguments) IsConstructing() bool { return a.newTarget != nil }

// NewTarget returns new.target, nil unless IsConstructing.
func (a *Arguments) NewTarget() *goja.Object { return a.newTarget }

// Slot returns the closure slot the function was bound to, zero for plain
// natives.
func (a *Arguments) Slot() uint64 { return a.slot }

// NewFunction creates a script function backed by native.
func (cx *Context) NewFunction(name string, native NativeFn, nargs uint16, flags Flags) *goja.Object {
	return cx.newHostFunction(name, nargs, flags, 0, native)
}

// NewFunctionFromSpec creates a script function from spec.
func (cx *Context) NewFunctionFromSpec(spec *FunctionSpec) *goja.Object {
	return cx.NewFunction(spec.Name, spec.Native, spec.Nargs, spec.Flags)
}

// DefineFunction creates a native function and defines it as property name of
// obj, using the property attributes in flags.
func (cx *Context) DefineFunction(obj *goja.Object, name string, native NativeFn, nargs uint16, flags Flags) (*goja.Object, bool) {
	fn := cx.NewFunction(name, native, nargs, flags)
	if !cx.defineProperty(obj, name, fn, flags) {
		return nil, false
	}
	return fn, true
}

// DefineFunctions defines every spec on obj.
func (cx *Context) DefineFunctions(obj *goja.Object, specs []FunctionSpec) bool {
	for i := range specs {
		if _, ok := cx.DefineFunction(obj, specs[i].Name, specs[i].Native, specs[i].Nargs, specs[i].Flags); !ok {
			return false
		}
	}
	return true
}

func (cx *Context) defineProperty(obj *goja.Object, name string, v goja.Value, flags Flags) bool {
	w, c, e := flags.propertyFlags()
	if err := obj.DefineDataProperty(name, v, w, c, e); err != nil {
		return cx.ThrowError(err)
	}
	return true
}

// newHostFunction builds the goja function object for a native. Every host
// function records its declared arity, and its closure slot if any, as
// private data on the object.
func (cx *Context) newHostFunction(name string, nargs uint16, flags Flags, slot uint64, native NativeFn) *goja.Object {
	var fn *goja.Object
	if flags.Has(FlagConstructor) {
		fn = cx.rt.ToValue(func(call goja.ConstructorCall) *goja.Object {
			args := Arguments{
				this:      call.This,
				argv:      call.Arguments,
				newTarget: call.NewTarget,
				slot:      slot,
			}
			rval := cx.invokeNative(native, &args)
			if obj, ok := rval.(*goja.Object); ok {
				return obj
			}
			return call.This
		}).(*goja.Object)
	} else {
		fn = cx.rt.ToValue(func(call goja.FunctionCall) goja.Value {
			args := Arguments{
				this: call.This,
				argv: call.Arguments,
				slot: slot,
			}
			return cx.invokeNative(native, &args)
		}).(*goja.Object)
	}

	_ = fn.DefineDataProperty("name", cx.rt.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	_ = fn.DefineDataProperty("length", cx.rt.ToValue(int64(nargs)), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	_ = fn.DefineDataPropertySymbol(cx.symNargs, cx.rt.ToValue(int64(nargs)), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	if slot != 0 {
		_ = fn.DefineDataPropertySymbol(cx.symSlot, cx.rt.ToValue(int64(slot)), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	}
	return fn
}

// invokeNative implements the native ABI on top of goja's native functions.
func (cx *Context) invokeNative(native NativeFn, args *Arguments) goja.Value {
	if cx.hasPending {
		// stale, e.g. a host callback that threw but reported success
		cx.logger.Debug().
			Str("category", "native").
			Log("discarding stale pending exception")
		cx.ClearPendingException()
	}
	if native(cx, args) {
		if cx.hasPending {
			cx.logger.Warning().
				Str("category", "native").
				Log("native reported success with a pending exception")
			cx.ClearPendingException()
		}
		if args.rval == nil {
			return goja.Undefined()
		}
		return args.rval
	}
	if v, ok := cx.TakePendingException(); ok {
		panic(v)
	}
	cx.signalSilent()
	return goja.Undefined()
}

// HostFunctionNargs returns the declared arity of a function created by this
// Context.
func (cx *Context) HostFunctionNargs(fn *goja.Object) (uint16, bool) {
	if fn == nil {
		return 0, false
	}
	v := fn.GetSymbol(cx.symNargs)
	if v == nil || goja.IsUndefined(v) {
		return 0, false
	}
	return uint16(v.ToInteger()), true
}

// SlotOf returns the closure slot fn is bound to, if any.
func (cx *Context) SlotOf(fn *goja.Object) (uint64, bool) {
	if fn == nil {
		return 0, false
	}
	v := fn.GetSymbol(cx.symSlot)
	if v == nil || goja.IsUndefined(v) {
		return 0, false
	}
	return uint64(v.ToInteger()), true
}

// IsEvalFunction reports whether fn is the runtime's builtin eval.
func (cx *Context) IsEvalFunction(fn *goja.Object) bool {
	return fn != nil && cx.builtinEval != nil && fn.SameAs(cx.builtinEval)
}

// IsFunctionConstructor reports whether fn is the runtime's builtin Function
// constructor.
func (cx *Context) IsFunctionConstructor(fn *goja.Object) bool {
	return fn != nil && cx.builtinFunction != nil && fn.SameAs(cx.builtinFunction)
}

// IsBoundFunction reports whether fn was created by Function.prototype.bind.
// Bound functions are native, named "bound " plus the target's name, so a
// script function renamed to match is not mistaken for one. A host function
// given such a name is indistinguishable.
func (cx *Context) IsBoundFunction(fn *goja.Object) bool {
	if fn == nil || cx.functionToString == nil {
		return false
	}
	if _, ok := goja.AssertFunction(fn); !ok {
		return false
	}
	var name string
	if !cx.Try(func() {
		if v := fn.Get("name"); v != nil {
			name = v.String()
		}
	}) {
		cx.ClearPendingException()
		return false
	}
	if !strings.HasPrefix(name, "bound ") {
		return false
	}
	src, ok := cx.Call(cx.functionToString, fn)
	if !ok {
		cx.ClearPendingException()
		return false
	}
	return strings.HasSuffix(src.String(), "[native code] }")
}
