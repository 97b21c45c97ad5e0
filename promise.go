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
	// Promise is a handle to a promise object created by an
	// [engine.Context].
	Promise struct {
		cx  *engine.Context
		obj *goja.Object
	}

	// Executor is run synchronously by NewPromiseWithExecutor. A non-nil
	// error rejects the promise, unless it was already resolved.
	Executor func(cx *engine.Context, resolve, reject Function) error

	// ReactionFn handles the settled value of a promise. The returned value
	// fulfills the derived promise, and a non-nil error rejects it.
	ReactionFn func(cx *engine.Context, v goja.Value) (goja.Value, error)
)

// NewPromise creates a pending promise, to be settled by the host.
func NewPromise(cx *engine.Context) Promise {
	return Promise{cx: cx, obj: cx.NewPromise()}
}

// NewPromiseWithExecutor creates a promise, calling executor synchronously
// with its resolving functions. It returns false only if the executor failed
// silently.
func NewPromiseWithExecutor(cx *engine.Context, executor Executor) (Promise, bool) {
	fn := cx.NewClosureFunction("executor", guardNative(func(cx *engine.Context, args *engine.Arguments) bool {
		resolve, ok := FunctionFromValue(cx, args.Value(0))
		if !ok {
			return false
		}
		reject, ok := FunctionFromValue(cx, args.Value(1))
		if !ok {
			return false
		}
		if err := executor(cx, resolve, reject); err != nil {
			return cx.ThrowError(err)
		}
		return true
	}), 2, engine.FlagOnce)
	obj, ok := cx.NewPromiseObject(fn)
	if !ok {
		return Promise{}, false
	}
	return Promise{cx: cx, obj: obj}, true
}

// PromiseFromObject wraps obj, which must be a promise created by cx, or an
// intrinsic promise of its runtime, e.g. the result of an async function.
func PromiseFromObject(cx *engine.Context, obj *goja.Object) (Promise, bool) {
	if !cx.IsPromiseObject(obj) {
		return Promise{}, cx.ThrowTypeError("Object is not a Promise")
	}
	return Promise{cx: cx, obj: obj}, true
}

// IsPromise reports whether obj is a promise created by cx, or an intrinsic
// promise of its runtime.
func IsPromise(cx *engine.Context, obj *goja.Object) bool {
	return cx.IsPromiseObject(obj)
}

// Object returns the underlying promise object.
func (p Promise) Object() *goja.Object { return p.obj }

// Value returns the promise as a script value.
func (p Promise) Value() goja.Value {
	if p.obj == nil {
		return goja.Undefined()
	}
	return p.obj
}

// ID returns the promise's unique, per-Context id.
func (p Promise) ID() uint64 {
	if p.obj == nil {
		return 0
	}
	return p.cx.PromiseID(p.obj)
}

// State returns the settlement state.
func (p Promise) State() engine.PromiseState {
	if p.obj == nil {
		return engine.PromisePending
	}
	return p.cx.GetPromiseState(p.obj)
}

// Result returns the settled value, or undefined while pending.
func (p Promise) Result() goja.Value {
	if p.obj == nil {
		return goja.Undefined()
	}
	return p.cx.GetPromiseResult(p.obj)
}

// Resolve resolves the promise with v, which may be a thenable. It returns
// false if the promise was already resolved or settled.
func (p Promise) Resolve(cx *engine.Context, v goja.Value) bool {
	if p.obj == nil {
		return cx.ThrowTypeError("Promise is not initialized")
	}
	return cx.ResolvePromise(p.obj, v)
}

// Reject rejects the promise with v. It returns false if the promise was
// already resolved or settled.
func (p Promise) Reject(cx *engine.Context, v goja.Value) bool {
	if p.obj == nil {
		return cx.ThrowTypeError("Promise is not initialized")
	}
	return cx.RejectPromise(p.obj, v)
}

// AddReactions registers host reactions, either of which may be nil. Each
// runs at most once, as a microtask.
func (p Promise) AddReactions(cx *engine.Context, onResolved, onRejected ReactionFn) bool {
	var resolved, rejected *Function
	if onResolved != nil {
		fn := newReaction(cx, "resolve", onResolved)
		resolved = &fn
	}
	if onRejected != nil {
		fn := newReaction(cx, "reject", onRejected)
		rejected = &fn
	}
	return p.AddReactionsNative(cx, resolved, rejected)
}

// Then registers a fulfillment reaction.
func (p Promise) Then(cx *engine.Context, onResolved ReactionFn) bool {
	return p.AddReactions(cx, onResolved, nil)
}

// Catch registers a rejection reaction.
func (p Promise) Catch(cx *engine.Context, onRejected ReactionFn) bool {
	return p.AddReactions(cx, nil, onRejected)
}

// AddReactionsNative registers existing functions as reactions. Either may
// be nil.
func (p Promise) AddReactionsNative(cx *engine.Context, onResolved, onRejected *Function) bool {
	if p.obj == nil {
		return cx.ThrowTypeError("Promise is not initialized")
	}
	var resolved, rejected *goja.Object
	if onResolved != nil {
		resolved = onResolved.obj
	}
	if onRejected != nil {
		rejected = onRejected.obj
	}
	return cx.AddPromiseReactions(p.obj, resolved, rejected)
}

func newReaction(cx *engine.Context, name string, fn ReactionFn) Function {
	return NewClosure(cx, name, 1, func(cx *engine.Context, args *engine.Arguments) (goja.Value, error) {
		return fn(cx, args.Value(0))
	}, ClosureOnce(), WithClosureFlags(engine.PropConstantEnumerated))
}
