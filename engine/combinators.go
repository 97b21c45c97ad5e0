// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package engine

import (
	"github.com/dop251/goja"
)

// iterate calls each for every value produced by iterable, stopping early
// (and closing the iterator) if each returns false.
func (cx *Context) iterate(iterable goja.Value, each func(v goja.Value) bool) bool {
	if iterable == nil {
		iterable = goja.Undefined()
	}
	if goja.IsUndefined(iterable) || goja.IsNull(iterable) {
		return cx.ThrowTypeError("%s is not iterable", iterable.String())
	}
	var obj *goja.Object
	var method goja.Value
	if !cx.Try(func() {
		obj = iterable.ToObject(cx.rt)
		method = obj.GetSymbol(goja.SymIterator)
	}) {
		return false
	}
	methodFn, ok := method.(*goja.Object)
	if !ok || callableOrNil(methodFn) == nil {
		return cx.ThrowTypeError("object is not iterable")
	}
	itv, ok := cx.Call(methodFn, iterable)
	if !ok {
		return false
	}
	it, ok := itv.(*goja.Object)
	if !ok {
		return cx.ThrowTypeError("iterator is not an object")
	}
	var next goja.Value
	if !cx.Try(func() { next = it.Get("next") }) {
		return false
	}
	nextFn, ok := next.(*goja.Object)
	if !ok || callableOrNil(nextFn) == nil {
		return cx.ThrowTypeError("iterator.next is not a function")
	}
	for {
		resv, ok := cx.Call(nextFn, it)
		if !ok {
			return false
		}
		res, ok := resv.(*goja.Object)
		if !ok {
			return cx.ThrowTypeError("iterator result is not an object")
		}
		var done bool
		var value goja.Value
		if !cx.Try(func() {
			if d := res.Get("done"); d != nil {
				done = d.ToBoolean()
			}
			if !done {
				value = res.Get("value")
				if value == nil {
					value = goja.Undefined()
				}
			}
		}) {
			return false
		}
		if done {
			return true
		}
		if !each(value) {
			cx.closeIterator(it)
			return false
		}
	}
}

// closeIterator calls it.return, preserving the original completion.
func (cx *Context) closeIterator(it *goja.Object) {
	saved, savedExc, hadPending := cx.pending, cx.pendingExc, cx.hasPending
	var ret goja.Value
	if cx.Try(func() { ret = it.Get("return") }) {
		if fn, ok := ret.(*goja.Object); ok && callableOrNil(fn) != nil {
			cx.Call(fn, it)
		}
	}
	cx.ClearPendingException()
	if hadPending {
		cx.setPendingException(saved, savedExc)
	}
}

// combinatorResult rejects the result capability if iteration failed, per
// IfAbruptRejectPromise.
func (cx *Context) combinatorResult(args *Arguments, pair *resolvingPair, rec *promiseRecord, ok bool) bool {
	if !ok {
		exc, has := cx.TakePendingException()
		if !has {
			return false
		}
		pair.reject(cx, exc)
	}
	args.SetReturn(rec.obj)
	return true
}

func promiseAll(cx *Context, args *Arguments) bool {
	rec := cx.newPromiseRecord()
	pair := &resolvingPair{rec: rec, primary: true}
	_, reject := pair.functions(cx)

	var values []goja.Value
	remaining := 1
	finish := func() {
		items := make([]any, len(values))
		for i, v := range values {
			items[i] = v
		}
		pair.resolve(cx, cx.rt.NewArray(items...))
	}

	ok := cx.iterate(args.Value(0), func(item goja.Value) bool {
		index := len(values)
		values = append(values, goja.Undefined())
		next := cx.PromiseResolve(item)
		var called bool
		onFulfilled := cx.NewClosureFunction("", func(cx *Context, a *Arguments) bool {
			if called {
				return true
			}
			called = true
			values[index] = a.Value(0)
			remaining--
			if remaining == 0 {
				finish()
			}
			return true
		}, 1, 0)
		remaining++
		_, ok := cx.invokeThen(next, onFulfilled, reject)
		return ok
	})
	if ok {
		remaining--
		if remaining == 0 {
			finish()
		}
	}
	return cx.combinatorResult(args, pair, rec, ok)
}

func promiseAllSettled(cx *Context, args *Arguments) bool {
	rec := cx.newPromiseRecord()
	pair := &resolvingPair{rec: rec, primary: true}

	var values []goja.Value
	remaining := 1
	finish := func() {
		items := make([]any, len(values))
		for i, v := range values {
			items[i] = v
		}
		pair.resolve(cx, cx.rt.NewArray(items...))
	}

	ok := cx.iterate(args.Value(0), func(item goja.Value) bool {
		index := len(values)
		values = append(values, goja.Undefined())
		next := cx.PromiseResolve(item)
		var called bool
		settle := func(status, key string) NativeFn {
			return func(cx *Context, a *Arguments) bool {
				if called {
					return true
				}
				called = true
				entry := cx.rt.NewObject()
				_ = entry.Set("status", status)
				_ = entry.Set(key, a.Value(0))
				values[index] = entry
				remaining--
				if remaining == 0 {
					finish()
				}
				return true
			}
		}
		onFulfilled := cx.NewClosureFunction("", settle("fulfilled", "value"), 1, 0)
		onRejected := cx.NewClosureFunction("", settle("rejected", "reason"), 1, 0)
		remaining++
		_, ok := cx.invokeThen(next, onFulfilled, onRejected)
		return ok
	})
	if ok {
		remaining--
		if remaining == 0 {
			finish()
		}
	}
	return cx.combinatorResult(args, pair, rec, ok)
}

func promiseRace(cx *Context, args *Arguments) bool {
	rec := cx.newPromiseRecord()
	pair := &resolvingPair{rec: rec, primary: true}
	resolve, reject := pair.functions(cx)

	ok := cx.iterate(args.Value(0), func(item goja.Value) bool {
		_, ok := cx.invokeThen(cx.PromiseResolve(item), resolve, reject)
		return ok
	})
	return cx.combinatorResult(args, pair, rec, ok)
}

func promiseAny(cx *Context, args *Arguments) bool {
	rec := cx.newPromiseRecord()
	pair := &resolvingPair{rec: rec, primary: true}
	resolve, _ := pair.functions(cx)

	var errs []goja.Value
	remaining := 1
	finish := func() {
		pair.reject(cx, cx.newAggregateError(errs, "All promises were rejected"))
	}

	ok := cx.iterate(args.Value(0), func(item goja.Value) bool {
		index := len(errs)
		errs = append(errs, goja.Undefined())
		next := cx.PromiseResolve(item)
		var called bool
		onRejected := cx.NewClosureFunction("", func(cx *Context, a *Arguments) bool {
			if called {
				return true
			}
			called = true
			errs[index] = a.Value(0)
			remaining--
			if remaining == 0 {
				finish()
			}
			return true
		}, 1, 0)
		remaining++
		_, ok := cx.invokeThen(next, resolve, onRejected)
		return ok
	})
	if ok {
		remaining--
		if remaining == 0 {
			finish()
		}
	}
	return cx.combinatorResult(args, pair, rec, ok)
}

func (cx *Context) newAggregateError(errs []goja.Value, msg string) goja.Value {
	items := make([]any, len(errs))
	for i, v := range errs {
		items[i] = v
	}
	arr := cx.rt.NewArray(items...)
	if ctor, ok := cx.rt.Get("AggregateError").(*goja.Object); ok {
		if obj, err := cx.rt.New(ctor, arr, cx.rt.ToValue(msg)); err == nil {
			return obj
		}
	}
	obj := cx.rt.NewGoError(&AggregateError{Message: msg})
	_ = obj.Set("name", "AggregateError")
	_ = obj.Set("message", msg)
	_ = obj.Set("errors", arr)
	return obj
}

// AggregateError is the host rendering of a rejection of Promise.any.
type AggregateError struct {
	Message string
}

func (e *AggregateError) Error() string {
	if e.Message == "" {
		return "aggregate error"
	}
	return e.Message
}
