// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package engine

import (
	"github.com/dop251/goja"
)

var promisePrototypeFunctions = []FunctionSpec{
	{Name: "then", Native: promiseProtoThen, Nargs: 2},
	{Name: "catch", Native: promiseProtoCatch, Nargs: 1},
	{Name: "finally", Native: promiseProtoFinally, Nargs: 1},
}

var promiseStaticFunctions = []FunctionSpec{
	{Name: "resolve", Native: promiseStaticResolve, Nargs: 1},
	{Name: "reject", Native: promiseStaticReject, Nargs: 1},
	{Name: "all", Native: promiseAll, Nargs: 1},
	{Name: "allSettled", Native: promiseAllSettled, Nargs: 1},
	{Name: "race", Native: promiseRace, Nargs: 1},
	{Name: "any", Native: promiseAny, Nargs: 1},
	{Name: "withResolvers", Native: promiseWithResolvers, Nargs: 0},
}

// bindPromise creates the Promise constructor and prototype, replacing the
// runtime's Promise global if install is true.
func (cx *Context) bindPromise(install bool) error {
	ctor := cx.newHostFunction("Promise", 1, FlagConstructor, 0, promiseConstructor)
	proto := cx.rt.NewObject()

	cx.promiseCtor = ctor
	cx.promiseProto = proto

	if !cx.DefineFunctions(proto, promisePrototypeFunctions) {
		return cx.takeError()
	}
	if err := proto.DefineDataProperty("constructor", ctor, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return err
	}
	if err := proto.DefineDataPropertySymbol(goja.SymToStringTag, cx.rt.ToValue("Promise"), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return err
	}
	if err := ctor.Set("prototype", proto); err != nil {
		return err
	}
	if !cx.DefineFunctions(ctor, promiseStaticFunctions) {
		return cx.takeError()
	}

	if install {
		if err := cx.rt.GlobalObject().DefineDataProperty("Promise", ctor, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
			return err
		}
	}
	return nil
}

// takeError converts the pending exception into an error.
func (cx *Context) takeError() error {
	if report, ok := cx.ErrorReportFromPending(); ok {
		return report
	}
	return ErrSilentFailure
}

// PromiseConstructor returns the Promise constructor bound by this Context.
func (cx *Context) PromiseConstructor() *goja.Object { return cx.promiseCtor }

// PromisePrototype returns Promise.prototype, as bound by this Context.
func (cx *Context) PromisePrototype() *goja.Object { return cx.promiseProto }

func promiseConstructor(cx *Context, args *Arguments) bool {
	if !args.IsConstructing() {
		return cx.ThrowTypeError("Promise constructor cannot be invoked without 'new'")
	}
	executor, ok := args.Value(0).(*goja.Object)
	if !ok || callableOrNil(executor) == nil {
		return cx.ThrowTypeError("Promise executor must be a function")
	}
	this := args.ThisObject()
	if this == nil {
		return cx.ThrowTypeError("Promise constructor called with an invalid receiver")
	}
	if args.NewTarget() != nil && args.NewTarget().SameAs(cx.promiseCtor) {
		_ = this.SetPrototype(cx.promiseProto)
	}
	rec := cx.attachPromiseRecord(this)
	if !cx.runExecutor(rec, executor) {
		return false
	}
	args.SetReturn(this)
	return true
}

func objectArg(args *Arguments, i int) *goja.Object {
	obj, _ := args.Value(i).(*goja.Object)
	return obj
}

func promiseProtoThen(cx *Context, args *Arguments) bool {
	rec := cx.recordOf(args.This())
	if rec == nil {
		return cx.ThrowTypeError("Method Promise.prototype.then called on incompatible receiver")
	}
	derived := cx.newPromiseRecord()
	if !cx.performThen(rec, objectArg(args, 0), objectArg(args, 1), derived) {
		return false
	}
	args.SetReturn(derived.obj)
	return true
}

// invokeThen calls target.then, generically.
func (cx *Context) invokeThen(target goja.Value, onFulfilled, onRejected goja.Value) (goja.Value, bool) {
	var obj *goja.Object
	var then goja.Value
	if !cx.Try(func() {
		obj = target.ToObject(cx.rt)
		then = obj.Get("then")
	}) {
		return nil, false
	}
	thenFn, ok := then.(*goja.Object)
	if !ok || callableOrNil(thenFn) == nil {
		return nil, cx.ThrowTypeError("then is not a function")
	}
	return cx.Call(thenFn, target, onFulfilled, onRejected)
}

func promiseProtoCatch(cx *Context, args *Arguments) bool {
	v, ok := cx.invokeThen(args.This(), goja.Undefined(), args.Value(0))
	if !ok {
		return false
	}
	args.SetReturn(v)
	return true
}

func promiseProtoFinally(cx *Context, args *Arguments) bool {
	onFinally := objectArg(args, 0)
	if callableOrNil(onFinally) == nil {
		v, ok := cx.invokeThen(args.This(), args.Value(0), args.Value(0))
		if !ok {
			return false
		}
		args.SetReturn(v)
		return true
	}

	thenFinally := cx.NewClosureFunction("", func(cx *Context, a *Arguments) bool {
		value := a.Value(0)
		res, ok := cx.Call(onFinally, goja.Undefined())
		if !ok {
			return false
		}
		valueThunk := cx.NewClosureFunction("", func(cx *Context, a *Arguments) bool {
			a.SetReturn(value)
			return true
		}, 0, FlagOnce)
		v, ok := cx.invokeThen(cx.PromiseResolve(res), valueThunk, goja.Undefined())
		if !ok {
			return false
		}
		a.SetReturn(v)
		return true
	}, 1, FlagOnce)

	catchFinally := cx.NewClosureFunction("", func(cx *Context, a *Arguments) bool {
		reason := a.Value(0)
		res, ok := cx.Call(onFinally, goja.Undefined())
		if !ok {
			return false
		}
		thrower := cx.NewClosureFunction("", func(cx *Context, a *Arguments) bool {
			return cx.Throw(reason)
		}, 0, FlagOnce)
		v, ok := cx.invokeThen(cx.PromiseResolve(res), thrower, goja.Undefined())
		if !ok {
			return false
		}
		a.SetReturn(v)
		return true
	}, 1, FlagOnce)

	v, ok := cx.invokeThen(args.This(), thenFinally, catchFinally)
	if !ok {
		return false
	}
	args.SetReturn(v)
	return true
}

func promiseStaticResolve(cx *Context, args *Arguments) bool {
	args.SetReturn(cx.PromiseResolve(args.Value(0)))
	return true
}

func promiseStaticReject(cx *Context, args *Arguments) bool {
	rec := cx.newPromiseRecord()
	cx.rejectRecord(rec, args.Value(0))
	args.SetReturn(rec.obj)
	return true
}

func promiseWithResolvers(cx *Context, args *Arguments) bool {
	rec := cx.newPromiseRecord()
	pair := &resolvingPair{rec: rec, primary: true}
	resolve, reject := pair.functions(cx)
	result := cx.rt.NewObject()
	_ = result.Set("promise", rec.obj)
	_ = result.Set("resolve", resolve)
	_ = result.Set("reject", reject)
	args.SetReturn(result)
	return true
}
