// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"github.com/dop251/goja"
	"github.com/joeycumines/goja-async/engine"
	"github.com/joeycumines/goja-async/microtask"
)

var globalFunctions = []engine.FunctionSpec{
	{Name: "queueMicrotask", Nargs: 1, Flags: engine.PropConstant, Native: queueMicrotask},
}

func queueMicrotask(cx *engine.Context, args *engine.Arguments) bool {
	callback, ok := args.Value(0).(*goja.Object)
	if !ok {
		return cx.ThrowTypeError("queueMicrotask: callback is not a function")
	}
	if _, ok := goja.AssertFunction(callback); !ok {
		return cx.ThrowTypeError("queueMicrotask: callback is not a function")
	}
	// the callback is rooted until the job runs
	root := cx.Persist("queueMicrotask", callback)
	err := cx.EnqueueJob(microtask.KindUser, "queueMicrotask", func(cx *engine.Context) bool {
		fn := root.Object()
		cx.Unroot(root)
		if fn == nil {
			return true
		}
		_, ok := cx.Call(fn, goja.Undefined())
		return ok
	})
	if err != nil {
		cx.Unroot(root)
		return cx.ThrowError(err)
	}
	return true
}
