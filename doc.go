// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package gojaasync bridges host Go code and the asynchronous primitives of a
// goja runtime: native functions callable from scripts, capturing closures
// exposed through a fixed native ABI, and promises whose reactions run on a
// host-owned microtask queue.
//
// # Setup
//
//	queue, _ := microtask.New()
//	_ = queue.Init()
//	cx, err := engine.New(goja.New(), queue)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p, _ := gojaasync.NewPromiseWithExecutor(cx, func(cx *engine.Context, resolve, reject gojaasync.Function) error {
//	    _, err := resolve.Call(cx, nil, cx.Runtime().ToValue(42))
//	    return err
//	})
//
//	// reactions only ever run when the host drains the queue
//	_, _ = queue.Drain()
//	fmt.Println(p.State(), p.Result()) // fulfilled 42
//
// Most hosts use [github.com/joeycumines/goja-async/eventloop.Loop], which owns
// the queue, and drains it to a fixed point after each macrotask.
//
// # Errors
//
// Failures converting values (e.g. [FunctionFromObject] on a non-callable)
// leave a TypeError pending on the [engine.Context], and return false. Calls
// into the engine ([Function.Call]) return an [*engine.ErrorReport] if the
// callee threw, or [engine.ErrSilentFailure] if it failed without throwing.
//
// # Futures
//
// [NewPromiseFromFuture] drives a Go computation to completion on the calling
// goroutine, via a [Driver], then settles the promise. There are no
// suspension points.
package gojaasync
