// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package engine implements the host-facing engine contracts on top of
// github.com/dop251/goja: a pending exception channel, rooting and tracing,
// a fixed native callback ABI with a closure slot registry, and a promise
// implementation whose reaction jobs run on a host-owned microtask queue.
//
// goja drains its own job queue internally, which makes microtask ordering
// unobservable to the host. A Context therefore replaces the runtime's
// Promise global with an implementation scheduling every reaction job on the
// microtask.Queue it was constructed with. Async functions and await remain
// bound to goja's intrinsic promise, which interoperates with the replaced
// Promise as a thenable. Intrinsic promises are still observable, and the
// host may attach reactions to them, but their jobs run on goja's queue as
// the outermost script call returns, ahead of the host queue.
//
// Silent failures (a native returning false without a pending exception) are
// implemented using goja's interrupt mechanism, so they cannot be caught by
// scripts, and surface at the nearest host boundary (Context.Call,
// Context.Evaluate, or a queued job) as a false return with no pending
// exception.
package engine
