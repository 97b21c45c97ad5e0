// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package eventloop is the event loop glue for goja-async: it owns the
// microtask queue of an [engine.Context], performs microtask checkpoints after
// each macrotask, installs the queueMicrotask global, and reports unhandled
// promise rejections.
//
// # Usage
//
//	loop, err := eventloop.New(eventloop.WithLogger(eventloop.NewDefaultLogger(os.Stderr, logiface.LevelWarning)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	if _, err := loop.RunScript("main.js", src); err != nil {
//	    log.Fatal(err)
//	}
//
// Alternatively, run the loop on a dedicated goroutine, and feed it work via
// [Loop.Submit], which is safe for concurrent use:
//
//	go loop.Run(ctx)
//	_ = loop.Submit(func(cx *engine.Context) error { ... })
//
// # Checkpoints
//
// A checkpoint drains the microtask queue to a fixed point. Every promise that
// was rejected, and still has no handler, then receives the default rejection
// handler, and the queue is drained again. Each unhandled rejection is reported
// exactly once, via the configured [Reporter].
package eventloop
