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
	"github.com/joeycumines/goja-async/microtask"
	"github.com/joeycumines/logiface"
)

// Context binds a goja runtime to a host-owned microtask queue, and carries
// the per-runtime state of the engine contracts: the pending exception, the
// rooting arena, the native closure slots, and the promise machinery.
//
// A Context is not safe for concurrent use. Every method must be called from
// the goroutine driving the runtime.
type Context struct {
	rt      *goja.Runtime
	queue   *microtask.Queue
	logger  *logiface.Logger[logiface.Event]
	slots   *slotRegistry
	roots   *rootArena
	records *registry

	tracker    RejectionTracker
	diagnostic func(Diagnostic)

	// pending exception channel
	pending    goja.Value
	pendingExc *goja.Exception

	symPromise     *goja.Symbol
	symSlot        *goja.Symbol
	symNargs       *goja.Symbol
	symIntrinsicID *goja.Symbol

	promiseCtor  *goja.Object
	promiseProto *goja.Object

	builtinEval      *goja.Object
	builtinFunction  *goja.Object
	functionToString *goja.Object
	intrinsicThen    *goja.Object

	scavengeBatch int
	hasPending    bool
	silent        bool
	closed        bool
}

// New binds rt to queue. The queue is not initialised by New: the owner of the
// queue controls its lifecycle, and promise reactions scheduled while it is
// not ready fail with microtask.ErrNotInitialized.
func New(rt *goja.Runtime, queue *microtask.Queue, opts ...ContextOption) (*Context, error) {
	if rt == nil {
		return nil, errors.New("engine: nil runtime")
	}
	if queue == nil {
		return nil, errors.New("engine: nil microtask queue")
	}
	cfg, err := resolveContextOptions(opts)
	if err != nil {
		return nil, err
	}

	cx := &Context{
		rt:            rt,
		queue:         queue,
		logger:        cfg.logger,
		slots:         newSlotRegistry(),
		roots:         newRootArena(),
		records:       newRegistry(),
		tracker:       cfg.rejectionTracker,
		diagnostic:    cfg.diagnosticHandler,
		symPromise:     goja.NewSymbol("[[PromiseState]]"),
		symSlot:        goja.NewSymbol("[[NativeSlot]]"),
		symNargs:       goja.NewSymbol("[[NativeNargs]]"),
		symIntrinsicID: goja.NewSymbol("[[PromiseID]]"),
		scavengeBatch:  cfg.scavengeBatch,
	}

	cx.bindIntrinsics()
	if cx.tracker != nil {
		rt.SetPromiseRejectionTracker(cx.trackIntrinsicRejection)
	}

	if err := cx.bindPromise(!cfg.noPromiseGlobal); err != nil {
		return nil, fmt.Errorf("engine: failed to bind Promise: %w", err)
	}

	return cx, nil
}

// Runtime returns the underlying goja runtime.
func (cx *Context) Runtime() *goja.Runtime { return cx.rt }

// Queue returns the microtask queue reactions are scheduled on.
func (cx *Context) Queue() *microtask.Queue { return cx.queue }

// Logger returns the configured logger, which may be nil.
func (cx *Context) Logger() *logiface.Logger[logiface.Event] { return cx.logger }

// Closed reports whether Close has been called.
func (cx *Context) Closed() bool { return cx.closed }

// Close rejects every still-pending promise with ErrContextClosed, releases
// all native closure slots, and drops all roots. The resulting reaction jobs
// are enqueued normally, so the owner may drain the queue once more.
func (cx *Context) Close() {
	if cx.closed {
		return
	}
	cx.closed = true
	n := cx.records.RejectAll(func(rec *promiseRecord) {
		cx.rejectRecord(rec, cx.ErrorValue(ErrContextClosed))
	})
	released := cx.slots.releaseAll()
	cx.roots.reset()
	cx.logger.Debug().
		Str("category", "promise").
		Int("rejected", n).
		Int("released_slots", released).
		Log("engine context closed")
}

// Scavenge incrementally prunes the promise registry of collected or settled
// promises. Hosts call it once per event loop turn.
func (cx *Context) Scavenge() {
	cx.records.Scavenge(cx.scavengeBatch)
}

// PendingPromises returns the number of tracked promises that may still be
// pending. It is an upper bound, refined by Scavenge.
func (cx *Context) PendingPromises() int {
	return cx.records.Len()
}

// Evaluate runs src as a classic script. On failure it returns false, with
// the thrown value pending unless the failure was silent.
func (cx *Context) Evaluate(name, src string) (goja.Value, bool) {
	v, err := cx.rt.RunScript(name, src)
	return cx.settleCall(v, err)
}

// Call invokes fn. On failure it returns false, with the thrown value pending
// unless the failure was silent.
func (cx *Context) Call(fn *goja.Object, this goja.Value, args ...goja.Value) (goja.Value, bool) {
	callable, ok := goja.AssertFunction(fn)
	if !ok {
		return nil, cx.ThrowTypeError("value is not a function")
	}
	if this == nil {
		this = goja.Undefined()
	}
	v, err := callable(this, args...)
	return cx.settleCall(v, err)
}

// Construct invokes fn as a constructor.
func (cx *Context) Construct(fn *goja.Object, args ...goja.Value) (*goja.Object, bool) {
	if _, ok := goja.AssertConstructor(fn); !ok {
		return nil, cx.ThrowTypeError("value is not a constructor")
	}
	obj, err := cx.rt.New(fn, args...)
	if _, ok := cx.settleCall(obj, err); !ok {
		return nil, false
	}
	return obj, true
}

// settleCall normalizes the result of entering the runtime, moving thrown
// values onto the pending exception channel, and consuming any silent
// failure signalled by a native.
func (cx *Context) settleCall(v goja.Value, err error) (goja.Value, bool) {
	if cx.silent {
		cx.silent = false
		cx.rt.ClearInterrupt()
		if err == nil {
			// a native signalled failure, but control returned to the host
			// before the runtime observed the interrupt
			return nil, false
		}
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if _, ok := interrupted.Value().(silentFailure); ok {
				return nil, false
			}
		}
	}
	if err == nil {
		return v, true
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		cx.setPendingException(exc.Value(), exc)
		return nil, false
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if _, ok := interrupted.Value().(silentFailure); ok {
			cx.rt.ClearInterrupt()
			return nil, false
		}
	}
	// compile errors, and host interrupts
	cx.setPendingException(cx.ErrorValue(err), nil)
	return nil, false
}

// signalSilent aborts the running script, uncatchably.
func (cx *Context) signalSilent() {
	cx.silent = true
	cx.rt.Interrupt(silentFailure{})
}

// enqueue schedules a job on the microtask queue.
func (cx *Context) enqueue(kind microtask.Kind, label string, run func() error) error {
	err := cx.queue.Enqueue(microtask.Task{
		Kind:  kind,
		Label: label,
		Run:   run,
	})
	if err != nil {
		cx.logger.Err().
			Str("category", "microtask").
			Str("label", label).
			Err(err).
			Log("failed to enqueue job")
	}
	return err
}

// EnqueueJob schedules a host job, which runs fn with a clear exception
// channel. A false return from fn is reported to the queue as an
// *ErrorReport (if an exception was pending) or ErrSilentFailure.
func (cx *Context) EnqueueJob(kind microtask.Kind, label string, fn func(cx *Context) bool) error {
	return cx.enqueue(kind, label, func() error {
		return cx.runJob(fn)
	})
}

func (cx *Context) runJob(fn func(cx *Context) bool) error {
	cx.ClearPendingException()
	if fn(cx) {
		if cx.hasPending {
			report, _ := cx.ErrorReportFromPending()
			return report
		}
		return nil
	}
	if report, ok := cx.ErrorReportFromPending(); ok {
		return report
	}
	return ErrSilentFailure
}

// Diagnostic describes a failure that could not be propagated to a caller,
// e.g. settling a promise after its future completed.
type Diagnostic struct {
	Err       error
	Source    string
	Operation string
	PromiseID uint64
}

// Diagnose logs d, and passes it to the handler configured by
// WithDiagnosticHandler.
func (cx *Context) Diagnose(d Diagnostic) {
	cx.logger.Warning().
		Str("category", "promise").
		Str("source", d.Source).
		Str("operation", d.Operation).
		Uint64("promise_id", d.PromiseID).
		Err(d.Err).
		Log("unpropagated failure")
	if cx.diagnostic != nil {
		cx.diagnostic(d)
	}
}
