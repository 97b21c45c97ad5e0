// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package engine

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-async/microtask"
)

// PromiseState is the settlement state of a promise.
type PromiseState uint8

const (
	// PromisePending indicates the promise is not yet settled.
	PromisePending PromiseState = iota
	// PromiseFulfilled indicates the promise was fulfilled with a value.
	PromiseFulfilled
	// PromiseRejected indicates the promise was rejected with a reason.
	PromiseRejected
)

func (s PromiseState) String() string {
	switch s {
	case PromisePending:
		return "Pending"
	case PromiseFulfilled:
		return "Fulfilled"
	case PromiseRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// RejectionOperation identifies a rejection tracker notification.
type RejectionOperation uint8

const (
	// RejectionReject is sent when a promise is rejected without handlers.
	RejectionReject RejectionOperation = iota
	// RejectionHandle is sent when a handler is attached to a promise that
	// was previously reported via RejectionReject.
	RejectionHandle
)

func (op RejectionOperation) String() string {
	switch op {
	case RejectionReject:
		return "reject"
	case RejectionHandle:
		return "handle"
	default:
		return "unknown"
	}
}

// RejectionTracker is the host hook for unhandled rejection detection.
type RejectionTracker func(cx *Context, promise *goja.Object, op RejectionOperation)

// promiseRecord is the internal state of a promise object.
type promiseRecord struct {
	obj              *goja.Object
	result           goja.Value
	fulfillReactions []*reaction
	rejectReactions  []*reaction
	id               uint64
	state            PromiseState
	// locked indicates the promise was resolved, possibly to a pending
	// thenable, and can't be resolved or rejected again
	locked  bool
	handled bool
}

// claim locks in the record for resolution, returning false if it was
// already locked or settled.
func (rec *promiseRecord) claim() bool {
	if rec.locked || rec.state != PromisePending {
		return false
	}
	rec.locked = true
	return true
}

type reactionType uint8

const (
	reactionFulfill reactionType = iota
	reactionReject
)

type reaction struct {
	// derived is settled with the outcome of the handler, may be nil
	derived *promiseRecord
	// handler is nil for pass-through
	handler *goja.Object
	typ     reactionType
}

// resolvingPair is the state shared by a pair of resolving functions. Only the
// first call to either function has any effect.
type resolvingPair struct {
	rec     *promiseRecord
	primary bool
}

func (p *resolvingPair) take() *promiseRecord {
	rec := p.rec
	if rec == nil {
		return nil
	}
	p.rec = nil
	if p.primary && !rec.claim() {
		return nil
	}
	return rec
}

func (p *resolvingPair) resolve(cx *Context, v goja.Value) {
	if rec := p.take(); rec != nil {
		cx.resolveRecord(rec, v)
	}
}

func (p *resolvingPair) reject(cx *Context, v goja.Value) {
	if rec := p.take(); rec != nil {
		cx.rejectRecord(rec, v)
	}
}

// functions creates the script-visible resolve and reject functions.
func (p *resolvingPair) functions(cx *Context) (resolve, reject *goja.Object) {
	resolve = cx.NewClosureFunction("", func(cx *Context, args *Arguments) bool {
		p.resolve(cx, args.Value(0))
		return true
	}, 1, 0)
	reject = cx.NewClosureFunction("", func(cx *Context, args *Arguments) bool {
		p.reject(cx, args.Value(0))
		return true
	}, 1, 0)
	return
}

func (cx *Context) newPromiseRecord() *promiseRecord {
	obj := cx.rt.NewObject()
	_ = obj.SetPrototype(cx.promiseProto)
	return cx.attachPromiseRecord(obj)
}

func (cx *Context) attachPromiseRecord(obj *goja.Object) *promiseRecord {
	rec := &promiseRecord{
		obj:    obj,
		result: goja.Undefined(),
	}
	cx.records.add(rec)
	_ = obj.DefineDataPropertySymbol(cx.symPromise, cx.rt.ToValue(rec), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	cx.logger.Trace().
		Str("category", "promise").
		Uint64("promise_id", rec.id).
		Log("promise created")
	return rec
}

// recordOf returns the record of a promise created by this Context, or nil.
func (cx *Context) recordOf(v goja.Value) *promiseRecord {
	obj, ok := v.(*goja.Object)
	if !ok || obj == nil {
		return nil
	}
	var rec *promiseRecord
	if !cx.Try(func() {
		if pv := obj.GetSymbol(cx.symPromise); pv != nil {
			rec, _ = pv.Export().(*promiseRecord)
		}
	}) {
		cx.ClearPendingException()
		return nil
	}
	// the symbol is inherited by objects using a promise as their prototype
	if rec == nil || !rec.obj.SameAs(obj) {
		return nil
	}
	return rec
}

// NewPromise creates a pending promise, which may only be settled by the
// host, via ResolvePromise or RejectPromise.
func (cx *Context) NewPromise() *goja.Object {
	return cx.newPromiseRecord().obj
}

// NewPromiseObject creates a promise, synchronously invoking executor with
// its resolving functions. If executor throws, the promise is rejected with
// the thrown value, unless it was already resolved. It returns false only on
// silent failure of the executor.
func (cx *Context) NewPromiseObject(executor *goja.Object) (*goja.Object, bool) {
	if _, ok := goja.AssertFunction(executor); !ok {
		return nil, cx.ThrowTypeError("Promise executor must be a function")
	}
	rec := cx.newPromiseRecord()
	if !cx.runExecutor(rec, executor) {
		return nil, false
	}
	return rec.obj, true
}

func (cx *Context) runExecutor(rec *promiseRecord, executor *goja.Object) bool {
	pair := &resolvingPair{rec: rec, primary: true}
	resolve, reject := pair.functions(cx)
	if _, ok := cx.Call(executor, goja.Undefined(), resolve, reject); !ok {
		exc, ok := cx.TakePendingException()
		if !ok {
			return false
		}
		pair.reject(cx, exc)
	}
	return true
}

// IsPromiseObject reports whether obj is a promise created by this Context,
// or an intrinsic promise of its runtime, e.g. the result of an async
// function.
func (cx *Context) IsPromiseObject(obj *goja.Object) bool {
	return cx.recordOf(obj) != nil || intrinsicPromise(obj) != nil
}

// IsIntrinsicPromise reports whether obj is a promise created by goja itself,
// which the host may observe but not settle.
func (cx *Context) IsIntrinsicPromise(obj *goja.Object) bool {
	return intrinsicPromise(obj) != nil
}

// PromiseID returns the unique id of a promise, or zero if obj is not a
// promise. Intrinsic promises are assigned an id on first use.
func (cx *Context) PromiseID(obj *goja.Object) uint64 {
	if rec := cx.recordOf(obj); rec != nil {
		return rec.id
	}
	if intrinsicPromise(obj) != nil {
		return cx.intrinsicID(obj)
	}
	return 0
}

// GetPromiseState returns the state of a promise. Non-promises report
// PromisePending.
func (cx *Context) GetPromiseState(obj *goja.Object) PromiseState {
	if rec := cx.recordOf(obj); rec != nil {
		return rec.state
	}
	if p := intrinsicPromise(obj); p != nil {
		return intrinsicState(p)
	}
	return PromisePending
}

// GetPromiseResult returns the settled value, or undefined if pending.
func (cx *Context) GetPromiseResult(obj *goja.Object) goja.Value {
	if rec := cx.recordOf(obj); rec != nil {
		return rec.result
	}
	if p := intrinsicPromise(obj); p != nil {
		return intrinsicResult(p)
	}
	return goja.Undefined()
}

// IsPromiseHandled reports whether any handler was ever attached to obj.
// It is always false for intrinsic promises, as goja doesn't expose it.
func (cx *Context) IsPromiseHandled(obj *goja.Object) bool {
	if rec := cx.recordOf(obj); rec != nil {
		return rec.handled
	}
	return false
}

// settleTarget returns the record of a promise the host may settle.
func (cx *Context) settleTarget(obj *goja.Object) (*promiseRecord, bool) {
	if rec := cx.recordOf(obj); rec != nil {
		return rec, true
	}
	if intrinsicPromise(obj) != nil {
		return nil, cx.ThrowTypeError("cannot settle an intrinsic promise")
	}
	return nil, cx.ThrowTypeError("value is not a promise")
}

// ResolvePromise resolves a promise with v, returning false (without a
// pending exception) if it was already resolved or settled.
func (cx *Context) ResolvePromise(obj *goja.Object, v goja.Value) bool {
	rec, ok := cx.settleTarget(obj)
	if !ok {
		return false
	}
	if !rec.claim() {
		return false
	}
	cx.resolveRecord(rec, v)
	return true
}

// RejectPromise rejects a promise with v, returning false (without a pending
// exception) if it was already resolved or settled.
func (cx *Context) RejectPromise(obj *goja.Object, v goja.Value) bool {
	rec, ok := cx.settleTarget(obj)
	if !ok {
		return false
	}
	if !rec.claim() {
		return false
	}
	cx.rejectRecord(rec, v)
	return true
}

// AddPromiseReactions registers reactions on a promise. Either handler may
// be nil. Handlers run as microtasks, never synchronously, and their outcome
// settles a hidden derived promise, so a throwing handler surfaces as an
// unhandled rejection. Reactions on intrinsic promises are attached by a
// reaction job, via goja's own then.
func (cx *Context) AddPromiseReactions(obj, onFulfilled, onRejected *goja.Object) bool {
	rec := cx.recordOf(obj)
	if rec == nil {
		if intrinsicPromise(obj) != nil {
			return cx.addIntrinsicReactions(obj, onFulfilled, onRejected)
		}
		return cx.ThrowTypeError("value is not a promise")
	}
	return cx.performThen(rec, onFulfilled, onRejected, cx.newPromiseRecord())
}

// PromiseThen is Promise.prototype.then, for promises created by this
// Context, returning the derived promise.
func (cx *Context) PromiseThen(obj *goja.Object, onFulfilled, onRejected *goja.Object) (*goja.Object, bool) {
	rec := cx.recordOf(obj)
	if rec == nil {
		return nil, cx.ThrowTypeError("value is not a promise")
	}
	derived := cx.newPromiseRecord()
	if !cx.performThen(rec, onFulfilled, onRejected, derived) {
		return nil, false
	}
	return derived.obj, true
}

// PromiseResolve converts v to a promise of this Context, returning v itself
// if it already is one.
func (cx *Context) PromiseResolve(v goja.Value) *goja.Object {
	if rec := cx.recordOf(v); rec != nil {
		return rec.obj
	}
	rec := cx.newPromiseRecord()
	rec.locked = true
	cx.resolveRecord(rec, v)
	return rec.obj
}

func callableOrNil(fn *goja.Object) *goja.Object {
	if fn == nil {
		return nil
	}
	if _, ok := goja.AssertFunction(fn); !ok {
		return nil
	}
	return fn
}

func (cx *Context) performThen(rec *promiseRecord, onFulfilled, onRejected *goja.Object, derived *promiseRecord) bool {
	fulfill := &reaction{derived: derived, handler: callableOrNil(onFulfilled), typ: reactionFulfill}
	reject := &reaction{derived: derived, handler: callableOrNil(onRejected), typ: reactionReject}
	switch rec.state {
	case PromisePending:
		rec.fulfillReactions = append(rec.fulfillReactions, fulfill)
		rec.rejectReactions = append(rec.rejectReactions, reject)
	case PromiseFulfilled:
		if err := cx.enqueueReaction(fulfill, rec.result); err != nil {
			return cx.ThrowError(err)
		}
	case PromiseRejected:
		if err := cx.enqueueReaction(reject, rec.result); err != nil {
			return cx.ThrowError(err)
		}
		if !rec.handled {
			cx.trackRejection(rec, RejectionHandle)
		}
	}
	rec.handled = true
	return true
}

// resolveRecord implements the promise resolve function, for a locked record.
func (cx *Context) resolveRecord(rec *promiseRecord, resolution goja.Value) {
	if rec.state != PromisePending {
		return
	}
	if resolution == nil {
		resolution = goja.Undefined()
	}
	obj, ok := resolution.(*goja.Object)
	if !ok {
		cx.settleRecord(rec, PromiseFulfilled, resolution)
		return
	}
	if obj.SameAs(rec.obj) {
		cx.settleRecord(rec, PromiseRejected, cx.rt.NewTypeError(fmt.Sprintf("Chaining cycle detected for promise #%d", rec.id)))
		return
	}
	var then goja.Value
	if !cx.Try(func() { then = obj.Get("then") }) {
		exc, _ := cx.TakePendingException()
		cx.settleRecord(rec, PromiseRejected, exc)
		return
	}
	thenFn, ok := then.(*goja.Object)
	if !ok {
		cx.settleRecord(rec, PromiseFulfilled, resolution)
		return
	}
	if _, ok := goja.AssertFunction(thenFn); !ok {
		cx.settleRecord(rec, PromiseFulfilled, resolution)
		return
	}
	// thenables are adopted in a later job
	release := cx.rootJob("promise resolve thenable", obj, thenFn)
	err := cx.enqueue(microtask.KindReaction, "promise resolve thenable", func() error {
		defer release()
		return cx.runJob(func(cx *Context) bool {
			pair := &resolvingPair{rec: rec}
			resolve, reject := pair.functions(cx)
			if _, ok := cx.Call(thenFn, obj, resolve, reject); !ok {
				exc, ok := cx.TakePendingException()
				if !ok {
					return false
				}
				pair.reject(cx, exc)
			}
			return true
		})
	})
	if err != nil {
		release()
		cx.Diagnose(Diagnostic{Err: err, Source: "promise", Operation: "adopt thenable", PromiseID: rec.id})
	}
}

func (cx *Context) rejectRecord(rec *promiseRecord, reason goja.Value) {
	if rec.state != PromisePending {
		return
	}
	if reason == nil {
		reason = goja.Undefined()
	}
	rec.locked = true
	cx.settleRecord(rec, PromiseRejected, reason)
}

func (cx *Context) settleRecord(rec *promiseRecord, state PromiseState, value goja.Value) {
	var reactions []*reaction
	if state == PromiseFulfilled {
		reactions = rec.fulfillReactions
	} else {
		reactions = rec.rejectReactions
	}
	rec.state = state
	rec.result = value
	rec.locked = true
	rec.fulfillReactions = nil
	rec.rejectReactions = nil

	cx.logger.Trace().
		Str("category", "promise").
		Uint64("promise_id", rec.id).
		Str("state", state.String()).
		Int("reactions", len(reactions)).
		Log("promise settled")

	if state == PromiseRejected && !rec.handled {
		cx.trackRejection(rec, RejectionReject)
	}
	for _, r := range reactions {
		if err := cx.enqueueReaction(r, value); err != nil {
			cx.Diagnose(Diagnostic{Err: err, Source: "promise", Operation: "schedule reaction", PromiseID: rec.id})
		}
	}
}

func (cx *Context) enqueueReaction(r *reaction, arg goja.Value) error {
	var handler goja.Value
	if r.handler != nil {
		handler = r.handler
	}
	release := cx.rootJob("promise reaction", handler, arg)
	err := cx.enqueue(microtask.KindReaction, "promise reaction", func() error {
		defer release()
		return cx.runJob(func(cx *Context) bool {
			return cx.runReaction(r, arg)
		})
	})
	if err != nil {
		release()
	}
	return err
}

func (cx *Context) runReaction(r *reaction, arg goja.Value) bool {
	if r.handler == nil {
		if r.derived != nil && r.derived.claim() {
			if r.typ == reactionFulfill {
				cx.resolveRecord(r.derived, arg)
			} else {
				cx.rejectRecord(r.derived, arg)
			}
		}
		return true
	}
	v, ok := cx.Call(r.handler, goja.Undefined(), arg)
	if !ok {
		exc, ok := cx.TakePendingException()
		if !ok {
			return false
		}
		if r.derived == nil {
			return cx.Throw(exc)
		}
		if r.derived.claim() {
			cx.rejectRecord(r.derived, exc)
		}
		return true
	}
	if r.derived != nil && r.derived.claim() {
		cx.resolveRecord(r.derived, v)
	}
	return true
}

func (cx *Context) trackRejection(rec *promiseRecord, op RejectionOperation) {
	cx.logger.Debug().
		Str("category", "rejection").
		Uint64("promise_id", rec.id).
		Str("operation", op.String()).
		Log("promise rejection tracked")
	if cx.tracker != nil {
		cx.tracker(cx, rec.obj, op)
	}
}
