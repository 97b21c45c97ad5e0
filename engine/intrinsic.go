// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package engine

import (
	"reflect"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-async/microtask"
)

// Intrinsic promises are the ones goja creates itself, e.g. the result of an
// async function, or anything derived from one via its then. They are settled
// and scheduled by goja, on its own job queue, which goja drains each time the
// outermost script call returns. The host can observe them, and attach
// reactions, but not settle them.

var typeIntrinsicPromise = reflect.TypeOf((*goja.Promise)(nil))

// intrinsicPromise returns the goja promise backing v, or nil.
func intrinsicPromise(v goja.Value) *goja.Promise {
	obj, ok := v.(*goja.Object)
	if !ok || obj == nil || obj.ExportType() != typeIntrinsicPromise {
		return nil
	}
	p, _ := obj.Export().(*goja.Promise)
	return p
}

func intrinsicState(p *goja.Promise) PromiseState {
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return PromiseFulfilled
	case goja.PromiseStateRejected:
		return PromiseRejected
	default:
		return PromisePending
	}
}

func intrinsicResult(p *goja.Promise) goja.Value {
	if p.State() == goja.PromiseStatePending || p.Result() == nil {
		return goja.Undefined()
	}
	return p.Result()
}

// bindIntrinsics captures the builtins the host relies on, before any script
// can replace them.
func (cx *Context) bindIntrinsics() {
	if v, ok := cx.rt.Get("eval").(*goja.Object); ok {
		cx.builtinEval = v
	}
	if v, ok := cx.rt.Get("Function").(*goja.Object); ok {
		cx.builtinFunction = v
		if proto, ok := v.Get("prototype").(*goja.Object); ok {
			cx.functionToString, _ = proto.Get("toString").(*goja.Object)
		}
	}
	p, _, _ := cx.rt.NewPromise()
	if obj, ok := cx.rt.ToValue(p).(*goja.Object); ok {
		if proto := obj.Prototype(); proto != nil {
			cx.intrinsicThen, _ = proto.Get("then").(*goja.Object)
		}
	}
}

// intrinsicID returns the id of an intrinsic promise, assigning one from the
// promise id sequence on first use. Frozen promises get a fresh id each call.
func (cx *Context) intrinsicID(obj *goja.Object) uint64 {
	var id uint64
	if !cx.Try(func() {
		if v := obj.GetSymbol(cx.symIntrinsicID); v != nil && !goja.IsUndefined(v) {
			id = uint64(v.ToInteger())
		}
	}) {
		cx.ClearPendingException()
	}
	if id != 0 {
		return id
	}
	id = cx.records.allocID()
	if err := obj.DefineDataPropertySymbol(cx.symIntrinsicID, cx.rt.ToValue(id), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		cx.logger.Debug().
			Str("category", "promise").
			Err(err).
			Log("failed to assign intrinsic promise id")
	}
	return id
}

// trackIntrinsicRejection forwards goja's rejection tracker notifications to
// the configured RejectionTracker.
func (cx *Context) trackIntrinsicRejection(p *goja.Promise, op goja.PromiseRejectionOperation) {
	if cx.tracker == nil {
		return
	}
	obj, ok := cx.rt.ToValue(p).(*goja.Object)
	if !ok {
		return
	}
	rop := RejectionReject
	if op == goja.PromiseRejectionHandle {
		rop = RejectionHandle
	}
	cx.logger.Debug().
		Str("category", "rejection").
		Uint64("promise_id", cx.intrinsicID(obj)).
		Str("operation", rop.String()).
		Bool("intrinsic", true).
		Log("promise rejection tracked")
	cx.tracker(cx, obj, rop)
}

// addIntrinsicReactions attaches reactions to an intrinsic promise via goja's
// own then, in a reaction job, so registration never runs script inline.
func (cx *Context) addIntrinsicReactions(obj, onFulfilled, onRejected *goja.Object) bool {
	if cx.intrinsicThen == nil {
		return cx.ThrowTypeError("intrinsic promises are unavailable")
	}
	args := [2]goja.Value{goja.Undefined(), goja.Undefined()}
	if fn := callableOrNil(onFulfilled); fn != nil {
		args[0] = fn
	}
	if fn := callableOrNil(onRejected); fn != nil {
		args[1] = fn
	}
	release := cx.rootJob("intrinsic then", obj, args[0], args[1])
	err := cx.enqueue(microtask.KindReaction, "intrinsic then", func() error {
		defer release()
		return cx.runJob(func(cx *Context) bool {
			_, ok := cx.Call(cx.intrinsicThen, obj, args[0], args[1])
			return ok
		})
	})
	if err != nil {
		release()
		return cx.ThrowError(err)
	}
	return true
}

// rootJob roots the values captured by a queued job, until release.
func (cx *Context) rootJob(name string, values ...goja.Value) (release func()) {
	roots := make([]Rooted, 0, len(values))
	for _, v := range values {
		if v == nil || goja.IsUndefined(v) {
			continue
		}
		roots = append(roots, cx.Persist(name, v))
	}
	return func() {
		for _, r := range roots {
			cx.Unroot(r)
		}
		roots = nil
	}
}
