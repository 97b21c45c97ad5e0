package engine

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-async/microtask"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackedRejection struct {
	id uint64
	op RejectionOperation
}

func newTrackingContext(t *testing.T) (*Context, *microtask.Queue, *[]trackedRejection) {
	t.Helper()
	var tracked []trackedRejection
	cx, q := newTestContext(t, WithRejectionTracker(func(cx *Context, promise *goja.Object, op RejectionOperation) {
		tracked = append(tracked, trackedRejection{id: cx.PromiseID(promise), op: op})
	}))
	return cx, q, &tracked
}

func TestPromise_ReactionsAreAsynchronous(t *testing.T) {
	cx, q := newTestContext(t)
	mustEval(t, cx, `
var log = [];
Promise.resolve(1).then(v => log.push("a" + v));
new Promise(r => { log.push("executor"); r(2) }).then(v => log.push("b" + v));
log.push("sync");
`)
	assert.Equal(t, "executor,sync", mustEval(t, cx, `log.join()`).String())
	drain(t, q)
	assert.Equal(t, "executor,sync,a1,b2", mustEval(t, cx, `log.join()`).String())
}

func TestPromise_Chaining(t *testing.T) {
	cx, q := newTestContext(t)
	mustEval(t, cx, `
var result;
new Promise(r => r(42))
	.then(v => v + 1)
	.then(v => { throw new Error("at " + v) })
	.catch(e => e.message)
	.finally(() => "ignored")
	.then(v => { result = v });
`)
	drain(t, q)
	assert.Equal(t, "at 43", mustEval(t, cx, `result`).String())
}

func TestPromise_FixedPointOrdering(t *testing.T) {
	cx, q := newTestContext(t)
	mustEval(t, cx, `
var log = [];
const p = Promise.resolve();
p.then(() => { log.push(1); p.then(() => log.push(3)) });
p.then(() => log.push(2));
`)
	// nested reactions run within the same drain
	drain(t, q)
	assert.Equal(t, "1,2,3", mustEval(t, cx, `log.join()`).String())
}

func TestPromise_HostSettleOnce(t *testing.T) {
	cx, _ := newTestContext(t)
	rt := cx.Runtime()
	p := cx.NewPromise()
	assert.Equal(t, PromisePending, cx.GetPromiseState(p))
	assert.True(t, goja.IsUndefined(cx.GetPromiseResult(p)))

	require.True(t, cx.ResolvePromise(p, rt.ToValue(1)))
	assert.Equal(t, PromiseFulfilled, cx.GetPromiseState(p))

	assert.False(t, cx.ResolvePromise(p, rt.ToValue(2)))
	assert.False(t, cx.RejectPromise(p, rt.ToValue(3)))
	assert.False(t, cx.IsExceptionPending())
	assert.Equal(t, PromiseFulfilled, cx.GetPromiseState(p))
	assert.Equal(t, int64(1), cx.GetPromiseResult(p).ToInteger())
}

func TestPromise_LockedByThenable(t *testing.T) {
	cx, q := newTestContext(t)
	rt := cx.Runtime()
	inner := cx.NewPromise()
	outer := cx.NewPromise()
	require.True(t, cx.ResolvePromise(outer, inner))
	// locked in, but still pending
	assert.Equal(t, PromisePending, cx.GetPromiseState(outer))
	assert.False(t, cx.RejectPromise(outer, rt.ToValue("nope")))

	require.True(t, cx.ResolvePromise(inner, rt.ToValue("done")))
	drain(t, q)
	assert.Equal(t, PromiseFulfilled, cx.GetPromiseState(outer))
	assert.Equal(t, "done", cx.GetPromiseResult(outer).String())
}

func TestPromise_ExecutorThrows(t *testing.T) {
	cx, _ := newTestContext(t)
	executor := mustEval(t, cx, `(function (resolve, reject) { throw new Error("bad executor") })`).(*goja.Object)
	p, ok := cx.NewPromiseObject(executor)
	require.True(t, ok)
	assert.False(t, cx.IsExceptionPending())
	assert.Equal(t, PromiseRejected, cx.GetPromiseState(p))
	assert.Equal(t, "bad executor", cx.GetPromiseResult(p).(*goja.Object).Get("message").String())
}

func TestPromise_ExecutorThrowsAfterResolve(t *testing.T) {
	cx, _ := newTestContext(t)
	executor := mustEval(t, cx, `(function (resolve) { resolve("ok"); throw new Error("ignored") })`).(*goja.Object)
	p, ok := cx.NewPromiseObject(executor)
	require.True(t, ok)
	assert.Equal(t, PromiseFulfilled, cx.GetPromiseState(p))
	assert.Equal(t, "ok", cx.GetPromiseResult(p).String())
}

func TestPromise_ExecutorNotCallable(t *testing.T) {
	cx, _ := newTestContext(t)
	_, ok := cx.NewPromiseObject(cx.Runtime().NewObject())
	assert.False(t, ok)
	assert.True(t, cx.IsExceptionPending())
	cx.ClearPendingException()

	v := mustEval(t, cx, `
const out = [];
try { new Promise(1) } catch (e) { out.push(e instanceof TypeError) }
try { Promise(() => {}) } catch (e) { out.push(e instanceof TypeError) }
out.join()
`)
	assert.Equal(t, "true,true", v.String())
}

func TestPromise_ChainingCycle(t *testing.T) {
	cx, q := newTestContext(t)
	mustEval(t, cx, `
var message;
const { promise, resolve } = Promise.withResolvers();
resolve(promise);
promise.catch(e => { message = e.message });
`)
	drain(t, q)
	assert.Contains(t, mustEval(t, cx, `message`).String(), "Chaining cycle detected for promise #")
}

func TestPromise_ThenableAdoption(t *testing.T) {
	cx, q := newTestContext(t)
	mustEval(t, cx, `
var log = [];
Promise.resolve({ then(res) { log.push("then called"); res(5) } }).then(v => log.push("value " + v));
Promise.resolve({ get then() { throw new Error("getter") } }).catch(e => log.push(e.message));
log.push("sync");
`)
	assert.Equal(t, "sync", mustEval(t, cx, `log.join()`).String())
	drain(t, q)
	assert.Equal(t, "sync,then called,getter,value 5", mustEval(t, cx, `log.join()`).String())
}

func TestPromise_ReactionOnSettledRunsOnLaterDrain(t *testing.T) {
	cx, q := newTestContext(t)
	rt := cx.Runtime()
	p := cx.NewPromise()
	require.True(t, cx.ResolvePromise(p, rt.ToValue("v")))

	var got []string
	onFulfilled := cx.NewClosureFunction("resolve", func(cx *Context, args *Arguments) bool {
		got = append(got, args.Value(0).String())
		return true
	}, 1, FlagOnce)
	require.True(t, cx.AddPromiseReactions(p, onFulfilled, nil))
	assert.Empty(t, got)
	assert.Equal(t, 1, q.Len())
	drain(t, q)
	assert.Equal(t, []string{"v"}, got)
}

func TestPromise_AddReactionsQueueNotInitialised(t *testing.T) {
	q, err := microtask.New()
	require.NoError(t, err)
	cx, err := New(goja.New(), q)
	require.NoError(t, err)
	p := cx.NewPromise()
	require.True(t, cx.ResolvePromise(p, goja.Undefined()))
	noop := cx.NewFunction("noop", func(cx *Context, args *Arguments) bool { return true }, 1, 0)
	assert.False(t, cx.AddPromiseReactions(p, noop, nil))
	report, ok := cx.ErrorReportFromPending()
	require.True(t, ok)
	assert.Contains(t, report.Message, "not been initialised")
}

func TestPromise_RejectionTracking(t *testing.T) {
	cx, q, tracked := newTrackingContext(t)
	rt := cx.Runtime()

	p := cx.NewPromise()
	require.True(t, cx.RejectPromise(p, rt.ToValue("boom")))
	require.Equal(t, []trackedRejection{{cx.PromiseID(p), RejectionReject}}, *tracked)
	assert.False(t, cx.IsPromiseHandled(p))

	onRejected := cx.NewFunction("reject", func(cx *Context, args *Arguments) bool { return true }, 1, 0)
	require.True(t, cx.AddPromiseReactions(p, nil, onRejected))
	assert.True(t, cx.IsPromiseHandled(p))
	require.Len(t, *tracked, 2)
	assert.Equal(t, trackedRejection{cx.PromiseID(p), RejectionHandle}, (*tracked)[1])

	drain(t, q)
	// the derived promise was fulfilled by the handler
	assert.Len(t, *tracked, 2)
}

func TestPromise_ThrowingReactionRejectsDerived(t *testing.T) {
	cx, q, tracked := newTrackingContext(t)
	rt := cx.Runtime()
	p := cx.NewPromise()
	throwing := cx.NewFunction("resolve", func(cx *Context, args *Arguments) bool {
		return cx.ThrowTypeError("handler failed")
	}, 1, 0)
	require.True(t, cx.AddPromiseReactions(p, throwing, nil))
	require.True(t, cx.ResolvePromise(p, rt.ToValue(1)))
	drain(t, q)

	require.Len(t, *tracked, 1)
	assert.Equal(t, RejectionReject, (*tracked)[0].op)
	assert.NotEqual(t, cx.PromiseID(p), (*tracked)[0].id)
	assert.False(t, cx.IsExceptionPending())
}

func TestPromise_PassThroughRejection(t *testing.T) {
	cx, q, tracked := newTrackingContext(t)
	mustEval(t, cx, `Promise.reject(new Error("x")).then(() => {})`)
	drain(t, q)
	// the original is handled by then, the derived is not
	var rejects, handles int
	for _, tr := range *tracked {
		switch tr.op {
		case RejectionReject:
			rejects++
		case RejectionHandle:
			handles++
		}
	}
	assert.Equal(t, 2, rejects)
	assert.Equal(t, 1, handles)
}

func TestPromise_Identity(t *testing.T) {
	cx, _ := newTestContext(t)
	a := cx.NewPromise()
	b := cx.NewPromise()
	assert.NotZero(t, cx.PromiseID(a))
	assert.Greater(t, cx.PromiseID(b), cx.PromiseID(a))
	assert.True(t, cx.IsPromiseObject(a))
	assert.False(t, cx.IsPromiseObject(cx.Runtime().NewObject()))
	assert.Zero(t, cx.PromiseID(cx.Runtime().NewObject()))

	require.NoError(t, cx.Runtime().Set("p", a))
	v := mustEval(t, cx, `[p instanceof Promise, Object.prototype.toString.call(p), Promise.resolve(p) === p].join()`)
	assert.Equal(t, "true,[object Promise],true", v.String())

	// objects inheriting from a promise aren't promises
	derived := mustEval(t, cx, `Object.create(p)`).(*goja.Object)
	assert.False(t, cx.IsPromiseObject(derived))
}

func TestPromise_Combinators(t *testing.T) {
	cx, q := newTestContext(t)
	mustEval(t, cx, `
var out = {};
Promise.all([1, Promise.resolve(2), { then(r) { r(3) } }]).then(v => { out.all = v.join() });
Promise.all([]).then(v => { out.empty = v.length });
Promise.all([1, Promise.reject(new Error("nope"))]).catch(e => { out.allRejected = e.message });
Promise.allSettled([1, Promise.reject("r")]).then(v => {
	out.allSettled = v.map(x => x.status + ":" + (x.status === "fulfilled" ? x.value : x.reason)).join()
});
Promise.race([new Promise(() => {}), Promise.resolve("fast")]).then(v => { out.race = v });
Promise.any([Promise.reject(1), Promise.resolve("any")]).then(v => { out.any = v });
Promise.any([Promise.reject(1), Promise.reject(2)]).catch(e => { out.anyRejected = e.message + ":" + e.errors.join() });
Promise.all(5).catch(e => { out.notIterable = e instanceof TypeError });
`)
	drain(t, q)
	out := cx.Runtime().Get("out").(*goja.Object)
	assert.Equal(t, "1,2,3", out.Get("all").String())
	assert.Equal(t, int64(0), out.Get("empty").ToInteger())
	assert.Equal(t, "nope", out.Get("allRejected").String())
	assert.Equal(t, "fulfilled:1,rejected:r", out.Get("allSettled").String())
	assert.Equal(t, "fast", out.Get("race").String())
	assert.Equal(t, "any", out.Get("any").String())
	assert.Equal(t, "All promises were rejected:1,2", out.Get("anyRejected").String())
	assert.True(t, out.Get("notIterable").ToBoolean())
}

func TestIterate_NilIsUndefined(t *testing.T) {
	cx, _ := newTestContext(t)
	assert.False(t, cx.iterate(nil, func(goja.Value) bool { return true }))
	report, ok := cx.ErrorReportFromPending()
	require.True(t, ok)
	assert.Equal(t, "TypeError", report.Name)
	assert.Equal(t, "undefined is not iterable", report.Message)

	cx2, q := newTestContext(t)
	mustEval(t, cx2, `
var msgs = [];
Promise.all().catch(e => msgs.push(e.message));
Promise.race(null).catch(e => msgs.push(e.message));
`)
	drain(t, q)
	assert.Equal(t, "undefined is not iterable|null is not iterable", mustEval(t, cx2, `msgs.join("|")`).String())
}

func TestPromise_Finally(t *testing.T) {
	cx, q := newTestContext(t)
	mustEval(t, cx, `
var log = [];
Promise.resolve("value").finally(() => log.push("finally")).then(v => log.push(v));
Promise.reject("reason").finally(() => log.push("finally2")).catch(v => log.push(v));
Promise.resolve("x").finally(() => { throw "override" }).catch(v => log.push(v));
`)
	drain(t, q)
	v := mustEval(t, cx, `log.slice().sort().join()`)
	assert.Equal(t, "finally,finally2,override,reason,value", v.String())
}

func TestPromise_CloseRejectsPending(t *testing.T) {
	cx, q := newTestContext(t)
	pending := cx.NewPromise()
	settled := cx.NewPromise()
	require.True(t, cx.ResolvePromise(settled, goja.Undefined()))
	mustEval(t, cx, `var reason; `)
	require.NoError(t, cx.Runtime().Set("p", pending))
	mustEval(t, cx, `p.catch(e => { reason = e.message })`)

	cx.Close()
	assert.Equal(t, PromiseRejected, cx.GetPromiseState(pending))
	assert.Equal(t, PromiseFulfilled, cx.GetPromiseState(settled))
	drain(t, q)
	assert.Contains(t, mustEval(t, cx, `reason`).String(), "context closed")
}

func TestPromise_Scavenge(t *testing.T) {
	cx, _ := newTestContext(t, WithScavengeBatch(1000))
	var keep []*goja.Object
	for i := 0; i < 10; i++ {
		p := cx.NewPromise()
		keep = append(keep, p)
		if i%2 == 0 {
			require.True(t, cx.ResolvePromise(p, goja.Undefined()))
		}
	}
	require.GreaterOrEqual(t, cx.PendingPromises(), 10)
	cx.Scavenge()
	// the Promise global itself allocates nothing tracked
	assert.Equal(t, 5, cx.PendingPromises())
	_ = keep
}

func TestPromiseState_String(t *testing.T) {
	assert.Equal(t, "Pending", PromisePending.String())
	assert.Equal(t, "Fulfilled", PromiseFulfilled.String())
	assert.Equal(t, "Rejected", PromiseRejected.String())
	assert.Equal(t, "Unknown", PromiseState(9).String())
	assert.Equal(t, "reject", RejectionReject.String())
	assert.Equal(t, "handle", RejectionHandle.String())
}
