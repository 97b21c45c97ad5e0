package gojaasync

import (
	"errors"
	"testing"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-async/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClosure_CapturesAndReturns(t *testing.T) {
	cx, _ := newTestContext(t)
	var total int64
	fn := NewClosure(cx, "add", 1, func(cx *engine.Context, args *engine.Arguments) (goja.Value, error) {
		total += args.Value(0).ToInteger()
		return cx.Runtime().ToValue(total), nil
	})
	require.NoError(t, cx.Runtime().Set("add", fn.Value()))

	assert.Equal(t, int64(6), mustEval(t, cx, `add(1); add(2); add(3)`).ToInteger())
	assert.Equal(t, int64(6), total)
	assert.Equal(t, uint16(1), fn.Nargs())
	assert.True(t, cx.IsClosureLive(fn.Object()))
}

func TestNewClosure_NilValueIsUndefined(t *testing.T) {
	cx, _ := newTestContext(t)
	fn := NewClosure(cx, "noop", 0, func(cx *engine.Context, args *engine.Arguments) (goja.Value, error) {
		return nil, nil
	})
	v, err := fn.Call(cx, nil)
	require.NoError(t, err)
	assert.True(t, goja.IsUndefined(v))
}

func TestNewClosure_ErrorsAreThrown(t *testing.T) {
	cx, _ := newTestContext(t)
	for name, err := range map[string]error{
		"typeErr":  &engine.TypeError{Message: "wrong type"},
		"plainErr": errors.New("plain"),
	} {
		fn := NewClosure(cx, name, 0, func(cx *engine.Context, args *engine.Arguments) (goja.Value, error) {
			return nil, err
		})
		require.NoError(t, cx.Runtime().Set(name, fn.Value()))
	}

	v := mustEval(t, cx, `
const out = [];
try { typeErr() } catch (e) { out.push((e instanceof TypeError) + ":" + e.message) }
try { plainErr() } catch (e) { out.push(e.message) }
out.join("|")
`)
	assert.Equal(t, "true:wrong type|plain", v.String())
}

func TestNewClosure_PanicIsThrown(t *testing.T) {
	cx, _ := newTestContext(t)
	fn := NewClosure(cx, "explode", 0, func(cx *engine.Context, args *engine.Arguments) (goja.Value, error) {
		panic("kaboom")
	})
	require.NoError(t, cx.Runtime().Set("explode", fn.Value()))

	v := mustEval(t, cx, `
let msg;
try { explode() } catch (e) { msg = e.message }
msg
`)
	assert.Contains(t, v.String(), "kaboom")
}

func TestNewClosure_ScriptExceptionsPropagate(t *testing.T) {
	cx, _ := newTestContext(t)
	fn := NewClosure(cx, "callThrough", 1, func(cx *engine.Context, args *engine.Arguments) (goja.Value, error) {
		callable, ok := goja.AssertFunction(args.Value(0))
		if !ok {
			return nil, &engine.TypeError{Message: "not callable"}
		}
		// a script exception raised inside a goja call is returned as an error
		return callable(goja.Undefined())
	})
	require.NoError(t, cx.Runtime().Set("callThrough", fn.Value()))

	v := mustEval(t, cx, `
let msg;
try { callThrough(() => { throw new Error("inner") }) } catch (e) { msg = e.message }
msg
`)
	assert.Equal(t, "inner", v.String())
}

func TestNewClosure_Once(t *testing.T) {
	cx, _ := newTestContext(t)
	var calls int
	fn := NewClosure(cx, "once", 0, func(cx *engine.Context, args *engine.Arguments) (goja.Value, error) {
		calls++
		return nil, nil
	}, nil, ClosureOnce())

	_, err := fn.Call(cx, nil)
	require.NoError(t, err)
	_, err = fn.Call(cx, nil)
	var report *engine.ErrorReport
	require.ErrorAs(t, err, &report)
	assert.Equal(t, "TypeError", report.Name)
	assert.Equal(t, 1, calls)
	assert.False(t, cx.IsClosureLive(fn.Object()))
}
