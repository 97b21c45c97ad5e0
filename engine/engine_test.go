package engine

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-async/microtask"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, opts ...ContextOption) (*Context, *microtask.Queue) {
	t.Helper()
	q, err := microtask.New()
	require.NoError(t, err)
	require.NoError(t, q.Init())
	cx, err := New(goja.New(), q, opts...)
	require.NoError(t, err)
	t.Cleanup(cx.Close)
	return cx, q
}

func drain(t *testing.T, q *microtask.Queue) int {
	t.Helper()
	n, err := q.Drain()
	require.NoError(t, err)
	return n
}

func mustEval(t *testing.T, cx *Context, src string) goja.Value {
	t.Helper()
	v, ok := cx.Evaluate("test.js", src)
	if !ok {
		report, _ := cx.ErrorReportFromPending()
		t.Fatalf("evaluate failed: %v", report)
	}
	return v
}

func TestNew_Validation(t *testing.T) {
	q, err := microtask.New()
	require.NoError(t, err)

	_, err = New(nil, q)
	require.Error(t, err)

	_, err = New(goja.New(), nil)
	require.Error(t, err)

	_, err = New(goja.New(), q, WithScavengeBatch(0))
	require.Error(t, err)
}

func TestNew_WithoutPromiseGlobal(t *testing.T) {
	cx, _ := newTestContext(t, WithoutPromiseGlobal())
	v := mustEval(t, cx, `Promise`)
	require.False(t, v.(*goja.Object).SameAs(cx.PromiseConstructor()))

	// host promises still use the bound prototype
	p := cx.NewPromise()
	require.True(t, p.Prototype().SameAs(cx.PromisePrototype()))
}
