package engine

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_RootAndClose(t *testing.T) {
	cx, _ := newTestContext(t)
	obj := cx.Runtime().NewObject()

	scope := cx.EnterScope()
	r := scope.Root(obj)
	scope.Root(cx.Runtime().ToValue("x"))
	assert.Equal(t, 2, cx.RootCount())
	assert.True(t, r.Valid())
	assert.True(t, r.Object().SameAs(obj))

	scope.Close()
	scope.Close()
	assert.Zero(t, cx.RootCount())
	assert.False(t, r.Valid())
	assert.True(t, goja.IsUndefined(r.Get()))
	assert.Nil(t, r.Object())
	assert.Panics(t, func() { scope.Root(obj) })
}

func TestRooted_StaleGeneration(t *testing.T) {
	cx, _ := newTestContext(t)
	a := cx.Persist("a", cx.Runtime().ToValue(1))
	require.True(t, cx.Unroot(a))
	assert.False(t, cx.Unroot(a))

	// the entry is recycled, the old handle must not observe it
	b := cx.Persist("b", cx.Runtime().ToValue(2))
	assert.False(t, a.Valid())
	assert.True(t, b.Valid())
	assert.Equal(t, int64(2), b.Get().ToInteger())
	assert.False(t, cx.Unroot(a))
	assert.Equal(t, 1, cx.RootCount())

	var zero Rooted
	assert.False(t, zero.Valid())
	assert.False(t, cx.Unroot(zero))
}

func TestTraceRoots(t *testing.T) {
	cx, _ := newTestContext(t)
	cx.Persist("first", cx.Runtime().ToValue("one"))
	second := cx.Persist("second", cx.Runtime().ToValue("two"))
	cx.Persist("third", cx.Runtime().ToValue("three"))
	require.True(t, cx.Unroot(second))

	seen := map[string]string{}
	cx.TraceRoots(TracerFunc(func(name string, v goja.Value) {
		seen[name] = v.String()
	}))
	assert.Equal(t, map[string]string{"first": "one", "third": "three"}, seen)
}

func TestClose_DropsRoots(t *testing.T) {
	cx, _ := newTestContext(t)
	r := cx.Persist("p", cx.Runtime().NewObject())
	cx.Close()
	assert.Zero(t, cx.RootCount())
	assert.False(t, r.Valid())
}
