package sourcemap

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/joeycumines/goja-async/engine"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// app.js line 1 maps to src/app.ts line 1, line 2 to line 3
const appMap = `{"version":3,"file":"app.js","sources":["src/app.ts"],"names":[],"mappings":"AAAA;AAEA"}`

func TestTranslator_Transform(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Register("app.js", []byte(appMap)))

	report := &engine.ErrorReport{
		Name:    "Error",
		Message: "boom",
		Stack: []engine.StackFrame{
			{Function: "f", File: "app.js", Line: 2, Column: 1},
			{Function: "Array.prototype.map", Native: true},
			{File: "other.js", Line: 9, Column: 4},
			{File: "app.js", Line: 1, Column: 6},
		},
	}
	tr.Transform(report)

	require.Len(t, report.Stack, 4)
	assert.True(t, strings.HasSuffix(report.Stack[0].File, "src/app.ts"), report.Stack[0].File)
	assert.Equal(t, 3, report.Stack[0].Line)
	assert.Equal(t, 1, report.Stack[0].Column)
	assert.Equal(t, "f", report.Stack[0].Function)

	assert.Equal(t, engine.StackFrame{Function: "Array.prototype.map", Native: true}, report.Stack[1])
	assert.Equal(t, engine.StackFrame{File: "other.js", Line: 9, Column: 4}, report.Stack[2])

	assert.True(t, strings.HasSuffix(report.Stack[3].File, "src/app.ts"))
	assert.Equal(t, 1, report.Stack[3].Line)

	tr.Transform(nil)
}

func TestTranslator_RegisterInvalid(t *testing.T) {
	tr := New()
	err := tr.Register("bad.js", []byte(`{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad.js"`)
}

func TestTranslator_Forget(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Register("app.js", []byte(appMap)))
	_, _, _, _, ok := tr.Lookup("app.js", 2, 1)
	require.True(t, ok)
	tr.Forget("app.js")
	_, _, _, _, ok = tr.Lookup("app.js", 2, 1)
	assert.False(t, ok)
}

func TestTranslator_WithFS(t *testing.T) {
	fsys := fstest.MapFS{
		"dist/app.js.map":  {Data: []byte(appMap)},
		"maps/custom.json": {Data: []byte(appMap)},
		"dist/broken.js.map": {
			Data: []byte(`nope`),
		},
	}
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
	tr := New(
		WithLogger(logger),
		WithFS(fsys),
		WithMapFile("bundle.js", "maps/custom.json"),
	)

	frame := engine.StackFrame{File: "dist/app.js", Line: 2, Column: 1}
	require.True(t, tr.TransformFrame(&frame))
	assert.Equal(t, 3, frame.Line)

	frame = engine.StackFrame{File: "bundle.js", Line: 2, Column: 1}
	require.True(t, tr.TransformFrame(&frame))
	assert.Equal(t, 3, frame.Line)

	// no conventional map is not an error
	frame = engine.StackFrame{File: "dist/plain.js", Line: 2, Column: 1}
	assert.False(t, tr.TransformFrame(&frame))
	require.NoError(t, tr.Load("dist/plain.js"))

	frame = engine.StackFrame{File: "dist/broken.js", Line: 1, Column: 1}
	assert.False(t, tr.TransformFrame(&frame))
	assert.False(t, tr.TransformFrame(&frame))
	assert.Equal(t, 1, strings.Count(buf.String(), `"msg":"failed to load source map"`), buf.String())
	assert.Contains(t, buf.String(), `"category":"sourcemap"`)
	assert.Error(t, tr.Load("dist/broken.js"))
}

func TestTranslator_Loader(t *testing.T) {
	var calls int
	tr := New(WithLoader(LoaderFunc(func(file string) ([]byte, error) {
		calls++
		if file == "app.js" {
			return []byte(appMap), nil
		}
		return nil, errors.New("unavailable")
	})))
	require.NoError(t, tr.Load("app.js"))
	source, _, line, _, ok := tr.Lookup("app.js", 2, 1)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(source, "src/app.ts"))
	assert.Equal(t, 3, line)

	_, _, _, _, ok = tr.Lookup("missing.js", 1, 1)
	assert.False(t, ok)
	_, _, _, _, ok = tr.Lookup("missing.js", 1, 1)
	assert.False(t, ok)
	assert.Equal(t, 2, calls)

	assert.ErrorIs(t, New().Load("app.js"), ErrNoLoader)
}
