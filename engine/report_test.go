package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStack(t *testing.T) {
	for _, tc := range [...]struct {
		name  string
		stack string
		want  []StackFrame
	}{
		{
			name:  "empty",
			stack: "",
		},
		{
			name:  "named frame",
			stack: "Error: boom\n\tat f (app.js:2:9(3))\n",
			want:  []StackFrame{{Function: "f", File: "app.js", Line: 2, Column: 9}},
		},
		{
			name:  "anonymous frame",
			stack: "\tat app.js:14:1(42)",
			want:  []StackFrame{{File: "app.js", Line: 14, Column: 1}},
		},
		{
			name:  "native frame",
			stack: "\tat Array.prototype.map (native)",
			want:  []StackFrame{{Function: "Array.prototype.map", Native: true}},
		},
		{
			name:  "mixed",
			stack: "TypeError: x\n\tat g (lib/util.js:7:3(10))\n\tat Array.prototype.forEach (native)\n\tat main.js:1:1(1)\nnot a frame",
			want: []StackFrame{
				{Function: "g", File: "lib/util.js", Line: 7, Column: 3},
				{Function: "Array.prototype.forEach", Native: true},
				{File: "main.js", Line: 1, Column: 1},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseStack(tc.stack))
		})
	}
}

func TestStackFrame_String(t *testing.T) {
	assert.Equal(t, "at f (a.js:1:2)", StackFrame{Function: "f", File: "a.js", Line: 1, Column: 2}.String())
	assert.Equal(t, "at a.js:1:2", StackFrame{File: "a.js", Line: 1, Column: 2}.String())
	assert.Equal(t, "at Math.max (native)", StackFrame{Function: "Math.max", Native: true}.String())
}

func TestErrorReportFromPending_ThrownError(t *testing.T) {
	cx, _ := newTestContext(t)
	_, ok := cx.Evaluate("test.js", `function f() {
	throw new Error("boom")
}
f()
`)
	require.False(t, ok)
	report, ok := cx.ErrorReportFromPending()
	require.True(t, ok)
	assert.False(t, cx.IsExceptionPending())

	assert.Equal(t, "Error", report.Name)
	assert.Equal(t, "boom", report.Message)
	assert.Equal(t, "Error: boom", report.Error())
	require.NotEmpty(t, report.Stack)
	assert.Equal(t, "f", report.Stack[0].Function)
	assert.Equal(t, "test.js", report.Stack[0].File)
	assert.Equal(t, 2, report.Stack[0].Line)
	assert.Contains(t, report.String(), "\n    at f (test.js:2:")

	_, ok = cx.ErrorReportFromPending()
	assert.False(t, ok)
}

func TestErrorReportFromPending_Primitive(t *testing.T) {
	cx, _ := newTestContext(t)
	_, ok := cx.Evaluate("test.js", `throw 42`)
	require.False(t, ok)
	report, ok := cx.ErrorReportFromPending()
	require.True(t, ok)
	assert.Empty(t, report.Name)
	assert.Equal(t, "42", report.Message)
	assert.Equal(t, "42", report.Error())
	assert.Equal(t, int64(42), report.Value.ToInteger())
}

func TestErrorReportFromValue_PreservesPending(t *testing.T) {
	cx, _ := newTestContext(t)
	v, err := cx.Runtime().RunString(`({ name: "Custom", get message() { throw new Error("nope") } })`)
	require.NoError(t, err)

	cx.ThrowTypeError("outer")
	report := cx.ErrorReportFromValue(v)
	assert.Equal(t, "Custom", report.Name)
	assert.Empty(t, report.Message)

	exc, ok := cx.TakePendingException()
	require.True(t, ok)
	assert.Contains(t, exc.String(), "outer")
}

func TestErrorReport_Error(t *testing.T) {
	assert.Equal(t, "uncaught exception", (&ErrorReport{}).Error())
	assert.Equal(t, "RangeError", (&ErrorReport{Name: "RangeError"}).Error())
	assert.Equal(t, "msg", (&ErrorReport{Message: "msg"}).Error())
}
