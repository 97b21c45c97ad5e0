package eventloop

import (
	"bytes"
	"strings"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPrinter struct {
	lines []string
}

func (x *recordingPrinter) Log(s string)   { x.lines = append(x.lines, "log:"+s) }
func (x *recordingPrinter) Warn(s string)  { x.lines = append(x.lines, "warn:"+s) }
func (x *recordingPrinter) Error(s string) { x.lines = append(x.lines, "error:"+s) }

func TestLoop_Console(t *testing.T) {
	printer := &recordingPrinter{}
	loop, _ := newTestLoop(t, WithConsole(printer))
	_, err := loop.RunScript("test.js", `
console.log("hello %s", "world");
console.warn("careful");
queueMicrotask(() => console.error("from", 1, "microtask"));
require("console").log("required");
`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"log:hello world",
		"warn:careful",
		"log:required",
		"error:from 1 microtask",
	}, printer.lines)
}

func TestLoop_ConsoleDefaultPrinter(t *testing.T) {
	var buf bytes.Buffer
	loop, _ := newTestLoop(t,
		WithLogger(NewDefaultLogger(&buf, logiface.LevelInformational)),
		WithConsole(nil),
	)
	_, err := loop.RunScript("test.js", `console.log("to the logger"); console.error("oops")`)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"category":"console"`)
	assert.Contains(t, lines[0], `"msg":"to the logger"`)
	assert.Contains(t, lines[1], `"msg":"oops"`)
}

func TestLoop_WithoutConsole(t *testing.T) {
	loop, _ := newTestLoop(t)
	v, err := loop.RunScript("test.js", `typeof console + "," + typeof require`)
	require.NoError(t, err)
	assert.Equal(t, "undefined,undefined", v.String())
}

func TestConfig_Console(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(`console = true`))
	require.NoError(t, err)
	assert.True(t, cfg.Console)
	opts, err := cfg.Options(nil)
	require.NoError(t, err)
	loop, _ := newTestLoop(t, opts...)
	v, err := loop.RunScript("test.js", `typeof console.log`)
	require.NoError(t, err)
	assert.Equal(t, "function", v.String())
}
