// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/dop251/goja"
)

var (
	// e.g. "\tat fn (app.js:2:3(12))", "\tat app.js:4:1(3)"
	stackFrameRegexp = regexp2.MustCompile(`^\s*at\s+(?:(?<fn>.+?)\s+\()?(?<file>[^()]+?):(?<line>\d+):(?<col>\d+)(?:\(\d+\))?\)?\s*$`, regexp2.None)
	// e.g. "\tat Array.prototype.map (native)"
	nativeFrameRegexp = regexp2.MustCompile(`^\s*at\s+(?<fn>.+?)\s+\(native\)\s*$`, regexp2.None)
)

// StackFrame is a single frame of a script stack trace.
type StackFrame struct {
	Function string
	File     string
	Line     int
	Column   int
	Native   bool
}

// String formats the frame like goja does.
func (f StackFrame) String() string {
	if f.Native {
		return fmt.Sprintf("at %s (native)", f.Function)
	}
	if f.Function == "" {
		return fmt.Sprintf("at %s:%d:%d", f.File, f.Line, f.Column)
	}
	return fmt.Sprintf("at %s (%s:%d:%d)", f.Function, f.File, f.Line, f.Column)
}

// ErrorReport is a snapshot of a thrown value, with its stack. It implements
// error.
type ErrorReport struct {
	// Value is the thrown value.
	Value   goja.Value
	Name    string
	Message string
	Stack   []StackFrame
}

// Error implements the error interface.
func (r *ErrorReport) Error() string {
	switch {
	case r.Name != "" && r.Message != "":
		return r.Name + ": " + r.Message
	case r.Name != "":
		return r.Name
	case r.Message != "":
		return r.Message
	default:
		return "uncaught exception"
	}
}

// String formats the report, with its stack, one frame per line.
func (r *ErrorReport) String() string {
	var b strings.Builder
	b.WriteString(r.Error())
	for _, f := range r.Stack {
		b.WriteString("\n    ")
		b.WriteString(f.String())
	}
	return b.String()
}

// ParseStack extracts the frames from a goja stack trace, ignoring any lines
// that are not frames.
func ParseStack(stack string) []StackFrame {
	var frames []StackFrame
	for _, line := range strings.Split(stack, "\n") {
		if frame, ok := parseFrame(line); ok {
			frames = append(frames, frame)
		}
	}
	return frames
}

func parseFrame(line string) (StackFrame, bool) {
	if m, _ := nativeFrameRegexp.FindStringMatch(line); m != nil {
		return StackFrame{
			Function: m.GroupByName("fn").String(),
			Native:   true,
		}, true
	}
	m, _ := stackFrameRegexp.FindStringMatch(line)
	if m == nil {
		return StackFrame{}, false
	}
	ln, err := strconv.Atoi(m.GroupByName("line").String())
	if err != nil {
		return StackFrame{}, false
	}
	col, err := strconv.Atoi(m.GroupByName("col").String())
	if err != nil {
		return StackFrame{}, false
	}
	return StackFrame{
		Function: m.GroupByName("fn").String(),
		File:     m.GroupByName("file").String(),
		Line:     ln,
		Column:   col,
	}, true
}

// ErrorReportFromPending builds a report from the pending exception, clearing
// it. It returns false if no exception is pending.
func (cx *Context) ErrorReportFromPending() (*ErrorReport, bool) {
	if !cx.hasPending {
		return nil, false
	}
	v, exc := cx.pending, cx.pendingExc
	cx.ClearPendingException()
	report := cx.ErrorReportFromValue(v)
	if len(report.Stack) == 0 && exc != nil {
		report.Stack = ParseStack(exc.String())
	}
	return report, true
}

// ErrorReportFromValue builds a report from a thrown (or rejection) value,
// using its stack property if it has one. Failures reading properties are
// ignored, and leave no pending exception.
func (cx *Context) ErrorReportFromValue(v goja.Value) *ErrorReport {
	if v == nil {
		v = goja.Undefined()
	}
	report := &ErrorReport{Value: v}
	obj, ok := v.(*goja.Object)
	if !ok {
		report.Message = v.String()
		return report
	}
	saved, savedExc, hadPending := cx.pending, cx.pendingExc, cx.hasPending
	if !cx.Try(func() {
		report.Name = stringProperty(obj, "name")
		report.Message = stringProperty(obj, "message")
		if stack := stringProperty(obj, "stack"); stack != "" {
			report.Stack = ParseStack(stack)
		}
		if report.Name == "" && report.Message == "" {
			report.Message = obj.String()
		}
	}) {
		cx.ClearPendingException()
	}
	if hadPending {
		cx.setPendingException(saved, savedExc)
	}
	return report
}

func stringProperty(obj *goja.Object, name string) string {
	v := obj.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
