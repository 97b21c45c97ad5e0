// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/joeycumines/goja-async/engine"
)

// ReportKind distinguishes the source of a report.
type ReportKind uint8

const (
	// ReportUnhandledRejection is a promise rejected without a handler.
	ReportUnhandledRejection ReportKind = iota
	// ReportUncaughtException is an exception thrown by a microtask.
	ReportUncaughtException
)

// String returns the prefix used when formatting reports of this kind.
func (k ReportKind) String() string {
	switch k {
	case ReportUnhandledRejection:
		return "Uncaught (in promise)"
	case ReportUncaughtException:
		return "Uncaught"
	default:
		return "unknown"
	}
}

type (
	// Reporter receives error reports that have no other observer.
	Reporter interface {
		Report(kind ReportKind, report *engine.ErrorReport)
	}

	// ReporterFunc implements Reporter.
	ReporterFunc func(kind ReportKind, report *engine.ErrorReport)

	// SourceMapper rewrites the frames of a report in place. See also
	// [github.com/joeycumines/goja-async/sourcemap.Translator].
	SourceMapper interface {
		Transform(report *engine.ErrorReport)
	}
)

var (
	_ Reporter = ReporterFunc(nil)
	_ Reporter = (*WriterReporter)(nil)
)

// Report calls f.
func (f ReporterFunc) Report(kind ReportKind, report *engine.ErrorReport) { f(kind, report) }

// WriterReporter writes styled reports to an io.Writer. Styling degrades to
// plain text if the writer is not a terminal.
type WriterReporter struct {
	w       io.Writer
	prefix  lipgloss.Style
	message lipgloss.Style
	frame   lipgloss.Style
	mu      sync.Mutex
}

// NewWriterReporter initializes a WriterReporter.
func NewWriterReporter(w io.Writer) *WriterReporter {
	r := lipgloss.NewRenderer(w)
	return &WriterReporter{
		w:       w,
		prefix:  r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		message: r.NewStyle().Foreground(lipgloss.Color("15")),
		frame:   r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Report writes report, one frame per line.
func (x *WriterReporter) Report(kind ReportKind, report *engine.ErrorReport) {
	if report == nil {
		return
	}
	var b strings.Builder
	b.WriteString(x.prefix.Render(kind.String()))
	b.WriteByte(' ')
	b.WriteString(x.message.Render(report.Error()))
	b.WriteByte('\n')
	for _, f := range report.Stack {
		// lines are rendered separately, as lipgloss pads blocks
		b.WriteString("    ")
		b.WriteString(x.frame.Render(f.String()))
		b.WriteByte('\n')
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	_, _ = io.WriteString(x.w, b.String())
}
