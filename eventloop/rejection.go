// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	gojaasync "github.com/joeycumines/goja-async"
	"github.com/joeycumines/goja-async/engine"
	"github.com/joeycumines/logiface"
)

// RejectionHandler is the default terminal rejection reaction. Attached to
// a promise with no handler, it reports the rejection, with source mapped
// frames.
type RejectionHandler struct {
	logger   *logiface.Logger[logiface.Event]
	reporter Reporter
	mapper   SourceMapper
	fn       gojaasync.Function
	reported int
}

// NewRejectionHandler builds the handler's function on cx. Either of
// reporter or mapper may be nil.
func NewRejectionHandler(cx *engine.Context, reporter Reporter, mapper SourceMapper) *RejectionHandler {
	h := &RejectionHandler{
		logger:   cx.Logger(),
		reporter: reporter,
		mapper:   mapper,
	}
	specs := h.functions()
	h.fn = gojaasync.FunctionFromSpec(cx, &specs[0])
	return h
}

func (h *RejectionHandler) functions() []engine.FunctionSpec {
	return []engine.FunctionSpec{
		{Name: "onRejected", Nargs: 1, Flags: engine.PropConstant, Native: h.onRejected},
	}
}

// onRejected builds a report via the exception channel, so the report
// captures the same information as for a thrown value.
func (h *RejectionHandler) onRejected(cx *engine.Context, args *engine.Arguments) bool {
	cx.Throw(args.Value(0))
	report, ok := cx.ErrorReportFromPending()
	if !ok {
		return true
	}
	if h.mapper != nil {
		h.mapper.Transform(report)
	}
	cx.ClearPendingException()
	h.reported++
	h.logger.Err().
		Str("category", "rejection").
		Str("error", report.Error()).
		Log("unhandled promise rejection")
	if h.reporter != nil {
		h.reporter.Report(ReportUnhandledRejection, report)
	}
	return true
}

// Function returns the handler as a script function.
func (h *RejectionHandler) Function() gojaasync.Function { return h.fn }

// Reported returns the number of rejections reported.
func (h *RejectionHandler) Reported() int { return h.reported }

// AddHandlerReactions attaches the handler to p, as its rejection reaction.
func (h *RejectionHandler) AddHandlerReactions(cx *engine.Context, p gojaasync.Promise) bool {
	fn := h.fn
	return p.AddReactionsNative(cx, nil, &fn)
}
