// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/logiface"
)

// LoggerPrinter is a console.Printer that writes to a logiface logger, with
// the category "console".
type LoggerPrinter struct {
	Logger *logiface.Logger[logiface.Event]
}

var _ console.Printer = LoggerPrinter{}

func (x LoggerPrinter) Log(s string) {
	x.Logger.Info().
		Str("category", "console").
		Log(s)
}

func (x LoggerPrinter) Warn(s string) {
	x.Logger.Warning().
		Str("category", "console").
		Log(s)
}

func (x LoggerPrinter) Error(s string) {
	x.Logger.Err().
		Str("category", "console").
		Log(s)
}

// enableConsole installs the console global, via a require registry, which
// also makes it available as require("console").
func enableConsole(rt *goja.Runtime, printer console.Printer) {
	registry := require.NewRegistry()
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(printer))
	registry.Enable(rt)
	console.Enable(rt)
}
