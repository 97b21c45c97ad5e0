// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"io"
	"strings"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// NewDefaultLogger returns a JSON logger writing to w, at level.
func NewDefaultLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

var logLevels = map[string]logiface.Level{
	"disabled": logiface.LevelDisabled,
	"emerg":    logiface.LevelEmergency,
	"alert":    logiface.LevelAlert,
	"crit":     logiface.LevelCritical,
	"err":      logiface.LevelError,
	"error":    logiface.LevelError,
	"warning":  logiface.LevelWarning,
	"warn":     logiface.LevelWarning,
	"notice":   logiface.LevelNotice,
	"info":     logiface.LevelInformational,
	"debug":    logiface.LevelDebug,
	"trace":    logiface.LevelTrace,
}

// ParseLevel parses a syslog keyword (see logiface.Level.String), accepting
// the deprecated aliases "error" and "warn".
func ParseLevel(s string) (logiface.Level, bool) {
	level, ok := logLevels[strings.ToLower(strings.TrimSpace(s))]
	return level, ok
}
