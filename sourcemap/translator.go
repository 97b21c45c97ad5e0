// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sourcemap

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	gosourcemap "github.com/go-sourcemap/sourcemap"
	"github.com/joeycumines/goja-async/engine"
	"github.com/joeycumines/logiface"
)

// ErrNoLoader is returned by Load if the Translator has no Loader.
var ErrNoLoader = errors.New("sourcemap: no loader configured")

// Translator maps generated script locations to original source locations.
// It is safe for concurrent use.
type Translator struct {
	logger    *logiface.Logger[logiface.Event]
	loader    Loader
	consumers map[string]*gosourcemap.Consumer
	// failed caches negative lookups, so broken maps are loaded, and
	// logged, once
	failed map[string]error
	mu     sync.Mutex
}

// New initializes a Translator.
func New(opts ...Option) *Translator {
	cfg := resolveTranslatorOptions(opts)
	return &Translator{
		logger:    cfg.logger,
		loader:    cfg.loader,
		consumers: make(map[string]*gosourcemap.Consumer),
		failed:    make(map[string]error),
	}
}

// Register parses data as the source map for the generated file, replacing
// any previous map.
func (t *Translator) Register(file string, data []byte) error {
	consumer, err := gosourcemap.Parse("", data)
	if err != nil {
		return fmt.Errorf("sourcemap: failed to parse map for %q: %w", file, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consumers[file] = consumer
	delete(t.failed, file)
	return nil
}

// Forget drops any map, or cached failure, for file.
func (t *Translator) Forget(file string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.consumers, file)
	delete(t.failed, file)
}

// Load eagerly loads the map for file via the Loader.
func (t *Translator) Load(file string) error {
	if t.loader == nil {
		return ErrNoLoader
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failed, file)
	_, err := t.consumerLocked(file)
	return err
}

// Lookup translates a generated position. Lines and columns are 1-based, like
// those of goja stack frames.
func (t *Translator) Lookup(file string, line, column int) (source, name string, srcLine, srcColumn int, ok bool) {
	t.mu.Lock()
	consumer, _ := t.consumerLocked(file)
	t.mu.Unlock()
	if consumer == nil {
		return
	}
	// the consumer's columns are 0-based
	source, name, srcLine, srcColumn, ok = consumer.Source(line, max(column-1, 0))
	if ok {
		srcColumn++
	}
	return
}

// Transform rewrites the frames of report in place. Native frames, and
// frames without a mapping, are left unchanged.
func (t *Translator) Transform(report *engine.ErrorReport) {
	if report == nil {
		return
	}
	for i := range report.Stack {
		t.TransformFrame(&report.Stack[i])
	}
}

// TransformFrame rewrites a single frame, reporting whether it was mapped.
func (t *Translator) TransformFrame(frame *engine.StackFrame) bool {
	if frame == nil || frame.Native || frame.File == "" {
		return false
	}
	source, name, line, column, ok := t.Lookup(frame.File, frame.Line, frame.Column)
	if !ok {
		return false
	}
	if source != "" {
		frame.File = source
	}
	if name != "" {
		frame.Function = name
	}
	frame.Line = line
	frame.Column = column
	return true
}

func (t *Translator) consumerLocked(file string) (*gosourcemap.Consumer, error) {
	if consumer, ok := t.consumers[file]; ok {
		return consumer, nil
	}
	if err, ok := t.failed[file]; ok {
		return nil, err
	}
	if t.loader == nil {
		return nil, nil
	}
	consumer, err := t.load(file)
	if err != nil {
		t.failed[file] = err
		t.logger.Warning().
			Str("category", "sourcemap").
			Str("file", file).
			Err(err).
			Log("failed to load source map")
		return nil, err
	}
	if consumer == nil {
		t.failed[file] = nil
		return nil, nil
	}
	t.consumers[file] = consumer
	t.logger.Debug().
		Str("category", "sourcemap").
		Str("file", file).
		Log("loaded source map")
	return consumer, nil
}

func (t *Translator) load(file string) (*gosourcemap.Consumer, error) {
	data, err := t.loader.Load(file)
	if err != nil {
		return nil, fmt.Errorf("sourcemap: failed to load map for %q: %w", file, err)
	}
	if data == nil {
		return nil, nil
	}
	consumer, err := gosourcemap.Parse("", data)
	if err != nil {
		return nil, fmt.Errorf("sourcemap: failed to parse map for %q: %w", file, err)
	}
	return consumer, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
