// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sourcemap

import (
	"io/fs"
	"path"

	"github.com/joeycumines/logiface"
)

type (
	// Option configures a Translator.
	Option interface {
		applyTranslator(opts *translatorOptions)
	}

	translatorOptions struct {
		logger   *logiface.Logger[logiface.Event]
		loader   Loader
		mapFiles map[string]string
	}

	translatorOptionImpl struct {
		applyTranslatorFunc func(opts *translatorOptions)
	}

	// Loader returns the source map document for a generated file. A nil
	// result, without error, indicates there is no map.
	Loader interface {
		Load(file string) ([]byte, error)
	}

	// LoaderFunc implements Loader.
	LoaderFunc func(file string) ([]byte, error)
)

var _ Loader = LoaderFunc(nil)

// Load calls f.
func (f LoaderFunc) Load(file string) ([]byte, error) { return f(file) }

func (x *translatorOptionImpl) applyTranslator(opts *translatorOptions) {
	x.applyTranslatorFunc(opts)
}

// WithLogger configures structured logging of load failures.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &translatorOptionImpl{func(opts *translatorOptions) {
		opts.logger = logger
	}}
}

// WithLoader sets the loader used for files that were not registered.
func WithLoader(loader Loader) Option {
	return &translatorOptionImpl{func(opts *translatorOptions) {
		opts.loader = loader
	}}
}

// WithFS loads maps from fsys. The map of a generated file is read from the
// path configured by WithMapFile, or else from the file's name plus ".map".
func WithFS(fsys fs.FS) Option {
	return &translatorOptionImpl{func(opts *translatorOptions) {
		opts.loader = LoaderFunc(func(file string) ([]byte, error) {
			name, ok := opts.mapFiles[file]
			if !ok {
				name = file + ".map"
			}
			b, err := fs.ReadFile(fsys, path.Clean(name))
			if err != nil && !ok && isNotExist(err) {
				// no conventional map
				return nil, nil
			}
			return b, err
		})
	}}
}

// WithMapFile maps a generated file to the path of its source map, for use
// by WithFS.
func WithMapFile(file, mapPath string) Option {
	return &translatorOptionImpl{func(opts *translatorOptions) {
		if opts.mapFiles == nil {
			opts.mapFiles = make(map[string]string)
		}
		opts.mapFiles[file] = mapPath
	}}
}

func resolveTranslatorOptions(opts []Option) *translatorOptions {
	var cfg translatorOptions
	for _, opt := range opts {
		if opt != nil {
			opt.applyTranslator(&cfg)
		}
	}
	return &cfg
}
