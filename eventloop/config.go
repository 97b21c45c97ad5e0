// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/goja-async/sourcemap"
	gotoml "github.com/pelletier/go-toml/v2"
)

type (
	// Config is the TOML representation of loop options.
	//
	//	report_unhandled_rejections = true
	//	microtask_drain_limit = 10000
	//	log_level = "info"
	//	console = true
	//
	//	[source_maps]
	//	root = "dist"
	//
	//	[source_maps.files]
	//	"bundle.js" = "maps/bundle.js.map"
	Config struct {
		ReportUnhandledRejections *bool           `toml:"report_unhandled_rejections"`
		LogLevel                  string          `toml:"log_level"`
		SourceMaps                SourceMapConfig `toml:"source_maps"`
		MicrotaskDrainLimit       int             `toml:"microtask_drain_limit"`
		Console                   bool            `toml:"console"`
	}

	// SourceMapConfig configures a sourcemap.Translator, reading maps from
	// the Root directory. Files maps generated files to their map, relative
	// to Root, otherwise the map is expected at the file's name plus ".map".
	SourceMapConfig struct {
		Files map[string]string `toml:"files"`
		Root  string            `toml:"root"`
	}
)

// LoadConfig decodes a TOML document. Unknown keys are an error.
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := gotoml.NewDecoder(r).DisallowUnknownFields().Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseConfig, err)
	}
	return &cfg, nil
}

// Options converts the config into loop options. Logs are written to
// logOutput, if a log level is configured.
func (c *Config) Options(logOutput io.Writer) ([]Option, error) {
	var opts []Option

	var translatorOpts []sourcemap.Option
	if c.LogLevel != "" {
		level, ok := ParseLevel(c.LogLevel)
		if !ok {
			return nil, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
		}
		if logOutput == nil {
			logOutput = stderr
		}
		logger := NewDefaultLogger(logOutput, level)
		opts = append(opts, WithLogger(logger))
		translatorOpts = append(translatorOpts, sourcemap.WithLogger(logger))
	}

	if c.ReportUnhandledRejections != nil {
		opts = append(opts, WithUnhandledRejections(*c.ReportUnhandledRejections))
	}

	if c.MicrotaskDrainLimit < 0 {
		return nil, fmt.Errorf("%w: microtask_drain_limit must not be negative", ErrInvalidConfig)
	}
	if c.MicrotaskDrainLimit > 0 {
		opts = append(opts, WithDrainLimit(c.MicrotaskDrainLimit))
	}

	if c.Console {
		opts = append(opts, WithConsole(nil))
	}

	if c.SourceMaps.Root != "" || len(c.SourceMaps.Files) != 0 {
		root := c.SourceMaps.Root
		if root == "" {
			root = "."
		}
		translatorOpts = append(translatorOpts, sourcemap.WithFS(os.DirFS(root)))
		for file, mapPath := range c.SourceMaps.Files {
			translatorOpts = append(translatorOpts, sourcemap.WithMapFile(file, mapPath))
		}
		opts = append(opts, WithSourceMapper(sourcemap.New(translatorOpts...)))
	}

	return opts, nil
}
