// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package sourcemap rewrites the stack frames of error reports, from
// generated script locations to their original sources, using source map v3
// documents.
//
// Maps are registered explicitly, via [Translator.Register], or loaded
// lazily, on first use, from a [Loader] (see [WithFS]). Frames without a
// mapping are left as they are.
package sourcemap
