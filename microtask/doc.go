// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package microtask implements a host-owned microtask queue, with an explicit
// lifecycle, intended to be drained to a fixed point after each macrotask.
//
// The queue is single-threaded: Enqueue and Drain must be called from the
// goroutine that owns the script engine. Draining runs every task, including
// those enqueued by tasks that ran earlier in the same drain, until the queue
// is observed empty.
package microtask
