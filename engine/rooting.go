// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package engine

import (
	"github.com/dop251/goja"
)

// Tracer visits values held by the host, e.g. to report or verify them.
type Tracer interface {
	Trace(name string, v goja.Value)
}

// TracerFunc implements Tracer.
type TracerFunc func(name string, v goja.Value)

// Trace implements Tracer.
func (f TracerFunc) Trace(name string, v goja.Value) { f(name, v) }

// rootArena holds values crossing the host boundary. Entries are addressed by
// index and generation, so a stale Rooted never observes a recycled entry.
type rootArena struct {
	entries []rootEntry
	free    []int
	live    int
}

type rootEntry struct {
	value goja.Value
	name  string
	gen   uint32
	used  bool
}

func newRootArena() *rootArena {
	return &rootArena{}
}

func (a *rootArena) add(name string, v goja.Value) Rooted {
	var idx int
	if n := len(a.free); n != 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = len(a.entries)
		a.entries = append(a.entries, rootEntry{})
	}
	e := &a.entries[idx]
	e.gen++
	e.value = v
	e.name = name
	e.used = true
	a.live++
	return Rooted{arena: a, idx: idx, gen: e.gen}
}

func (a *rootArena) remove(r Rooted) bool {
	if r.arena != a || r.idx < 0 || r.idx >= len(a.entries) {
		return false
	}
	e := &a.entries[r.idx]
	if !e.used || e.gen != r.gen {
		return false
	}
	e.value = nil
	e.name = ""
	e.used = false
	a.free = append(a.free, r.idx)
	a.live--
	return true
}

func (a *rootArena) reset() {
	for i := range a.entries {
		if a.entries[i].used {
			a.entries[i].value = nil
			a.entries[i].used = false
			a.free = append(a.free, i)
		}
	}
	a.live = 0
}

// Rooted is a handle to a value kept reachable by the host.
type Rooted struct {
	arena *rootArena
	idx   int
	gen   uint32
}

// Valid reports whether the handle still refers to a live root.
func (r Rooted) Valid() bool {
	if r.arena == nil || r.idx < 0 || r.idx >= len(r.arena.entries) {
		return false
	}
	e := &r.arena.entries[r.idx]
	return e.used && e.gen == r.gen
}

// Get returns the rooted value, or undefined if the root was released.
func (r Rooted) Get() goja.Value {
	if !r.Valid() {
		return goja.Undefined()
	}
	return r.arena.entries[r.idx].value
}

// Object returns the rooted value as an object, or nil.
func (r Rooted) Object() *goja.Object {
	obj, _ := r.Get().(*goja.Object)
	return obj
}

// Scope roots values until Close. Scopes should be closed in LIFO order, via
// defer.
type Scope struct {
	cx     *Context
	roots  []Rooted
	closed bool
}

// EnterScope opens a rooting scope.
func (cx *Context) EnterScope() *Scope {
	return &Scope{cx: cx}
}

// Root keeps v reachable until the scope is closed.
func (s *Scope) Root(v goja.Value) Rooted {
	if s.closed {
		panic("engine: root on closed scope")
	}
	r := s.cx.roots.add("scope", v)
	s.roots = append(s.roots, r)
	return r
}

// Close releases every root held by the scope.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for i := len(s.roots) - 1; i >= 0; i-- {
		s.cx.roots.remove(s.roots[i])
	}
	s.roots = nil
}

// Persist roots v until Unroot, or Close of the Context.
func (cx *Context) Persist(name string, v goja.Value) Rooted {
	return cx.roots.add(name, v)
}

// Unroot releases a root created by Persist (or a scope). It returns false
// for stale handles.
func (cx *Context) Unroot(r Rooted) bool {
	return cx.roots.remove(r)
}

// RootCount returns the number of live roots.
func (cx *Context) RootCount() int { return cx.roots.live }

// TraceRoots visits every live root.
func (cx *Context) TraceRoots(t Tracer) {
	for i := range cx.roots.entries {
		if e := &cx.roots.entries[i]; e.used {
			t.Trace(e.name, e.value)
		}
	}
}
