// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package engine

import (
	"runtime"
	"sync"

	"github.com/dop251/goja"
)

// slotRegistry maps closure slot ids to the host closures they box. Function
// objects carry only their slot id, and dispatch through trampoline.
//
// Slots are released after the first call of a FlagOnce function, when the
// function object is collected, or on Context.Close. The mutex is required
// because collection cleanups run on a separate goroutine.
type slotRegistry struct {
	slots  map[uint64]*slot
	nextID uint64
	mu     sync.Mutex
}

type slot struct {
	fn   NativeFn
	name string
	once bool
}

func newSlotRegistry() *slotRegistry {
	return &slotRegistry{
		slots:  make(map[uint64]*slot),
		nextID: 1,
	}
}

func (r *slotRegistry) register(s *slot) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.slots[id] = s
	return id
}

func (r *slotRegistry) load(id uint64) (*slot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	return s, ok
}

// take loads the slot, and removes it if it is one-shot.
func (r *slotRegistry) take(id uint64) (*slot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if ok && s.once {
		delete(r.slots, id)
	}
	return s, ok
}

func (r *slotRegistry) release(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[id]; !ok {
		return false
	}
	delete(r.slots, id)
	return true
}

// cleanup is the collection hook, it must not reference the function object.
func (r *slotRegistry) cleanup(id uint64) {
	r.release(id)
}

func (r *slotRegistry) releaseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.slots)
	clear(r.slots)
	return n
}

func (r *slotRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// trampoline is the single native every closure function dispatches through.
func trampoline(cx *Context, args *Arguments) bool {
	s, ok := cx.slots.take(args.slot)
	if !ok {
		return cx.ThrowTypeError("%s", ErrSlotReleased.Error())
	}
	return s.fn(cx, args)
}

// NewClosureFunction creates a script function backed by a capturing host
// closure. The closure is boxed in a slot, released per the slot lifecycle;
// see FlagOnce.
func (cx *Context) NewClosureFunction(name string, closure NativeFn, nargs uint16, flags Flags) *goja.Object {
	id := cx.slots.register(&slot{
		fn:   closure,
		name: name,
		once: flags.Has(FlagOnce),
	})
	fn := cx.newHostFunction(name, nargs, flags, id, trampoline)
	runtime.AddCleanup(fn, cx.slots.cleanup, id)
	cx.logger.Trace().
		Str("category", "native").
		Str("name", name).
		Uint64("slot", id).
		Log("registered closure slot")
	return fn
}

// ReleaseClosure releases the slot backing fn early. Subsequent calls throw.
func (cx *Context) ReleaseClosure(fn *goja.Object) bool {
	id, ok := cx.SlotOf(fn)
	if !ok {
		return false
	}
	return cx.slots.release(id)
}

// IsClosureLive reports whether fn is backed by a live closure slot.
func (cx *Context) IsClosureLive(fn *goja.Object) bool {
	id, ok := cx.SlotOf(fn)
	if !ok {
		return false
	}
	_, ok = cx.slots.load(id)
	return ok
}

// LiveSlots returns the number of closure slots not yet released.
func (cx *Context) LiveSlots() int {
	return cx.slots.len()
}
