// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package engine

import (
	"weak"
)

// registry tracks promise records via weak pointers, so that pending promises
// can be rejected on Close without preventing their collection. A ring of ids
// is walked incrementally by Scavenge.
//
// It is confined to the Context's goroutine.
type registry struct {
	data   map[uint64]weak.Pointer[promiseRecord]
	ring   []uint64
	head   int
	nextID uint64
}

func newRegistry() *registry {
	return &registry{
		data:   make(map[uint64]weak.Pointer[promiseRecord]),
		ring:   make([]uint64, 0, 64),
		nextID: 1, // 0 is the null marker
	}
}

// allocID returns the next promise id.
func (r *registry) allocID() uint64 {
	id := r.nextID
	r.nextID++
	return id
}

// add assigns the next id to rec, and tracks it.
func (r *registry) add(rec *promiseRecord) uint64 {
	id := r.allocID()
	rec.id = id
	r.data[id] = weak.Make(rec)
	r.ring = append(r.ring, id)
	return id
}

// Len returns the number of tracked records.
func (r *registry) Len() int { return len(r.data) }

// Scavenge checks up to batchSize ring entries, dropping collected or settled
// records. Completing a cycle of the ring triggers compaction, if the load
// factor is under 25%.
func (r *registry) Scavenge(batchSize int) {
	if batchSize <= 0 || len(r.ring) == 0 {
		return
	}
	if r.head >= len(r.ring) {
		r.head = 0
	}
	end := min(r.head+batchSize, len(r.ring))
	for i := r.head; i < end; i++ {
		id := r.ring[i]
		if id == 0 {
			continue
		}
		wp, ok := r.data[id]
		if !ok {
			r.ring[i] = 0
			continue
		}
		if rec := wp.Value(); rec == nil || rec.state != PromisePending {
			delete(r.data, id)
			r.ring[i] = 0
		}
	}
	r.head = end
	if r.head >= len(r.ring) {
		r.head = 0
		if capacity := len(r.ring); capacity > 256 && float64(len(r.data)) < float64(capacity)*0.25 {
			r.compact()
		}
	}
}

// RejectAll calls reject for every live, pending record, in creation order,
// then clears the registry. It returns the number of records rejected.
func (r *registry) RejectAll(reject func(rec *promiseRecord)) int {
	var n int
	ring := r.ring
	data := r.data
	r.data = make(map[uint64]weak.Pointer[promiseRecord])
	r.ring = make([]uint64, 0, 64)
	r.head = 0
	for _, id := range ring {
		if id == 0 {
			continue
		}
		wp, ok := data[id]
		if !ok {
			continue
		}
		if rec := wp.Value(); rec != nil && rec.state == PromisePending {
			reject(rec)
			n++
		}
	}
	return n
}

// compact removes null markers from the ring, and rebuilds the map, as
// delete does not shrink it.
func (r *registry) compact() {
	ring := make([]uint64, 0, len(r.data))
	data := make(map[uint64]weak.Pointer[promiseRecord], len(r.data))
	for _, id := range r.ring {
		if id == 0 {
			continue
		}
		if wp, ok := r.data[id]; ok {
			ring = append(ring, id)
			data[id] = wp
		}
	}
	r.ring = ring
	r.data = data
	r.head = 0
}
