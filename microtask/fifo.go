// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package microtask

import (
	"sync"
)

// chunkSize is the number of tasks per node in the fifo linked list.
const chunkSize = 128

// fifo is a chunked linked-list queue of tasks.
//
// It is NOT thread-safe.
type fifo struct { // betteralign:ignore
	head   *chunk
	tail   *chunk
	length int
}

var chunkPool = sync.Pool{
	New: func() any {
		return &chunk{}
	},
}

// chunk is a fixed-size node, using cursors for O(1) push/pop.
type chunk struct {
	tasks   [chunkSize]Task
	next    *chunk
	readPos int
	pos     int
}

func newChunk() *chunk {
	c := chunkPool.Get().(*chunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// returnChunk clears the task slots (so closures may be collected) and
// returns the chunk to the pool.
func returnChunk(c *chunk) {
	for i := 0; i < c.pos; i++ {
		c.tasks[i] = Task{}
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	chunkPool.Put(c)
}

func (q *fifo) push(task Task) {
	if q.tail == nil {
		q.tail = newChunk()
		q.head = q.tail
	}
	if q.tail.pos == len(q.tail.tasks) {
		next := newChunk()
		q.tail.next = next
		q.tail = next
	}
	q.tail.tasks[q.tail.pos] = task
	q.tail.pos++
	q.length++
}

func (q *fifo) pop() (Task, bool) {
	if q.head == nil {
		return Task{}, false
	}
	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos = 0
			q.head.readPos = 0
			return Task{}, false
		}
		old := q.head
		q.head = q.head.next
		returnChunk(old)
	}
	task := q.head.tasks[q.head.readPos]
	q.head.tasks[q.head.readPos] = Task{}
	q.head.readPos++
	q.length--
	return task, true
}

// reset drops every queued task, returning the number dropped.
func (q *fifo) reset() int {
	n := q.length
	for c := q.head; c != nil; {
		next := c.next
		returnChunk(c)
		c = next
	}
	q.head = nil
	q.tail = nil
	q.length = 0
	return n
}
