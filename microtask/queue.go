// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package microtask

import (
	"github.com/joeycumines/logiface"
)

// Kind distinguishes the origin of a Task.
type Kind uint8

const (
	// KindUser is a task scheduled by script code, e.g. via queueMicrotask.
	KindUser Kind = iota
	// KindReaction is an engine-internal promise reaction job.
	KindReaction
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindReaction:
		return "reaction"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a Queue.
type State uint8

const (
	// StateUninitialized is the state of a new Queue, prior to Init.
	StateUninitialized State = iota
	// StateReady indicates the Queue accepts and runs tasks.
	StateReady
	// StateTornDown indicates Teardown was called. Init may be called again.
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateReady:
		return "Ready"
	case StateTornDown:
		return "TornDown"
	default:
		return "Unknown"
	}
}

// Task is a unit of deferred work.
type Task struct {
	// Run performs the work. A non-nil error is logged, and passed to any
	// handler configured via WithErrorHandler, but never stops a drain.
	Run func() error
	// Label is an optional description, used in logs.
	Label string
	Kind  Kind
}

// Queue is a FIFO microtask queue. It must be initialised via Init before use.
//
// Queue is not safe for concurrent use.
type Queue struct {
	logger       *logiface.Logger[logiface.Event]
	errorHandler func(task Task, err error)
	tasks        fifo
	executed     uint64
	drainLimit   int
	state        State
	draining     bool
}

// New constructs an uninitialised Queue.
func New(opts ...Option) (*Queue, error) {
	cfg, err := resolveQueueOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Queue{
		logger:       cfg.logger,
		errorHandler: cfg.errorHandler,
		drainLimit:   cfg.drainLimit,
	}, nil
}

// Init makes the queue ready to accept tasks.
func (q *Queue) Init() error {
	if q.state == StateReady {
		return ErrAlreadyInitialized
	}
	q.state = StateReady
	q.logger.Debug().
		Str("category", "microtask").
		Log("microtask queue initialised")
	return nil
}

// Teardown discards all pending tasks, returning how many were dropped, and
// transitions the queue to StateTornDown.
func (q *Queue) Teardown() int {
	n := q.tasks.reset()
	q.state = StateTornDown
	if n != 0 {
		q.logger.Warning().
			Str("category", "microtask").
			Int("dropped", n).
			Log("microtask queue torn down with pending tasks")
	}
	return n
}

// State returns the current lifecycle state.
func (q *Queue) State() State { return q.state }

// Len returns the number of pending tasks.
func (q *Queue) Len() int { return q.tasks.length }

// IsEmpty reports whether there are no pending tasks.
func (q *Queue) IsEmpty() bool { return q.tasks.length == 0 }

// Executed returns the total number of tasks run, across all drains.
func (q *Queue) Executed() uint64 { return q.executed }

// Enqueue appends a task. It fails with ErrNotInitialized unless the queue is
// in StateReady.
func (q *Queue) Enqueue(task Task) error {
	if task.Run == nil {
		return ErrNilTask
	}
	if q.state != StateReady {
		return ErrNotInitialized
	}
	q.tasks.push(task)
	return nil
}

// Drain runs tasks in FIFO order until the queue is observed empty, including
// tasks enqueued during the drain. It returns the number of tasks run.
//
// Calling Drain from within a running task is a no-op, returning (0, nil):
// the outer drain will run anything enqueued.
func (q *Queue) Drain() (int, error) {
	if q.state != StateReady {
		return 0, ErrNotInitialized
	}
	if q.draining {
		return 0, nil
	}
	q.draining = true
	defer func() { q.draining = false }()

	var n int
	for {
		if q.drainLimit > 0 && n >= q.drainLimit && q.tasks.length != 0 {
			q.logger.Warning().
				Str("category", "microtask").
				Int("limit", q.drainLimit).
				Int("remaining", q.tasks.length).
				Log("microtask drain limit reached")
			return n, ErrDrainLimit
		}
		task, ok := q.tasks.pop()
		if !ok {
			return n, nil
		}
		n++
		q.executed++
		if err := q.safeRun(task); err != nil {
			q.handleError(task, err)
		}
		if q.state != StateReady {
			// torn down by a task
			return n, nil
		}
	}
}

func (q *Queue) safeRun(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return task.Run()
}

func (q *Queue) handleError(task Task, err error) {
	b := q.logger.Err()
	if _, ok := err.(PanicError); ok {
		b = q.logger.Crit()
	}
	b.Str("category", "microtask").
		Str("kind", task.Kind.String()).
		Str("label", task.Label).
		Err(err).
		Log("microtask failed")
	if q.errorHandler != nil {
		q.errorHandler(task, err)
	}
}
