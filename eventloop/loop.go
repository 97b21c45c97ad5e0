// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	gojaasync "github.com/joeycumines/goja-async"
	"github.com/joeycumines/goja-async/engine"
	"github.com/joeycumines/goja-async/microtask"
	"github.com/joeycumines/logiface"
)

// LoopState is the lifecycle state of a Loop.
type LoopState uint8

const (
	// StateAwake is the initial state, macrotasks may be run directly.
	StateAwake LoopState = iota
	// StateRunning indicates Run is processing submitted tasks.
	StateRunning
	// StateTerminating indicates Shutdown or Close was called, while running.
	StateTerminating
	// StateTerminated is the final state.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "awake"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Task is a macrotask, run on the loop goroutine.
type Task func(cx *engine.Context) error

// Loop owns a goja runtime, its engine context, and its microtask queue.
//
// Submit, Shutdown, Close and State are safe for concurrent use. All other
// methods must be called from the goroutine driving the loop: either from
// within a Task, or, if Run is not active, from the owning goroutine.
type Loop struct {
	logger    *logiface.Logger[logiface.Event]
	cx        *engine.Context
	queue     *microtask.Queue
	rejection *RejectionHandler
	reporter  Reporter
	mapper    SourceMapper
	unhandled *unhandledSet

	ingress []Task
	wake    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	state   LoopState
	discard bool
}

// New initializes a Loop, binding the engine context, and installing the
// queueMicrotask global, and optionally console.
func New(opts ...Option) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		logger:   cfg.logger,
		reporter: cfg.reporter,
		mapper:   cfg.mapper,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	queueOpts := []microtask.Option{
		microtask.WithLogger(cfg.logger),
		microtask.WithErrorHandler(l.handleTaskError),
	}
	if cfg.drainLimit > 0 {
		queueOpts = append(queueOpts, microtask.WithDrainLimit(cfg.drainLimit))
	}
	if l.queue, err = microtask.New(queueOpts...); err != nil {
		return nil, err
	}
	if err := l.queue.Init(); err != nil {
		return nil, err
	}

	rt := cfg.runtime
	if rt == nil {
		rt = goja.New()
	}
	contextOpts := []engine.ContextOption{
		engine.WithLogger(cfg.logger),
		engine.WithDiagnosticHandler(cfg.diagnostic),
	}
	if !cfg.noUnhandled {
		l.unhandled = newUnhandledSet()
		contextOpts = append(contextOpts, engine.WithRejectionTracker(l.trackRejection))
	}
	if l.cx, err = engine.New(rt, l.queue, contextOpts...); err != nil {
		return nil, err
	}

	l.rejection = NewRejectionHandler(l.cx, l.reporter, l.mapper)

	if cfg.console {
		printer := cfg.printer
		if printer == nil {
			printer = LoggerPrinter{Logger: cfg.logger}
		}
		enableConsole(rt, printer)
	}

	if !cfg.noQueueMicrotask {
		if !l.cx.DefineFunctions(rt.GlobalObject(), globalFunctions) {
			if report, ok := l.cx.ErrorReportFromPending(); ok {
				return nil, fmt.Errorf("eventloop: failed to install globals: %w", report)
			}
			return nil, errors.New("eventloop: failed to install globals")
		}
	}

	return l, nil
}

// Context returns the engine context.
func (l *Loop) Context() *engine.Context { return l.cx }

// Runtime returns the goja runtime.
func (l *Loop) Runtime() *goja.Runtime { return l.cx.Runtime() }

// Queue returns the microtask queue.
func (l *Loop) Queue() *microtask.Queue { return l.queue }

// RejectionHandler returns the default rejection reaction.
func (l *Loop) RejectionHandler() *RejectionHandler { return l.rejection }

// State returns the current lifecycle state.
func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) terminated() bool {
	return l.State() == StateTerminated
}

// RunMacrotask runs task, then performs a microtask checkpoint. Errors from
// both are returned, joined. Panics are recovered as microtask.PanicError.
func (l *Loop) RunMacrotask(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if l.terminated() {
		return ErrLoopClosed
	}
	err := l.runTask(task)
	if cerr := l.Checkpoint(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

func (l *Loop) runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = microtask.PanicError{Value: r}
			l.cx.ClearPendingException()
		}
	}()
	return task(l.cx)
}

// RunScript evaluates src as a macrotask. A thrown exception is returned as
// an *engine.ErrorReport, with source mapped frames.
func (l *Loop) RunScript(name, src string) (goja.Value, error) {
	var result goja.Value
	err := l.RunMacrotask(func(cx *engine.Context) error {
		v, ok := cx.Evaluate(name, src)
		if ok {
			result = v
			return nil
		}
		if report, ok := cx.ErrorReportFromPending(); ok {
			if l.mapper != nil {
				l.mapper.Transform(report)
			}
			return report
		}
		return engine.ErrSilentFailure
	})
	return result, err
}

// Checkpoint drains the microtask queue to a fixed point, then attaches the
// rejection handler to every promise still unhandled, draining again, until
// nothing is left to report.
func (l *Loop) Checkpoint() error {
	if l.terminated() {
		return ErrLoopClosed
	}
	defer l.cx.Scavenge()
	for {
		if _, err := l.queue.Drain(); err != nil {
			return fmt.Errorf("eventloop: microtask checkpoint: %w", err)
		}
		if l.unhandled == nil {
			return nil
		}
		pending := l.unhandled.take(l.cx)
		if len(pending) == 0 {
			return nil
		}
		for _, obj := range pending {
			p, ok := gojaasync.PromiseFromObject(l.cx, obj)
			if !ok || !l.rejection.AddHandlerReactions(l.cx, p) {
				l.cx.ClearPendingException()
				l.logger.Warning().
					Str("category", "rejection").
					Uint64("promise_id", l.cx.PromiseID(obj)).
					Log("failed to attach rejection handler")
			}
		}
	}
}

// trackRejection records rejected promises without handlers, until either a
// handler is added, or the next checkpoint.
func (l *Loop) trackRejection(cx *engine.Context, promise *goja.Object, op engine.RejectionOperation) {
	id := cx.PromiseID(promise)
	switch op {
	case engine.RejectionReject:
		l.unhandled.add(cx, id, promise)
	case engine.RejectionHandle:
		l.unhandled.remove(cx, id)
	}
	l.logger.Trace().
		Str("category", "rejection").
		Str("operation", op.String()).
		Uint64("promise_id", id).
		Log("rejection tracked")
}

// handleTaskError reports exceptions thrown by microtasks, e.g. a
// queueMicrotask callback.
func (l *Loop) handleTaskError(task microtask.Task, err error) {
	var report *engine.ErrorReport
	if !errors.As(err, &report) {
		return
	}
	if l.mapper != nil {
		l.mapper.Transform(report)
	}
	if l.reporter != nil {
		l.reporter.Report(ReportUncaughtException, report)
	}
}

// Submit queues task to be run as a macrotask, by Run. It is safe for
// concurrent use.
func (l *Loop) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	l.mu.Lock()
	if l.state == StateTerminated || l.discard {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.ingress = append(l.ingress, task)
	l.mu.Unlock()
	l.signal()
	return nil
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run processes submitted tasks until Shutdown, Close, or ctx is done. On
// exit the loop is terminated, see Close.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateAwake:
		l.state = StateRunning
	case StateTerminated:
		l.mu.Unlock()
		return ErrLoopClosed
	default:
		l.mu.Unlock()
		return ErrLoopRunning
	}
	l.mu.Unlock()

	l.logger.Debug().
		Str("category", "loop").
		Log("loop running")

	for {
		tasks, stop := l.takeIngress()
		for _, task := range tasks {
			if err := l.RunMacrotask(task); err != nil {
				l.logger.Err().
					Str("category", "loop").
					Err(err).
					Log("macrotask failed")
			}
		}
		if stop {
			l.terminate()
			return nil
		}
		select {
		case <-ctx.Done():
			l.terminate()
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// takeIngress returns pending tasks, and whether the loop should stop once
// they are done.
func (l *Loop) takeIngress() ([]Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks := l.ingress
	l.ingress = nil
	if l.discard {
		tasks = nil
	}
	return tasks, l.state == StateTerminating && (len(tasks) == 0 || l.discard)
}

// Shutdown stops the loop once all submitted tasks have run, blocking until
// it has terminated, or ctx is done.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateAwake:
		l.mu.Unlock()
		l.terminate()
		return nil
	case StateTerminated:
		l.mu.Unlock()
		return ErrLoopClosed
	case StateRunning:
		l.state = StateTerminating
	}
	l.mu.Unlock()
	l.signal()
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close terminates the loop without running pending tasks. If Run is active
// it returns without waiting. Termination rejects all pending promises with
// engine.ErrContextClosed, runs the resulting reactions, then tears down the
// microtask queue.
func (l *Loop) Close() error {
	l.mu.Lock()
	switch l.state {
	case StateAwake:
		l.mu.Unlock()
		l.terminate()
		return nil
	case StateTerminated:
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.state = StateTerminating
	l.discard = true
	l.ingress = nil
	l.mu.Unlock()
	l.signal()
	return nil
}

// Done is closed once the loop has terminated.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) terminate() {
	l.cx.Close()
	if _, err := l.queue.Drain(); err != nil {
		l.logger.Warning().
			Str("category", "loop").
			Err(err).
			Log("failed to drain microtasks on close")
	}
	dropped := l.queue.Teardown()

	l.mu.Lock()
	l.state = StateTerminated
	l.ingress = nil
	l.mu.Unlock()
	close(l.done)

	l.logger.Debug().
		Str("category", "loop").
		Int("dropped", dropped).
		Log("loop terminated")
}

// unhandledSet is an insertion ordered set of rejected promises. Members are
// rooted until removed or taken.
type unhandledSet struct {
	index map[uint64]engine.Rooted
	order []uint64
}

func newUnhandledSet() *unhandledSet {
	return &unhandledSet{index: make(map[uint64]engine.Rooted)}
}

func (s *unhandledSet) add(cx *engine.Context, id uint64, obj *goja.Object) {
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = cx.Persist("unhandled rejection", obj)
	s.order = append(s.order, id)
}

func (s *unhandledSet) remove(cx *engine.Context, id uint64) {
	if r, ok := s.index[id]; ok {
		cx.Unroot(r)
		delete(s.index, id)
	}
}

// take returns and clears the set, in rejection order.
func (s *unhandledSet) take(cx *engine.Context) []*goja.Object {
	if len(s.index) == 0 {
		s.order = s.order[:0]
		return nil
	}
	out := make([]*goja.Object, 0, len(s.index))
	for _, id := range s.order {
		r, ok := s.index[id]
		if !ok {
			continue
		}
		if obj := r.Object(); obj != nil {
			out = append(out, obj)
		}
		cx.Unroot(r)
	}
	clear(s.index)
	s.order = s.order[:0]
	return out
}
