// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/go-fiber"
	"github.com/joeycumines/go-fiber/cpu"
	"github.com/joeycumines/logiface"
)

type (
	// Result is the outcome of a run, see Run.
	Result struct {
		// Trace has one entry per step, in execution order, plus one entry
		// per interrupt handler action, and per fiber returning.
		Trace []string
		// Status is the final status of each fiber, including main.
		Status map[string]fiber.Status
		// Stats is the final queue membership.
		Stats fiber.Stats
		// Delivered is the number of interrupts serviced.
		Delivered uint64
	}

	runner struct {
		sc     *Scenario
		logger *logiface.Logger[logiface.Event]
		sched  *fiber.Scheduler
		fibers map[string]*fiber.Fiber
		trace  []string

		// mu guards cleanup and closed, which may be accessed by Run
		mu      sync.Mutex
		cleanup []func()
		closed  bool
	}
)

// Run executes the scenario on a new scheduler, bootstrapped on a new
// goroutine, which runs the main steps. It returns once the main steps have
// completed, or ctx is done.
//
// Fibers that never finish are left parked, as is the main goroutine, if ctx
// is done first, i.e. the scenario deadlocked. Timers and signal routes are
// stopped before Run returns, either way.
func Run(ctx context.Context, sc *Scenario, logger *logiface.Logger[logiface.Event]) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	core, err := cpu.New(cpu.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	sched, err := fiber.New(fiber.WithCore(core), fiber.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	x := &runner{
		sc:     sc,
		logger: logger,
		sched:  sched,
		fibers: make(map[string]*fiber.Fiber),
	}

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		var o outcome
		o.result, o.err = x.run()
		done <- o
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		x.close()
		logger.Warning().
			Str(`scenario`, sc.Name).
			Err(ctx.Err()).
			Log(`scenario did not complete`)
		return nil, ctx.Err()
	}
}

func (x *runner) run() (result *Result, err error) {
	defer x.close()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf(`scenario: main panicked: %v`, r)
		}
	}()

	x.sched.Bootstrap()
	x.fibers[MainName] = x.sched.Current()

	for _, def := range x.sc.Fibers {
		f, err := x.sched.Create(x.entry(def), make([]byte, x.sc.stackSize()), def.Name)
		if err != nil {
			return nil, fmt.Errorf(`scenario: fiber %q: %w`, def.Name, err)
		}
		x.fibers[def.Name] = f
	}

	core := x.sched.Core()

	for _, irq := range x.sc.Interrupts {
		if err := core.Attach(irq.Line, x.handler(irq)); err != nil {
			return nil, err
		}
	}

	for _, s := range x.sc.Signals {
		sig, err := cpu.ParseSignal(s.Signal)
		if err != nil {
			return nil, err
		}
		stop, err := core.Notify(s.Line, sig)
		if err != nil {
			return nil, err
		}
		x.onClose(stop)
	}

	for _, t := range x.sc.Timers {
		line := t.Line
		timer := time.AfterFunc(t.After, func() { _ = core.Raise(line) })
		x.onClose(func() { timer.Stop() })
	}

	x.logger.Info().
		Str(`scenario`, x.sc.Name).
		Int(`fibers`, len(x.sc.Fibers)).
		Log(`scenario started`)

	x.steps(MainName, x.sc.Main)

	result = &Result{
		Trace:     x.trace,
		Status:    make(map[string]fiber.Status, len(x.fibers)),
		Stats:     x.sched.Stats(),
		Delivered: core.Delivered(),
	}
	for name, f := range x.fibers {
		result.Status[name] = x.sched.Status(f)
	}

	x.logger.Info().
		Str(`scenario`, x.sc.Name).
		Int(`steps`, len(x.trace)).
		Log(`scenario completed`)

	return result, nil
}

func (x *runner) entry(def Fiber) fiber.Entry {
	return func(any) {
		x.steps(def.Name, def.Steps)
		x.tracef(`%s: return`, def.Name)
	}
}

func (x *runner) handler(irq Interrupt) cpu.Handler {
	return func(line cpu.Line) {
		for _, name := range irq.Wake {
			x.tracef(`irq %d: wake %s`, line, name)
			x.sched.Wake(x.fibers[name])
		}
		for _, name := range irq.Cancel {
			x.tracef(`irq %d: cancel %s`, line, name)
			x.sched.Cancel(x.fibers[name])
		}
	}
}

func (x *runner) steps(name string, steps []Step) {
	for _, step := range steps {
		x.tracef(`%s: %s`, name, step)
		switch step.Op {
		case OpYield:
			for range max(step.Count, 1) {
				x.sched.Yield()
			}
		case OpSuspend:
			x.sched.Suspend()
		case OpWake:
			x.sched.Wake(x.lookup(step.target()))
		case OpCancel:
			x.sched.Cancel(x.lookup(step.target()))
		case OpRaise:
			_ = x.sched.Core().Raise(step.Line)
		case OpLog:
			x.logger.Info().
				Str(`fiber`, name).
				Log(step.Message)
		case OpDrain:
			for x.sched.Stats().Ready > 1 {
				x.sched.Yield()
			}
		}
	}
}

func (x *runner) lookup(name string) *fiber.Fiber {
	if name == SelfName {
		return x.sched.Current()
	}
	return x.fibers[name]
}

// onClose registers fn to be called by close, or calls it immediately, if
// already closed.
func (x *runner) onClose(fn func()) {
	x.mu.Lock()
	if !x.closed {
		x.cleanup = append(x.cleanup, fn)
		fn = nil
	}
	x.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// close runs the registered cleanup, in reverse order, once.
func (x *runner) close() {
	x.mu.Lock()
	cleanup := x.cleanup
	x.cleanup = nil
	x.closed = true
	x.mu.Unlock()
	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}
}

func (x *runner) tracef(format string, args ...any) {
	x.trace = append(x.trace, fmt.Sprintf(format, args...))
}
