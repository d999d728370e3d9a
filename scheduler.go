// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiber

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-fiber/cpu"
	"github.com/joeycumines/logiface"
)

type (
	// Scheduler multiplexes fibers onto a single cpu.Core, see the package
	// docs for the model.
	//
	// All methods must be called by the goroutine currently holding the CPU,
	// that is the running fiber, or an interrupt handler it is servicing.
	// Other goroutines interact with the scheduler by raising interrupts.
	Scheduler struct {
		core     *cpu.Core
		logger   *logiface.Logger[logiface.Event]
		idleRate *catrate.Limiter

		current *Fiber

		ready     queue
		scheduled queue
		dead      queue

		// main is the context registered by Bootstrap
		main Fiber

		minStackSize int
		nextID       uint32

		// handoff is the interrupt-enable flag passed across a switch
		handoff cpu.Flag

		// idle is set while the current fiber waits for an interrupt, see wait
		idle bool
	}

	// Stats is a snapshot of queue membership, see Scheduler.Stats.
	Stats struct {
		// Ready is the number of runnable fibers, including the running one,
		// unless it is in the process of suspending.
		Ready int
		// Scheduled is the number of suspended fibers.
		Scheduled int
		// Dead is the number of fibers whose entry function has returned.
		Dead int
		// Cancelled is the number of cancelled fibers.
		Cancelled int
	}
)

// New initializes a Scheduler. It must be bootstrapped before anything
// will run, see Bootstrap.
func New(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveSchedulerOptions(opts)
	if err != nil {
		return nil, err
	}

	idleRate, err := newIdleLimiter(cfg.idleLogRates)
	if err != nil {
		return nil, err
	}

	core := cfg.core
	if core == nil {
		if core, err = cpu.New(cpu.WithLogger(cfg.logger)); err != nil {
			return nil, err
		}
	}

	x := &Scheduler{
		core:         core,
		logger:       cfg.logger,
		idleRate:     idleRate,
		minStackSize: cfg.minStackSize,
	}
	x.ready.init(`ready`)
	x.scheduled.init(`scheduled`)
	x.dead.init(`dead`)

	return x, nil
}

func newIdleLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	if len(rates) == 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf(`%w: idle log rates: %v`, ErrInvalidOption, r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// Core returns the CPU the scheduler runs on.
func (x *Scheduler) Core() *cpu.Core { return x.core }

// Bootstrap registers the calling goroutine as the main fiber, which is
// READY, and running. Subsequent calls are no-ops.
//
// Bootstrap must be called before Yield, Suspend or Cancel will do anything,
// and the calling goroutine becomes the one holding the CPU.
func (x *Scheduler) Bootstrap() {
	flag := x.core.Disable()
	defer x.core.Restore(flag)

	if x.current != nil {
		return
	}

	x.main.link.Init(&x.main)
	x.main.ctx.Bind()
	x.main.sp = -1
	x.main.setState(StateReady)
	x.ready.push(&x.main)
	x.current = &x.main

	x.logger.Debug().
		Call(x.main.logFields).
		Log(`scheduler bootstrapped`)
}

// Create initializes a fiber in storage, which it does not start, appending
// it to the ready queue. It will run the first time it is selected, by Yield,
// or by a fiber suspending or terminating.
//
// The storage must be at least HeaderSize plus the minimum stack size (see
// WithMinStackSize) bytes, at most MaxStorageSize bytes, and is owned by the fiber for the remainder of the
// process, unless the fiber terminates. The header is written immediately,
// see ReadHeader, and the initial stack pointer is the last byte of storage.
//
// Create may be called before Bootstrap, and from interrupt handlers.
func (x *Scheduler) Create(entry Entry, storage []byte, data any) (*Fiber, error) {
	if entry == nil {
		return nil, ErrNilEntry
	}
	if err := x.checkStorageSize(uint64(len(storage))); err != nil {
		return nil, err
	}

	f := &Fiber{
		entry:   entry,
		data:    data,
		storage: storage,
		sp:      len(storage) - 1,
		state:   StateStarting,
	}
	f.link.Init(f)

	flag := x.core.Disable()
	defer x.core.Restore(flag)

	// a live fiber mirrors its state into the header, so this also catches
	// storage that's still in use
	if h, ok := ReadHeader(storage); ok && !h.State.Terminal() {
		return nil, fmt.Errorf(`%w: fiber %d is %s`, ErrStorageInUse, h.ID, h.State)
	}

	x.nextID++
	f.id = x.nextID
	writeHeader(storage, Header{
		ID:           f.id,
		StackPointer: uint32(f.sp),
		State:        f.state,
	})
	x.ready.push(f)

	x.logger.Debug().
		Call(f.logFields).
		Int(`size`, len(storage)).
		Log(`fiber created`)

	return f, nil
}

// checkStorageSize validates the storage length, which must leave room for
// the minimum stack, and keep the stack pointer within the header's range.
func (x *Scheduler) checkStorageSize(n uint64) error {
	if size := uint64(HeaderSize + x.minStackSize); n < size {
		return fmt.Errorf(`%w: %d < %d`, ErrStorageTooSmall, n, size)
	}
	if n > MaxStorageSize {
		return fmt.Errorf(`%w: %d > %d`, ErrStorageTooLarge, n, uint64(MaxStorageSize))
	}
	return nil
}

// Current returns the running fiber, or nil prior to Bootstrap.
func (x *Scheduler) Current() *Fiber { return x.current }

// Status returns the status of f, which may be nil, see Fiber.Status.
func (x *Scheduler) Status(f *Fiber) Status { return f.Status() }

// Stats returns the number of fibers in each queue, counting the dead queue
// by state.
func (x *Scheduler) Stats() (stats Stats) {
	x.core.Atomic(func() {
		stats.Ready = x.ready.len()
		stats.Scheduled = x.scheduled.len()
		for f := range x.dead.list.All() {
			if f.state == StateCancelled {
				stats.Cancelled++
			} else {
				stats.Dead++
			}
		}
	})
	return
}

// Yield switches to the next ready fiber, other than the caller, which is
// appended to the ready queue. If there is none, Yield returns immediately.
//
// Yield is a no-op prior to Bootstrap, and within interrupt handlers.
func (x *Scheduler) Yield() {
	if x.current == nil || x.core.InInterrupt() {
		return
	}

	flag := x.core.Disable()

	next := x.ready.first(x.current)
	if next == nil {
		x.core.Restore(flag)
		return
	}

	x.switchTo(next, &x.ready, flag)
}

// Suspend blocks the running fiber until another calls Wake with it, most
// likely from an interrupt handler. While waiting, the CPU is handed to the
// next ready fiber. If there is none, Suspend waits for interrupts, until
// either a fiber is ready, or the caller is woken.
//
// If the caller has been woken since it last resumed, Suspend consumes the
// wakeup, and returns immediately. This allows the usual pattern of checking
// a condition, then suspending, without losing a Wake that happens between.
//
// Suspend panics if called prior to Bootstrap, or within an interrupt
// handler.
func (x *Scheduler) Suspend() {
	if x.current == nil {
		panic(`fiber: Suspend called before Bootstrap`)
	}
	if x.core.InInterrupt() {
		panic(`fiber: Suspend called from an interrupt handler`)
	}

	flag := x.core.Disable()

	if x.current.state == StateWakeup {
		x.current.setState(StateReady)
		x.core.Restore(flag)
		return
	}

	x.logger.Debug().
		Call(x.current.logFields).
		Log(`fiber suspending`)

	x.wait(StateScheduled, &x.scheduled, flag)
}

// Wake makes a suspended fiber ready, appending it to the ready queue. If f
// is the running fiber, and it has not yet suspended, its next Suspend will
// return immediately. Waking a fiber in any other state, or nil, is a no-op.
//
// Wake may be called from interrupt handlers.
func (x *Scheduler) Wake(f *Fiber) {
	if f == nil {
		return
	}

	flag := x.core.Disable()
	defer x.core.Restore(flag)

	switch {
	case f.state == StateScheduled:
		x.ready.push(f)
		f.setState(StateReady)
	case f == x.current && f.state == StateReady:
		f.setState(StateWakeup)
	default:
		return
	}

	x.logger.Debug().
		Call(f.logFields).
		Log(`fiber woken`)
}

// Cancel terminates f, which will never run again. Nothing is unwound, and
// the fiber's storage remains in use.
//
// Cancelling a fiber that is not running is immediate, and a no-op if it has
// already terminated, or f is nil. If f is the running fiber, Cancel switches
// to the next ready fiber, waiting for interrupts until there is one, and
// never returns. Cancelling the running fiber from within an interrupt
// handler panics, unless it is waiting for that interrupt, in Suspend (or
// Cancel), in which case it is cancelled, even if the handler woke it.
//
// Cancel is a no-op prior to Bootstrap, except for fibers that have not
// started.
func (x *Scheduler) Cancel(f *Fiber) {
	if f == nil {
		return
	}

	flag := x.core.Disable()

	switch f.state {
	case StateDead, StateCancelled:
		x.core.Restore(flag)
		return

	case StateReady, StateWakeup:
		if f != x.current || x.idle {
			// woken while idling in wait, which then switches it into the
			// dead queue
			break
		}
		if x.core.InInterrupt() {
			x.core.Restore(flag)
			panic(`fiber: Cancel of the running fiber called from an interrupt handler`)
		}
		x.logger.Debug().
			Call(f.logFields).
			Log(`fiber cancelling itself`)
		x.wait(StateCancelled, &x.dead, flag)
		panic(`fiber: cancelled fiber resumed`)
	}

	x.dead.push(f)
	f.setState(StateCancelled)

	x.logger.Debug().
		Call(f.logFields).
		Log(`fiber cancelled`)

	x.core.Restore(flag)
}
