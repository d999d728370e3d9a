// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiber

import (
	"github.com/joeycumines/go-fiber/cpu"
)

// switchTo hands the CPU to next, detaching the current fiber, and appending
// it to dest, if non-nil. It must be called with interrupts disabled, where
// flag is the state to restore, which travels with the CPU to next. It
// returns once the caller is switched back to.
func (x *Scheduler) switchTo(next *Fiber, dest *queue, flag cpu.Flag) {
	if next.state.Terminal() {
		panic(`fiber: switch to terminated fiber`)
	}

	prev := x.current

	prev.link.Remove()
	if dest != nil {
		dest.push(prev)
	}
	x.current = next
	x.handoff = flag

	x.logger.Debug().
		Int(`from`, int(prev.id)).
		Int(`to`, int(next.id)).
		Str(`queue`, dest.String()).
		Str(`state`, prev.state.String()).
		Log(`fiber switch`)

	if next.state == StateStarting {
		next.ctx.Start(func() { x.trampoline(next) })
	} else {
		next.ctx.Resume()
	}

	// nothing after this point may touch shared state, until resumed
	prev.ctx.Suspend()

	if prev.state.Terminal() {
		panic(`fiber: terminated fiber resumed`)
	}

	prev.setState(StateReady)
	x.core.Restore(x.handoff)
}

// trampoline is the first thing run by every created fiber, on its own
// goroutine. It never returns.
func (x *Scheduler) trampoline(f *Fiber) {
	f.setState(StateReady)
	x.core.Restore(x.handoff)

	var returned bool
	defer func() {
		if returned {
			return
		}
		if r := recover(); r != nil {
			// not from the entry function, see invoke
			panic(r)
		}
		// runtime.Goexit
		x.retire(f)
	}()

	x.invoke(f)
	returned = true

	x.retire(f)
}

// invoke runs the entry function, recovering any panic into f.err. Panics
// raised by interrupt handlers, serviced on the fiber's goroutine, are not
// recovered.
func (x *Scheduler) invoke(f *Fiber) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*cpu.HandlerPanicError); ok {
				panic(r)
			}
			f.err = &PanicError{Value: r}
			x.logger.Err().
				Call(f.logFields).
				Err(f.err).
				Log(`fiber entry panicked`)
		}
	}()
	f.entry(f.data)
}

// retire marks f DEAD, moving it to the dead queue, and switches away for
// the last time.
func (x *Scheduler) retire(f *Fiber) {
	// the entry function has returned, so there's no masked section to
	// restore, and the next fiber always starts with interrupts enabled
	x.core.Disable()

	x.logger.Debug().
		Call(f.logFields).
		Log(`fiber returned`)

	x.wait(StateDead, &x.dead, true)

	panic(`fiber: dead fiber resumed`)
}

// wait sets the state of the current fiber, then switches to the next ready
// fiber, appending the current one to dest. While there is no ready fiber,
// it waits for interrupts, with interrupts enabled. It must be called with
// interrupts disabled, where flag is the state to restore.
//
// Only waiting for StateScheduled may return without switching, if the
// current fiber is woken in the meantime. A fiber that is cancelled while
// waiting always ends up in the dead queue.
func (x *Scheduler) wait(state State, dest *queue, flag cpu.Flag) {
	cur := x.current
	cur.setState(state)

	for {
		if state == StateScheduled && cur.state == StateReady {
			x.logger.Debug().
				Call(cur.logFields).
				Log(`fiber woken before switch`)
			x.core.Restore(flag)
			return
		}

		if next := x.ready.first(cur); next != nil {
			if cur.state == StateCancelled {
				dest = &x.dead
			}
			x.switchTo(next, dest, flag)
			return
		}

		since := x.core.Delivered()
		x.logIdle(cur)
		x.idle = true
		x.core.Restore(true)
		x.core.Idle(since)
		x.core.Disable()
		x.idle = false
	}
}

func (x *Scheduler) logIdle(f *Fiber) {
	if x.core.Pending() != 0 {
		return
	}
	b := x.logger.Warning()
	if !b.Enabled() {
		return
	}
	if _, ok := x.idleRate.Allow(f.id); !ok {
		b.Release()
		return
	}
	b.Call(f.logFields).
		Log(`no fiber ready, waiting for an interrupt`)
}
