// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiber

import (
	"strconv"

	"github.com/joeycumines/go-fiber/cpu"
	"github.com/joeycumines/go-fiber/list"
	"github.com/joeycumines/logiface"
)

// State is the scheduling state of a Fiber.
//
// State Machine:
//
//	StateStarting  → StateReady      [first run, via the trampoline]
//	StateReady     → StateScheduled  [Suspend]
//	StateReady     → StateWakeup     [Wake, of the running fiber]
//	StateWakeup    → StateReady      [Suspend, consuming the wakeup]
//	StateScheduled → StateReady      [Wake]
//	StateReady     → StateDead       [entry returned]
//	(non-terminal) → StateCancelled  [Cancel]
//
// StateDead and StateCancelled are terminal.
//
// Values are single ASCII characters, which is also how they are recorded in
// the storage header, see ReadHeader.
type State uint8

const (
	// StateStarting indicates the fiber has been created, but never run.
	StateStarting State = 'R'
	// StateReady indicates the fiber is runnable, and in the ready queue.
	StateReady State = 'r'
	// StateWakeup marks the running fiber as woken, before it suspended.
	// It's consumed by the next Scheduler.Suspend.
	StateWakeup State = 'W'
	// StateScheduled indicates the fiber is suspended, until woken.
	StateScheduled State = 's'
	// StateDead indicates the entry function returned.
	StateDead State = 'd'
	// StateCancelled indicates the fiber was terminated by Scheduler.Cancel.
	StateCancelled State = 'c'
)

// Status is the externally visible summary of a State, see Scheduler.Status.
type Status uint8

const (
	// StatusUnknown is reported for a nil fiber.
	StatusUnknown Status = 'U'
	// StatusRunnable covers StateStarting, StateReady and StateWakeup.
	StatusRunnable Status = 'r'
	// StatusScheduled is StateScheduled.
	StatusScheduled Status = 's'
	// StatusDead is StateDead.
	StatusDead Status = 'd'
	// StatusCancelled is StateCancelled.
	StatusCancelled Status = 'c'
)

type (
	// Entry is the function a fiber runs, once, receiving the data provided
	// to Scheduler.Create.
	Entry func(data any)

	// Fiber is the control block of a single cooperative execution context.
	//
	// Instances are created by Scheduler.Create, or Scheduler.Bootstrap (for
	// the main fiber), and remain valid for the lifetime of the process.
	// Fields are owned by the scheduler, and must only be observed from the
	// goroutine currently holding the CPU.
	Fiber struct {
		link    list.Node[Fiber]
		ctx     cpu.Context
		entry   Entry
		data    any
		storage []byte
		err     error
		sp      int
		id      uint32
		state   State
	}
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return `starting`
	case StateReady:
		return `ready`
	case StateWakeup:
		return `wakeup`
	case StateScheduled:
		return `scheduled`
	case StateDead:
		return `dead`
	case StateCancelled:
		return `cancelled`
	default:
		return `State(` + strconv.Itoa(int(s)) + `)`
	}
}

// Terminal returns true for StateDead and StateCancelled.
func (s State) Terminal() bool { return s == StateDead || s == StateCancelled }

// Status maps the state to its Status.
func (s State) Status() Status {
	switch s {
	case StateStarting, StateReady, StateWakeup:
		return StatusRunnable
	case StateScheduled:
		return StatusScheduled
	case StateDead:
		return StatusDead
	case StateCancelled:
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return `unknown`
	case StatusRunnable:
		return `runnable`
	case StatusScheduled:
		return `scheduled`
	case StatusDead:
		return `dead`
	case StatusCancelled:
		return `cancelled`
	default:
		return `Status(` + strconv.Itoa(int(s)) + `)`
	}
}

// ID returns the fiber's identifier. The main fiber is 0, created fibers are
// numbered from 1, in creation order.
func (x *Fiber) ID() uint32 { return x.id }

// Data returns the value passed to the entry function.
func (x *Fiber) Data() any { return x.data }

// State returns the current state.
func (x *Fiber) State() State { return x.state }

// Status returns the Status of the fiber, which may be nil.
func (x *Fiber) Status() Status {
	if x == nil {
		return StatusUnknown
	}
	return x.state.Status()
}

// Stack returns the region of the caller-supplied storage following the
// header, which is private to the fiber. It's nil for the main fiber.
func (x *Fiber) Stack() []byte {
	if x.storage == nil {
		return nil
	}
	return x.storage[HeaderSize:]
}

// StackPointer returns the initial stack pointer, an offset into the
// storage, at the opposite end to the header. It's -1 for the main fiber.
func (x *Fiber) StackPointer() int { return x.sp }

// Err returns a *PanicError if the entry function panicked.
func (x *Fiber) Err() error { return x.err }

func (x *Fiber) setState(state State) {
	x.state = state
	if x.storage != nil {
		x.storage[headerStateOffset] = byte(state)
	}
}

func (x *Fiber) logFields(b *logiface.Builder[logiface.Event]) {
	b.Int(`fiber`, int(x.id)).
		Str(`state`, x.state.String())
}
