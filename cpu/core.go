// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cpu

import (
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// MaxLines is the number of interrupt lines supported by a Core.
const MaxLines = 64

type (
	// Line identifies an interrupt source, in the range [0, MaxLines).
	// Lower lines have priority, when more than one is pending.
	Line uint8

	// Flag is a saved interrupt-enable flag, see Core.Disable.
	Flag bool

	// Handler services an interrupt. It runs on the goroutine currently
	// holding the CPU, with interrupts disabled. A panic is propagated as a
	// *HandlerPanicError.
	Handler func(line Line)

	// Core models a single CPU: an interrupt-enable flag, the masked sections
	// built on it, and an interrupt controller with MaxLines lines.
	//
	// Exactly one goroutine holds the CPU at any time, and only that
	// goroutine may call the methods documented as CPU-local. Ownership is
	// transferred via Context, which establishes the necessary
	// happens-before edges. Raise, Pending, Attach and Detach may be called
	// from any goroutine.
	Core struct {
		logger *logiface.Logger[logiface.Event]

		// wakeup is signaled (non-blocking, capacity 1) by Raise
		wakeup chan struct{}

		mu       sync.RWMutex
		handlers [MaxLines]Handler

		pending atomic.Uint64

		// CPU-local state

		delivered uint64
		depth     int
		enabled   bool
	}
)

// New initializes a Core, with interrupts enabled, and nothing attached.
func New(opts ...Option) (*Core, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Core{
		logger:  cfg.logger,
		wakeup:  make(chan struct{}, 1),
		enabled: true,
	}, nil
}

// Enabled reports the interrupt-enable flag. CPU-local.
func (x *Core) Enabled() bool { return x.enabled }

// InInterrupt reports whether the caller is (within) an interrupt handler.
// CPU-local.
func (x *Core) InInterrupt() bool { return x.depth > 0 }

// Delivered returns the number of interrupts serviced so far. CPU-local.
func (x *Core) Delivered() uint64 { return x.delivered }

// Pending returns the bitmask of raised but not yet serviced lines.
func (x *Core) Pending() uint64 { return x.pending.Load() }

// Disable enters a masked section, returning the previous flag, which must
// be passed to Restore, to leave it. Masked sections nest. CPU-local.
func (x *Core) Disable() Flag {
	f := Flag(x.enabled)
	x.enabled = false
	return f
}

// Restore sets the interrupt-enable flag to f. Re-enabling interrupts
// services any pending interrupts before returning. CPU-local.
func (x *Core) Restore(f Flag) {
	x.enabled = bool(f)
	x.dispatch()
}

// Atomic runs fn inside a masked section, restoring the previous state
// afterwards. CPU-local.
func (x *Core) Atomic(fn func()) {
	f := x.Disable()
	defer x.Restore(f)
	fn()
}

// Attach installs the handler for the given line, replacing any existing
// one. A nil handler is equivalent to Detach.
func (x *Core) Attach(line Line, handler Handler) error {
	if err := checkLine(line); err != nil {
		return err
	}
	x.mu.Lock()
	x.handlers[line] = handler
	x.mu.Unlock()
	x.logger.Debug().
		Int(`line`, int(line)).
		Bool(`attached`, handler != nil).
		Log(`interrupt handler changed`)
	return nil
}

// Detach removes the handler for the given line. Interrupts raised on a line
// without a handler are discarded, as spurious.
func (x *Core) Detach(line Line) error { return x.Attach(line, nil) }

// Raise latches an interrupt request on the given line. It may be called
// from any goroutine. The handler runs on the goroutine holding the CPU, the
// next time interrupts are re-enabled, or while it is idle, see Idle.
// Raising an already pending line has no further effect.
func (x *Core) Raise(line Line) error {
	if err := checkLine(line); err != nil {
		return err
	}
	x.pending.Or(uint64(1) << line)
	select {
	case x.wakeup <- struct{}{}:
	default:
	}
	return nil
}

// Idle waits for an interrupt, returning once any interrupt has been
// serviced since the Delivered value provided, i.e. immediately if it
// differs already. It blocks the calling goroutine while nothing is pending,
// equivalent to a wait-for-interrupt instruction. CPU-local.
//
// If interrupts are disabled, Idle returns as soon as anything is pending,
// without servicing it.
func (x *Core) Idle(since uint64) {
	for x.delivered == since {
		if x.pending.Load() != 0 {
			if !x.enabled {
				return
			}
			x.dispatch()
			continue
		}
		<-x.wakeup
	}
}

func (x *Core) dispatch() {
	for x.enabled {
		pending := x.pending.Load()
		if pending == 0 {
			return
		}
		line := Line(bits.TrailingZeros64(pending))
		mask := uint64(1) << line
		if x.pending.And(^mask)&mask == 0 {
			continue
		}
		x.service(line)
	}
}

func (x *Core) service(line Line) {
	x.mu.RLock()
	handler := x.handlers[line]
	x.mu.RUnlock()

	x.enabled = false
	x.depth++
	defer func() {
		x.depth--
		x.delivered++
		x.enabled = true
		if r := recover(); r != nil {
			panic(&HandlerPanicError{Value: r, Line: line})
		}
	}()

	if handler == nil {
		x.logger.Warning().
			Int(`line`, int(line)).
			Log(`spurious interrupt`)
		return
	}

	handler(line)
}

func checkLine(line Line) error {
	if line >= MaxLines {
		return fmt.Errorf(`%w: %d`, ErrInvalidLine, line)
	}
	return nil
}
