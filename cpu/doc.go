// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package cpu models the CPU-context primitives that a cooperative scheduler
// for a single-core, interrupt-driven machine depends on.
//
// A [Core] provides the interrupt-enable flag, masked sections
// ([Core.Disable], [Core.Restore], [Core.Atomic]) and an interrupt controller.
// Interrupts may be raised asynchronously, by any goroutine, using
// [Core.Raise]. They are latched, then serviced on the goroutine currently
// holding the CPU, at the next point interrupts are re-enabled, in the same
// way a hardware interrupt borrows the stack of whatever was running.
//
// A [Context] is the saved execution context of a goroutine, supporting the
// two primitives a context switch requires: suspend-and-store
// ([Context.Suspend]) and resume-from ([Context.Resume]), plus entering a
// context for the first time ([Context.Start]).
package cpu

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLine is returned for interrupt lines >= MaxLines.
	ErrInvalidLine = errors.New(`cpu: invalid interrupt line`)

	// ErrUnknownSignal is returned by ParseSignal.
	ErrUnknownSignal = errors.New(`cpu: unknown signal`)
)

// HandlerPanicError is the value a panicking interrupt handler is re-panicked
// with, once the Core has left the interrupt context. It propagates up the
// goroutine that was holding the CPU.
type HandlerPanicError struct {
	Value any
	Line  Line
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf(`cpu: line %d handler panicked: %v`, e.Line, e.Value)
}

// Unwrap returns the panic value, if it's an error.
func (e *HandlerPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
