// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cpu

// Context is a saved execution context, i.e. a goroutine that may be parked
// and resumed, standing in for a saved stack pointer. The zero value is
// unbound, see Bind and Start.
//
// Handing the CPU from one context to another is always: Resume (or Start)
// the incoming context, then Suspend the outgoing one. Everything the
// outgoing goroutine wrote before Resume is visible to the incoming one.
type Context struct {
	resume chan struct{}
}

// Bound reports whether x has been bound to a goroutine, by Bind or Start.
func (x *Context) Bound() bool { return x.resume != nil }

// Bind binds x to the calling goroutine, which must be the only one to call
// Suspend.
func (x *Context) Bind() {
	if x.resume != nil {
		panic(`cpu: context already bound`)
	}
	x.resume = make(chan struct{}, 1)
}

// Start binds x to a new goroutine, running fn. Used to enter a context for
// the first time.
func (x *Context) Start(fn func()) {
	x.Bind()
	go fn()
}

// Suspend parks the calling goroutine until the next Resume. A Resume that
// happened before Suspend is not lost.
func (x *Context) Suspend() { <-x.resume }

// Resume releases the goroutine parked (or about to park) in Suspend.
// Resuming a context that has already been resumed, and not yet suspended
// again, panics.
func (x *Context) Resume() {
	select {
	case x.resume <- struct{}{}:
	default:
		panic(`cpu: context resumed twice`)
	}
}
