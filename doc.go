// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package fiber implements cooperative, stackful multitasking, for a single
// CPU that services asynchronous interrupts.
//
// # Model
//
// A [Scheduler] multiplexes fibers onto a [cpu.Core]. Each fiber has its own
// execution context, backed by a goroutine, but exactly one of them holds the
// CPU at any time. The CPU only changes hands at the points where a fiber
// calls [Scheduler.Yield], [Scheduler.Suspend] or [Scheduler.Cancel] (with
// itself), or returns from its [Entry] function. There is no preemption, so a
// fiber that never does any of these starves every other fiber.
//
// Interrupts are the only other concurrent actor. They may be raised by any
// goroutine, using [cpu.Core.Raise], and are serviced by handlers running on
// the goroutine holding the CPU, whenever interrupts are enabled. Handlers
// may call [Scheduler.Wake], making a suspended fiber ready, or
// [Scheduler.Cancel], with any fiber that is not running. All scheduler state
// is mutated with interrupts disabled.
//
// # Queues
//
// Every fiber is in exactly one of three FIFO queues:
//   - ready: runnable fibers, including the running one, in round-robin order
//   - scheduled: suspended fibers, waiting for [Scheduler.Wake]
//   - dead: terminated fibers, which never run again
//
// The next fiber to run is always the least-recently-inserted ready fiber,
// other than the one switching away.
//
// # Lost Wakeups
//
// A fiber typically checks a condition, then suspends, until an interrupt
// handler wakes it. If the wakeup happens between the check and the call to
// Suspend, the fiber is marked [StateWakeup], and Suspend returns immediately.
// If no fiber is ready when a fiber suspends, the scheduler waits for
// interrupts (see [cpu.Core.Idle]), rather than spinning.
//
// # Storage
//
// Each created fiber is given caller-supplied storage, which is never freed.
// The first [HeaderSize] bytes hold a header describing the fiber, see
// [ReadHeader], and the remainder is available via [Fiber.Stack].
//
// # Usage
//
//	sched, err := fiber.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sched.Bootstrap()
//
//	var stack [256]byte
//	if _, err := sched.Create(func(data any) {
//	    fmt.Println(`hello from`, data)
//	}, stack[:], `a fiber`); err != nil {
//	    log.Fatal(err)
//	}
//
//	sched.Yield() // runs the fiber to completion
package fiber
