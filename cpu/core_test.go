// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cpu

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCore(t *testing.T, opts ...Option) *Core {
	t.Helper()
	c, err := New(opts...)
	require.NoError(t, err)
	return c
}

func TestNew_defaults(t *testing.T) {
	c := newTestCore(t, nil)
	assert.True(t, c.Enabled())
	assert.False(t, c.InInterrupt())
	assert.Zero(t, c.Delivered())
	assert.Zero(t, c.Pending())
}

func TestCore_Disable_nested(t *testing.T) {
	c := newTestCore(t)

	outer := c.Disable()
	assert.Equal(t, Flag(true), outer)
	assert.False(t, c.Enabled())

	inner := c.Disable()
	assert.Equal(t, Flag(false), inner)

	c.Restore(inner)
	assert.False(t, c.Enabled())

	c.Restore(outer)
	assert.True(t, c.Enabled())
}

func TestCore_Raise_deferredWhileMasked(t *testing.T) {
	c := newTestCore(t)
	var calls []Line
	require.NoError(t, c.Attach(3, func(line Line) {
		assert.False(t, c.Enabled())
		assert.True(t, c.InInterrupt())
		calls = append(calls, line)
	}))

	f := c.Disable()
	require.NoError(t, c.Raise(3))
	assert.Equal(t, uint64(1)<<3, c.Pending())
	assert.Empty(t, calls)

	c.Restore(f)
	assert.Equal(t, []Line{3}, calls)
	assert.Zero(t, c.Pending())
	assert.Equal(t, uint64(1), c.Delivered())
	assert.True(t, c.Enabled())
	assert.False(t, c.InInterrupt())
}

func TestCore_Raise_coalesces(t *testing.T) {
	c := newTestCore(t)
	var n int
	require.NoError(t, c.Attach(1, func(Line) { n++ }))

	c.Atomic(func() {
		require.NoError(t, c.Raise(1))
		require.NoError(t, c.Raise(1))
	})

	assert.Equal(t, 1, n)
}

func TestCore_dispatch_lowestLineFirst(t *testing.T) {
	c := newTestCore(t)
	var calls []Line
	handler := func(line Line) { calls = append(calls, line) }
	for _, line := range []Line{9, 2, 40} {
		require.NoError(t, c.Attach(line, handler))
	}

	c.Atomic(func() {
		for _, line := range []Line{40, 9, 2} {
			require.NoError(t, c.Raise(line))
		}
	})

	assert.Equal(t, []Line{2, 9, 40}, calls)
}

func TestCore_handlerRaisesAnother(t *testing.T) {
	c := newTestCore(t)
	var calls []Line
	require.NoError(t, c.Attach(5, func(line Line) {
		calls = append(calls, line)
		require.NoError(t, c.Raise(0))
		// not nested, handlers run with interrupts disabled
		assert.Equal(t, []Line{5}, calls)
	}))
	require.NoError(t, c.Attach(0, func(line Line) {
		calls = append(calls, line)
	}))

	c.Atomic(func() { require.NoError(t, c.Raise(5)) })

	assert.Equal(t, []Line{5, 0}, calls)
	assert.Equal(t, uint64(2), c.Delivered())
}

func TestCore_Atomic_nestedInHandler(t *testing.T) {
	c := newTestCore(t)
	var ran bool
	require.NoError(t, c.Attach(7, func(Line) {
		c.Atomic(func() { ran = true })
		assert.False(t, c.Enabled())
	}))
	c.Atomic(func() { require.NoError(t, c.Raise(7)) })
	assert.True(t, ran)
	assert.True(t, c.Enabled())
}

func TestCore_spuriousInterrupt(t *testing.T) {
	var events atomic.Int32
	logger := logiface.New[logiface.Event](
		logiface.WithWriter[logiface.Event](logiface.NewWriterFunc(func(event logiface.Event) error {
			if event.Level() == logiface.LevelWarning {
				events.Add(1)
			}
			return nil
		})),
		logiface.WithEventFactory[logiface.Event](logiface.NewEventFactoryFunc(func(level logiface.Level) logiface.Event {
			return &testEvent{level: level}
		})),
		logiface.WithLevel[logiface.Event](logiface.LevelDebug),
	)
	c := newTestCore(t, WithLogger(logger))

	c.Atomic(func() { require.NoError(t, c.Raise(12)) })

	assert.Equal(t, uint64(1), c.Delivered())
	assert.Equal(t, int32(1), events.Load())
}

func TestCore_handlerPanic(t *testing.T) {
	c := newTestCore(t)
	boom := errors.New(`boom`)
	require.NoError(t, c.Attach(3, func(Line) { panic(boom) }))

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		c.Atomic(func() { require.NoError(t, c.Raise(3)) })
	}()

	err, ok := recovered.(*HandlerPanicError)
	if assert.True(t, ok, `%T`, recovered) {
		assert.Equal(t, Line(3), err.Line)
		assert.EqualError(t, err, `cpu: line 3 handler panicked: boom`)
		assert.ErrorIs(t, err, boom)
	}
	assert.True(t, c.Enabled())
	assert.False(t, c.InInterrupt())
	assert.Equal(t, uint64(1), c.Delivered())
}

func TestCore_Detach(t *testing.T) {
	c := newTestCore(t)
	var n int
	require.NoError(t, c.Attach(1, func(Line) { n++ }))
	require.NoError(t, c.Detach(1))
	c.Atomic(func() { require.NoError(t, c.Raise(1)) })
	assert.Zero(t, n)
}

func TestCore_invalidLine(t *testing.T) {
	c := newTestCore(t)
	assert.True(t, errors.Is(c.Raise(MaxLines), ErrInvalidLine))
	assert.True(t, errors.Is(c.Attach(MaxLines, func(Line) {}), ErrInvalidLine))
	_, err := c.Notify(200)
	assert.ErrorIs(t, err, ErrInvalidLine)
}

func TestCore_Idle_alreadyDelivered(t *testing.T) {
	c := newTestCore(t)
	require.NoError(t, c.Attach(1, func(Line) {}))
	since := c.Delivered()
	c.Atomic(func() { require.NoError(t, c.Raise(1)) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Idle(since)
	}()
	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal(`expected Idle to return immediately`)
	}
}

func TestCore_Idle_waitsForRaise(t *testing.T) {
	c := newTestCore(t)
	var serviced atomic.Bool
	require.NoError(t, c.Attach(4, func(Line) { serviced.Store(true) }))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Idle(c.Delivered())
	}()

	select {
	case <-done:
		t.Fatal(`expected Idle to block`)
	case <-time.After(time.Millisecond * 30):
	}

	require.NoError(t, c.Raise(4))

	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal(`expected Idle to return after Raise`)
	}
	assert.True(t, serviced.Load())
}

func TestCore_Idle_disabled(t *testing.T) {
	c := newTestCore(t)
	var serviced bool
	require.NoError(t, c.Attach(2, func(Line) { serviced = true }))
	f := c.Disable()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Idle(c.Delivered())
	}()
	require.NoError(t, c.Raise(2))

	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal(`expected Idle to return once pending`)
	}
	assert.False(t, serviced)

	c.Restore(f)
	assert.True(t, serviced)
}

type testEvent struct {
	logiface.UnimplementedEvent
	level logiface.Level
}

func (e *testEvent) Level() logiface.Level         { return e.level }
func (e *testEvent) AddField(key string, val any) {}
