// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadHeader_invalid(t *testing.T) {
	_, ok := ReadHeader(nil)
	assert.False(t, ok)
	_, ok = ReadHeader(make([]byte, HeaderSize-1))
	assert.False(t, ok)
	_, ok = ReadHeader(make([]byte, 64))
	assert.False(t, ok)
}

func TestWriteHeader(t *testing.T) {
	b := make([]byte, HeaderSize+4)
	for i := range b {
		b[i] = 0xff
	}
	writeHeader(b, Header{ID: 0x01020304, StackPointer: 19, State: StateStarting})
	assert.Equal(t, []byte{
		'F', 'I', 'B', 'R',
		0x04, 0x03, 0x02, 0x01,
		19, 0, 0, 0,
		'R', 0, 0, 0,
		0xff, 0xff, 0xff, 0xff,
	}, b)
	h, ok := ReadHeader(b)
	require.True(t, ok)
	assert.Equal(t, Header{ID: 0x01020304, StackPointer: 19, State: StateStarting}, h)
}

func TestScheduler_Create_validation(t *testing.T) {
	s := newTestScheduler(t)

	_, err := s.Create(nil, newStack(), nil)
	assert.ErrorIs(t, err, ErrNilEntry)

	_, err = s.Create(func(any) {}, make([]byte, HeaderSize+DefaultMinStackSize-1), nil)
	assert.ErrorIs(t, err, ErrStorageTooSmall)
	assert.EqualError(t, err, `fiber: storage too small: 143 < 144`)

	_, err = s.Create(func(any) {}, nil, nil)
	assert.ErrorIs(t, err, ErrStorageTooSmall)

	assert.Equal(t, Stats{}, s.Stats())
}

func TestScheduler_checkStorageSize(t *testing.T) {
	s := newTestScheduler(t)
	assert.NoError(t, s.checkStorageSize(HeaderSize+DefaultMinStackSize))
	assert.NoError(t, s.checkStorageSize(MaxStorageSize))

	err := s.checkStorageSize(MaxStorageSize + 1)
	assert.ErrorIs(t, err, ErrStorageTooLarge)
	assert.EqualError(t, err, `fiber: storage too large: 4294967297 > 4294967296`)

	assert.ErrorIs(t, s.checkStorageSize(0), ErrStorageTooSmall)
}

func TestScheduler_Create_header(t *testing.T) {
	s := newTestScheduler(t)
	storage := make([]byte, 256)
	var a *Fiber
	runMain(t, s, func() {
		var err error
		a, err = s.Create(func(data any) {
			assert.Equal(t, `data`, data)
			h, ok := ReadHeader(storage)
			assert.True(t, ok)
			assert.Equal(t, StateReady, h.State)
		}, storage, `data`)
		if !assert.NoError(t, err) {
			return
		}

		assert.Equal(t, uint32(1), a.ID())
		assert.Equal(t, `data`, a.Data())
		assert.Equal(t, 255, a.StackPointer())
		assert.Len(t, a.Stack(), 256-HeaderSize)
		assert.Equal(t, Header{ID: 1, StackPointer: 255, State: StateStarting}, func() Header {
			h, _ := ReadHeader(storage)
			return h
		}())

		// still in use
		_, err = s.Create(func(any) {}, storage, nil)
		assert.ErrorIs(t, err, ErrStorageInUse)

		s.Yield()
	})

	h, ok := ReadHeader(storage)
	require.True(t, ok)
	assert.Equal(t, Header{ID: 1, StackPointer: 255, State: StateDead}, h)

	// reusable once terminated
	b, err := s.Create(func(any) {}, storage, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), b.ID())
	h, _ = ReadHeader(storage)
	assert.Equal(t, StateStarting, h.State)
}

func TestScheduler_Create_stackWritable(t *testing.T) {
	s := newTestScheduler(t)
	storage := newStack()
	runMain(t, s, func() {
		f, err := s.Create(func(any) {
			stack := s.Current().Stack()
			for i := range stack {
				stack[i] = byte(i)
			}
		}, storage, nil)
		if !assert.NoError(t, err) {
			return
		}
		s.Yield()
		assert.Equal(t, StateDead, f.State())
	})
	h, ok := ReadHeader(storage)
	require.True(t, ok)
	assert.Equal(t, StateDead, h.State)
	assert.Equal(t, byte(DefaultMinStackSize-1), storage[len(storage)-1])
}
