// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiber

import (
	"encoding/binary"
)

// Storage layout, little-endian:
//
//	[0:4)   magic, "FIBR"
//	[4:8)   fiber id
//	[8:12)  initial stack pointer
//	[12]    state
//	[13:16) reserved, zero
//	[16:)   stack, see Fiber.Stack
const (
	// HeaderSize is the number of bytes at the base of each fiber's storage,
	// reserved for the control block header.
	HeaderSize = 16

	// DefaultMinStackSize is the default minimum number of bytes that must
	// follow the header, see WithMinStackSize.
	DefaultMinStackSize = 128

	// MaxStorageSize is the largest storage accepted, such that the initial
	// stack pointer fits the header.
	MaxStorageSize = 1 << 32

	headerMagic       uint32 = 'F' | 'I'<<8 | 'B'<<16 | 'R'<<24
	headerIDOffset           = 4
	headerSPOffset           = 8
	headerStateOffset        = 12
)

// Header is the decoded control block header, found at the base of the
// storage of a fiber.
type Header struct {
	ID           uint32
	StackPointer uint32
	State        State
}

// ReadHeader decodes the header from storage, returning false if storage
// does not contain one, e.g. because it has never been passed to
// Scheduler.Create.
func ReadHeader(storage []byte) (Header, bool) {
	if len(storage) < HeaderSize || binary.LittleEndian.Uint32(storage) != headerMagic {
		return Header{}, false
	}
	return Header{
		ID:           binary.LittleEndian.Uint32(storage[headerIDOffset:]),
		StackPointer: binary.LittleEndian.Uint32(storage[headerSPOffset:]),
		State:        State(storage[headerStateOffset]),
	}, true
}

func writeHeader(storage []byte, h Header) {
	binary.LittleEndian.PutUint32(storage, headerMagic)
	binary.LittleEndian.PutUint32(storage[headerIDOffset:], h.ID)
	binary.LittleEndian.PutUint32(storage[headerSPOffset:], h.StackPointer)
	storage[headerStateOffset] = byte(h.State)
	clear(storage[headerStateOffset+1 : HeaderSize])
}
