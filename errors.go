// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiber

import (
	"errors"
	"fmt"
)

var (
	// ErrNilEntry is returned by Scheduler.Create if entry is nil.
	ErrNilEntry = errors.New(`fiber: nil entry`)

	// ErrStorageTooSmall is returned by Scheduler.Create if the storage
	// cannot hold the header plus the minimum stack size.
	ErrStorageTooSmall = errors.New(`fiber: storage too small`)

	// ErrStorageTooLarge is returned by Scheduler.Create if the storage
	// exceeds MaxStorageSize.
	ErrStorageTooLarge = errors.New(`fiber: storage too large`)

	// ErrStorageInUse is returned by Scheduler.Create if the storage holds
	// the header of a fiber that has not terminated.
	ErrStorageInUse = errors.New(`fiber: storage in use`)

	// ErrInvalidOption is returned by New for invalid option values.
	ErrInvalidOption = errors.New(`fiber: invalid option`)
)

// PanicError wraps a value recovered from a panicking entry function, see
// Fiber.Err.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf(`fiber: entry panicked: %v`, e.Value)
}

// Unwrap returns the panic value, if it's an error, for use with errors.Is
// and errors.As.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
