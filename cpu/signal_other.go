// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build !linux && !darwin

package cpu

import (
	"fmt"
	"os"
)

// ParseSignal is unsupported on this platform, and always fails.
func ParseSignal(name string) (os.Signal, error) {
	return nil, fmt.Errorf(`%w: %q`, ErrUnknownSignal, name)
}
