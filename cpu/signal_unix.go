// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package cpu

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// ParseSignal resolves a signal by name, e.g. "SIGUSR1", or "usr1".
func ParseSignal(name string) (os.Signal, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(s, `SIG`) {
		s = `SIG` + s
	}
	if sig := unix.SignalNum(s); sig != 0 {
		return sig, nil
	}
	return nil, fmt.Errorf(`%w: %q`, ErrUnknownSignal, name)
}
