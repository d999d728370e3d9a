// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cpu

import (
	"os"
	"os/signal"
	"sync"
)

// Notify routes the given process signals to an interrupt line, raising it
// once per signal received, until the returned stop function is called.
// Signals are the closest thing a process has to hardware interrupts.
func (x *Core) Notify(line Line, sigs ...os.Signal) (stop func(), err error) {
	if err := checkLine(line); err != nil {
		return nil, err
	}

	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-ch:
				x.logger.Debug().
					Int(`line`, int(line)).
					Str(`signal`, sig.String()).
					Log(`signal received`)
				_ = x.Raise(line)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}, nil
}
