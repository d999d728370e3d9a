// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiber

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-fiber/cpu"
	"github.com/joeycumines/logiface"
)

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	core         *cpu.Core
	logger       *logiface.Logger[logiface.Event]
	idleLogRates map[time.Duration]int
	minStackSize int
}

// Option configures a Scheduler instance, see New.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// schedulerOptionImpl implements Option.
type schedulerOptionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (x *schedulerOptionImpl) applyScheduler(opts *schedulerOptions) error {
	return x.applySchedulerFunc(opts)
}

// WithCore sets the CPU the scheduler runs on, which is also where
// interrupt handlers, e.g. those calling Scheduler.Wake, must be attached.
// A new cpu.Core is used by default, see Scheduler.Core.
func WithCore(core *cpu.Core) Option {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		if core == nil {
			return fmt.Errorf(`%w: nil core`, ErrInvalidOption)
		}
		opts.core = core
		return nil
	}}
}

// WithLogger sets the logger, used to report scheduling events, at debug
// level, recovered panics, and idling with no ready fiber.
// Logging is disabled by default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMinStackSize sets the minimum number of bytes, following the header,
// that storage passed to Scheduler.Create must provide.
// Defaults to DefaultMinStackSize.
func WithMinStackSize(size int) Option {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		if size < 0 {
			return fmt.Errorf(`%w: negative min stack size: %d`, ErrInvalidOption, size)
		}
		opts.minStackSize = size
		return nil
	}}
}

// WithIdleLogRates sets the rate limits (per fiber) applied to the warning
// logged when a fiber is waiting for an interrupt, because no other fiber is
// ready. A nil or empty map disables rate limiting.
// Defaults to once per second, and at most 10 per minute.
func WithIdleLogRates(rates map[time.Duration]int) Option {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		opts.idleLogRates = rates
		return nil
	}}
}

// resolveSchedulerOptions applies Option instances to schedulerOptions.
func resolveSchedulerOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		minStackSize: DefaultMinStackSize,
		idleLogRates: map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
