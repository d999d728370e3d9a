// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cpu

import (
	"github.com/joeycumines/logiface"
)

type (
	// Option configures a Core, see New.
	Option interface {
		applyCore(*coreOptions) error
	}

	coreOptions struct {
		logger *logiface.Logger[logiface.Event]
	}

	coreOptionImpl struct {
		applyCoreFunc func(*coreOptions) error
	}
)

func (x *coreOptionImpl) applyCore(opts *coreOptions) error {
	return x.applyCoreFunc(opts)
}

// WithLogger sets the logger used to report interrupt controller events,
// e.g. spurious interrupts. Logging is disabled by default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &coreOptionImpl{func(opts *coreOptions) error {
		opts.logger = logger
		return nil
	}}
}

func resolveOptions(opts []Option) (*coreOptions, error) {
	cfg := &coreOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyCore(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
