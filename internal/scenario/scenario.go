// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package scenario loads and runs scripted fiber scheduling scenarios,
// described in YAML, used to exercise the scheduler end to end.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joeycumines/go-fiber"
	"github.com/joeycumines/go-fiber/cpu"
	"gopkg.in/yaml.v3"
)

// Step operations.
const (
	OpYield   = `yield`
	OpSuspend = `suspend`
	OpWake    = `wake`
	OpCancel  = `cancel`
	OpRaise   = `raise`
	OpLog     = `log`
	OpDrain   = `drain`
)

const (
	// MainName refers to the main fiber.
	MainName = `main`
	// SelfName refers to the fiber running the step.
	SelfName = `self`

	// DefaultStackSize is used if Scenario.StackSize is unset.
	DefaultStackSize = 256
)

// ErrInvalid is returned for scenarios that fail validation.
var ErrInvalid = errors.New(`scenario: invalid`)

type (
	// Scenario describes fibers, the steps they run, and the interrupts
	// that may wake (or cancel) them.
	Scenario struct {
		Name string `yaml:"name"`
		// StackSize is the storage size of each fiber, in bytes.
		StackSize  int         `yaml:"stack_size"`
		Main       []Step      `yaml:"main"`
		Fibers     []Fiber     `yaml:"fibers"`
		Interrupts []Interrupt `yaml:"interrupts"`
		Timers     []Timer     `yaml:"timers"`
		Signals    []Signal    `yaml:"signals"`
	}

	// Fiber is a fiber, created in order, before the main steps run.
	Fiber struct {
		Name  string `yaml:"name"`
		Steps []Step `yaml:"steps"`
	}

	// Interrupt attaches a handler to a line, which wakes then cancels the
	// named fibers.
	Interrupt struct {
		Line   cpu.Line `yaml:"line"`
		Wake   []string `yaml:"wake"`
		Cancel []string `yaml:"cancel"`
	}

	// Timer raises a line once, after a delay.
	Timer struct {
		Line  cpu.Line      `yaml:"line"`
		After time.Duration `yaml:"after"`
	}

	// Signal routes a process signal, e.g. SIGUSR1, to a line.
	Signal struct {
		Line   cpu.Line `yaml:"line"`
		Signal string   `yaml:"signal"`
	}

	// Step is a single operation. In YAML, it's either the bare operation,
	// e.g. "yield", or a single-key mapping from operation to argument, e.g.
	// "wake: a".
	Step struct {
		Op      string
		Target  string
		Message string
		Count   int
		Line    cpu.Line
	}
)

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes and validates a scenario. Unknown fields are rejected.
func Parse(b []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf(`%w: %w`, ErrInvalid, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (x *Step) UnmarshalYAML(value *yaml.Node) error {
	*x = Step{}
	switch value.Kind {
	case yaml.ScalarNode:
		x.Op = value.Value
		return nil
	case yaml.MappingNode:
	default:
		return fmt.Errorf(`line %d: step must be a string or mapping`, value.Line)
	}

	if len(value.Content) != 2 {
		return fmt.Errorf(`line %d: step must have exactly one operation`, value.Line)
	}
	x.Op = value.Content[0].Value
	arg := value.Content[1]

	switch x.Op {
	case OpYield:
		return arg.Decode(&x.Count)
	case OpWake, OpCancel:
		return arg.Decode(&x.Target)
	case OpLog:
		return arg.Decode(&x.Message)
	case OpRaise:
		return arg.Decode(&x.Line)
	default:
		return fmt.Errorf(`line %d: operation %q takes no argument`, value.Line, x.Op)
	}
}

func (x Step) String() string {
	switch x.Op {
	case OpYield:
		if x.Count > 1 {
			return x.Op + ` ` + strconv.Itoa(x.Count)
		}
	case OpWake, OpCancel:
		return x.Op + ` ` + x.target()
	case OpLog:
		return x.Op + ` ` + strconv.Quote(x.Message)
	case OpRaise:
		return x.Op + ` ` + strconv.Itoa(int(x.Line))
	}
	return x.Op
}

func (x Step) target() string {
	if x.Target == `` {
		return SelfName
	}
	return x.Target
}

func (x *Scenario) stackSize() int {
	if x.StackSize == 0 {
		return DefaultStackSize
	}
	return x.StackSize
}

// Validate checks the scenario is well-formed, and that it can't trivially
// prevent the main steps from completing.
func (x *Scenario) Validate() error {
	if size := fiber.HeaderSize + fiber.DefaultMinStackSize; x.StackSize != 0 && x.StackSize < size {
		return fmt.Errorf(`%w: stack_size must be at least %d`, ErrInvalid, size)
	}

	names := map[string]bool{MainName: true}
	for i, f := range x.Fibers {
		switch {
		case f.Name == ``:
			return fmt.Errorf(`%w: fibers[%d]: missing name`, ErrInvalid, i)
		case f.Name == SelfName || names[f.Name]:
			return fmt.Errorf(`%w: fibers[%d]: invalid or duplicate name %q`, ErrInvalid, i, f.Name)
		}
		names[f.Name] = true
	}

	checkSteps := func(owner string, steps []Step) error {
		for i, step := range steps {
			if err := x.checkStep(names, owner, step); err != nil {
				return fmt.Errorf(`%w: %s: steps[%d]: %w`, ErrInvalid, owner, i, err)
			}
		}
		return nil
	}
	if err := checkSteps(MainName, x.Main); err != nil {
		return err
	}
	for _, f := range x.Fibers {
		if err := checkSteps(f.Name, f.Steps); err != nil {
			return err
		}
	}

	for i, irq := range x.Interrupts {
		if irq.Line >= cpu.MaxLines {
			return fmt.Errorf(`%w: interrupts[%d]: line %d out of range`, ErrInvalid, i, irq.Line)
		}
		for _, name := range irq.Wake {
			if !names[name] {
				return fmt.Errorf(`%w: interrupts[%d]: unknown fiber %q`, ErrInvalid, i, name)
			}
		}
		for _, name := range irq.Cancel {
			if !names[name] || name == MainName {
				return fmt.Errorf(`%w: interrupts[%d]: cannot cancel %q`, ErrInvalid, i, name)
			}
		}
	}

	for i, t := range x.Timers {
		if t.Line >= cpu.MaxLines {
			return fmt.Errorf(`%w: timers[%d]: line %d out of range`, ErrInvalid, i, t.Line)
		}
		if t.After <= 0 {
			return fmt.Errorf(`%w: timers[%d]: after must be positive`, ErrInvalid, i)
		}
	}

	for i, s := range x.Signals {
		if s.Line >= cpu.MaxLines {
			return fmt.Errorf(`%w: signals[%d]: line %d out of range`, ErrInvalid, i, s.Line)
		}
		if _, err := cpu.ParseSignal(s.Signal); err != nil {
			return fmt.Errorf(`%w: signals[%d]: %w`, ErrInvalid, i, err)
		}
	}

	return nil
}

func (x *Scenario) checkStep(names map[string]bool, owner string, step Step) error {
	switch step.Op {
	case OpYield:
		if step.Count < 0 {
			return errors.New(`negative yield count`)
		}
	case OpSuspend, OpDrain, OpLog:
	case OpWake:
		if step.Target != `` && step.Target != SelfName && !names[step.Target] {
			return fmt.Errorf(`unknown fiber %q`, step.Target)
		}
	case OpCancel:
		target := step.target()
		if target == SelfName {
			target = owner
		}
		if target == MainName {
			return errors.New(`cannot cancel main`)
		}
		if !names[target] {
			return fmt.Errorf(`unknown fiber %q`, step.Target)
		}
	case OpRaise:
		if step.Line >= cpu.MaxLines {
			return fmt.Errorf(`line %d out of range`, step.Line)
		}
	default:
		return fmt.Errorf(`unknown operation %q`, step.Op)
	}
	return nil
}
