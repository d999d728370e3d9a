// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiber

import (
	"github.com/joeycumines/go-fiber/list"
)

// queue is one of the scheduler's FIFO run queues.
//
// Not thread-safe, the caller must have interrupts disabled.
type queue struct {
	list list.List[Fiber]
	name string
}

func (x *queue) init(name string) {
	x.list.Init()
	x.name = name
}

// push appends f, detaching it from any other queue.
func (x *queue) push(f *Fiber) { x.list.PushBack(&f.link) }

func (x *queue) len() int { return x.list.Len() }

// first returns the least-recently-inserted member, other than skip.
func (x *queue) first(skip *Fiber) *Fiber {
	for n := x.list.Front(); n != nil; n = n.Next() {
		if f := n.Value(); f != skip {
			return f
		}
	}
	return nil
}

func (x *queue) String() string {
	if x == nil {
		return `none`
	}
	return x.name
}
