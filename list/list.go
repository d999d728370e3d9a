// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package list implements an intrusive, circular, doubly-linked list.
//
// Unlike container/list, the links live inside the element (see Node), so
// inserting and removing never allocates, and a record can be moved between
// lists by handle, in O(1).
//
// Neither List nor Node are safe for concurrent use.
package list

import (
	"iter"
)

type (
	// Node is the intrusive link, intended to be embedded in (or be a field
	// of) the element type. A Node is a member of at most one List at a time.
	//
	// The zero value is a detached node, with no owner.
	Node[T any] struct {
		next, prev *Node[T]
		list       *List[T]
		owner      *T
	}

	// List is the head of a circular list of Node values.
	// Instances must be initialized using Init (or New) prior to use.
	List[T any] struct {
		root Node[T]
		len  int
	}
)

// New returns an initialized, empty list.
func New[T any]() *List[T] { return new(List[T]).Init() }

// Init initializes or clears x. Any nodes previously linked are NOT
// detached, meaning they must not be used with x afterwards.
func (x *List[T]) Init() *List[T] {
	x.root.next = &x.root
	x.root.prev = &x.root
	x.root.list = x
	x.len = 0
	return x
}

// Len returns the number of linked nodes, in O(1).
func (x *List[T]) Len() int { return x.len }

// Front returns the first node, or nil if the list is empty.
func (x *List[T]) Front() *Node[T] {
	if x.len == 0 {
		return nil
	}
	return x.root.next
}

// PushBack links n at the tail of x, first detaching it from any list it
// is currently a member of.
func (x *List[T]) PushBack(n *Node[T]) {
	if x.root.next == nil {
		panic(`list: uninitialized list`)
	}
	n.Remove()
	at := x.root.prev
	n.prev = at
	n.next = &x.root
	at.next = n
	x.root.prev = n
	n.list = x
	x.len++
}

// All iterates over the owners of each node, front to back. Removing the
// current node during iteration is supported.
func (x *List[T]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for n := x.Front(); n != nil; {
			next := n.Next()
			if !yield(n.owner) {
				return
			}
			n = next
		}
	}
}

// Init binds the node to its owning record, the value returned by Value.
func (n *Node[T]) Init(owner *T) *Node[T] {
	n.owner = owner
	return n
}

// Value returns the record this node was bound to, via Init.
func (n *Node[T]) Value() *T { return n.owner }

// List returns the list n is a member of, or nil.
func (n *Node[T]) List() *List[T] { return n.list }

// Next returns the following node, or nil if n is the last, or detached.
func (n *Node[T]) Next() *Node[T] {
	if n.list == nil || n.next == &n.list.root {
		return nil
	}
	return n.next
}

// Remove detaches n from its list, and re-initializes it. It's a no-op if
// n is already detached.
func (n *Node[T]) Remove() {
	if n.list == nil {
		return
	}
	n.prev.next = n.next
	n.next.prev = n.prev
	n.list.len--
	n.next = nil
	n.prev = nil
	n.list = nil
}
