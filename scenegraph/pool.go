// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scenegraph

import "fmt"

// Pool is an arena of T indexed by handles of type H. Releasing a handle
// frees its slot without compacting; slots are reused only when a caller
// allocates that handle explicitly or asks for the first free one.
type Pool[H ~uint32, T any] struct {
	items     []T
	allocated []bool
	live      int
}

// Reserve grows the pool to at least n slots.
func (p *Pool[H, T]) Reserve(n uint32) {
	if int(n) <= len(p.items) {
		return
	}
	p.items = append(p.items, make([]T, int(n)-len(p.items))...)
	p.allocated = append(p.allocated, make([]bool, int(n)-len(p.allocated))...)
}

// Allocate stores v under h and returns h. An invalid h picks the first
// free slot. Allocating a live handle panics.
func (p *Pool[H, T]) Allocate(h H, v T) H {
	if uint32(h) == InvalidHandle {
		h = p.firstFree()
	}
	p.Reserve(uint32(h) + 1)
	if p.allocated[h] {
		panic(fmt.Sprintf("scenegraph: handle %d already allocated", h))
	}
	p.items[h] = v
	p.allocated[h] = true
	p.live++
	return h
}

func (p *Pool[H, T]) firstFree() H {
	for i, a := range p.allocated {
		if !a {
			return H(i)
		}
	}
	return H(len(p.allocated))
}

// Release frees h. Releasing a free handle panics.
func (p *Pool[H, T]) Release(h H) {
	if !p.IsAllocated(h) {
		panic(fmt.Sprintf("scenegraph: release of unallocated handle %d", h))
	}
	var zero T
	p.items[h] = zero
	p.allocated[h] = false
	p.live--
}

// IsAllocated reports whether h refers to a live slot.
func (p *Pool[H, T]) IsAllocated(h H) bool {
	return int(h) < len(p.allocated) && p.allocated[h]
}

// Get returns the value stored under h. Reading a free handle panics.
func (p *Pool[H, T]) Get(h H) *T {
	if !p.IsAllocated(h) {
		panic(fmt.Sprintf("scenegraph: read of unallocated handle %d", h))
	}
	return &p.items[h]
}

// Len returns the number of slots, allocated or not.
func (p *Pool[H, T]) Len() uint32 { return uint32(len(p.items)) }

// Live returns the number of allocated slots.
func (p *Pool[H, T]) Live() int { return p.live }

// Each calls fn for every allocated slot in handle order.
func (p *Pool[H, T]) Each(fn func(H, *T)) {
	for i := range p.items {
		if p.allocated[i] {
			fn(H(i), &p.items[i])
		}
	}
}
