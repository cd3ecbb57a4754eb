package kobj

import (
	"nova/kernel"
	"nova/kernel/sync"
)

var (
	// ErrPoolExhausted is returned when a pool has no free slots.
	ErrPoolExhausted = &kernel.Error{Module: "kobj", Message: "object pool exhausted"}

	// ErrStaleHandle is returned for handles whose object was freed or
	// that were never issued by the pool.
	ErrStaleHandle = &kernel.Error{Module: "kobj", Message: "stale object handle"}
)

// Handle refers to a pool slot. The generation changes each time the slot is
// freed so handles to destroyed objects are detected.
type Handle struct {
	index uint32
	gen   uint32
}

type poolSlot[T any] struct {
	gen  uint32
	used bool
	val  T
}

// Pool is a fixed capacity store of objects of type T. Objects never move,
// so pointers returned by Alloc and Get stay valid until the slot is freed.
type Pool[T any] struct {
	lock  sync.Spinlock
	slots []poolSlot[T]
	free  []uint32
}

// NewPool returns a pool with room for capacity objects.
func NewPool[T any](capacity int) *Pool[T] {
	p := &Pool[T]{
		slots: make([]poolSlot[T], capacity),
		free:  make([]uint32, capacity),
	}

	// pop order hands out the lowest index first
	for i := range p.free {
		p.free[i] = uint32(capacity - 1 - i)
		p.slots[i].gen = 1
	}
	return p
}

// Alloc reserves a zeroed slot.
func (p *Pool[T]) Alloc() (Handle, *T, *kernel.Error) {
	p.lock.Acquire()
	defer p.lock.Release()

	if len(p.free) == 0 {
		return Handle{}, nil, ErrPoolExhausted
	}

	index := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	slot := &p.slots[index]
	slot.used = true
	return Handle{index: index, gen: slot.gen}, &slot.val, nil
}

// Get returns the object referred to by h.
func (p *Pool[T]) Get(h Handle) (*T, *kernel.Error) {
	p.lock.Acquire()
	defer p.lock.Release()

	slot := p.lookup(h)
	if slot == nil {
		return nil, ErrStaleHandle
	}
	return &slot.val, nil
}

// Free releases the slot referred to by h and invalidates all handles to it.
func (p *Pool[T]) Free(h Handle) *kernel.Error {
	p.lock.Acquire()
	defer p.lock.Release()

	slot := p.lookup(h)
	if slot == nil {
		return ErrStaleHandle
	}

	var zero T
	slot.val = zero
	slot.used = false
	if slot.gen++; slot.gen == 0 {
		slot.gen = 1
	}
	p.free = append(p.free, h.index)
	return nil
}

func (p *Pool[T]) lookup(h Handle) *poolSlot[T] {
	if int(h.index) >= len(p.slots) {
		return nil
	}

	slot := &p.slots[h.index]
	if !slot.used || slot.gen != h.gen {
		return nil
	}
	return slot
}

// Len returns the number of allocated objects.
func (p *Pool[T]) Len() int {
	p.lock.Acquire()
	defer p.lock.Release()
	return len(p.slots) - len(p.free)
}

// Cap returns the pool capacity.
func (p *Pool[T]) Cap() int {
	return len(p.slots)
}
