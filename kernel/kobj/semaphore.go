package kobj

import (
	"nova/kernel"
	"nova/kernel/sched"
	"nova/kernel/sync"
)

// ErrWaitersPresent is returned when destroying a semaphore that still has
// blocked waiters.
var ErrWaitersPresent = &kernel.Error{Module: "kobj", Message: "semaphore has blocked waiters"}

// Semaphore is a counting semaphore. Down blocks the calling execution
// context while the counter is zero; Up releases one waiter or increments
// the counter.
type Semaphore struct {
	Header

	pool   *Pool[Semaphore]
	handle Handle

	lock    sync.Spinlock
	counter uint64
	waiters sched.Queue
	sched   sched.Scheduler
}

// NewSemaphore allocates a semaphore from pool with the given initial counter.
func NewSemaphore(pool *Pool[Semaphore], owner Object, counter uint64, s sched.Scheduler) (*Semaphore, *kernel.Error) {
	handle, sm, err := pool.Alloc()
	if err != nil {
		return nil, err
	}

	sm.pool = pool
	sm.handle = handle
	sm.counter = counter
	sm.sched = s
	sm.waiters = s.NewQueue()
	sm.Header.Init(TypeSemaphore, owner)
	return sm, nil
}

// Handle returns the pool handle of this semaphore.
func (sm *Semaphore) Handle() Handle { return sm.handle }

// Up releases the first waiter or, if nobody is waiting, increments the
// counter.
func (sm *Semaphore) Up() {
	sm.lock.Acquire()
	if ec := sm.waiters.Pop(); ec != nil {
		sm.lock.Release()
		sm.sched.Release(ec)
		return
	}

	sm.counter++
	sm.lock.Release()
}

// Down decrements the counter or, if it is zero, parks ec until a matching
// Up. ec must be the calling execution context.
func (sm *Semaphore) Down(ec *sched.EC) {
	sm.lock.Acquire()
	if sm.counter > 0 {
		sm.counter--
		sm.lock.Release()
		return
	}

	sm.waiters.Push(ec)
	sm.lock.Release()
	sm.sched.Park(ec)
}

// Counter returns the current counter value.
func (sm *Semaphore) Counter() uint64 {
	sm.lock.Acquire()
	defer sm.lock.Release()
	return sm.counter
}

// Waiters returns the number of blocked execution contexts.
func (sm *Semaphore) Waiters() int {
	sm.lock.Acquire()
	defer sm.lock.Release()
	return sm.waiters.Len()
}

// Destroy returns the semaphore to its pool. Handles and capabilities to it
// become stale.
func (sm *Semaphore) Destroy() *kernel.Error {
	if sm.pool == nil {
		return ErrStaleHandle
	}

	if sm.Waiters() != 0 {
		return ErrWaitersPresent
	}

	if !sm.retire() {
		return ErrStaleHandle
	}
	return sm.pool.Free(sm.handle)
}
