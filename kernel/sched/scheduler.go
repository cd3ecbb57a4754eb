package sched

import (
	"nova/kernel"
	"sync/atomic"
)

var (
	// ErrNoHandler is returned when the target of a call has no handler.
	ErrNoHandler = &kernel.Error{Module: "sched", Message: "execution context has no call handler"}

	// ErrBusy is returned when the target of a call is already serving
	// another call.
	ErrBusy = &kernel.Error{Module: "sched", Message: "execution context is busy"}
)

// Scheduler is the suspension contract required by blocking kernel objects.
type Scheduler interface {
	// Park suspends ec, which must be the calling context, until a
	// matching Release.
	Park(ec *EC)

	// Release makes a parked (or about to park) ec runnable again.
	Release(ec *EC)

	// NewQueue returns an empty wait queue ordered by the scheduler's
	// policy.
	NewQueue() Queue
}

// Dispatcher transfers control from a caller to the handler of a callee
// through a portal.
type Dispatcher interface {
	Call(caller, callee *EC, ip uintptr, arg uint64) (uint64, *kernel.Error)
}

// Policy selects the wait queue discipline.
type Policy uint8

// Supported wait queue policies.
const (
	PolicyFIFO Policy = iota
	PolicyPriority
)

// Cooperative is a Scheduler and Dispatcher where every EC runs on its own
// goroutine and parks by blocking on its wake channel.
type Cooperative struct {
	policy Policy
}

// NewCooperative returns a scheduler that orders waiters by policy.
func NewCooperative(policy Policy) *Cooperative {
	return &Cooperative{policy: policy}
}

// Park implements Scheduler.
func (s *Cooperative) Park(ec *EC) {
	// The CAS fails if a release already made ec runnable; the pending
	// wake token is consumed below either way.
	atomic.CompareAndSwapUint32(&ec.state, uint32(Running), uint32(Parked))
	<-ec.wake
	ec.setState(Running)
}

// Release implements Scheduler.
func (s *Cooperative) Release(ec *EC) {
	ec.setState(Runnable)
	select {
	case ec.wake <- struct{}{}:
	default:
	}
}

// NewQueue implements Scheduler.
func (s *Cooperative) NewQueue() Queue {
	if s.policy == PolicyPriority {
		return new(PrioQueue)
	}
	return new(FIFOQueue)
}

// Call implements Dispatcher. The callee's handler runs on its own goroutine
// while the caller stays parked; the caller resumes with the handler's
// result.
func (s *Cooperative) Call(caller, callee *EC, ip uintptr, arg uint64) (uint64, *kernel.Error) {
	if callee.handler == nil {
		return 0, ErrNoHandler
	}

	if !atomic.CompareAndSwapUint32(&callee.inCall, 0, 1) {
		return 0, ErrBusy
	}

	var result uint64
	go func() {
		callee.setState(Running)
		result = callee.handler(ip, arg)
		callee.setState(Parked)
		atomic.StoreUint32(&callee.inCall, 0)
		s.Release(caller)
	}()

	s.Park(caller)
	return result, nil
}
