// Package sched defines the execution contexts that kernel objects suspend
// and resume, and the cooperative scheduler that implements the suspension
// contract on top of goroutines.
package sched

import "sync/atomic"

// State describes what an execution context is currently doing.
type State uint32

// Execution context states.
const (
	Running State = iota
	Parked
	Runnable
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Parked:
		return "parked"
	case Runnable:
		return "runnable"
	default:
		return "unknown"
	}
}

// Handler is the code run by an execution context when it is the target of
// a portal call. ip selects the entry point.
type Handler func(ip uintptr, arg uint64) uint64

// nextECID hands out execution context ids.
var nextECID uint64

// EC is an execution context. Each EC is driven by exactly one goroutine.
type EC struct {
	id      uint64
	prio    uint8
	state   uint32
	inCall  uint32
	handler Handler

	// wake holds at most one pending wake-up so that a release that
	// races ahead of the matching park is not lost.
	wake chan struct{}
}

// NewEC creates a running execution context with the given priority. The
// handler may be nil for contexts that never serve portal calls.
func NewEC(prio uint8, handler Handler) *EC {
	return &EC{
		id:      atomic.AddUint64(&nextECID, 1),
		prio:    prio,
		handler: handler,
		wake:    make(chan struct{}, 1),
	}
}

// ID returns the unique id of this context.
func (ec *EC) ID() uint64 { return ec.id }

// Prio returns the priority of this context.
func (ec *EC) Prio() uint8 { return ec.prio }

// State returns the current state of this context.
func (ec *EC) State() State {
	return State(atomic.LoadUint32(&ec.state))
}

func (ec *EC) setState(s State) {
	atomic.StoreUint32(&ec.state, uint32(s))
}
