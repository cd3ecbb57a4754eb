package kobj

import (
	"nova/kernel"
	"nova/kernel/sched"
)

// ErrNoEC is returned when creating a portal without a target context.
var ErrNoEC = &kernel.Error{Module: "kobj", Message: "portal requires a target execution context"}

// Portal is a protected call gate bound to an execution context and an
// instruction pointer. Both are fixed at creation.
type Portal struct {
	Header

	pool   *Pool[Portal]
	handle Handle

	ec *sched.EC
	ip uintptr
}

// NewPortal allocates a portal from pool that enters ec at ip.
func NewPortal(pool *Pool[Portal], owner Object, ec *sched.EC, ip uintptr) (*Portal, *kernel.Error) {
	if ec == nil {
		return nil, ErrNoEC
	}

	handle, pt, err := pool.Alloc()
	if err != nil {
		return nil, err
	}

	pt.pool = pool
	pt.handle = handle
	pt.ec = ec
	pt.ip = ip
	pt.Header.Init(TypePortal, owner)
	return pt, nil
}

// Handle returns the pool handle of this portal.
func (pt *Portal) Handle() Handle { return pt.handle }

// EC returns the target execution context.
func (pt *Portal) EC() *sched.EC { return pt.ec }

// IP returns the entry instruction pointer.
func (pt *Portal) IP() uintptr { return pt.ip }

// Call transfers control from caller to the portal's context through d.
func (pt *Portal) Call(d sched.Dispatcher, caller *sched.EC, arg uint64) (uint64, *kernel.Error) {
	return d.Call(caller, pt.ec, pt.ip, arg)
}

// Destroy returns the portal to its pool. Handles and capabilities to it
// become stale.
func (pt *Portal) Destroy() *kernel.Error {
	if pt.pool == nil {
		return ErrStaleHandle
	}

	if !pt.retire() {
		return ErrStaleHandle
	}
	return pt.pool.Free(pt.handle)
}
