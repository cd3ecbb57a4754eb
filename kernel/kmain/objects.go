package kmain

import (
	"nova/kernel"
	"nova/kernel/cap"
	"nova/kernel/kobj"
	"nova/kernel/sched"
	"nova/kernel/space"
)

// NewObjectSpace creates an object space owned by the canonical one.
func (sys *System) NewObjectSpace(size int) *space.ObjectSpace {
	return space.NewObjectSpace(sys.Env.Objects, size)
}

// CreateSemaphore creates a semaphore and installs a capability with every
// right at sel in obs. The semaphore is destroyed if the insert fails.
func (sys *System) CreateSemaphore(obs *space.ObjectSpace, sel uint64, counter uint64) (*kobj.Semaphore, *kernel.Error) {
	sm, err := kobj.NewSemaphore(sys.Semaphores, obs, counter, sys.Sched)
	if err != nil {
		return nil, err
	}

	if err = obs.Insert(sel, cap.New(sm, cap.PermAll), false); err != nil {
		_ = sm.Destroy()
		return nil, err
	}

	return sm, nil
}

// CreatePortal creates a portal that enters ec at ip and installs a
// capability with every right at sel in obs.
func (sys *System) CreatePortal(obs *space.ObjectSpace, sel uint64, ec *sched.EC, ip uintptr) (*kobj.Portal, *kernel.Error) {
	pt, err := kobj.NewPortal(sys.Portals, obs, ec, ip)
	if err != nil {
		return nil, err
	}

	if err = obs.Insert(sel, cap.New(pt, cap.PermAll), false); err != nil {
		_ = pt.Destroy()
		return nil, err
	}

	return pt, nil
}

// SemUp performs an up operation on the semaphore at sel.
func (sys *System) SemUp(obs *space.ObjectSpace, sel uint64) *kernel.Error {
	obj, err := obs.Resolve(sel, kobj.TypeSemaphore, cap.PermUp)
	if err != nil {
		return err
	}

	obj.(*kobj.Semaphore).Up()
	return nil
}

// SemDown performs a down operation on the semaphore at sel, parking ec if
// the counter is zero.
func (sys *System) SemDown(obs *space.ObjectSpace, sel uint64, ec *sched.EC) *kernel.Error {
	obj, err := obs.Resolve(sel, kobj.TypeSemaphore, cap.PermDown)
	if err != nil {
		return err
	}

	obj.(*kobj.Semaphore).Down(ec)
	return nil
}

// PortalCall invokes the portal at sel on behalf of caller.
func (sys *System) PortalCall(obs *space.ObjectSpace, sel uint64, caller *sched.EC, arg uint64) (uint64, *kernel.Error) {
	obj, err := obs.Resolve(sel, kobj.TypePortal, cap.PermCall)
	if err != nil {
		return 0, err
	}

	return obj.(*kobj.Portal).Call(sys.Sched, caller, arg)
}
