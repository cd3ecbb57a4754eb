package space

import (
	"nova/kernel"
	"nova/kernel/cap"
	"nova/kernel/kobj"
	"sync/atomic"
)

// Well-known selectors. Boot code and its collaborators rely on these values.
const (
	// SelObjSpace holds the object space's capability to itself.
	SelObjSpace = 0

	// SelHostSpace holds the capability to the hypervisor's host memory
	// space.
	SelHostSpace = 1
)

var (
	// ErrBadSelector is returned for selectors outside the object space.
	ErrBadSelector = &kernel.Error{Module: "space", Message: "selector out of range"}

	// ErrSlotOccupied is returned when inserting into a used slot without
	// override.
	ErrSlotOccupied = &kernel.Error{Module: "space", Message: "capability slot occupied"}

	// ErrSlotEmpty is returned when a selector holds no capability.
	ErrSlotEmpty = &kernel.Error{Module: "space", Message: "capability slot empty"}

	// ErrNullInsert is returned when inserting the null capability.
	ErrNullInsert = &kernel.Error{Module: "space", Message: "cannot insert a null capability"}

	// ErrNoDelegate is returned when delegating from a capability without
	// the delegate right.
	ErrNoDelegate = &kernel.Error{Module: "space", Message: "capability does not permit delegation"}

	// ErrWrongType is returned when a selector refers to an object of an
	// unexpected type.
	ErrWrongType = &kernel.Error{Module: "space", Message: "capability refers to an object of a different type"}

	// ErrPermission is returned when a capability lacks a required right.
	ErrPermission = &kernel.Error{Module: "space", Message: "capability lacks the required permission"}
)

// ObjectSpace is a table of capability slots addressed by selector. Each slot
// is updated with a single atomic operation so concurrent inserts into the
// same slot never interleave.
type ObjectSpace struct {
	kobj.Header

	slots []atomic.Pointer[cap.Capability]
}

// NewObjectSpace returns an object space with size slots.
func NewObjectSpace(owner kobj.Object, size int) *ObjectSpace {
	obs := &ObjectSpace{
		slots: make([]atomic.Pointer[cap.Capability], size),
	}
	obs.Header.Init(kobj.TypeObjSpace, owner)
	return obs
}

// Size returns the number of slots.
func (obs *ObjectSpace) Size() int { return len(obs.slots) }

func (obs *ObjectSpace) slot(sel uint64) *atomic.Pointer[cap.Capability] {
	if sel >= uint64(len(obs.slots)) {
		return nil
	}
	return &obs.slots[sel]
}

// Insert stores c at sel. An occupied slot is only replaced when override is
// set.
func (obs *ObjectSpace) Insert(sel uint64, c cap.Capability, override bool) *kernel.Error {
	slot := obs.slot(sel)
	if slot == nil {
		return ErrBadSelector
	}

	if c.Null() {
		return ErrNullInsert
	}

	if override {
		slot.Store(&c)
		return nil
	}

	if !slot.CompareAndSwap(nil, &c) {
		return ErrSlotOccupied
	}
	return nil
}

// Lookup returns the capability stored at sel. The returned value is a copy;
// changing it does not affect the slot.
func (obs *ObjectSpace) Lookup(sel uint64) (cap.Capability, bool) {
	slot := obs.slot(sel)
	if slot == nil {
		return cap.Capability{}, false
	}

	c := slot.Load()
	if c == nil {
		return cap.Capability{}, false
	}
	return *c, true
}

// Remove clears the slot at sel and returns the capability it held.
func (obs *ObjectSpace) Remove(sel uint64) (cap.Capability, *kernel.Error) {
	slot := obs.slot(sel)
	if slot == nil {
		return cap.Capability{}, ErrBadSelector
	}

	c := slot.Swap(nil)
	if c == nil {
		return cap.Capability{}, ErrSlotEmpty
	}
	return *c, nil
}

// Delegate derives a capability restricted to mask from the one at srcSel
// and inserts it at dstSel in dst. The source must hold the delegate right.
func (obs *ObjectSpace) Delegate(dst *ObjectSpace, srcSel, dstSel uint64, mask cap.Perm, override bool) *kernel.Error {
	src, ok := obs.Lookup(srcSel)
	if !ok {
		if obs.slot(srcSel) == nil {
			return ErrBadSelector
		}
		return ErrSlotEmpty
	}

	if !src.Has(cap.PermDelegate) {
		return ErrNoDelegate
	}

	derived, err := cap.Derive(src, mask)
	if err != nil {
		return err
	}

	return dst.Insert(dstSel, derived, override)
}

// Resolve returns the object at sel after checking that it is still alive,
// that it has the expected type and that the capability grants perm.
func (obs *ObjectSpace) Resolve(sel uint64, typ kobj.Type, perm cap.Perm) (kobj.Object, *kernel.Error) {
	c, ok := obs.Lookup(sel)
	if !ok {
		if obs.slot(sel) == nil {
			return nil, ErrBadSelector
		}
		return nil, ErrSlotEmpty
	}

	if !c.Live() {
		return nil, cap.ErrStaleCapability
	}

	if c.Object().Type() != typ {
		return nil, ErrWrongType
	}

	if !c.Has(perm) {
		return nil, ErrPermission
	}

	return c.Object(), nil
}
