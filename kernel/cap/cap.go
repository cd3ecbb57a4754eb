// Package cap implements capabilities: unforgeable references to kernel
// objects paired with the rights the holder has over them.
package cap

import (
	"nova/kernel"
	"nova/kernel/kobj"
)

// Perm is a set of rights over a kernel object.
type Perm uint8

// Rights. The meaning of PermControl depends on the object type; PermCall
// applies to portals and PermUp/PermDown to semaphores.
const (
	PermDelegate Perm = 1 << iota
	PermControl
	PermCall
	PermUp
	PermDown

	PermAll = PermDelegate | PermControl | PermCall | PermUp | PermDown
)

var (
	// ErrEscalation is returned when a derivation asks for rights the
	// source does not hold.
	ErrEscalation = &kernel.Error{Module: "cap", Message: "derived permissions exceed the source capability"}

	// ErrNullCapability is returned when deriving from a capability that
	// refers to no object.
	ErrNullCapability = &kernel.Error{Module: "cap", Message: "null capability"}

	// ErrStaleCapability is returned when the referenced object has been
	// destroyed since the capability was created.
	ErrStaleCapability = &kernel.Error{Module: "cap", Message: "capability refers to a destroyed object"}
)

// Capability pairs an object with a permission mask. The zero value is the
// null capability. The object id is recorded at creation so a capability
// never resolves to a later object occupying the same storage.
type Capability struct {
	obj  kobj.Object
	id   uint64
	perm Perm
}

// New returns a capability to obj with the rights in perm. A nil object
// yields the null capability.
func New(obj kobj.Object, perm Perm) Capability {
	if obj == nil {
		return Capability{}
	}
	return Capability{obj: obj, id: obj.ID(), perm: perm & PermAll}
}

// Object returns the referenced object.
func (c Capability) Object() kobj.Object { return c.obj }

// Perm returns the rights of the capability.
func (c Capability) Perm() Perm { return c.perm }

// Null returns true if the capability refers to no object.
func (c Capability) Null() bool { return c.obj == nil }

// Live returns true if the referenced object is the one the capability was
// created for and has not been destroyed.
func (c Capability) Live() bool {
	return c.obj != nil && c.obj.ID() == c.id
}

// Has returns true if the capability grants all rights in p.
func (c Capability) Has(p Perm) bool {
	return !c.Null() && c.perm&p == p
}

// Derive returns a capability to the same object restricted to mask. The
// mask must be a subset of the source rights; derivation can only remove
// rights.
func Derive(src Capability, mask Perm) (Capability, *kernel.Error) {
	if src.Null() {
		return Capability{}, ErrNullCapability
	}

	if !src.Live() {
		return Capability{}, ErrStaleCapability
	}

	if mask&^src.perm != 0 {
		return Capability{}, ErrEscalation
	}

	return Capability{obj: src.obj, id: src.id, perm: mask}, nil
}
