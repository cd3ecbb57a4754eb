// Package kobj implements the kernel object model: type tags, unique ids,
// creation tracing, fixed-size object pools and the semaphore and portal
// objects.
package kobj

import (
	"io"
	"nova/kernel/kfmt"
	"nova/kernel/sync"
	"sync/atomic"
)

// Type identifies the kind of a kernel object.
type Type uint8

// Kernel object types.
const (
	TypeHostSpace Type = iota
	TypeObjSpace
	TypeSemaphore
	TypePortal
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case TypeHostSpace:
		return "host-space"
	case TypeObjSpace:
		return "obj-space"
	case TypeSemaphore:
		return "semaphore"
	case TypePortal:
		return "portal"
	default:
		return "unknown"
	}
}

// Object is implemented by every kernel object.
type Object interface {
	Type() Type
	ID() uint64

	// Owner returns the object that created this object or nil for
	// objects created at boot.
	Owner() Object
}

var (
	nextID uint64

	// traceEnabled toggles creation and destruction trace events.
	traceEnabled uint32

	// traceSink receives trace events. When nil, events go to the active
	// kfmt output sink. Guarded by traceLock.
	traceSink io.Writer
	traceLock sync.Spinlock
)

// EnableTrace turns object lifecycle tracing on or off.
func EnableTrace(on bool) {
	var v uint32
	if on {
		v = 1
	}
	atomic.StoreUint32(&traceEnabled, v)
}

// SetTraceSink redirects trace events to w. Passing nil restores the default
// kfmt sink.
func SetTraceSink(w io.Writer) {
	traceLock.Acquire()
	traceSink = w
	traceLock.Release()
}

func trace(event string, typ Type, id uint64) {
	if atomic.LoadUint32(&traceEnabled) == 0 {
		return
	}

	// Held across the write so events never interleave and a sink is not
	// written to after SetTraceSink replaced it.
	traceLock.Acquire()
	defer traceLock.Release()

	if traceSink != nil {
		kfmt.Fprintf(traceSink, "[kobj] %s %s id=%d\n", event, typ.String(), id)
		return
	}
	kfmt.Printf("[kobj] %s %s id=%d\n", event, typ.String(), id)
}

// Header holds the state shared by all kernel objects. It is meant to be
// embedded. The id is read and written atomically because capabilities
// compare it without holding any object lock.
type Header struct {
	typ   Type
	id    uint64
	owner Object
}

// Init assigns the object its type, owner and a process-unique id and emits
// a creation trace event.
func (h *Header) Init(typ Type, owner Object) {
	h.typ = typ
	h.owner = owner
	id := atomic.AddUint64(&nextID, 1)
	atomic.StoreUint64(&h.id, id)
	trace("create", typ, id)
}

// Type returns the object type.
func (h *Header) Type() Type { return h.typ }

// ID returns the object id or 0 once the object has been destroyed.
func (h *Header) ID() uint64 { return atomic.LoadUint64(&h.id) }

// Owner returns the object that created this object.
func (h *Header) Owner() Object { return h.owner }

// retire clears the object id so capabilities to the object stop resolving
// and emits a destruction trace event. It returns false if the object was
// already retired.
func (h *Header) retire() bool {
	id := atomic.LoadUint64(&h.id)
	if id == 0 || !atomic.CompareAndSwapUint64(&h.id, id, 0) {
		return false
	}

	trace("destroy", h.typ, id)
	return true
}
