package vmm

import (
	"math/bits"
	"nova/kernel"
	"nova/kernel/mm"
)

var (
	// ErrShareSource is returned when the source root has no slot for the
	// shared window.
	ErrShareSource = &kernel.Error{Module: "vmm", Message: "source root does not cover the shared window"}

	// ErrShareUnchanged is returned when the destination already holds the
	// source descriptor.
	ErrShareUnchanged = &kernel.Error{Module: "vmm", Message: "destination already shares the window"}

	// ErrSyncMissing is raised (via panic) when a master synchronization
	// finds either side of the window missing.
	ErrSyncMissing = &kernel.Error{Module: "vmm", Message: "master window missing during synchronization"}
)

// ShareLevel returns the level at which the window containing v is copied
// when composing a root relative to boundary: the level whose entries cover
// the highest bit in which v differs from boundary.
func ShareLevel(v, boundary uintptr) uint {
	diff := v ^ boundary
	if diff < mm.PageSize {
		return 0
	}

	msb := uint(bits.Len64(uint64(diff)) - 1)
	level := (msb - uint(mm.PageShift)) / BitsPerLevel
	if level > Levels-1 {
		level = Levels - 1
	}
	return level
}

// ShareFrom copies the descriptor that translates v at ShareLevel(v,
// boundary) from src into r. The copy is by value: the destination receives
// its own descriptor that refers to the same next-level table or frame, and
// later changes to either root's slot do not affect the other. The copied
// descriptor is returned.
func (r *Root) ShareFrom(src *Root, v, boundary uintptr) (Entry, *kernel.Error) {
	return r.shareAt(src, v, ShareLevel(v, boundary))
}

// ShareFromMaster copies the master descriptor that translates v at level
// Levels-2.
func (r *Root) ShareFromMaster(master *Root, v uintptr) (Entry, *kernel.Error) {
	return r.shareAt(master, v, Levels-2)
}

func (r *Root) shareAt(src *Root, v uintptr, level uint) (Entry, *kernel.Error) {
	s, err := src.walk(v, level, false)
	if err != nil {
		return 0, ErrShareSource
	}

	d, err := r.walk(v, level, true)
	if err != nil {
		return 0, ErrNoMemory
	}

	e := s.Load()
	if d.Load() == e {
		return e, ErrShareUnchanged
	}

	d.Store(e)
	r.Flush()
	return e, nil
}

// SyncFromMaster overwrites the descriptor that translates v at level
// Levels-2 with the master's. It never allocates: both roots must already
// contain the window. A missing window is unrecoverable and raises a panic
// with ErrSyncMissing.
func (r *Root) SyncFromMaster(master *Root, v uintptr) {
	s, _ := master.walk(v, Levels-2, false)
	d, _ := r.walk(v, Levels-2, false)
	if s == nil || d == nil {
		panic(ErrSyncMissing)
	}

	d.Store(s.Load())
	r.Flush()
}
