// Package space implements the address spaces of the hypervisor: the host
// memory spaces composed from per-CPU translation roots and the object spaces
// holding capabilities.
package space

import (
	"nova/kernel"
	"nova/kernel/kobj"
	"nova/kernel/sync"
	"sort"
)

// ErrBadRange is returned for ranges that wrap around or exceed the space
// limit.
var ErrBadRange = &kernel.Error{Module: "space", Message: "range outside of address space"}

// Range is a half-open address range [Base, End).
type Range struct {
	Base uintptr
	End  uintptr
}

// Space is the state shared by all address spaces: the object header and the
// overlay of physical ranges the space grants access to.
type Space struct {
	kobj.Header

	lock   sync.Spinlock
	limit  uintptr
	ranges []Range
}

func (s *Space) init(typ kobj.Type, owner kobj.Object, limit uintptr) {
	s.limit = limit
	s.Header.Init(typ, owner)
}

// Limit returns the first address past the end of the space.
func (s *Space) Limit() uintptr { return s.limit }

// UserAccess grants (enable) or revokes access to the range [base,
// base+size). The overlay is kept sorted with adjacent ranges merged.
func (s *Space) UserAccess(base, size uintptr, enable bool) *kernel.Error {
	end := base + size
	if end < base || end > s.limit {
		return ErrBadRange
	}

	if size == 0 {
		return nil
	}

	s.lock.Acquire()
	defer s.lock.Release()

	// Split every range around [base, end) and drop the overlap
	out := make([]Range, 0, len(s.ranges)+2)
	for _, r := range s.ranges {
		if r.End <= base || r.Base >= end {
			out = append(out, r)
			continue
		}
		if r.Base < base {
			out = append(out, Range{r.Base, base})
		}
		if r.End > end {
			out = append(out, Range{end, r.End})
		}
	}

	if enable {
		out = append(out, Range{base, end})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Base < out[j].Base })

	merged := out[:0]
	for _, r := range out {
		if n := len(merged); n > 0 && merged[n-1].End >= r.Base {
			if r.End > merged[n-1].End {
				merged[n-1].End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}

	s.ranges = merged
	return nil
}

// Accessible returns true if addr lies in a range granted by UserAccess.
func (s *Space) Accessible(addr uintptr) bool {
	s.lock.Acquire()
	defer s.lock.Release()

	i := sort.Search(len(s.ranges), func(i int) bool { return s.ranges[i].End > addr })
	return i < len(s.ranges) && s.ranges[i].Base <= addr
}

// Ranges returns a copy of the accessible ranges in ascending order.
func (s *Space) Ranges() []Range {
	s.lock.Acquire()
	defer s.lock.Release()
	return append([]Range(nil), s.ranges...)
}
