// Package vmm implements the translation-table engine: descriptor encoding,
// translation roots, structural walks, mapping, cross-root sharing and
// translation cache maintenance.
package vmm

import (
	"nova/kernel"
	"nova/kernel/cpu"
	"nova/kernel/mm"
	"sync/atomic"
)

var (
	// ErrNoMemory is returned when a table node cannot be allocated.
	ErrNoMemory = &kernel.Error{Module: "vmm", Message: "out of memory for translation tables"}

	// ErrInvalidMapping is returned when an address has no translation.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrMisaligned is returned for block mappings whose virtual or
	// physical address is not aligned to the block size.
	ErrMisaligned = &kernel.Error{Module: "vmm", Message: "block mapping is not aligned to its size"}

	// ErrBadLevel is returned when a leaf is requested at a level that
	// cannot hold one.
	ErrBadLevel = &kernel.Error{Module: "vmm", Message: "leaf descriptors are not supported at this level"}

	// ErrBlockInPath is returned when a walk runs into a block descriptor
	// above the requested level.
	ErrBlockInPath = &kernel.Error{Module: "vmm", Message: "address is covered by a block mapping"}

	// ErrReadOnly is returned by WriteAt for mappings without PermW.
	ErrReadOnly = &kernel.Error{Module: "vmm", Message: "mapping is read-only"}

	// flushTLBEntryFn is used by tests to observe page invalidations.
	flushTLBEntryFn = func(tlb *cpu.TLB, tag cpu.Tag, v uintptr) { tlb.InvalidatePage(tag, v) }

	// nextTag hands out translation cache tags for new roots. It is 64 bits
	// wide and never wraps, so live roots never share a tag.
	nextTag uint64
)

// maxBlockLevel is the highest level that can hold a block descriptor.
const maxBlockLevel = 2

// Root is a translation root: the top-level table of a radix tree of table
// nodes. Each root may be attached to the translation cache of the CPU that
// uses it.
type Root struct {
	alloc Allocator
	phys  uintptr
	tag   cpu.Tag
	tlb   *cpu.TLB
}

// NewRoot allocates an empty top-level table. Entries produced by the root are
// cached in tlb, which may be nil.
func NewRoot(alloc Allocator, tlb *cpu.TLB) (*Root, *kernel.Error) {
	phys, err := alloc.AllocTable()
	if err != nil {
		return nil, err
	}

	r := &Root{
		alloc: alloc,
		phys:  phys,
		tag:   cpu.Tag(atomic.AddUint64(&nextTag, 1)),
		tlb:   tlb,
	}

	tlb.FlushTag(r.tag)
	return r, nil
}

// Phys returns the physical address of the top-level table.
func (r *Root) Phys() uintptr { return r.phys }

// Tag returns the translation cache tag of this root.
func (r *Root) Tag() cpu.Tag { return r.tag }

// TLB returns the translation cache attached to this root.
func (r *Root) TLB() *cpu.TLB { return r.tlb }

// Walk returns the descriptor slot that translates v at the given level. When
// alloc is true, missing intermediate tables are created; otherwise Walk
// returns nil if any of them is missing. Walk also returns nil if v is covered
// by a block mapping above the requested level.
func (r *Root) Walk(v uintptr, level uint, alloc bool) *PTE {
	pte, _ := r.walk(v, level, alloc)
	return pte
}

func (r *Root) walk(v uintptr, level uint, alloc bool) (*PTE, *kernel.Error) {
	if level >= Levels {
		return nil, ErrBadLevel
	}

	table := r.alloc.TableAt(r.phys)
	for l := uint(Levels - 1); ; l-- {
		pte := &table[tableIndex(v, l)]
		if l == level {
			return pte, nil
		}

		e := pte.Load()
		if !e.Valid() {
			if !alloc {
				return nil, ErrInvalidMapping
			}

			phys, err := r.alloc.AllocTable()
			if err != nil {
				return nil, err
			}

			// Another CPU may install the same node concurrently; the
			// loser returns its node and follows the winner's.
			if !pte.CompareAndSwap(e, MakeTable(phys)) {
				r.alloc.FreeTable(phys)
			}
			e = pte.Load()
		}

		if !e.IsTable(l) {
			return nil, ErrBlockInPath
		}

		table = r.alloc.TableAt(e.Addr())
	}
}

// Map maps count consecutive 4 KiB pages starting at v to the frames starting
// at phys. Both addresses are rounded down to the granule. A zero perm clears
// the mappings. Map returns v with the page offset of phys applied.
func (r *Root) Map(v, phys uintptr, perm Perm, attr Attr, count uintptr) (uintptr, *kernel.Error) {
	return r.MapLevel(v, phys, 0, perm, attr, count)
}

// MapLevel maps count consecutive entries of the given level starting at v.
// Level 0 installs page descriptors; levels 1 and 2 install block
// descriptors whose addresses must be aligned to the block size.
func (r *Root) MapLevel(v, phys uintptr, level uint, perm Perm, attr Attr, count uintptr) (uintptr, *kernel.Error) {
	if level > maxBlockLevel {
		return 0, ErrBadLevel
	}

	size := LevelSize(level)
	offset := phys & (size - 1)
	if level == 0 {
		v &^= size - 1
		phys &^= size - 1
	} else if (v|phys)&(size-1) != 0 {
		return 0, ErrMisaligned
	}

	for i := uintptr(0); i < count; i++ {
		va := v + i*size
		pte, err := r.walk(va, level, true)
		if err != nil {
			return 0, err
		}

		pte.Store(MakeLeaf(phys+i*size, level, perm, attr))
		if level == 0 {
			flushTLBEntryFn(r.tlb, r.tag, va)
		}
	}

	if level > 0 && count > 0 {
		r.Flush()
	}

	return v | offset, nil
}

// Unmap clears count consecutive page mappings starting at v. Pages that are
// not mapped are skipped.
func (r *Root) Unmap(v uintptr, count uintptr) {
	v &^= mm.PageSize - 1
	for i := uintptr(0); i < count; i++ {
		va := v + i*mm.PageSize
		if pte, _ := r.walk(va, 0, false); pte != nil {
			pte.Store(0)
		}
		flushTLBEntryFn(r.tlb, r.tag, va)
	}
}

// Translation describes the result of a successful lookup.
type Translation struct {
	// Phys is the physical address v translates to.
	Phys uintptr

	// Perm and Attr are the rights and memory type of the mapping.
	Perm Perm
	Attr Attr

	// Level is the level of the leaf descriptor that produced the
	// translation.
	Level uint
}

// Lookup walks the tree and returns the translation for v.
func (r *Root) Lookup(v uintptr) (Translation, *kernel.Error) {
	table := r.alloc.TableAt(r.phys)
	for l := uint(Levels - 1); ; l-- {
		e := table[tableIndex(v, l)].Load()
		switch {
		case !e.Valid():
			return Translation{}, ErrInvalidMapping
		case e.IsTable(l):
			table = r.alloc.TableAt(e.Addr())
			continue
		}

		return Translation{
			Phys:  e.Addr() | (v & (LevelSize(l) - 1)),
			Perm:  e.Perm(),
			Attr:  e.Attr(),
			Level: l,
		}, nil
	}
}

// Translate returns the translation for v as seen by the CPU that owns this
// root: a cached translation is used if present; otherwise the tree is walked
// and the result cached as a page descriptor. Stale cache entries are
// returned until the address is invalidated.
func (r *Root) Translate(v uintptr) (uintptr, Perm, *kernel.Error) {
	if cached, ok := r.tlb.Lookup(r.tag, v); ok {
		e := Entry(cached)
		return e.Addr() | mm.PageOffset(v), e.Perm(), nil
	}

	t, err := r.Lookup(v)
	if err != nil {
		return 0, 0, err
	}

	r.tlb.Fill(r.tag, v, uint64(MakeLeaf(t.Phys, 0, t.Perm, t.Attr)))
	return t.Phys, t.Perm, nil
}

// Invalidate drops the cached translation for the page containing v.
func (r *Root) Invalidate(v uintptr) {
	flushTLBEntryFn(r.tlb, r.tag, v)
}

// Flush drops every cached translation produced by this root.
func (r *Root) Flush() {
	r.tlb.FlushTag(r.tag)
}
