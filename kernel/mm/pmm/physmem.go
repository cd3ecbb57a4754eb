// Package pmm manages the physical RAM of the machine: the arena that backs
// the physical address range and the frame allocator that hands out 4 KiB
// frames from it.
package pmm

import (
	"nova/kernel"
	"nova/kernel/mm"
	"unsafe"
)

var (
	errBadArena     = &kernel.Error{Module: "pmm", Message: "physical memory range must be page aligned and non-empty"}
	errArenaMap     = &kernel.Error{Module: "pmm", Message: "unable to reserve host memory for the physical memory arena"}
	errArenaRelease = &kernel.Error{Module: "pmm", Message: "unable to release the physical memory arena"}

	// mapArenaFn and unmapArenaFn obtain and release the host memory that
	// backs the arena. Tests replace them to simulate host failures.
	mapArenaFn   = mapArena
	unmapArenaFn = unmapArena
)

// PhysMem models a contiguous range of physical RAM starting at a physical
// base address. The backing memory is never moved by the Go runtime so the
// host address of a physical byte stays valid until Close is called.
type PhysMem struct {
	base uintptr
	size uintptr

	// raw is the host mapping as returned by mapArenaFn; mem is the window
	// of raw that corresponds to [base, base+size).
	raw []byte
	mem []byte
}

// NewPhysMem reserves host memory for size bytes of physical RAM starting at
// physical address base. The size is rounded up to a multiple of the page
// size.
func NewPhysMem(base uintptr, size mm.Size) (*PhysMem, *kernel.Error) {
	if size == 0 || mm.PageOffset(base) != 0 {
		return nil, errBadArena
	}

	length := size.Pages() << mm.PageShift
	raw, err := mapArenaFn(length)
	if err != nil {
		return nil, err
	}

	return &PhysMem{
		base: base,
		size: length,
		raw:  raw,
		mem:  raw[:length:length],
	}, nil
}

// Base returns the first physical address covered by the arena.
func (pm *PhysMem) Base() uintptr { return pm.base }

// Size returns the number of bytes covered by the arena.
func (pm *PhysMem) Size() mm.Size { return mm.Size(pm.size) }

// Contains returns true if the physical range [addr, addr+size) lies within
// the arena.
func (pm *PhysMem) Contains(addr, size uintptr) bool {
	if addr < pm.base {
		return false
	}
	offset := addr - pm.base
	return offset < pm.size && size <= pm.size-offset
}

// Bytes returns a slice that aliases the physical range [addr, addr+size) or
// nil if the range is not covered by the arena.
func (pm *PhysMem) Bytes(addr, size uintptr) []byte {
	if !pm.Contains(addr, size) {
		return nil
	}
	offset := addr - pm.base
	return pm.mem[offset : offset+size : offset+size]
}

// Pointer returns a pointer to the byte at physical address addr or nil if
// the address is not covered by the arena.
func (pm *PhysMem) Pointer(addr uintptr) unsafe.Pointer {
	if !pm.Contains(addr, 1) {
		return nil
	}
	return unsafe.Pointer(&pm.mem[addr-pm.base])
}

// HostAddr returns the host address of the byte at physical address addr or
// 0 if the address is not covered by the arena.
func (pm *PhysMem) HostAddr(addr uintptr) uintptr {
	return uintptr(pm.Pointer(addr))
}

// Close releases the host memory backing the arena. Any pointers obtained
// via Pointer, Bytes or HostAddr become invalid.
func (pm *PhysMem) Close() *kernel.Error {
	if pm.raw == nil {
		return nil
	}

	err := unmapArenaFn(pm.raw)
	pm.raw, pm.mem, pm.size = nil, nil, 0
	return err
}
