package vmm

import (
	"nova/kernel"
	"nova/kernel/mm"
	"nova/kernel/mm/pmm"
)

// FrameSource hands out physical frames.
type FrameSource interface {
	AllocFrame() (mm.Frame, *kernel.Error)
	FreeFrame(mm.Frame) *kernel.Error
}

// Allocator provides the physical memory used for table nodes and resolves
// physical addresses to the memory backing them.
type Allocator interface {
	// AllocTable returns the physical address of a zeroed table node.
	AllocTable() (uintptr, *kernel.Error)

	// FreeTable returns a node obtained via AllocTable.
	FreeTable(phys uintptr)

	// TableAt returns the node stored at phys.
	TableAt(phys uintptr) *Table

	// Bytes returns the memory backing [phys, phys+size) or nil.
	Bytes(phys, size uintptr) []byte
}

// FrameAllocator is an Allocator that carves table nodes out of a physical
// memory arena.
type FrameAllocator struct {
	Frames FrameSource
	Mem    *pmm.PhysMem
}

// AllocTable implements Allocator.
func (fa *FrameAllocator) AllocTable() (uintptr, *kernel.Error) {
	frame, err := fa.Frames.AllocFrame()
	if err != nil {
		return 0, ErrNoMemory
	}

	phys := frame.Address()
	host := fa.Mem.HostAddr(phys)
	if host == 0 {
		_ = fa.Frames.FreeFrame(frame)
		return 0, ErrNoMemory
	}

	kernel.Memset(host, 0, mm.PageSize)
	return phys, nil
}

// FreeTable implements Allocator.
func (fa *FrameAllocator) FreeTable(phys uintptr) {
	_ = fa.Frames.FreeFrame(mm.FrameFromAddress(phys))
}

// TableAt implements Allocator.
func (fa *FrameAllocator) TableAt(phys uintptr) *Table {
	return (*Table)(fa.Mem.Pointer(phys))
}

// Bytes implements Allocator.
func (fa *FrameAllocator) Bytes(phys, size uintptr) []byte {
	return fa.Mem.Bytes(phys, size)
}

