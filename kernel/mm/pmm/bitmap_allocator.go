package pmm

import (
	"math/bits"
	"nova/kernel"
	"nova/kernel/kfmt"
	"nova/kernel/mm"
	"nova/kernel/sync"
)

var (
	errOutOfMemory     = &kernel.Error{Module: "bitmap_alloc", Message: "out of memory"}
	errDoubleFree      = &kernel.Error{Module: "bitmap_alloc", Message: "frame is already free"}
	errFrameOutOfRange = &kernel.Error{Module: "bitmap_alloc", Message: "frame is not managed by this allocator"}
)

type markAs bool

const (
	markReserved markAs = false
	markFree     markAs = true
)

// Region describes a contiguous block of physical memory.
type Region struct {
	Base uintptr
	Size mm.Size
}

type framePool struct {
	// startFrame is the frame number for the first page in this pool.
	// each free bitmap entry i corresponds to frame (startFrame + i).
	startFrame mm.Frame

	// endFrame tracks the last frame in the pool. The total number of
	// frames is given by: (endFrame - startFrame) + 1
	endFrame mm.Frame

	// freeCount tracks the available pages in this pool. The allocator
	// can use this field to skip fully allocated pools without the need
	// to scan the free bitmap.
	freeCount uint32

	// freeBitmap tracks used/free pages in the pool. Bits are stored
	// MSB-first and a set bit marks a reserved frame.
	freeBitmap []uint64
}

// BitmapAllocator implements a physical frame allocator that tracks frame
// reservations across the available memory pools using bitmaps. It is safe
// for concurrent use by multiple CPUs.
type BitmapAllocator struct {
	lock sync.Spinlock

	// totalPages tracks the total number of pages across all pools.
	totalPages uint32

	// reservedPages tracks the number of reserved pages across all pools.
	reservedPages uint32

	pools []framePool
}

// Init sets up one pool per supplied region and flags every frame that
// overlaps one of the reserved regions as in use. Region boundaries that are
// not page aligned are rounded inwards.
func (alloc *BitmapAllocator) Init(pools []Region, reserved ...Region) {
	alloc.lock.Acquire()
	defer alloc.lock.Release()

	alloc.pools = alloc.pools[:0]
	alloc.totalPages, alloc.reservedPages = 0, 0

	for _, region := range pools {
		startFrame := mm.FrameFromAddress(region.Base + mm.PageSize - 1)
		endAddr := (region.Base + uintptr(region.Size)) &^ (mm.PageSize - 1)
		if endAddr <= startFrame.Address() {
			continue
		}
		endFrame := mm.FrameFromAddress(endAddr) - 1
		pageCount := uint32(endFrame - startFrame + 1)

		alloc.pools = append(alloc.pools, framePool{
			startFrame: startFrame,
			endFrame:   endFrame,
			freeCount:  pageCount,
			freeBitmap: make([]uint64, (pageCount+63)>>6),
		})
		alloc.totalPages += pageCount
	}

	for _, region := range reserved {
		alloc.reserveRegion(region)
	}

	alloc.printStats()
}

// reserveRegion flags all frames overlapping region as reserved.
func (alloc *BitmapAllocator) reserveRegion(region Region) {
	if region.Size == 0 {
		return
	}

	startFrame := mm.FrameFromAddress(region.Base)
	endFrame := mm.FrameFromAddress(region.Base + uintptr(region.Size) - 1)
	for frame := startFrame; frame <= endFrame; frame++ {
		poolIndex := alloc.poolForFrame(frame)
		if poolIndex < 0 || alloc.isReserved(poolIndex, frame) {
			continue
		}
		alloc.markFrame(poolIndex, frame, markReserved)
	}
}

// markFrame updates the reservation flag for the bitmap entry that
// corresponds to the supplied frame.
func (alloc *BitmapAllocator) markFrame(poolIndex int, frame mm.Frame, flag markAs) {
	if poolIndex < 0 || frame > alloc.pools[poolIndex].endFrame || frame < alloc.pools[poolIndex].startFrame {
		return
	}

	relFrame := frame - alloc.pools[poolIndex].startFrame
	block := relFrame >> 6
	mask := uint64(1 << (63 - (relFrame - block<<6)))
	switch flag {
	case markFree:
		alloc.pools[poolIndex].freeBitmap[block] &^= mask
		alloc.pools[poolIndex].freeCount++
		alloc.reservedPages--
	default:
		alloc.pools[poolIndex].freeBitmap[block] |= mask
		alloc.pools[poolIndex].freeCount--
		alloc.reservedPages++
	}
}

func (alloc *BitmapAllocator) isReserved(poolIndex int, frame mm.Frame) bool {
	relFrame := frame - alloc.pools[poolIndex].startFrame
	block := relFrame >> 6
	mask := uint64(1 << (63 - (relFrame - block<<6)))
	return alloc.pools[poolIndex].freeBitmap[block]&mask != 0
}

// poolForFrame returns the index of the pool that contains frame or -1 if
// the frame is not contained in any of the available memory pools.
func (alloc *BitmapAllocator) poolForFrame(frame mm.Frame) int {
	for poolIndex, pool := range alloc.pools {
		if frame >= pool.startFrame && frame <= pool.endFrame {
			return poolIndex
		}
	}

	return -1
}

// AllocFrame reserves and returns the lowest free frame across all pools.
func (alloc *BitmapAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	alloc.lock.Acquire()
	defer alloc.lock.Release()

	for poolIndex := range alloc.pools {
		pool := &alloc.pools[poolIndex]
		if pool.freeCount == 0 {
			continue
		}

		for blockIndex, block := range pool.freeBitmap {
			if block == ^uint64(0) {
				continue
			}

			frame := pool.startFrame + mm.Frame(blockIndex<<6+bits.LeadingZeros64(^block))
			if frame > pool.endFrame {
				break
			}

			alloc.markFrame(poolIndex, frame, markReserved)
			return frame, nil
		}
	}

	return mm.InvalidFrame, errOutOfMemory
}

// FreeFrame releases a frame previously obtained via AllocFrame.
func (alloc *BitmapAllocator) FreeFrame(frame mm.Frame) *kernel.Error {
	alloc.lock.Acquire()
	defer alloc.lock.Release()

	poolIndex := alloc.poolForFrame(frame)
	if poolIndex < 0 {
		return errFrameOutOfRange
	}

	if !alloc.isReserved(poolIndex, frame) {
		return errDoubleFree
	}

	alloc.markFrame(poolIndex, frame, markFree)
	return nil
}

// FreeCount returns the number of frames that can still be allocated.
func (alloc *BitmapAllocator) FreeCount() uint32 {
	alloc.lock.Acquire()
	defer alloc.lock.Release()
	return alloc.totalPages - alloc.reservedPages
}

// TotalCount returns the number of frames managed by the allocator.
func (alloc *BitmapAllocator) TotalCount() uint32 {
	alloc.lock.Acquire()
	defer alloc.lock.Release()
	return alloc.totalPages
}

func (alloc *BitmapAllocator) printStats() {
	kfmt.Printf(
		"[bitmap_alloc] page stats: free: %d/%d (%d reserved)\n",
		alloc.totalPages-alloc.reservedPages,
		alloc.totalPages,
		alloc.reservedPages,
	)
}
