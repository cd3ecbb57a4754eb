package mm

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for this architecture is defined as (1 << PointerShift).
	PointerShift = uintptr(3)

	// PageShift is equal to log2(PageSize). The translation granule is
	// fixed at 4 KiB.
	PageShift = uintptr(12)

	// PageSize defines the size of a translation granule in bytes.
	PageSize = uintptr(1 << PageShift)
)

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// Pages returns the number of granules needed to hold a block of size s.
func (s Size) Pages() uintptr {
	return uintptr((uint64(s) + uint64(PageSize) - 1) >> PageShift)
}
