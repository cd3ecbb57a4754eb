//go:build !unix

package pmm

import (
	"nova/kernel"
	"nova/kernel/mm"
	"unsafe"
)

// mapArena falls back to a heap allocation on hosts without mmap. The slice
// is over-allocated by one page and re-sliced so it starts on a granule
// boundary.
func mapArena(length uintptr) ([]byte, *kernel.Error) {
	buf := make([]byte, length+mm.PageSize)
	pad := mm.PageSize - mm.PageOffset(uintptr(unsafe.Pointer(&buf[0])))
	if pad == mm.PageSize {
		pad = 0
	}
	return buf[pad : pad+length], nil
}

func unmapArena(_ []byte) *kernel.Error {
	return nil
}
