//go:build unix

package pmm

import (
	"nova/kernel"

	"golang.org/x/sys/unix"
)

// mapArena reserves length bytes of anonymous, zero-filled host memory. The
// request is rounded up to the host page size, which is always a multiple of
// the 4 KiB granule, so the returned slice is granule aligned.
func mapArena(length uintptr) ([]byte, *kernel.Error) {
	hostPage := uintptr(unix.Getpagesize())
	mapLen := (length + hostPage - 1) &^ (hostPage - 1)

	raw, err := unix.Mmap(-1, 0, int(mapLen), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errArenaMap
	}

	return raw, nil
}

func unmapArena(raw []byte) *kernel.Error {
	if err := unix.Munmap(raw); err != nil {
		return errArenaRelease
	}
	return nil
}
