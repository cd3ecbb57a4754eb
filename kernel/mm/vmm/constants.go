package vmm

import "nova/kernel/mm"

const (
	// Levels is the number of translation levels. Level 0 holds 4 KiB page
	// descriptors and level Levels-1 is the top of the tree.
	Levels = 4

	// BitsPerLevel is the number of virtual address bits resolved by each
	// level.
	BitsPerLevel = 9

	// entriesPerTable is the number of descriptors in a single table node.
	entriesPerTable = 1 << BitsPerLevel

	// Boundary is the reference address used when composing host spaces. A
	// shared window is copied at the level of the highest bit in which its
	// address differs from Boundary.
	Boundary = uintptr(0x0000_8000_0000_0000)

	// CPULocalAddr is the start of the per-CPU private window.
	CPULocalAddr = Boundary + 0x20_0000

	// TempAddr is the start of the two-page transient mapping window.
	TempAddr = Boundary + 0x40_0000

	// LinkAddr is the address at which the hypervisor image is linked.
	LinkAddr = Boundary + 0x4000_0000

	// addrMask selects the output address bits of a descriptor.
	addrMask = uint64(0x0000_ffff_ffff_f000)
)

// LevelShift returns the number of address bits covered by a single entry at
// the given level.
func LevelShift(level uint) uint {
	return uint(mm.PageShift) + level*BitsPerLevel
}

// LevelSize returns the number of bytes covered by a single entry at the
// given level.
func LevelSize(level uint) uintptr {
	return uintptr(1) << LevelShift(level)
}

// tableIndex returns the index of the entry that translates v at the given
// level.
func tableIndex(v uintptr, level uint) uintptr {
	return (v >> LevelShift(level)) & (entriesPerTable - 1)
}
