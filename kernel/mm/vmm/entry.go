package vmm

import "sync/atomic"

// Perm describes the access rights granted by a leaf descriptor.
type Perm uint8

// Access rights. PermR is implied by any non-zero permission set.
const (
	PermR Perm = 1 << iota
	PermW
	PermX
	PermU

	PermRW  = PermR | PermW
	PermRX  = PermR | PermX
	PermRWX = PermR | PermW | PermX
)

// Attr selects the memory type of a mapping. Values are indices into the
// memory attribute indirection register.
type Attr uint8

// Supported memory types.
const (
	AttrNormal Attr = iota
	AttrDevice
	AttrNormalNC
)

// String implements fmt.Stringer.
func (a Attr) String() string {
	switch a {
	case AttrNormal:
		return "normal"
	case AttrDevice:
		return "device"
	case AttrNormalNC:
		return "normal-nc"
	default:
		return "unknown"
	}
}

// String implements fmt.Stringer and renders the permission as "rwxu" with
// dashes for missing rights.
func (p Perm) String() string {
	var out = []byte("----")
	for i, flag := range []Perm{PermR, PermW, PermX, PermU} {
		if p&flag != 0 {
			out[i] = "rwxu"[i]
		}
	}
	return string(out)
}

// Entry is a single stage-1 translation descriptor.
type Entry uint64

// Descriptor bits.
const (
	FlagValid   Entry = 1 << 0
	FlagTable   Entry = 1 << 1
	FlagUser    Entry = 1 << 6
	FlagRO      Entry = 1 << 7
	FlagAccess  Entry = 1 << 10
	FlagNG      Entry = 1 << 11
	FlagPXN     Entry = 1 << 53
	FlagUXN     Entry = 1 << 54
	attrShift         = 2
	attrMask    Entry = 7 << attrShift
	shareShift        = 8
	shareOuter  Entry = 2 << shareShift
	shareInner  Entry = 3 << shareShift
	typeMask          = FlagValid | FlagTable
	typeTable         = FlagValid | FlagTable
	typeBlock         = FlagValid
)

// MakeLeaf encodes a page (level 0) or block (levels 1 and 2) descriptor that
// maps phys with the supplied rights and memory type. A zero permission set
// yields the invalid descriptor.
func MakeLeaf(phys uintptr, level uint, perm Perm, attr Attr) Entry {
	if perm == 0 {
		return 0
	}

	e := Entry(uint64(phys)&addrMask) | FlagAccess | Entry(attr)<<attrShift
	if level == 0 {
		e |= typeTable
	} else {
		e |= typeBlock
	}

	if attr == AttrNormal {
		e |= shareInner
	} else {
		e |= shareOuter
	}

	if perm&PermW == 0 {
		e |= FlagRO
	}

	if perm&PermU != 0 {
		e |= FlagUser | FlagNG | FlagPXN
		if perm&PermX == 0 {
			e |= FlagUXN
		}
	} else {
		e |= FlagUXN
		if perm&PermX == 0 {
			e |= FlagPXN
		}
	}

	return e
}

// MakeTable encodes a table descriptor pointing to the node at phys.
func MakeTable(phys uintptr) Entry {
	return Entry(uint64(phys)&addrMask) | typeTable
}

// Valid returns true if the descriptor translates anything.
func (e Entry) Valid() bool {
	return e&FlagValid != 0
}

// IsTable returns true if the descriptor points to a next-level table when
// found at the given level.
func (e Entry) IsTable(level uint) bool {
	return level > 0 && e&typeMask == typeTable
}

// Addr returns the output address encoded in the descriptor.
func (e Entry) Addr() uintptr {
	return uintptr(uint64(e) & addrMask)
}

// Perm decodes the access rights of a leaf descriptor.
func (e Entry) Perm() Perm {
	if !e.Valid() {
		return 0
	}

	perm := PermR
	if e&FlagRO == 0 {
		perm |= PermW
	}

	if e&FlagUser != 0 {
		perm |= PermU
		if e&FlagUXN == 0 {
			perm |= PermX
		}
	} else if e&FlagPXN == 0 {
		perm |= PermX
	}

	return perm
}

// Attr decodes the memory type of a leaf descriptor.
func (e Entry) Attr() Attr {
	return Attr((e & attrMask) >> attrShift)
}

// HasFlags returns true if all of the supplied flags are set.
func (e Entry) HasFlags(flags Entry) bool {
	return e&flags == flags
}

// PTE is a descriptor slot inside a table node. All accesses are single-word
// atomic operations so concurrent walkers never observe torn descriptors.
type PTE struct {
	v uint64
}

// Load returns the current descriptor.
func (p *PTE) Load() Entry {
	return Entry(atomic.LoadUint64(&p.v))
}

// Store replaces the descriptor.
func (p *PTE) Store(e Entry) {
	atomic.StoreUint64(&p.v, uint64(e))
}

// CompareAndSwap replaces the descriptor with next if it still holds old.
func (p *PTE) CompareAndSwap(old, next Entry) bool {
	return atomic.CompareAndSwapUint64(&p.v, uint64(old), uint64(next))
}

// Table is a translation table node occupying exactly one frame.
type Table [entriesPerTable]PTE
