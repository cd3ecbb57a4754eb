package vmm

// Mapping describes a single leaf descriptor reachable from a root.
type Mapping struct {
	Virt  uintptr
	Phys  uintptr
	Size  uintptr
	Perm  Perm
	Attr  Attr
	Level uint
}

// Visit invokes fn for every valid page or block descriptor reachable from r
// in ascending virtual address order. Iteration stops when fn returns false.
func (r *Root) Visit(fn func(Mapping) bool) {
	r.visitTable(r.phys, Levels-1, 0, fn)
}

func (r *Root) visitTable(phys uintptr, level uint, base uintptr, fn func(Mapping) bool) bool {
	table := r.alloc.TableAt(phys)
	for index := range table {
		e := table[index].Load()
		if !e.Valid() {
			continue
		}

		virt := base | uintptr(index)<<LevelShift(level)
		if e.IsTable(level) {
			if !r.visitTable(e.Addr(), level-1, virt, fn) {
				return false
			}
			continue
		}

		if !fn(Mapping{
			Virt:  virt,
			Phys:  e.Addr(),
			Size:  LevelSize(level),
			Perm:  e.Perm(),
			Attr:  e.Attr(),
			Level: level,
		}) {
			return false
		}
	}

	return true
}
