package vmm

import (
	"nova/kernel"
	"nova/kernel/mm"
)

// ErrTempWindow is returned by MapTemporary for page counts that do not fit
// the transient window.
var ErrTempWindow = &kernel.Error{Module: "vmm", Message: "transient window holds one or two pages"}

// tempWindowPages is the size of the transient window in pages.
const tempWindowPages = 2

// MapTemporary maps pages consecutive frames starting at the frame containing
// phys into the transient window and returns the window address of phys. An
// object that straddles a frame boundary can be reached by mapping two pages.
// The previous contents of the window are replaced.
func (r *Root) MapTemporary(phys uintptr, pages uintptr) (uintptr, *kernel.Error) {
	if pages == 0 || pages > tempWindowPages {
		return 0, ErrTempWindow
	}

	v, err := r.Map(TempAddr, phys, PermRW, AttrNormal, pages)
	if err != nil {
		return 0, err
	}

	if pages < tempWindowPages {
		r.Unmap(TempAddr+pages*mm.PageSize, tempWindowPages-pages)
	}

	return v, nil
}

// ReadAt copies len(p) bytes starting at virtual address v into p. It stops at
// the first address without a translation.
func (r *Root) ReadAt(p []byte, v uintptr) (int, *kernel.Error) {
	return r.copyAt(p, v, false)
}

// WriteAt copies p to virtual address v. It stops at the first address
// without a writable translation.
func (r *Root) WriteAt(p []byte, v uintptr) (int, *kernel.Error) {
	return r.copyAt(p, v, true)
}

func (r *Root) copyAt(p []byte, v uintptr, write bool) (int, *kernel.Error) {
	var done int
	for done < len(p) {
		phys, perm, err := r.Translate(v)
		if err != nil {
			return done, err
		}

		if write && perm&PermW == 0 {
			return done, ErrReadOnly
		}

		chunk := mm.PageSize - mm.PageOffset(v)
		if rem := uintptr(len(p) - done); rem < chunk {
			chunk = rem
		}

		mem := r.alloc.Bytes(phys, chunk)
		if mem == nil {
			return done, ErrInvalidMapping
		}

		if write {
			copy(mem, p[done:])
		} else {
			copy(p[done:], mem)
		}

		done += int(chunk)
		v += chunk
	}

	return done, nil
}
