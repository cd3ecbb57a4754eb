package space

import (
	"nova/kernel"
	"nova/kernel/cap"
	"nova/kernel/cpu"
	"nova/kernel/kobj"
	"nova/kernel/mm/vmm"
	"nova/kernel/sync"
	"runtime"
	"sync/atomic"
)

var (
	// ErrBadCPU is returned for CPU ids without a local root.
	ErrBadCPU = &kernel.Error{Module: "space", Message: "cpu id out of range"}

	// ErrSelfCapability is raised (via panic) when a mandatory well-known
	// capability cannot be installed.
	ErrSelfCapability = &kernel.Error{Module: "space", Message: "unable to install well-known capability"}

	// The following functions are used by tests to observe local root
	// population.
	shareFromFn       = (*vmm.Root).ShareFrom
	shareFromMasterFn = (*vmm.Root).ShareFromMaster
	yieldFn           = runtime.Gosched
)

// Env is the boot-time state shared by all host spaces. It is built once
// during boot and injected into every constructor.
type Env struct {
	// Master is the canonical root holding the hypervisor's global
	// mappings.
	Master *vmm.Root

	// Kernel is the hypervisor's own host space. It is set by the first
	// NewHostSpace call for this Env.
	Kernel *HostSpace

	// Objects is the canonical object space.
	Objects *ObjectSpace

	// Alloc provides table nodes for every root.
	Alloc vmm.Allocator

	// TLBs holds the translation cache of each CPU, indexed by CPU id.
	TLBs []*cpu.TLB

	lock sync.Spinlock
}

// Per-CPU population states of a host space.
const (
	rootEmpty uint32 = iota
	rootPopulating
	rootReady
)

// HostSpace is a host memory space. It owns one translation root per CPU;
// each root is populated lazily on the first Init call from that CPU.
type HostSpace struct {
	Space

	env         *Env
	loc         []*vmm.Root
	initialized []uint32
}

// NewHostSpace creates a host space with a local root for each CPU in env. If a
// root cannot be allocated the roots created so far are released. The
// first host space created for env becomes env.Kernel and installs its
// capability at SelHostSpace in the canonical object space; failing to do so
// panics with ErrSelfCapability.
func NewHostSpace(env *Env, limit uintptr) (*HostSpace, *kernel.Error) {
	hs := &HostSpace{
		env:         env,
		loc:         make([]*vmm.Root, len(env.TLBs)),
		initialized: make([]uint32, len(env.TLBs)),
	}

	for id, tlb := range env.TLBs {
		root, err := vmm.NewRoot(env.Alloc, tlb)
		if err != nil {
			// Fresh roots own nothing but their top-level table.
			for _, r := range hs.loc[:id] {
				env.Alloc.FreeTable(r.Phys())
			}
			return nil, err
		}
		hs.loc[id] = root
	}

	var owner kobj.Object
	if env.Objects != nil {
		owner = env.Objects
	}
	hs.Space.init(kobj.TypeHostSpace, owner, limit)

	env.lock.Acquire()
	first := env.Kernel == nil
	if first {
		env.Kernel = hs
	}
	env.lock.Release()

	if first {
		if env.Objects == nil || env.Objects.Insert(SelHostSpace, cap.New(hs, cap.PermDelegate), false) != nil {
			panic(ErrSelfCapability)
		}
	}

	return hs, nil
}

// Local returns the translation root used by the given CPU or nil for an
// unknown CPU.
func (hs *HostSpace) Local(id cpu.ID) *vmm.Root {
	if int(id) >= len(hs.loc) {
		return nil
	}
	return hs.loc[id]
}

// Initialized returns true once Init has finished populating the root of the
// given CPU.
func (hs *HostSpace) Initialized(id cpu.ID) bool {
	if int(id) >= len(hs.initialized) {
		return false
	}
	return atomic.LoadUint32(&hs.initialized[id]) == rootReady
}

// Init populates the local root of the given CPU on first use: the per-CPU
// window is shared from the kernel space's root for that CPU and the image
// window from the master root. Concurrent callers for the same CPU wait for
// the one doing the work and later calls do nothing. If population fails the
// CPU is left uninitialized so Init can be retried.
func (hs *HostSpace) Init(id cpu.ID) *kernel.Error {
	if int(id) >= len(hs.loc) {
		return ErrBadCPU
	}

	state := &hs.initialized[id]
	for !atomic.CompareAndSwapUint32(state, rootEmpty, rootPopulating) {
		switch atomic.LoadUint32(state) {
		case rootReady:
			return nil
		case rootPopulating:
			yieldFn()
		}
	}

	if err := hs.populate(id); err != nil {
		atomic.StoreUint32(state, rootEmpty)
		return err
	}

	atomic.StoreUint32(state, rootReady)
	return nil
}

func (hs *HostSpace) populate(id cpu.ID) *kernel.Error {
	root := hs.loc[id]
	if _, err := shareFromFn(root, hs.env.Kernel.Local(id), vmm.CPULocalAddr, vmm.Boundary); err != nil && err != vmm.ErrShareUnchanged {
		return err
	}

	if _, err := shareFromMasterFn(root, hs.env.Master, vmm.LinkAddr); err != nil && err != vmm.ErrShareUnchanged {
		return err
	}

	return nil
}

// SyncFromMaster refreshes the window containing v in the given CPU's local
// root from the master root. The window must have been shared before; a
// missing window panics.
func (hs *HostSpace) SyncFromMaster(id cpu.ID, v uintptr) *kernel.Error {
	root := hs.Local(id)
	if root == nil {
		return ErrBadCPU
	}

	root.SyncFromMaster(hs.env.Master, v)
	return nil
}
