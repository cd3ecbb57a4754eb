// Package kmain brings up the hypervisor core: physical memory, the master
// translation root, the canonical object space, the kernel host space and
// every CPU's local root.
package kmain

import (
	"nova/kernel"
	"nova/kernel/cap"
	"nova/kernel/cpu"
	"nova/kernel/kfmt"
	"nova/kernel/kobj"
	"nova/kernel/mm"
	"nova/kernel/mm/pmm"
	"nova/kernel/mm/vmm"
	"nova/kernel/sched"
	"nova/kernel/space"
	"sync"
)

var (
	errObjSpaceSelf = &kernel.Error{Module: "kmain", Message: "unable to install object space self capability"}

	// The following functions are mocked by tests.
	newPhysMemFn = pmm.NewPhysMem
	bringUpFn    = (*System).bringUpCPU
	panicFn      = kfmt.Panic
)

// System holds the state created during boot.
type System struct {
	Config Config

	Mem    *pmm.PhysMem
	Frames *pmm.BitmapAllocator
	Env    *space.Env
	Sched  *sched.Cooperative

	Semaphores *kobj.Pool[kobj.Semaphore]
	Portals    *kobj.Pool[kobj.Portal]

	// cpuFrames holds the physical address of each CPU's local page.
	cpuFrames []uintptr
}

// Kmain boots the core described by cfg and returns the running system. Any
// boot failure is unrecoverable and is reported through kfmt.Panic.
func Kmain(cfg Config) (sys *System) {
	defer func() {
		if r := recover(); r != nil {
			sys = nil
			panicFn(r)
		}
	}()

	sys, err := Boot(cfg)
	if err != nil {
		panic(err)
	}

	return sys
}

// Boot initializes every subsystem in order and brings up all CPUs in
// parallel. Configuration and resource errors are returned; violations of
// boot invariants (a well-known capability that cannot be installed or a CPU
// that fails to come up) panic.
func Boot(cfg Config) (*System, *kernel.Error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	kobj.EnableTrace(cfg.Trace)

	mem, err := newPhysMemFn(cfg.RAMBase, cfg.RAMSize)
	if err != nil {
		return nil, err
	}

	sys := &System{
		Config:    cfg,
		Mem:       mem,
		Frames:    new(pmm.BitmapAllocator),
		cpuFrames: make([]uintptr, cfg.CPUs),
	}

	kfmt.Printf("[kmain] ram: %x-%x (%d KiB)\n", cfg.RAMBase, cfg.ramEnd()-1, uint64(cfg.RAMSize/mm.Kb))
	sys.Frames.Init(
		[]pmm.Region{{Base: cfg.RAMBase, Size: cfg.RAMSize}},
		pmm.Region{Base: cfg.imageBase(), Size: cfg.ImageSize},
	)

	if err = sys.initSpaces(); err != nil {
		mem.Close()
		return nil, err
	}

	sys.bringUpCPUs()

	sys.Sched = sched.NewCooperative(cfg.Policy)
	sys.Semaphores = kobj.NewPool[kobj.Semaphore](cfg.Semaphores)
	sys.Portals = kobj.NewPool[kobj.Portal](cfg.Portals)

	kfmt.Printf("[kmain] %d cpus online\n", cfg.CPUs)
	return sys, nil
}

// initSpaces builds the master root, the canonical object space and the
// kernel host space.
func (sys *System) initSpaces() *kernel.Error {
	cfg := &sys.Config

	alloc := &vmm.FrameAllocator{Frames: sys.Frames, Mem: sys.Mem}
	tlbs := make([]*cpu.TLB, cfg.CPUs)
	for i := range tlbs {
		tlbs[i] = new(cpu.TLB)
	}

	master, err := vmm.NewRoot(alloc, nil)
	if err != nil {
		return err
	}

	if err = mapImage(master, cfg); err != nil {
		return err
	}

	objects := space.NewObjectSpace(nil, cfg.Selectors)
	if objects.Insert(space.SelObjSpace, cap.New(objects, cap.PermAll), false) != nil {
		panic(errObjSpaceSelf)
	}

	sys.Env = &space.Env{
		Master:  master,
		Objects: objects,
		Alloc:   alloc,
		TLBs:    tlbs,
	}

	// The first host space created for an Env becomes the kernel space.
	kernelSpace, err := space.NewHostSpace(sys.Env, cfg.ramEnd())
	if err != nil {
		return err
	}

	// Guests may touch any RAM except the hypervisor image.
	imageEnd := cfg.imageBase() + uintptr(cfg.ImageSize)
	if err = kernelSpace.UserAccess(0, cfg.imageBase(), true); err != nil {
		return err
	}
	return kernelSpace.UserAccess(imageEnd, cfg.ramEnd()-imageEnd, true)
}

// mapImage maps the hypervisor image at LinkAddr: the text section executable
// and the remainder writable.
func mapImage(master *vmm.Root, cfg *Config) *kernel.Error {
	var (
		base      = cfg.imageBase()
		textPages = cfg.ImageTextSize.Pages()
		dataPages = cfg.ImageSize.Pages() - textPages
	)

	kfmt.Printf("[kmain] image: %x-%x linked at %x\n", base, base+uintptr(cfg.ImageSize)-1, vmm.LinkAddr)

	if textPages != 0 {
		if _, err := master.Map(vmm.LinkAddr, base, vmm.PermRX, vmm.AttrNormal, textPages); err != nil {
			return err
		}
	}

	if dataPages != 0 {
		off := textPages << mm.PageShift
		if _, err := master.Map(vmm.LinkAddr+off, base+off, vmm.PermRW, vmm.AttrNormal, dataPages); err != nil {
			return err
		}
	}

	return nil
}

// bringUpCPUs runs the bring-up sequence of every CPU on its own goroutine
// and waits for all of them. A failure on any CPU is re-raised on the
// calling goroutine.
func (sys *System) bringUpCPUs() {
	var (
		wg    sync.WaitGroup
		fatal = make(chan interface{}, sys.Config.CPUs)
	)

	for id := 0; id < sys.Config.CPUs; id++ {
		wg.Add(1)
		go func(id cpu.ID) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fatal <- r
				}
			}()

			if err := bringUpFn(sys, id); err != nil {
				panic(err)
			}
		}(cpu.ID(id))
	}

	wg.Wait()
	close(fatal)

	if r, ok := <-fatal; ok {
		panic(r)
	}
}

// bringUpCPU gives the CPU a zeroed private page at CPULocalAddr in the kernel
// space and populates the CPU's local root.
func (sys *System) bringUpCPU(id cpu.ID) *kernel.Error {
	w := kfmt.NewCPUWriter(kfmt.GetOutputSink(), uint16(id))
	kernelSpace := sys.Env.Kernel

	frame, err := sys.Frames.AllocFrame()
	if err != nil {
		return err
	}

	phys := frame.Address()
	kernel.Memset(sys.Mem.HostAddr(phys), 0, mm.PageSize)

	if _, err = kernelSpace.Local(id).Map(vmm.CPULocalAddr, phys, vmm.PermRW, vmm.AttrNormal, 1); err != nil {
		return err
	}
	sys.cpuFrames[id] = phys

	if err = kernelSpace.Init(id); err != nil {
		return err
	}

	kfmt.Fprintf(w, "local page %x at %x\n", phys, vmm.CPULocalAddr)
	kfmt.Fprintf(w, "online\n")
	return nil
}

// CPULocalFrame returns the physical page backing the given CPU's private
// window.
func (sys *System) CPULocalFrame(id cpu.ID) uintptr {
	if int(id) >= len(sys.cpuFrames) {
		return 0
	}
	return sys.cpuFrames[id]
}

// Objects returns the canonical object space.
func (sys *System) Objects() *space.ObjectSpace { return sys.Env.Objects }

// Kernel returns the hypervisor's host space.
func (sys *System) Kernel() *space.HostSpace { return sys.Env.Kernel }

// NewHostSpace creates a host space for a guest. Its overlay starts empty and
// each CPU's root is populated on the first Init from that CPU.
func (sys *System) NewHostSpace() (*space.HostSpace, *kernel.Error) {
	return space.NewHostSpace(sys.Env, sys.Config.ramEnd())
}

// Shutdown releases the physical memory arena. The system must not be used
// afterwards.
func (sys *System) Shutdown() *kernel.Error {
	kobj.EnableTrace(false)
	return sys.Mem.Close()
}
