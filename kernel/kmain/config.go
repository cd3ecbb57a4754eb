package kmain

import (
	"nova/kernel"
	"nova/kernel/cpu"
	"nova/kernel/mm"
	"nova/kernel/mm/vmm"
	"nova/kernel/sched"
	"nova/kernel/space"
)

var errBadConfig = &kernel.Error{Module: "kmain", Message: "invalid boot configuration"}

// Config describes the machine the core boots on.
type Config struct {
	// CPUs is the number of CPUs to bring up.
	CPUs int

	// RAMBase and RAMSize describe the physical RAM.
	RAMBase uintptr
	RAMSize mm.Size

	// ImageOffset is the offset of the hypervisor image from RAMBase.
	// ImageSize is the size of the image; its first ImageTextSize bytes
	// are mapped executable and the rest writable.
	ImageOffset   uintptr
	ImageSize     mm.Size
	ImageTextSize mm.Size

	// Selectors is the number of slots in the canonical object space.
	Selectors int

	// Semaphores and Portals are the pool capacities for each object type.
	Semaphores int
	Portals    int

	// Policy selects the wait queue discipline of the scheduler.
	Policy sched.Policy

	// Trace enables kernel object lifecycle tracing.
	Trace bool
}

// DefaultConfig returns the configuration of a small four CPU machine.
func DefaultConfig() Config {
	return Config{
		CPUs:          4,
		RAMBase:       0x4000_0000,
		RAMSize:       64 * mm.Mb,
		ImageOffset:   0x20_0000,
		ImageSize:     2 * mm.Mb,
		ImageTextSize: 1 * mm.Mb,
		Selectors:     1024,
		Semaphores:    256,
		Portals:       256,
		Policy:        sched.PolicyFIFO,
	}
}

// imageBase returns the physical address of the hypervisor image.
func (cfg *Config) imageBase() uintptr {
	return cfg.RAMBase + cfg.ImageOffset
}

// ramEnd returns the first physical address past the end of RAM.
func (cfg *Config) ramEnd() uintptr {
	return cfg.RAMBase + uintptr(cfg.RAMSize)
}

func (cfg *Config) validate() *kernel.Error {
	switch {
	case cfg.CPUs <= 0 || cfg.CPUs > cpu.MaxCPUs:
		return errBadConfig
	case mm.PageOffset(cfg.RAMBase) != 0 || mm.PageOffset(cfg.ImageOffset) != 0:
		return errBadConfig
	case cfg.RAMSize == 0 || cfg.ramEnd() < cfg.RAMBase:
		return errBadConfig
	case cfg.ImageSize == 0 || uintptr(cfg.ImageSize) > vmm.LevelSize(vmm.Levels-2):
		return errBadConfig
	case cfg.ImageTextSize > cfg.ImageSize:
		return errBadConfig
	case cfg.ImageOffset+uintptr(cfg.ImageSize) > uintptr(cfg.RAMSize):
		return errBadConfig
	case cfg.Selectors <= space.SelHostSpace || cfg.Semaphores < 0 || cfg.Portals < 0:
		return errBadConfig
	}
	return nil
}
