package kfmt

import (
	"nova/kernel"
	"nova/kernel/cpu"
)

// cpuHaltFn is mocked by tests.
var cpuHaltFn = cpu.Halt

// Panic outputs the supplied error (if not nil) to the active output sink and
// halts the calling CPU. Values that are not a *kernel.Error are reported
// under the "rt" module. Calls to Panic never return unless cpuHaltFn is
// mocked.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		err = &kernel.Error{Module: "rt", Message: t}
	case error:
		err = &kernel.Error{Module: "rt", Message: t.Error()}
	case nil:
	default:
		err = &kernel.Error{Module: "rt", Message: "unknown cause"}
	}

	if err != nil {
		Printf("\n-----------------------------------\n[%s] unrecoverable error: %s\n*** kernel panic: system halted ***\n-----------------------------------", err.Module, err.Message)
	} else {
		Printf("\n-----------------------------------\n*** kernel panic: system halted ***\n-----------------------------------")
	}

	cpuHaltFn()
}
