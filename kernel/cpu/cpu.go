// Package cpu models the per-CPU hardware state that the memory core relies
// on: CPU identifiers, halting and the translation cache that has to be
// invalidated after every page-table change.
package cpu

// ID identifies a CPU. CPUs are numbered densely starting at 0.
type ID uint16

// MaxCPUs is the upper bound for the number of CPUs the core can manage.
const MaxCPUs = 256

var (
	// haltCh is never written to; receiving from it parks the calling
	// goroutine forever.
	haltCh chan struct{}
)

// Halt stops instruction execution on the calling CPU. Calls to Halt never
// return.
func Halt() {
	<-haltCh
}
