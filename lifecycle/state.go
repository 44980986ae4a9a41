package lifecycle

import "github.com/uefiboot/uefiboot/kernel"

// State is one of the three phases the controller passes through, in
// order, exactly once each.
type State int

const (
	// Boot: firmware services (file I/O, page allocation, the memory
	// map) are available.
	Boot State = iota
	// Runtime: boot services have exited; only the page tables built
	// during Boot and the memory already allocated remain usable.
	Runtime
	// Handoff: registers are loaded, the trampoline is about to branch
	// to the kernel and never return.
	Handoff
)

func (s State) String() string {
	switch s {
	case Boot:
		return "Boot"
	case Runtime:
		return "Runtime"
	case Handoff:
		return "Handoff"
	default:
		return "unknown"
	}
}

var errBadTransition = &kernel.Error{Module: "lifecycle", Message: "illegal state transition"}

// advance moves from one state to the very next one in sequence; any
// other request is a programming error, not a runtime condition, but is
// still reported through the same *kernel.Error path as everything else
// in the core so a malformed driver sequence halts cleanly instead of
// corrupting state.
func advance(from, to State) *kernel.Error {
	if to != from+1 {
		return errBadTransition
	}
	return nil
}
