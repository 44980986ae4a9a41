// Package pmm manages physical memory frame allocation: the monotonic
// bump allocator that turns a firmware memory map into a source of
// page-aligned physical frames.
package pmm

import (
	"math"

	"github.com/uefiboot/uefiboot/kernel/mem"
)

// Frame describes a physical memory page index: Address() / PageSize.
type Frame uintptr

// InvalidFrame is returned by allocators when they fail to reserve the
// requested frame.
const InvalidFrame = Frame(math.MaxUint64)

// Valid returns true if this is not the sentinel InvalidFrame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address this frame starts at.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}

// FrameFromAddress returns the frame that contains addr.
func FrameFromAddress(addr uintptr) Frame {
	return Frame(addr >> mem.PageShift)
}

// AddSaturating returns f+delta, saturating at InvalidFrame-1 instead of
// wrapping around.
func (f Frame) AddSaturating(delta uintptr) Frame {
	if uintptr(f) > uintptr(InvalidFrame)-1-delta {
		return InvalidFrame - 1
	}
	return f + Frame(delta)
}
