package pmm

import (
	"github.com/uefiboot/uefiboot/firmware"
	"github.com/uefiboot/uefiboot/kernel"
	"github.com/uefiboot/uefiboot/kernel/mem"
)

// lowMemoryThreshold is the minimum physical address the allocator will
// ever hand out on x86_64, fixed to avoid colliding with the low-memory
// region used during AP startup. The same constant is used on aarch64 for
// consistency; aarch64 has no AP-startup trampoline requirement but
// reserving the first 64KiB costs nothing and keeps the allocator's
// behavior identical across architectures.
const lowMemoryThreshold = 0x10000

// errNoFreeFrames is returned by AllocFrame when the memory map is
// exhausted.
var errNoFreeFrames = &kernel.Error{Module: "pmm", Message: "no free frames available"}

// FrameAllocator is a monotonic, watermark-based allocator over a firmware
// memory map. It never returns the same frame twice, never returns a frame
// below lowMemoryThreshold, and only ever hands out frames that fall
// inside a Conventional descriptor. Because the watermark only advances
// and the original descriptor iterator is never mutated, Len() and
// MaxPhysAddr() remain stable across any number of allocations — this is
// what keeps the final boot-info memory-region count stable (see
// bootinfo.Build).
type FrameAllocator struct {
	original firmware.DescriptorIterator
	cursor   firmware.DescriptorIterator

	haveCurrent bool
	current     firmware.MemoryDescriptor
	nextFrame   Frame
}

// NewFrameAllocator returns a FrameAllocator over the descriptors visited
// by it. The iterator is cloned internally; the caller retains ownership
// of the one passed in.
func NewFrameAllocator(it firmware.DescriptorIterator) *FrameAllocator {
	return &FrameAllocator{
		original: it.Clone(),
		cursor:   it.Clone(),
	}
}

// AllocFrame returns the next available frame, or errNoFreeFrames if the
// memory map has been exhausted.
func (a *FrameAllocator) AllocFrame() (Frame, *kernel.Error) {
	for {
		if a.haveCurrent {
			endFrame := Frame(a.current.EndAddress() / uint64(mem.PageSize))
			if a.nextFrame < endFrame {
				f := a.nextFrame
				a.nextFrame++
				return f, nil
			}
			a.haveCurrent = false
		}

		desc, ok := a.cursor.Next()
		if !ok {
			return InvalidFrame, errNoFreeFrames
		}

		if desc.Type != firmware.Conventional {
			continue
		}

		startFrame := Frame(desc.PhysicalStart / uint64(mem.PageSize))
		lowFrame := Frame(uint64(lowMemoryThreshold) / uint64(mem.PageSize))
		if startFrame < lowFrame {
			startFrame = lowFrame
		}

		endFrame := Frame(desc.EndAddress() / uint64(mem.PageSize))
		if startFrame >= endFrame {
			continue
		}

		a.current = desc
		a.haveCurrent = true
		if a.nextFrame < startFrame {
			a.nextFrame = startFrame
		}
	}
}

// AllocContiguousFrames allocates n frames guaranteed to be physically
// contiguous. Per spec this is a higher-level operation built on top of
// AllocFrame: the monotonic watermark plus per-descriptor contiguity make
// consecutive calls contiguous within a single descriptor; whenever a
// call lands on a new descriptor (breaking contiguity with what came
// before) the run restarts from that frame.
func (a *FrameAllocator) AllocContiguousFrames(n int) (Frame, *kernel.Error) {
	if n <= 0 {
		return InvalidFrame, &kernel.Error{Module: "pmm", Message: "contiguous frame count must be positive"}
	}

	first, err := a.AllocFrame()
	if err != nil {
		return InvalidFrame, err
	}
	runLen := 1
	expect := first + 1

	for runLen < n {
		f, err := a.AllocFrame()
		if err != nil {
			return InvalidFrame, err
		}
		if f == expect {
			runLen++
			expect++
			continue
		}
		// Contiguity broke; this frame starts a fresh candidate run.
		first = f
		runLen = 1
		expect = f + 1
	}

	return first, nil
}

// Len returns the number of descriptors in the original memory map,
// independent of how many frames have been allocated.
func (a *FrameAllocator) Len() int {
	return a.original.Len()
}

// MaxPhysAddr scans a fresh clone of the original memory map and returns
// the highest end address among its descriptors.
func (a *FrameAllocator) MaxPhysAddr() uint64 {
	var max uint64
	it := a.original.Clone()
	for {
		d, ok := it.Next()
		if !ok {
			break
		}
		if end := d.EndAddress(); end > max {
			max = end
		}
	}
	return max
}
