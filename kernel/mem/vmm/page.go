// Package vmm builds and installs the virtual-memory mappings the kernel
// expects: the top-level page-allocator bookkeeping table and the
// multi-level page-table mapper, plus the portable Page/PageRange and
// FrameRange chunk types they share with package pmm's Frame.
package vmm

import (
	"math"

	"github.com/uefiboot/uefiboot/kernel/mem"
	"github.com/uefiboot/uefiboot/kernel/mem/pmm"
)

// Page describes a virtual memory page index: Address() / PageSize. Always
// page-aligned; there is no sub-page representation.
type Page uintptr

// maxPage is the largest representable page number.
const maxPage = Page(math.MaxUint64 / uint64(mem.PageSize))

// PageFromAddress returns the page that contains addr.
func PageFromAddress(addr uintptr) Page {
	return Page(addr / uintptr(mem.PageSize))
}

// Address returns the virtual address this page starts at.
func (p Page) Address() uintptr {
	return uintptr(p) * uintptr(mem.PageSize)
}

// AddSaturating returns p+delta, saturating at maxPage instead of
// wrapping around.
func (p Page) AddSaturating(delta uintptr) Page {
	if uint64(p) > uint64(maxPage)-uint64(delta) {
		return maxPage
	}
	return p + Page(delta)
}

// PageRange is an inclusive range of pages. A range with Start > End is
// empty and iterates zero times.
type PageRange struct {
	Start, End Page
}

// SizeInPages returns the number of pages in the range.
func (r PageRange) SizeInPages() uint64 {
	if r.Start > r.End {
		return 0
	}
	return uint64(r.End-r.Start) + 1
}

// OffsetOfAddress returns the byte offset of addr from the start of the
// range.
func (r PageRange) OffsetOfAddress(addr uintptr) uintptr {
	return addr - r.Start.Address()
}

// AddressAtOffset returns the address offset bytes into the range.
func (r PageRange) AddressAtOffset(offset uintptr) uintptr {
	return r.Start.Address() + offset
}

// Overlaps reports whether r and other share at least one page.
func (r PageRange) Overlaps(other PageRange) bool {
	if r.Start > r.End || other.Start > other.End {
		return false
	}
	return r.Start <= other.End && other.Start <= r.End
}

// FrameRange is an inclusive range of physical frames, the pmm.Frame
// analogue of PageRange.
type FrameRange struct {
	Start, End pmm.Frame
}

// SizeInFrames returns the number of frames in the range.
func (r FrameRange) SizeInFrames() uint64 {
	if r.Start > r.End {
		return 0
	}
	return uint64(r.End-r.Start) + 1
}

// OffsetOfAddress returns the byte offset of addr from the start of the
// range.
func (r FrameRange) OffsetOfAddress(addr uintptr) uintptr {
	return addr - r.Start.Address()
}

// AddressAtOffset returns the address offset bytes into the range.
func (r FrameRange) AddressAtOffset(offset uintptr) uintptr {
	return r.Start.Address() + offset
}

// FrameRangeFromDescriptor returns the inclusive frame range covered by a
// base address and page count, as used when translating a firmware memory
// descriptor or a fixed physical allocation into frame-space.
func FrameRangeFromDescriptor(physAddr uint64, numPages uint64) FrameRange {
	if numPages == 0 {
		return FrameRange{Start: 1, End: 0}
	}
	start := pmm.FrameFromAddress(uintptr(physAddr))
	end := start.AddSaturating(uintptr(numPages) - 1)
	return FrameRange{Start: start, End: end}
}
