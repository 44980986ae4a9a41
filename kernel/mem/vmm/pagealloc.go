package vmm

import "github.com/uefiboot/uefiboot/kernel"

// topLevelEntries is the number of top-level page-table slots: 512 on both
// supported architectures (P4 on x86_64, L0 on aarch64).
const topLevelEntries = 512

// topLevelSize is the span of virtual address space a single top-level
// entry covers: 4096 * 512^3 bytes (512 GiB).
const topLevelSize = uint64(4096) * 512 * 512 * 512

var errNoFreeTopLevelWindow = &kernel.Error{Module: "vmm", Message: "no usable top-level entries found"}

// PageAllocator tracks which top-level page-table entries are in use. It
// has no sub-top-level bookkeeping; the Mapper is authoritative below that
// granularity. Entry 0 starts out reserved, covering the low canonical
// half that may carry firmware identity mappings.
type PageAllocator struct {
	used [topLevelEntries]bool
}

// NewPageAllocator returns a PageAllocator with entry 0 pre-reserved.
func NewPageAllocator() *PageAllocator {
	a := &PageAllocator{}
	a.used[0] = true
	return a
}

// GetFreeAddress reserves the lowest-address contiguous run of top-level
// entries able to hold lenBytes and returns the virtual address at the
// start of that run.
func (a *PageAllocator) GetFreeAddress(lenBytes uint64) (uintptr, *kernel.Error) {
	need := int((lenBytes + topLevelSize - 1) / topLevelSize)
	if need < 1 {
		need = 1
	}

	idx, err := a.findFreeWindow(need)
	if err != nil {
		return 0, err
	}

	for i := 0; i < need; i++ {
		a.used[idx+i] = true
	}

	return uintptr(idx) << 39, nil
}

func (a *PageAllocator) findFreeWindow(need int) (int, *kernel.Error) {
	for start := 0; start+need <= topLevelEntries; start++ {
		free := true
		for i := 0; i < need; i++ {
			if a.used[start+i] {
				free = false
				break
			}
		}
		if free {
			return start, nil
		}
	}
	return 0, errNoFreeTopLevelWindow
}

// MarkRangeUsed marks every top-level entry touched by [vaddr, vaddr+size)
// as used. Must be called before any GetFreeAddress call that should not
// alias the range.
func (a *PageAllocator) MarkRangeUsed(vaddr uintptr, size uintptr) {
	if size == 0 {
		return
	}

	startPage := PageFromAddress(vaddr)
	endPage := PageFromAddress(vaddr + size - 1)

	startIdx := startPage.topLevelIndex()
	endIdx := endPage.topLevelIndex()

	for i := startIdx; i <= endIdx; i++ {
		a.used[i] = true
	}
}
