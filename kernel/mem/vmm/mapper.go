package vmm

import (
	"unsafe"

	"github.com/uefiboot/uefiboot/kernel"
	"github.com/uefiboot/uefiboot/kernel/cpu"
	"github.com/uefiboot/uefiboot/kernel/mem/pmm"
)

// FrameAllocatorFunc is the frame source a Mapper uses to allocate
// intermediate page tables on demand. Matches the teacher's idiom of
// injecting collaborators as plain function values (see
// kernel/mem/vmm/map.go's frameAllocatorFn in the retrieval pack) so tests
// can substitute a scripted allocator without a mocking framework.
type FrameAllocatorFunc func() (pmm.Frame, *kernel.Error)

// zeroFrameFunc zeroes the page-table-sized region starting at frame. It
// exists as an injection point so tests can observe/stub the memory write
// without needing a real physical-memory-backed frame.
type zeroFrameFunc func(pmm.Frame)

// tableAtFunc resolves a frame holding a page table into an addressable
// Go array. In a running bootloader, physical memory is directly
// addressable (no VMM_CORE that's doing address translation other than the
// ones the Mapper itself is building), so this is an unsafe pointer cast;
// tests substitute an in-process table store instead.
type tableAtFunc func(pmm.Frame) *[topLevelEntries]pageTableEntry

var (
	zeroFrame = func(f pmm.Frame) {
		t := (*[topLevelEntries]pageTableEntry)(unsafe.Pointer(f.Address()))
		for i := range t {
			t[i] = 0
		}
	}

	tableAt tableAtFunc = func(f pmm.Frame) *[topLevelEntries]pageTableEntry {
		return (*[topLevelEntries]pageTableEntry)(unsafe.Pointer(f.Address()))
	}
)

var errMapperAllocFailed = &kernel.Error{Module: "vmm", Message: "failed to allocate frame for page table"}

// Mapper owns the root of a multi-level page table and knows how to
// install leaf mappings into it, allocating and zeroing any intermediate
// table that does not yet exist.
type Mapper struct {
	root pmm.Frame
}

// NewMapper allocates and zeroes a fresh root frame and returns a Mapper
// that owns it exclusively.
func NewMapper(allocFrame FrameAllocatorFunc) (*Mapper, *kernel.Error) {
	root, err := allocFrame()
	if err != nil {
		return nil, errMapperAllocFailed
	}
	zeroFrame(root)
	return &Mapper{root: root}, nil
}

// CurrentMapper adopts the firmware's active root page table as a
// non-owning view. Its only legitimate use is mirroring a handful of
// boot-info pages into the outgoing mapping so reads of them survive past
// the switch; the bootloader never allocates into tables reached this way
// beyond that narrow purpose.
func CurrentMapper() *Mapper {
	return &Mapper{root: pmm.FrameFromAddress(cpu.ActivePDT())}
}

// RootFrame returns the physical frame holding the root page table.
func (m *Mapper) RootFrame() pmm.Frame {
	return m.root
}

// Map installs a single leaf mapping from page to frame with the given
// flags, allocating any missing intermediate table along the way.
//
// Invariant upheld by every call site, never inside Map itself (Map has
// no opinion on the ELF flags that produced its input): never combine
// FlagWritable and the absence of FlagNoExecute for pages whose content
// is not also marked executable by the ELF header.
func (m *Mapper) Map(page Page, frame pmm.Frame, flags PteFlags, allocFrame FrameAllocatorFunc) *kernel.Error {
	indices := pageIndices(page)

	table := tableAt(m.root)
	for level := 0; level < pageTableLevels-1; level++ {
		entry := &table[indices[level]]
		if !entry.IsPresent() {
			next, err := allocFrame()
			if err != nil {
				return errMapperAllocFailed
			}
			zeroFrame(next)
			entry.setTable(next)
		}
		table = tableAt(entry.Frame())
	}

	leaf := &table[indices[pageTableLevels-1]]
	leaf.set(frame, flags)

	postMapBarrier()

	return nil
}
