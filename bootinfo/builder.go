package bootinfo

import (
	"bytes"
	"encoding/binary"

	"github.com/uefiboot/uefiboot/kernel"
	"github.com/uefiboot/uefiboot/kernel/mem/pmm"
	"github.com/uefiboot/uefiboot/kernel/mem/vmm"
	"github.com/uefiboot/uefiboot/loader"
)

var (
	errNoRoom     = &kernel.Error{Module: "bootinfo", Message: "no virtual window for boot-info record"}
	errNoFrames   = &kernel.Error{Module: "bootinfo", Message: "failed to allocate frames for boot-info record"}
	errMapFailure = &kernel.Error{Module: "bootinfo", Message: "failed to map boot-info record"}
)

// MemoryWriter is the raw byte-level sink the builder serializes the
// finished record through, mirroring loader.SegmentWriter's injection
// seam so tests don't need a real physical-memory-backed buffer.
type MemoryWriter interface {
	WriteAt(physAddr uintptr, data []byte)
}

// Mapper is the subset of *vmm.Mapper the builder depends on. Reuses
// loader.Mapper's shape rather than redeclaring it.
type Mapper = loader.Mapper

// VirtualReserver is the subset of *vmm.PageAllocator the builder needs
// to carve out a window for the finished record.
type VirtualReserver interface {
	GetFreeAddress(lenBytes uint64) (uintptr, *kernel.Error)
}

// FrameSource is the subset of *pmm.FrameAllocator the builder needs:
// one contiguous run for the whole record, plus single frames for any
// intermediate page table the mapping step has to allocate on demand.
type FrameSource interface {
	AllocContiguousFrames(n int) (pmm.Frame, *kernel.Error)
	AllocFrame() (pmm.Frame, *kernel.Error)
}

// Input collects everything the builder needs that isn't itself a
// collaborator (allocator, mapper, writer).
type Input struct {
	Modules     []Module
	ElfSections []loader.ElfSection
	Regions     []MemoryRegion
	EntryPoint  uint64
	RSDPAddr    uint64
	HasRSDP     bool
	Framebuffer *FramebufferInfo
}

// Build reserves a virtual window sized for in.Regions/in.Modules/
// in.ElfSections, backs it with one contiguous run of frames, maps that
// window writable+no-execute into both newMapper (the kernel's own
// table) and firmwareMapper (so the final writes below, which happen
// after boot services and the memory-map snapshot but before the
// trampoline, stay legal under the mapping still active at that
// instant), serializes the record, and returns the virtual address the
// kernel should be handed as its argument.
func Build(newMapper, firmwareMapper Mapper, pageAlloc VirtualReserver, frameAlloc FrameSource, writer MemoryWriter, in Input) (uintptr, *kernel.Error) {
	layout := ComputeLayout(len(in.Regions), len(in.Modules), len(in.ElfSections))

	vaddr, err := pageAlloc.GetFreeAddress(layout.TotalSize)
	if err != nil {
		return 0, errNoRoom
	}

	numPages := (layout.TotalSize + 4095) / 4096
	firstFrame, ferr := frameAlloc.AllocContiguousFrames(int(numPages))
	if ferr != nil {
		return 0, errNoFrames
	}

	flags := vmm.FlagPresent | vmm.FlagWritable | vmm.FlagNoExecute
	for i := uint64(0); i < numPages; i++ {
		page := vmm.PageFromAddress(vaddr).AddSaturating(uintptr(i))
		frame := firstFrame.AddSaturating(uintptr(i))
		if err := newMapper.Map(page, frame, flags, frameAlloc.AllocFrame); err != nil {
			return 0, errMapFailure
		}
		if err := firmwareMapper.Map(page, frame, flags, frameAlloc.AllocFrame); err != nil {
			return 0, errMapFailure
		}
	}

	physBase := firstFrame.Address()

	var buf bytes.Buffer
	hdr := Header{
		MemoryRegionsOffset: layout.MemoryRegionsOffset,
		MemoryRegionsCount:  uint64(len(in.Regions)),
		ModulesOffset:       layout.ModulesOffset,
		ModulesCount:        uint64(len(in.Modules)),
		ElfSectionsOffset:   layout.ElfSectionsOffset,
		ElfSectionsCount:    uint64(len(in.ElfSections)),
		EntryPoint:          in.EntryPoint,
		RSDPAddr:            in.RSDPAddr,
		HasRSDP:             in.HasRSDP,
	}
	if in.Framebuffer != nil {
		hdr.HasFramebuffer = true
		hdr.Framebuffer = *in.Framebuffer
	}

	writeFixed(&buf, hdr)
	padTo(&buf, layout.MemoryRegionsOffset)
	for _, r := range in.Regions {
		writeFixed(&buf, r)
	}
	padTo(&buf, layout.ModulesOffset)
	for _, m := range in.Modules {
		writeFixed(&buf, m)
	}
	padTo(&buf, layout.ElfSectionsOffset)
	for _, s := range in.ElfSections {
		writeFixed(&buf, s)
	}
	padTo(&buf, layout.TotalSize)

	writer.WriteAt(physBase, buf.Bytes())

	return vaddr, nil
}

func writeFixed(buf *bytes.Buffer, v interface{}) {
	// Every type passed here (Header, MemoryRegion, Module,
	// loader.ElfSection) is fixed-size with no pointers or slices, so
	// binary.Write cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func padTo(buf *bytes.Buffer, offset uint64) {
	if uint64(buf.Len()) < offset {
		buf.Write(make([]byte, offset-uint64(buf.Len())))
	}
}
