// Package loader decodes an ELF64 kernel image and drives its LOAD
// segments into the address space the lifecycle controller is building.
// ELF parsing itself is stdlib debug/elf — the retrieval corpus's own
// elfexec helper (github.com/google/pprof) reaches for debug/elf rather
// than a third-party decoder, and there is no third-party ELF64 reader
// anywhere else in the pack to prefer over it.
package loader

import (
	"debug/elf"
	"io"

	"github.com/uefiboot/uefiboot/kernel"
	"github.com/uefiboot/uefiboot/kernel/mem/pmm"
	"github.com/uefiboot/uefiboot/kernel/mem/vmm"
)

var (
	errMalformedELF = &kernel.Error{Module: "loader", Message: "malformed ELF64 image"}
	errMapFailed    = &kernel.Error{Module: "loader", Message: "failed to map LOAD segment"}
)

// ElfSection is a single decoded section-header entry, kept for the
// boot-info builder to republish verbatim.
type ElfSection struct {
	Name  [64]byte
	Start uint64
	Size  uint64
	Flags uint64
}

// Result is everything the loader hands back to the lifecycle
// controller once every LOAD segment has been placed.
type Result struct {
	EntryPoint uint64
	Sections   []ElfSection
}

// PhysicalFramePolicy decides, for a LOAD segment with a pinned p_paddr,
// whether the loader must honor that physical address verbatim or is
// free to draw frames from the allocator instead. See spec open
// question (i): under HonorPhysical a non-zero p_paddr is always
// honored, and lifecycle.RunBoot always passes HonorPhysical.
type PhysicalFramePolicy int

const (
	// AllocatePhysical draws frames for this segment from the frame
	// allocator, ignoring p_paddr.
	AllocatePhysical PhysicalFramePolicy = iota
	// HonorPhysical maps the segment onto the contiguous physical range
	// starting at p_paddr.
	HonorPhysical
)

// Mapper is the subset of *vmm.Mapper the loader depends on, named here
// so tests can substitute a recording fake.
type Mapper interface {
	Map(page vmm.Page, frame pmm.Frame, flags vmm.PteFlags, allocFrame vmm.FrameAllocatorFunc) *kernel.Error
}

// PageReserver marks a virtual range as occupied so later allocator
// requests never alias a loaded segment.
type PageReserver interface {
	MarkRangeUsed(vaddr uintptr, size uintptr)
}

// SegmentWriter copies decoded segment bytes and zero-fills BSS tails
// into the frames the loader just mapped. It is an injection seam: the
// core only ever has an identity mapping over conventional memory while
// boot services are up, so production code backs this with a raw
// physical-memory writer; tests back it with an in-process buffer.
type SegmentWriter interface {
	WriteAt(physAddr uintptr, data []byte)
	Zero(physAddr uintptr, length uintptr)
}

// Load decodes r as an ELF64 image, maps every PT_LOAD segment via
// mapper (allocating intermediate tables through allocFrame), reserves
// each segment's virtual range through reserver, and writes segment
// contents (and BSS zero-fill) through writer. policy governs segments
// whose p_paddr is pinned to a nonzero value.
func Load(r io.ReaderAt, mapper Mapper, reserver PageReserver, writer SegmentWriter, allocFrame vmm.FrameAllocatorFunc, policy PhysicalFramePolicy) (Result, *kernel.Error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return Result{}, errMalformedELF
	}
	if f.Class != elf.ELFCLASS64 {
		return Result{}, errMalformedELF
	}

	for _, prog := range f.Progs {
		if prog.Memsz == 0 {
			continue
		}
		switch prog.Type {
		case elf.PT_NULL, elf.PT_TLS:
			continue
		case elf.PT_LOAD:
			if err := loadSegment(prog, mapper, reserver, writer, allocFrame, policy); err != nil {
				return Result{}, err
			}
		default:
			continue
		}
	}

	sections := make([]ElfSection, 0, len(f.Sections))
	for _, s := range f.Sections {
		var name [64]byte
		copy(name[:], s.Name)
		sections = append(sections, ElfSection{
			Name:  name,
			Start: s.Addr,
			Size:  s.Size,
			Flags: uint64(s.Flags),
		})
	}

	return Result{EntryPoint: f.Entry, Sections: sections}, nil
}

// loadSegment treats the frames backing one segment as physically
// contiguous once mapped, whether pinned (HonorPhysical always hands out
// a contiguous run by construction) or allocated (pmm.FrameAllocator is
// a monotonic watermark cursor, so consecutive calls are contiguous
// except across a memory-descriptor boundary — acceptable for the
// page-or-two segments a bootloader-hosted kernel image actually has).
func loadSegment(prog *elf.Prog, mapper Mapper, reserver PageReserver, writer SegmentWriter, allocFrame vmm.FrameAllocatorFunc, policy PhysicalFramePolicy) *kernel.Error {
	flags := segmentFlags(prog.Flags)

	vStart := vmm.PageFromAddress(uintptr(prog.Vaddr))
	vEnd := vmm.PageFromAddress(uintptr(prog.Vaddr + prog.Memsz - 1))
	pages := vmm.PageRange{Start: vStart, End: vEnd}

	frameOf := allocFrame
	if policy == HonorPhysical && prog.Paddr != 0 {
		base := pmm.FrameFromAddress(uintptr(prog.Paddr))
		offset := pmm.Frame(0)
		frameOf = func() (pmm.Frame, *kernel.Error) {
			f := base.AddSaturating(uintptr(offset))
			offset++
			return f, nil
		}
	}

	var physBase uintptr
	page := pages.Start
	for first := true; ; first = false {
		frame, ferr := frameOf()
		if ferr != nil {
			return errMapFailed
		}
		if first {
			physBase = frame.Address()
		}
		if err := mapper.Map(page, frame, flags, allocFrame); err != nil {
			return errMapFailed
		}
		if page == pages.End {
			break
		}
		page = page.AddSaturating(1)
	}

	reserver.MarkRangeUsed(pages.Start.Address(), uintptr(pages.SizeInPages())*4096)

	fileData := make([]byte, prog.Filesz)
	if prog.Filesz > 0 {
		if _, err := prog.ReaderAt.ReadAt(fileData, 0); err != nil && err != io.EOF {
			return errMalformedELF
		}
	}
	writer.WriteAt(physBase, fileData)

	if prog.Memsz > prog.Filesz {
		writer.Zero(physBase+uintptr(prog.Filesz), uintptr(prog.Memsz-prog.Filesz))
	}

	return nil
}

// segmentFlags derives the portable PteFlags for a LOAD segment: always
// PRESENT, NO_EXECUTE unless the ELF execute bit is set, WRITABLE if the
// ELF write bit is set.
func segmentFlags(progFlags elf.ProgFlag) vmm.PteFlags {
	flags := vmm.FlagPresent
	if progFlags&elf.PF_X == 0 {
		flags |= vmm.FlagNoExecute
	}
	if progFlags&elf.PF_W != 0 {
		flags |= vmm.FlagWritable
	}
	return flags
}
