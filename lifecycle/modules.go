package lifecycle

import (
	"unicode/utf8"

	"github.com/uefiboot/uefiboot/bootinfo"
	"github.com/uefiboot/uefiboot/firmware"
	"github.com/uefiboot/uefiboot/kernel"
	"github.com/uefiboot/uefiboot/kernel/mem/vmm"
)

const pageSize = 4096

var errModuleEnum = &kernel.Error{Module: "lifecycle", Message: "failed to enumerate modules directory"}
var errModuleRead = &kernel.Error{Module: "lifecycle", Message: "failed to read module file"}

// LoadModules enumerates dir twice: once to compute the page-rounded
// size of the block that holds every module back to back (each module
// starting on a fresh page, per spec.md §4.8), then again to copy file
// bytes into that block and record one bootinfo.Module per file. Module
// names arrive already converted from the firmware's native UCS-2 to
// UTF-8 by the firmware.FileSystem binding (firmware.DirEntry.Name is decoded at
// that boundary, same as the firmware package's other string fields);
// this function only truncates to the 64-byte on-wire field.
func LoadModules(fs firmware.FileSystem, dir string, mapper Mapper, pageAlloc VirtualReserver, frameAlloc FrameSource, writer MemoryWriter) ([]bootinfo.Module, uintptr, *kernel.Error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, 0, errModuleEnum
	}

	var totalPages uint64
	type planned struct {
		entry firmware.DirEntry
		pages uint64
	}
	plan := make([]planned, 0, len(entries))
	for _, e := range entries {
		if e.Directory {
			continue
		}
		pages := (uint64(e.Size) + pageSize - 1) / pageSize
		if pages == 0 {
			pages = 1
		}
		plan = append(plan, planned{entry: e, pages: pages})
		totalPages += pages
	}

	if totalPages == 0 {
		return nil, 0, nil
	}

	vaddr, verr := pageAlloc.GetFreeAddress(totalPages * pageSize)
	if verr != nil {
		return nil, 0, verr
	}
	firstFrame, ferr := frameAlloc.AllocContiguousFrames(int(totalPages))
	if ferr != nil {
		return nil, 0, ferr
	}

	flags := vmm.FlagPresent | vmm.FlagWritable | vmm.FlagNoExecute
	for i := uint64(0); i < totalPages; i++ {
		page := vmm.PageFromAddress(vaddr).AddSaturating(uintptr(i))
		frame := firstFrame.AddSaturating(uintptr(i))
		if err := mapper.Map(page, frame, flags, frameAlloc.AllocFrame); err != nil {
			return nil, 0, err
		}
	}

	modules := make([]bootinfo.Module, 0, len(plan))
	var offset uint64
	base := firstFrame.Address()
	for _, p := range plan {
		f, err := fs.Open(dir + "\\" + p.entry.Name)
		if err != nil {
			return nil, 0, errModuleRead
		}
		data := make([]byte, p.entry.Size)
		if p.entry.Size > 0 {
			if _, err := f.ReadAt(data, 0); err != nil {
				return nil, 0, errModuleRead
			}
		}
		writer.WriteAt(base+uintptr(offset), data)

		var name [64]byte
		copy(name[:], truncateUTF8(p.entry.Name, 64))

		modules = append(modules, bootinfo.Module{
			Name:   name,
			Offset: offset,
			Len:    uint64(p.entry.Size),
		})
		offset += p.pages * pageSize
	}

	return modules, vaddr, nil
}

func truncateUTF8(s string, max int) []byte {
	b := []byte(s)
	if len(b) <= max {
		return b
	}
	for len(b) > max {
		b = b[:len(b)-1]
		for len(b) > 0 && !utf8.RuneStart(b[len(b)-1]) {
			b = b[:len(b)-1]
		}
	}
	return b
}
