package bootinfo

import (
	"encoding/binary"

	"github.com/uefiboot/uefiboot/loader"
)

const layoutAlign = 8

func alignUp(n uint64, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// Layout is the computed composite memory layout of a BootInformation
// record: a header, then three successively-aligned arrays. Grounded on
// the original implementation's Layout type, which extends a running
// size counter once per array rather than precomputing fixed offsets.
type Layout struct {
	HeaderSize uint64

	MemoryRegionsOffset uint64
	MemoryRegionsSize   uint64

	ModulesOffset uint64
	ModulesSize   uint64

	ElfSectionsOffset uint64
	ElfSectionsSize   uint64

	TotalSize uint64
}

// ComputeLayout lays out a record able to hold numRegions memory
// regions, numModules modules and numSections ELF sections.
func ComputeLayout(numRegions, numModules, numSections int) Layout {
	var l Layout
	l.HeaderSize = uint64(binary.Size(Header{}))

	offset := alignUp(l.HeaderSize, layoutAlign)
	l.MemoryRegionsOffset = offset
	l.MemoryRegionsSize = uint64(numRegions) * uint64(binary.Size(MemoryRegion{}))
	offset = alignUp(offset+l.MemoryRegionsSize, layoutAlign)

	l.ModulesOffset = offset
	l.ModulesSize = uint64(numModules) * uint64(binary.Size(Module{}))
	offset = alignUp(offset+l.ModulesSize, layoutAlign)

	l.ElfSectionsOffset = offset
	l.ElfSectionsSize = uint64(numSections) * uint64(binary.Size(loader.ElfSection{}))
	offset = alignUp(offset+l.ElfSectionsSize, layoutAlign)

	l.TotalSize = offset
	return l
}
