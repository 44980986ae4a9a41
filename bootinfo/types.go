// Package bootinfo builds the BootInformation record the kernel receives
// as its single argument at handoff: a header followed in contiguous
// memory by the memory-region, module and ELF-section arrays it
// describes.
package bootinfo

import "github.com/uefiboot/uefiboot/firmware"

// MemoryRegionKind classifies a MemoryRegion. Usable covers every
// firmware descriptor type the kernel may reclaim once it owns the
// machine (Conventional, LoaderCode, LoaderData, BootServicesCode,
// BootServicesData); everything else is reported verbatim via UefiTag
// so the kernel can make its own call about types this bootloader
// doesn't special-case.
type MemoryRegionKind struct {
	Usable  bool
	UefiTag uint32
}

// MemoryRegion describes one half-open physical range [Start, End) and
// its kind, translated from a single firmware.MemoryDescriptor.
type MemoryRegion struct {
	Start uint64
	End   uint64
	Kind  MemoryRegionKind
}

// Module describes one file loaded from the modules directory.
type Module struct {
	Name   [64]byte
	Offset uint64
	Len    uint64
}

// FramebufferInfo describes the linear framebuffer window, when the
// firmware exposed a usable graphics mode.
type FramebufferInfo struct {
	Addr   uint64
	Size   uint64
	Width  uint32
	Height uint32
	Stride uint32
	Format firmware.PixelFormat
}

// Header is the fixed-size prefix of a BootInformation record. The three
// trailing arrays are addressed relative to the record's own base
// address rather than via Go pointers, since the kernel reads this
// record under its own address space with no Go runtime of its own.
type Header struct {
	MemoryRegionsOffset uint64
	MemoryRegionsCount  uint64
	ModulesOffset       uint64
	ModulesCount        uint64
	ElfSectionsOffset   uint64
	ElfSectionsCount    uint64

	EntryPoint uint64
	RSDPAddr   uint64
	HasRSDP    bool

	HasFramebuffer bool
	Framebuffer    FramebufferInfo
}
