// Package firmware declares the external collaborators the bootloader core
// consumes but does not implement: file-system access, the memory map,
// graphics output, configuration-table lookup and boot-service page
// allocation. Concrete UEFI bindings live outside this module; the core
// only ever depends on these interfaces, which keeps it testable with
// in-memory fakes.
package firmware

import "io"

// DescriptorType classifies a single firmware memory-map entry. Only
// Conventional is treated as usable by the frame allocator; the others are
// retained for the boot-info memory-region translation in package bootinfo.
type DescriptorType uint32

// The subset of UEFI memory types the core distinguishes.
const (
	Conventional DescriptorType = iota
	LoaderCode
	LoaderData
	BootServicesCode
	BootServicesData
	RuntimeServicesCode
	RuntimeServicesData
	ACPIReclaimMemory
	ACPIMemoryNVS
	MemoryMappedIO
	MemoryMappedIOPortSpace
	PalCode
	PersistentMemory
	Unusable
	Reserved
)

// MemoryDescriptor is one entry of a firmware-supplied memory map: a type
// tag, a starting physical address, and a page count.
type MemoryDescriptor struct {
	Type          DescriptorType
	PhysicalStart uint64
	NumberOfPages uint64
}

// EndAddress returns the exclusive end address of the descriptor's range.
func (d MemoryDescriptor) EndAddress() uint64 {
	return d.PhysicalStart + d.NumberOfPages*4096
}

// DescriptorIterator walks a firmware memory map in ascending order.
// Clone produces an independent cursor over the same underlying map, which
// the frame allocator uses to answer Len()/MaxPhysAddr() queries without
// disturbing its own allocation cursor.
type DescriptorIterator interface {
	Next() (MemoryDescriptor, bool)
	Clone() DescriptorIterator
	Len() int
}

// SliceIterator adapts a plain slice of descriptors into a
// DescriptorIterator. It is the concrete iterator used both by tests and by
// any binding that has already materialized the firmware's memory map into
// a slice.
type SliceIterator struct {
	descs []MemoryDescriptor
	pos   int
}

// NewSliceIterator returns a DescriptorIterator over descs.
func NewSliceIterator(descs []MemoryDescriptor) *SliceIterator {
	return &SliceIterator{descs: descs}
}

// Next implements DescriptorIterator.
func (it *SliceIterator) Next() (MemoryDescriptor, bool) {
	if it.pos >= len(it.descs) {
		return MemoryDescriptor{}, false
	}
	d := it.descs[it.pos]
	it.pos++
	return d, true
}

// Clone implements DescriptorIterator.
func (it *SliceIterator) Clone() DescriptorIterator {
	return &SliceIterator{descs: it.descs, pos: it.pos}
}

// Len implements DescriptorIterator.
func (it *SliceIterator) Len() int {
	return len(it.descs)
}

// PixelFormat identifies the channel order of a linear framebuffer.
type PixelFormat uint8

// The two pixel formats the core accepts, plus PixelFormatUnsupported
// standing in for every UEFI graphics-output mode this core refuses to
// drive (bitmask formats, BLT-only framebuffers): any other mode must
// be rejected fatally by the caller.
const (
	PixelFormatRGB PixelFormat = iota
	PixelFormatBGR
	PixelFormatUnsupported
)

// GraphicsMode describes the active graphics-output-protocol mode.
type GraphicsMode struct {
	Width, Height  uint32
	PixelsPerScanLine uint32
	Format         PixelFormat
	FrameBufferBase uint64
	FrameBufferSize uint64
}

// GraphicsOutput is the subset of the UEFI graphics-output protocol the
// core consumes.
type GraphicsOutput interface {
	Mode() (GraphicsMode, error)
}

// GUID identifies a firmware configuration table.
type GUID [16]byte

// ACPI2GUID and ACPI1GUID are the configuration-table GUIDs the core
// probes, in preference order, to locate the RSDP.
var (
	ACPI2GUID = GUID{0x8d, 0x79, 0x1b, 0x88, 0x47, 0xf8, 0x85, 0x41, 0xac, 0x65, 0x16, 0x34, 0x5b, 0x84, 0x6c, 0x4d}
	ACPI1GUID = GUID{0x70, 0x8e, 0x17, 0xeb, 0x4f, 0xfc, 0xd3, 0x11, 0xbc, 0x22, 0x00, 0x80, 0xc7, 0x3c, 0x88, 0x81}
)

// ConfigTables is the subset of the firmware system table the core
// consumes to locate the RSDP.
type ConfigTables interface {
	Lookup(guid GUID) (addr uint64, ok bool)
}

// File is an opened firmware file: readable at arbitrary offsets (the
// loader driver re-seeks mid-iteration) with a known size.
type File interface {
	io.ReaderAt
	Size() int64
}

// DirEntry is one entry of a directory listing. Name has already been
// converted from the firmware's native UCS-2 to UTF-8 by the binding
// that produced this value.
type DirEntry struct {
	Name      string
	Size      int64
	Directory bool
}

// FileSystem is the subset of the UEFI simple-file-system protocol the
// core consumes, reached by chaining LoadedImage -> DevicePath ->
// SimpleFileSystem at the firmware boundary (that chain itself is the
// firmware's responsibility, not this package's).
type FileSystem interface {
	Open(path string) (File, error)
	ReadDir(path string) ([]DirEntry, error)
}

// AllocateKind selects how BootServices.AllocatePages interprets its
// address argument.
type AllocateKind uint8

const (
	// AllocateAnyPages lets firmware pick any free physical range.
	AllocateAnyPages AllocateKind = iota
	// AllocateAddress pins the allocation to a caller-supplied physical
	// address (used for the honored-physical-address loader policy).
	AllocateAddress
)

// BootServices is the subset of UEFI boot services the core depends on
// beyond file and graphics access: page allocation and the one-way
// exit-boot-services transition.
type BootServices interface {
	AllocatePages(kind AllocateKind, addr uint64, numPages uint64) (uint64, error)
	ExitBootServices() (DescriptorIterator, error)
}
