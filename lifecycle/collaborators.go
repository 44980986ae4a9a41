package lifecycle

import "github.com/uefiboot/uefiboot/bootinfo"

// Mapper, VirtualReserver, FrameSource and MemoryWriter are the same
// narrow collaborator interfaces loader and bootinfo inject, reused
// here by alias so the controller, the module loader and the mapping
// setup code all speak of one type per concern instead of three
// structurally-identical ones.
type (
	Mapper          = bootinfo.Mapper
	VirtualReserver = bootinfo.VirtualReserver
	FrameSource     = bootinfo.FrameSource
	MemoryWriter    = bootinfo.MemoryWriter
)
