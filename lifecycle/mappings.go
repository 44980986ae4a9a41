package lifecycle

import (
	"github.com/uefiboot/uefiboot/bootinfo"
	"github.com/uefiboot/uefiboot/firmware"
	"github.com/uefiboot/uefiboot/kernel"
	"github.com/uefiboot/uefiboot/kernel/mem/pmm"
	"github.com/uefiboot/uefiboot/kernel/mem/vmm"
)

var (
	errStackMapping       = &kernel.Error{Module: "lifecycle", Message: "failed to map stack"}
	errTrampolineMapping  = &kernel.Error{Module: "lifecycle", Message: "failed to map trampoline identity page"}
	errFramebufferMapping = &kernel.Error{Module: "lifecycle", Message: "failed to map framebuffer window"}
	errUnsupportedMode    = &kernel.Error{Module: "lifecycle", Message: "graphics mode is not a supported linear RGB/BGR framebuffer"}
)

// mapStack reserves stackPages+1 virtual pages and maps the top
// stackPages of them PRESENT|WRITABLE|NO_EXECUTE, leaving the lowest
// page — the guard — entirely unmapped, per spec.md §4.7's "allocate
// frames for pages start+1..=end, leaving start unmapped" description.
// Returns the stack top (the address one past the highest mapped byte).
func mapStack(mapper Mapper, pageAlloc VirtualReserver, frameAlloc FrameSource, stackPages int) (uintptr, *kernel.Error) {
	totalPages := uint64(stackPages) + 1
	base, verr := pageAlloc.GetFreeAddress(totalPages * pageSize)
	if verr != nil {
		return 0, errStackMapping
	}

	flags := vmm.FlagPresent | vmm.FlagWritable | vmm.FlagNoExecute
	start := vmm.PageFromAddress(base)
	for i := uint64(1); i <= uint64(stackPages); i++ {
		page := start.AddSaturating(uintptr(i))
		frame, ferr := frameAlloc.AllocFrame()
		if ferr != nil {
			return 0, errStackMapping
		}
		if err := mapper.Map(page, frame, flags, frameAlloc.AllocFrame); err != nil {
			return 0, errStackMapping
		}
	}

	stackTop := base + uintptr(totalPages*pageSize)
	return stackTop, nil
}

// mapTrampolineIdentity maps trampolinePhysAddr to the numerically
// identical virtual address, PRESENT only (no WRITABLE, no NO_EXECUTE):
// the one page of code that must remain executable under both the old
// and new mapping across the switch in CR3/TTBR0_EL1.
func mapTrampolineIdentity(mapper Mapper, frameAlloc FrameSource, trampolinePhysAddr uintptr) *kernel.Error {
	page := vmm.PageFromAddress(trampolinePhysAddr)
	frame := pmm.FrameFromAddress(trampolinePhysAddr)
	if err := mapper.Map(page, frame, vmm.FlagPresent, frameAlloc.AllocFrame); err != nil {
		return errTrampolineMapping
	}
	return nil
}

// mapFramebuffer reserves a virtual window the size of the firmware's
// reported framebuffer and maps it PRESENT|WRITABLE directly onto the
// firmware-reported physical base — those frames come from the
// framebuffer hardware, not the frame allocator, because the memory map
// already reserves them (spec.md §4.7). mode.Format must be RGB or BGR;
// any other mode (bitmask, BLT-only) is rejected fatally by the caller
// before this is reached — see validateGraphicsMode.
func mapFramebuffer(mapper Mapper, pageAlloc VirtualReserver, frameAlloc FrameSource, mode firmware.GraphicsMode) (bootinfo.FramebufferInfo, *kernel.Error) {
	vaddr, verr := pageAlloc.GetFreeAddress(mode.FrameBufferSize)
	if verr != nil {
		return bootinfo.FramebufferInfo{}, errFramebufferMapping
	}

	numPages := (mode.FrameBufferSize + pageSize - 1) / pageSize
	flags := vmm.FlagPresent | vmm.FlagWritable
	for i := uint64(0); i < numPages; i++ {
		page := vmm.PageFromAddress(vaddr).AddSaturating(uintptr(i))
		frame := pmm.FrameFromAddress(uintptr(mode.FrameBufferBase)).AddSaturating(uintptr(i))
		if err := mapper.Map(page, frame, flags, frameAlloc.AllocFrame); err != nil {
			return bootinfo.FramebufferInfo{}, errFramebufferMapping
		}
	}

	return bootinfo.FramebufferInfo{
		Addr:   uint64(vaddr),
		Size:   mode.FrameBufferSize,
		Width:  mode.Width,
		Height: mode.Height,
		Stride: mode.PixelsPerScanLine,
		Format: mode.Format,
	}, nil
}

// validateGraphicsMode rejects every graphics-output mode this core
// cannot drive as a simple linear framebuffer. A bitmask-format or
// BLT-only mode is a fatal firmware-protocol error (spec.md §8
// taxonomy), not a degraded-functionality path: there is no fallback
// text-mode console once the bootloader has committed to a framebuffer
// console.
func validateGraphicsMode(mode firmware.GraphicsMode) *kernel.Error {
	switch mode.Format {
	case firmware.PixelFormatRGB, firmware.PixelFormatBGR:
		return nil
	default:
		return errUnsupportedMode
	}
}
