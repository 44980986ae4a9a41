package lifecycle

import (
	"github.com/uefiboot/uefiboot/bootinfo"
	"github.com/uefiboot/uefiboot/firmware"
	"github.com/uefiboot/uefiboot/kernel"
	"github.com/uefiboot/uefiboot/loader"
)

var (
	errExitBootServices = &kernel.Error{Module: "lifecycle", Message: "firmware exit-boot-services call failed"}
	errOpenKernel       = &kernel.Error{Module: "lifecycle", Message: "failed to open kernel image"}
)

// PageAllocator is the full surface the controller needs from the page
// allocator: reservation (used directly, and passed on to the loader
// and module loader as VirtualReserver) plus the loader's
// segment-exclusion call (MarkRangeUsed).
type PageAllocator interface {
	GetFreeAddress(lenBytes uint64) (uintptr, *kernel.Error)
	MarkRangeUsed(vaddr uintptr, size uintptr)
}

// JumpFunc matches arch.{amd64,arm64}.JumpToKernel's signature. A boot
// binary passes the real bodyless primitive for its architecture; tests
// substitute a function that records its arguments instead of branching
// away forever.
type JumpFunc func(entryPoint, rootPageTable, stackTop, bootInfoAddr uintptr)

// Controller drives the bootloader through Boot, Runtime and Handoff
// exactly once each, in order. Every firmware collaborator and every
// memory-subsystem component it touches is injected, so RunBoot/
// ExitToRuntime/Handoff are exercisable against fakes.
type Controller struct {
	cfg   Config
	state State

	fs     firmware.FileSystem
	boot   firmware.BootServices
	gop    firmware.GraphicsOutput
	tables firmware.ConfigTables

	frameAlloc     FrameSource
	pageAlloc      PageAllocator
	newMapper      Mapper
	firmwareMapper Mapper
	writer         MemoryWriter

	rootPageTableFrame uintptr
	jump               JumpFunc

	entryPoint  uint64
	sections    []loader.ElfSection
	modules     []bootinfo.Module
	stackTop    uintptr
	framebuffer *bootinfo.FramebufferInfo
	rsdpAddr    uint64
	hasRSDP     bool
}

// NewController assembles a Controller ready to run Boot. rootPageTableFrame
// is the physical frame of the root of the table newMapper owns — it is
// threaded through separately because the Mapper interface, by design
// (matching spec.md §4.4), does not expose its own root frame as part of
// the narrow collaborator surface the loader and bootinfo packages see.
func NewController(cfg Config, fs firmware.FileSystem, boot firmware.BootServices, gop firmware.GraphicsOutput, tables firmware.ConfigTables, frameAlloc FrameSource, pageAlloc PageAllocator, newMapper, firmwareMapper Mapper, rootPageTableFrame uintptr, writer MemoryWriter, jump JumpFunc) *Controller {
	return &Controller{
		cfg:                cfg,
		state:              Boot,
		fs:                 fs,
		boot:               boot,
		gop:                gop,
		tables:             tables,
		frameAlloc:         frameAlloc,
		pageAlloc:          pageAlloc,
		newMapper:          newMapper,
		firmwareMapper:     firmwareMapper,
		rootPageTableFrame: rootPageTableFrame,
		writer:             writer,
		jump:               jump,
	}
}

// RunBoot performs every Boot-state responsibility: load the kernel
// image, load auxiliary modules, set up the stack/trampoline/
// framebuffer mappings, and look up the RSDP. It must run exactly once,
// before ExitToRuntime.
func (c *Controller) RunBoot(trampolinePhysAddr uintptr) *kernel.Error {
	kernelFile, err := c.fs.Open(c.cfg.KernelPath)
	if err != nil {
		return errOpenKernel
	}

	result, lerr := loader.Load(kernelFile, c.newMapper, c.pageAlloc, segmentWriterAdapter{c.writer}, c.frameAlloc.AllocFrame, loader.HonorPhysical)
	if lerr != nil {
		return lerr
	}
	c.entryPoint = result.EntryPoint
	c.sections = result.Sections

	modules, _, merr := LoadModules(c.fs, c.cfg.ModulesDir, c.newMapper, c.pageAlloc, c.frameAlloc, c.writer)
	if merr != nil {
		return merr
	}
	c.modules = modules

	stackTop, serr := mapStack(c.newMapper, c.pageAlloc, c.frameAlloc, c.cfg.StackPages)
	if serr != nil {
		return serr
	}
	c.stackTop = stackTop

	if terr := mapTrampolineIdentity(c.newMapper, c.frameAlloc, trampolinePhysAddr); terr != nil {
		return terr
	}

	if c.gop != nil {
		mode, gerr := c.gop.Mode()
		if gerr == nil {
			if verr := validateGraphicsMode(mode); verr != nil {
				return verr
			}
			fb, ferr := mapFramebuffer(c.newMapper, c.pageAlloc, c.frameAlloc, mode)
			if ferr != nil {
				return ferr
			}
			c.framebuffer = &fb
			attachConsole(mode)
		}
	}

	if c.tables != nil {
		if addr, ok := lookupRSDP(c.tables); ok {
			c.rsdpAddr, c.hasRSDP = addr, true
		}
	}

	return nil
}

// ExitToRuntime calls the firmware's one-way exit-boot-services
// transition, translates the returned final memory map, builds the
// boot-info record, and advances the controller to Runtime. Must run
// after RunBoot and before Handoff.
func (c *Controller) ExitToRuntime() (uintptr, *kernel.Error) {
	if err := advance(c.state, Runtime); err != nil {
		return 0, err
	}

	finalMap, err := c.boot.ExitBootServices()
	if err != nil {
		return 0, errExitBootServices
	}

	var descs []firmware.MemoryDescriptor
	for {
		d, ok := finalMap.Next()
		if !ok {
			break
		}
		descs = append(descs, d)
	}
	regions := bootinfo.TranslateMemoryMap(descs)

	vaddr, berr := bootinfo.Build(c.newMapper, c.firmwareMapper, c.pageAlloc, c.frameAlloc, c.writer, bootinfo.Input{
		Modules:     c.modules,
		ElfSections: c.sections,
		Regions:     regions,
		EntryPoint:  c.entryPoint,
		RSDPAddr:    c.rsdpAddr,
		HasRSDP:     c.hasRSDP,
		Framebuffer: c.framebuffer,
	})
	if berr != nil {
		return 0, berr
	}

	c.state = Runtime
	return vaddr, nil
}

// Handoff populates the architecture's register context and branches to
// the kernel. It never returns on real hardware; jump is expected to be
// JumpFunc wired to the real trampoline in production.
func (c *Controller) Handoff(bootInfoAddr uintptr) *kernel.Error {
	if err := advance(c.state, Handoff); err != nil {
		return err
	}
	c.state = Handoff
	c.jump(uintptr(c.entryPoint), c.rootPageTableFrame, c.stackTop, bootInfoAddr)
	return nil
}

// segmentWriterAdapter adapts MemoryWriter (WriteAt only) to
// loader.SegmentWriter (WriteAt + Zero), since the loader needs an
// explicit BSS zero-fill operation the boot-info builder never does.
type segmentWriterAdapter struct {
	w MemoryWriter
}

func (a segmentWriterAdapter) WriteAt(physAddr uintptr, data []byte) {
	a.w.WriteAt(physAddr, data)
}

func (a segmentWriterAdapter) Zero(physAddr uintptr, length uintptr) {
	a.w.WriteAt(physAddr, make([]byte, length))
}
