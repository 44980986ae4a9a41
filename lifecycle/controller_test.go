package lifecycle

import (
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/uefiboot/uefiboot/firmware"
)

// buildMinimalELF64 mirrors the loader package's own test helper at a
// much smaller scope: one RX LOAD segment, no section headers, enough
// for the controller-level wiring tests below to exercise RunBoot
// end-to-end.
func buildMinimalELF64(entry uint64) []byte {
	const ehsize, phsize = 64, 56
	phoff := uint64(ehsize)
	dataOff := phoff + phsize
	data := []byte{0x90}

	buf := make([]byte, dataOff+uint64(len(data)))
	copy(buf[0:4], "\x7fELF")
	buf[4] = 2
	buf[5] = 1
	buf[6] = 1
	binary.LittleEndian.PutUint16(buf[16:18], uint16(elf.ET_EXEC))
	binary.LittleEndian.PutUint16(buf[18:20], uint16(elf.EM_X86_64))
	binary.LittleEndian.PutUint32(buf[20:24], 1)
	binary.LittleEndian.PutUint64(buf[24:32], entry)
	binary.LittleEndian.PutUint64(buf[32:40], phoff)
	binary.LittleEndian.PutUint16(buf[52:54], ehsize)
	binary.LittleEndian.PutUint16(buf[54:56], phsize)
	binary.LittleEndian.PutUint16(buf[56:58], 1)

	ph := buf[phoff : phoff+phsize]
	binary.LittleEndian.PutUint32(ph[0:4], uint32(elf.PT_LOAD))
	binary.LittleEndian.PutUint32(ph[4:8], uint32(elf.PF_R|elf.PF_X))
	binary.LittleEndian.PutUint64(ph[8:16], dataOff)
	binary.LittleEndian.PutUint64(ph[16:24], entry)
	binary.LittleEndian.PutUint64(ph[24:32], entry)
	binary.LittleEndian.PutUint64(ph[32:40], uint64(len(data)))
	binary.LittleEndian.PutUint64(ph[40:48], uint64(len(data)))
	binary.LittleEndian.PutUint64(ph[48:56], 4096)

	copy(buf[dataOff:], data)
	return buf
}

func newTestController(t *testing.T, jump JumpFunc) (*Controller, *fakeFileSystem) {
	t.Helper()
	fs := newFakeFileSystem()
	fs.files["\\kernel.elf"] = &fakeFile{data: buildMinimalELF64(0xFFFF800000000000)}
	fs.dirs["\\modules"] = nil

	cfg := DefaultConfig()
	mapper := &fakeMapper{}
	pageAlloc := &fakePageAllocator{nextAddr: 0x50_0000_0000}
	frames := &fakeFrameSource{next: 10}
	writer := newFakeWriter()

	c := NewController(cfg, fs, &fakeBootServices{}, nil, nil, frames, pageAlloc, mapper, mapper, 0x1000, writer, jump)
	return c, fs
}

func TestControllerFullLifecycle(t *testing.T) {
	var jumped bool
	var gotEntry, gotRoot, gotStack, gotInfo uintptr

	jump := func(entry, root, stack, info uintptr) {
		jumped = true
		gotEntry, gotRoot, gotStack, gotInfo = entry, root, stack, info
	}

	c, _ := newTestController(t, jump)

	if err := c.RunBoot(0x1000); err != nil {
		t.Fatalf("RunBoot returned error: %v", err)
	}
	if c.entryPoint != 0xFFFF800000000000 {
		t.Fatalf("entryPoint = %#x, want %#x", c.entryPoint, uint64(0xFFFF800000000000))
	}

	bootInfoAddr, err := c.ExitToRuntime()
	if err != nil {
		t.Fatalf("ExitToRuntime returned error: %v", err)
	}
	if c.state != Runtime {
		t.Fatalf("state = %v, want Runtime", c.state)
	}

	if err := c.Handoff(bootInfoAddr); err != nil {
		t.Fatalf("Handoff returned error: %v", err)
	}
	if c.state != Handoff {
		t.Fatalf("state = %v, want Handoff", c.state)
	}
	if !jumped {
		t.Fatal("expected jump to be invoked")
	}
	if gotEntry != uintptr(c.entryPoint) {
		t.Errorf("jump entry = %#x, want %#x", gotEntry, c.entryPoint)
	}
	if gotRoot != 0x1000 {
		t.Errorf("jump root = %#x, want %#x", gotRoot, uintptr(0x1000))
	}
	if gotStack != c.stackTop {
		t.Errorf("jump stack = %#x, want %#x", gotStack, c.stackTop)
	}
	if gotInfo != bootInfoAddr {
		t.Errorf("jump bootInfoAddr = %#x, want %#x", gotInfo, bootInfoAddr)
	}
}

func TestControllerRejectsHandoffBeforeRuntime(t *testing.T) {
	c, _ := newTestController(t, func(uintptr, uintptr, uintptr, uintptr) {})
	if err := c.RunBoot(0x1000); err != nil {
		t.Fatalf("RunBoot returned error: %v", err)
	}
	if err := c.Handoff(0); err == nil {
		t.Fatal("expected Handoff to be rejected before ExitToRuntime")
	}
}

func TestControllerRejectsUnsupportedGraphicsMode(t *testing.T) {
	fs := newFakeFileSystem()
	fs.files["\\kernel.elf"] = &fakeFile{data: buildMinimalELF64(0x400000)}
	fs.dirs["\\modules"] = nil

	gop := &fakeGraphicsOutput{mode: firmware.GraphicsMode{Format: firmware.PixelFormatUnsupported}}
	mapper := &fakeMapper{}
	pageAlloc := &fakePageAllocator{nextAddr: 0x60_0000_0000}
	frames := &fakeFrameSource{next: 1}

	c := NewController(DefaultConfig(), fs, &fakeBootServices{}, gop, nil, frames, pageAlloc, mapper, mapper, 0x2000, newFakeWriter(), nil)

	if err := c.RunBoot(0x2000); err == nil {
		t.Fatal("expected RunBoot to reject an unsupported graphics mode")
	}
}

func TestControllerAttachesConsoleForSupportedGraphicsMode(t *testing.T) {
	fs := newFakeFileSystem()
	fs.files["\\kernel.elf"] = &fakeFile{data: buildMinimalELF64(0x400000)}
	fs.dirs["\\modules"] = nil

	gop := &fakeGraphicsOutput{mode: firmware.GraphicsMode{
		Format:            firmware.PixelFormatRGB,
		Width:             0,
		Height:            0,
		PixelsPerScanLine: 0,
		FrameBufferBase:   0x80000000,
		FrameBufferSize:   0,
	}}
	mapper := &fakeMapper{}
	pageAlloc := &fakePageAllocator{nextAddr: 0x60_0000_0000}
	frames := &fakeFrameSource{next: 1}

	c := NewController(DefaultConfig(), fs, &fakeBootServices{}, gop, nil, frames, pageAlloc, mapper, mapper, 0x2000, newFakeWriter(), nil)

	// A supported mode with no builtin font/logo registered must not
	// panic: attachConsole's SetFont/SetLogo calls are no-ops when
	// font.BestFit/logo.BestFit return nil.
	if err := c.RunBoot(0x2000); err != nil {
		t.Fatalf("RunBoot returned error for a supported graphics mode: %v", err)
	}
	if c.framebuffer == nil {
		t.Fatal("expected framebuffer info to be recorded for a supported graphics mode")
	}
}
