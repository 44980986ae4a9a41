package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/uefiboot/uefiboot/kernel"
	"github.com/uefiboot/uefiboot/kernel/mem/pmm"
	"github.com/uefiboot/uefiboot/kernel/mem/vmm"
)

// fakeMapper records every Map call instead of touching real page tables.
type fakeMapper struct {
	calls []mapCall
}

type mapCall struct {
	page  vmm.Page
	frame pmm.Frame
	flags vmm.PteFlags
}

func (m *fakeMapper) Map(page vmm.Page, frame pmm.Frame, flags vmm.PteFlags, allocFrame vmm.FrameAllocatorFunc) *kernel.Error {
	m.calls = append(m.calls, mapCall{page, frame, flags})
	return nil
}

type fakeReserver struct {
	marked []uintptr
}

func (r *fakeReserver) MarkRangeUsed(vaddr uintptr, size uintptr) {
	r.marked = append(r.marked, vaddr)
}

type fakeWriter struct {
	written map[uintptr][]byte
	zeroed  map[uintptr]uintptr
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{written: map[uintptr][]byte{}, zeroed: map[uintptr]uintptr{}}
}

func (w *fakeWriter) WriteAt(physAddr uintptr, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	w.written[physAddr] = cp
}

func (w *fakeWriter) Zero(physAddr uintptr, length uintptr) {
	w.zeroed[physAddr] = length
}

func sequentialFrames(start pmm.Frame) vmm.FrameAllocatorFunc {
	next := start
	return func() (pmm.Frame, *kernel.Error) {
		f := next
		next++
		return f, nil
	}
}

// buildMinimalELF64 constructs the smallest valid little-endian ELF64
// executable with a single LOAD segment, matching scenario 1 from the
// loader's invariant set: one page, R|X, one 0x90 byte.
func buildMinimalELF64(vaddr, paddr uint64, filesz, memsz uint64, flags uint32, data []byte, entry uint64) []byte {
	const ehsize = 64
	const phsize = 56
	phoff := uint64(ehsize)
	dataOff := phoff + phsize

	buf := make([]byte, dataOff+uint64(len(data)))

	copy(buf[0:4], "\x7fELF")
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // little endian
	buf[6] = 1 // EV_CURRENT
	binary.LittleEndian.PutUint16(buf[16:18], uint16(elf.ET_EXEC))
	binary.LittleEndian.PutUint16(buf[18:20], uint16(elf.EM_X86_64))
	binary.LittleEndian.PutUint32(buf[20:24], 1)
	binary.LittleEndian.PutUint64(buf[24:32], entry)
	binary.LittleEndian.PutUint64(buf[32:40], phoff)
	binary.LittleEndian.PutUint64(buf[40:48], 0) // shoff, none
	binary.LittleEndian.PutUint16(buf[52:54], ehsize)
	binary.LittleEndian.PutUint16(buf[54:56], phsize)
	binary.LittleEndian.PutUint16(buf[56:58], 1) // phnum
	binary.LittleEndian.PutUint16(buf[58:60], 0)
	binary.LittleEndian.PutUint16(buf[60:62], 0)
	binary.LittleEndian.PutUint16(buf[62:64], 0)

	ph := buf[phoff : phoff+phsize]
	binary.LittleEndian.PutUint32(ph[0:4], uint32(elf.PT_LOAD))
	binary.LittleEndian.PutUint32(ph[4:8], flags)
	binary.LittleEndian.PutUint64(ph[8:16], dataOff)
	binary.LittleEndian.PutUint64(ph[16:24], vaddr)
	binary.LittleEndian.PutUint64(ph[24:32], paddr)
	binary.LittleEndian.PutUint64(ph[32:40], filesz)
	binary.LittleEndian.PutUint64(ph[40:48], memsz)
	binary.LittleEndian.PutUint64(ph[48:56], 4096)

	copy(buf[dataOff:], data)
	return buf
}

func TestLoadMinimalKernel(t *testing.T) {
	raw := buildMinimalELF64(0xFFFF800000000000, 0, 4096, 4096, uint32(elf.PF_R|elf.PF_X), []byte{0x90}, 0xFFFF800000000000)

	mapper := &fakeMapper{}
	reserver := &fakeReserver{}
	writer := newFakeWriter()

	result, err := Load(bytes.NewReader(raw), mapper, reserver, writer, sequentialFrames(pmm.Frame(10)), AllocatePhysical)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if result.EntryPoint != 0xFFFF800000000000 {
		t.Fatalf("EntryPoint = %#x, want %#x", result.EntryPoint, uint64(0xFFFF800000000000))
	}
	if len(mapper.calls) != 1 {
		t.Fatalf("expected exactly one Map call, got %d", len(mapper.calls))
	}
	call := mapper.calls[0]
	if !call.flags.Has(vmm.FlagPresent) {
		t.Error("expected FlagPresent")
	}
	if call.flags.Has(vmm.FlagNoExecute) {
		t.Error("R|X segment must not carry NO_EXECUTE")
	}
	if call.flags.Has(vmm.FlagWritable) {
		t.Error("R|X segment must not carry WRITABLE")
	}
	if len(reserver.marked) != 1 {
		t.Fatalf("expected exactly one reservation, got %d", len(reserver.marked))
	}
}

func TestLoadZeroFillsBSS(t *testing.T) {
	raw := buildMinimalELF64(0x400000, 0, 4096, 8192, uint32(elf.PF_R|elf.PF_W), make([]byte, 4096), 0x400000)

	mapper := &fakeMapper{}
	reserver := &fakeReserver{}
	writer := newFakeWriter()

	_, err := Load(bytes.NewReader(raw), mapper, reserver, writer, sequentialFrames(pmm.Frame(1)), AllocatePhysical)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(mapper.calls) != 2 {
		t.Fatalf("expected two pages mapped for an 8192-byte segment, got %d", len(mapper.calls))
	}
	if len(writer.zeroed) != 1 {
		t.Fatalf("expected exactly one Zero call, got %d", len(writer.zeroed))
	}
	for _, length := range writer.zeroed {
		if length != 4096 {
			t.Fatalf("BSS zero length = %d, want memsz-filesz = 4096", length)
		}
	}
}

func TestLoadTwoNonOverlappingSegments(t *testing.T) {
	const ehsize, phsize = 64, 56
	phoff := uint64(ehsize)
	data1Off := phoff + 2*phsize
	data1 := []byte{1, 2, 3, 4}
	data2Off := data1Off + uint64(len(data1))
	data2 := []byte{5, 6, 7, 8}

	buf := make([]byte, data2Off+uint64(len(data2)))
	copy(buf[0:4], "\x7fELF")
	buf[4] = 2
	buf[5] = 1
	buf[6] = 1
	binary.LittleEndian.PutUint16(buf[16:18], uint16(elf.ET_EXEC))
	binary.LittleEndian.PutUint16(buf[18:20], uint16(elf.EM_X86_64))
	binary.LittleEndian.PutUint32(buf[20:24], 1)
	binary.LittleEndian.PutUint64(buf[24:32], 0x400000)
	binary.LittleEndian.PutUint64(buf[32:40], phoff)
	binary.LittleEndian.PutUint16(buf[52:54], ehsize)
	binary.LittleEndian.PutUint16(buf[54:56], phsize)
	binary.LittleEndian.PutUint16(buf[56:58], 2)

	ph1 := buf[phoff : phoff+phsize]
	binary.LittleEndian.PutUint32(ph1[0:4], uint32(elf.PT_LOAD))
	binary.LittleEndian.PutUint32(ph1[4:8], uint32(elf.PF_R|elf.PF_X))
	binary.LittleEndian.PutUint64(ph1[8:16], data1Off)
	binary.LittleEndian.PutUint64(ph1[16:24], 0x400000)
	binary.LittleEndian.PutUint64(ph1[24:32], 0x400000)
	binary.LittleEndian.PutUint64(ph1[32:40], uint64(len(data1)))
	binary.LittleEndian.PutUint64(ph1[40:48], uint64(len(data1)))
	binary.LittleEndian.PutUint64(ph1[48:56], 4096)

	ph2 := buf[phoff+phsize : phoff+2*phsize]
	binary.LittleEndian.PutUint32(ph2[0:4], uint32(elf.PT_LOAD))
	binary.LittleEndian.PutUint32(ph2[4:8], uint32(elf.PF_R|elf.PF_W))
	binary.LittleEndian.PutUint64(ph2[8:16], data2Off)
	binary.LittleEndian.PutUint64(ph2[16:24], 0x600000)
	binary.LittleEndian.PutUint64(ph2[24:32], 0x600000)
	binary.LittleEndian.PutUint64(ph2[32:40], uint64(len(data2)))
	binary.LittleEndian.PutUint64(ph2[40:48], uint64(len(data2)))
	binary.LittleEndian.PutUint64(ph2[48:56], 4096)

	copy(buf[data1Off:], data1)
	copy(buf[data2Off:], data2)

	mapper := &fakeMapper{}
	reserver := &fakeReserver{}
	writer := newFakeWriter()

	_, err := Load(bytes.NewReader(buf), mapper, reserver, writer, sequentialFrames(pmm.Frame(1)), AllocatePhysical)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(mapper.calls) != 2 {
		t.Fatalf("expected one mapped page per segment, got %d", len(mapper.calls))
	}
	if mapper.calls[0].page == mapper.calls[1].page {
		t.Fatal("the two segments must not map the same page")
	}
	if !mapper.calls[1].flags.Has(vmm.FlagWritable) {
		t.Error("second segment (R|W) must carry WRITABLE")
	}
}
