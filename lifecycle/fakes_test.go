package lifecycle

import (
	"errors"
	"io"

	"github.com/uefiboot/uefiboot/firmware"
	"github.com/uefiboot/uefiboot/kernel"
	"github.com/uefiboot/uefiboot/kernel/mem/pmm"
	"github.com/uefiboot/uefiboot/kernel/mem/vmm"
)

var errFakeNotExist = errors.New("fake: not found")

type fakeMapper struct {
	calls []fakeMapCall
	fail  bool
}

type fakeMapCall struct {
	page  vmm.Page
	frame pmm.Frame
	flags vmm.PteFlags
}

func (m *fakeMapper) Map(page vmm.Page, frame pmm.Frame, flags vmm.PteFlags, allocFrame vmm.FrameAllocatorFunc) *kernel.Error {
	if m.fail {
		return &kernel.Error{Module: "test", Message: "forced map failure"}
	}
	m.calls = append(m.calls, fakeMapCall{page, frame, flags})
	return nil
}

type fakePageAllocator struct {
	nextAddr uintptr
	marked   []uintptr
	fail     bool
}

func (p *fakePageAllocator) GetFreeAddress(lenBytes uint64) (uintptr, *kernel.Error) {
	if p.fail {
		return 0, &kernel.Error{Module: "test", Message: "no free virtual window"}
	}
	addr := p.nextAddr
	pages := (lenBytes + 4095) / 4096
	p.nextAddr += uintptr(pages) * 4096
	return addr, nil
}

func (p *fakePageAllocator) MarkRangeUsed(vaddr uintptr, size uintptr) {
	p.marked = append(p.marked, vaddr)
}

type fakeFrameSource struct {
	next pmm.Frame
	fail bool
}

func (f *fakeFrameSource) AllocContiguousFrames(n int) (pmm.Frame, *kernel.Error) {
	if f.fail {
		return pmm.InvalidFrame, &kernel.Error{Module: "test", Message: "out of frames"}
	}
	first := f.next
	f.next += pmm.Frame(n)
	return first, nil
}

func (f *fakeFrameSource) AllocFrame() (pmm.Frame, *kernel.Error) {
	if f.fail {
		return pmm.InvalidFrame, &kernel.Error{Module: "test", Message: "out of frames"}
	}
	frame := f.next
	f.next++
	return frame, nil
}

type fakeWriter struct {
	written map[uintptr][]byte
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{written: map[uintptr][]byte{}}
}

func (w *fakeWriter) WriteAt(physAddr uintptr, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	w.written[physAddr] = cp
}

type fakeFile struct {
	data []byte
}

func (f *fakeFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	return n, nil
}

func (f *fakeFile) Size() int64 { return int64(len(f.data)) }

type fakeFileSystem struct {
	files map[string]*fakeFile
	dirs  map[string][]firmware.DirEntry
}

func newFakeFileSystem() *fakeFileSystem {
	return &fakeFileSystem{files: map[string]*fakeFile{}, dirs: map[string][]firmware.DirEntry{}}
}

func (fs *fakeFileSystem) Open(path string) (firmware.File, error) {
	f, ok := fs.files[path]
	if !ok {
		return nil, errFakeNotExist
	}
	return f, nil
}

func (fs *fakeFileSystem) ReadDir(path string) ([]firmware.DirEntry, error) {
	entries, ok := fs.dirs[path]
	if !ok {
		return nil, errFakeNotExist
	}
	return entries, nil
}

type fakeGraphicsOutput struct {
	mode firmware.GraphicsMode
	err  error
}

func (g *fakeGraphicsOutput) Mode() (firmware.GraphicsMode, error) {
	return g.mode, g.err
}

type fakeConfigTables struct {
	table map[firmware.GUID]uint64
}

func (c *fakeConfigTables) Lookup(guid firmware.GUID) (uint64, bool) {
	v, ok := c.table[guid]
	return v, ok
}

type fakeBootServices struct {
	finalMap []firmware.MemoryDescriptor
	err      error
}

func (b *fakeBootServices) AllocatePages(kind firmware.AllocateKind, addr uint64, numPages uint64) (uint64, error) {
	return addr, nil
}

func (b *fakeBootServices) ExitBootServices() (firmware.DescriptorIterator, error) {
	if b.err != nil {
		return nil, b.err
	}
	return firmware.NewSliceIterator(b.finalMap), nil
}
