package vmm

// On aarch64 the four 9-bit indices are named P0 (highest) through P3
// (lowest), derived from the page number exactly as x86_64 derives
// P4..P1 — the naming differs, the bit slicing does not.

const pageTableLevels = 4

func (p Page) p0Index() uintptr { return (uintptr(p) >> 27) & 0x1ff }
func (p Page) p1Index() uintptr { return (uintptr(p) >> 18) & 0x1ff }
func (p Page) p2Index() uintptr { return (uintptr(p) >> 9) & 0x1ff }
func (p Page) p3Index() uintptr { return uintptr(p) & 0x1ff }

// topLevelIndex returns the top-level (L0) index used by PageAllocator.
func (p Page) topLevelIndex() uintptr { return p.p0Index() }

// pageIndices returns the four page-table indices for p, ordered from the
// root (L0) down to the leaf (L3).
func pageIndices(p Page) [pageTableLevels]uintptr {
	return [pageTableLevels]uintptr{p.p0Index(), p.p1Index(), p.p2Index(), p.p3Index()}
}
