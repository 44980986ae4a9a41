package vmm

// On x86_64 a page number is sliced into four 9-bit indices, one per page-
// table level: P4 (bits [39:48) of the page number's corresponding address
// bits [39:48)), P3, P2 and P1.

const pageTableLevels = 4

func (p Page) p4Index() uintptr { return (uintptr(p) >> 27) & 0x1ff }
func (p Page) p3Index() uintptr { return (uintptr(p) >> 18) & 0x1ff }
func (p Page) p2Index() uintptr { return (uintptr(p) >> 9) & 0x1ff }
func (p Page) p1Index() uintptr { return uintptr(p) & 0x1ff }

// topLevelIndex returns the top-level (P4) index used by PageAllocator.
func (p Page) topLevelIndex() uintptr { return p.p4Index() }

// pageIndices returns the four page-table indices for p, ordered from the
// root (P4) down to the leaf (P1).
func pageIndices(p Page) [pageTableLevels]uintptr {
	return [pageTableLevels]uintptr{p.p4Index(), p.p3Index(), p.p2Index(), p.p1Index()}
}
