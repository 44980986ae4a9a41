package vmm

import "github.com/uefiboot/uefiboot/kernel/mem/pmm"

// pageTableEntry is a raw page-table slot. The native bit layout is
// architecture-specific (see pte_amd64.go / pte_arm64.go); portable code
// only ever constructs one via set() and reads it back via IsPresent()/Frame().
type pageTableEntry uint64

// IsPresent reports whether the entry's PRESENT bit is set.
func (pte pageTableEntry) IsPresent() bool {
	return uint64(pte)&presentBit != 0
}

// Frame returns the physical frame this entry points to.
func (pte pageTableEntry) Frame() pmm.Frame {
	return pmm.FrameFromAddress(uintptr(uint64(pte) & pteFrameMask))
}

// set writes frame and the native encoding of flags into the entry,
// replacing whatever was there before.
func (pte *pageTableEntry) set(frame pmm.Frame, flags PteFlags) {
	*pte = pageTableEntry((uint64(frame.Address()) & pteFrameMask) | encodePTEFlags(flags))
}

// setTable writes frame into the entry using the native intermediate-table
// encoding (tableFlags), always present and always permissive — the leaf
// entry further down the walk is what actually restricts access.
func (pte *pageTableEntry) setTable(frame pmm.Frame) {
	*pte = pageTableEntry((uint64(frame.Address()) & pteFrameMask) | tableFlags)
}
