package vmm

// Native aarch64 PTE bit layout, stage-1, 4KiB granule: PRESENT is bit 0,
// an internal page-descriptor bit distinguishing a page from a table
// descriptor is bit 1, AP[2] (bit 7) is the access-permission bit — it is
// inverted relative to the portable WRITABLE flag (clear means
// read-write, set means read-only) — and UXN|PXN (bits 54 and 53) both
// have to be set to forbid execution in both unprivileged and privileged
// contexts. Bits [12:48) hold the output address.
const (
	presentBit        = uint64(1) << 0
	pageDescriptorBit = uint64(1) << 1
	apReadOnlyBit     = uint64(1) << 7
	uxnBit            = uint64(1) << 54
	pxnBit            = uint64(1) << 53

	pteFrameMask = uint64(0x0000_ffff_ffff_f000)
)

// tableFlags is the native encoding always used for intermediate
// (non-leaf) table descriptors.
const tableFlags = presentBit | pageDescriptorBit

func encodePTEFlags(flags PteFlags) uint64 {
	native := presentBit | pageDescriptorBit
	if !flags.Has(FlagWritable) {
		native |= apReadOnlyBit
	}
	if flags.Has(FlagNoExecute) {
		native |= uxnBit | pxnBit
	}
	return native
}
