package vmm

// x86_64 page-table writes are visible to the MMU without an explicit
// barrier; the bootloader never tears down or remaps a live mapping, so
// there is no stale TLB entry for the Mapper to invalidate here.
func postMapBarrier() {}
