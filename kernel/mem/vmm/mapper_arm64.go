package vmm

import "github.com/uefiboot/uefiboot/kernel/cpu"

// aarch64 requires an instruction synchronization barrier after a
// translation-table write before that entry can be relied upon, even
// before any TLB invalidation.
func postMapBarrier() {
	cpu.InstructionBarrier()
}
