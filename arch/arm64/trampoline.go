// Package arm64 holds the aarch64 trampoline, the counterpart to
// arch/amd64's JumpToKernel. Register-level primitives that return
// (the TTBR0_EL1 read ActivePDT, InstructionBarrier, Halt) live in kernel/cpu
// instead, one per portable call site.
package arm64

// JumpToKernel installs rootPageTable into TTBR0_EL1, issues the ISB/DSB
// pair required before the new translation takes effect, switches to
// stackTop, and branches to entryPoint with X0 holding bootInfoAddr,
// matching the AAPCS64 calling convention's first argument register. It
// never returns.
func JumpToKernel(entryPoint, rootPageTable, stackTop, bootInfoAddr uintptr)
