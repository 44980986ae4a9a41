package cpu

// Halt stops instruction execution.
func Halt()

// ActivePDT returns the physical address currently installed in TTBR0_EL1.
func ActivePDT() uintptr

// InstructionBarrier executes an ISB, ensuring that a prior translation-
// table write is visible before any subsequent instruction fetch depends
// on it.
func InstructionBarrier()
