package cpu

// Halt stops instruction execution.
func Halt()

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr
