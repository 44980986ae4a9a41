package addr

// On x86_64, canonical virtual addresses have bits [47:64) equal to bit 47
// (sign-extension of a 48-bit address space). Canonical physical addresses
// have bits [52:64) cleared (52-bit physical address space).
//
// The canonicalizer is branch-free: shifting left by 16 then arithmetically
// shifting right by 16 sign-extends bit 47 into the top 16 bits in two
// instructions, with no conditional.

func isCanonicalVirtual(a uintptr) bool {
	return canonicalizeVirtual(a) == a
}

func canonicalizeVirtual(a uintptr) uintptr {
	return uintptr(int64(a<<16) >> 16)
}

func isCanonicalPhysical(a uintptr) bool {
	return canonicalizePhysical(a) == a
}

func canonicalizePhysical(a uintptr) uintptr {
	const physMask = (uintptr(1) << 52) - 1
	return a & physMask
}
