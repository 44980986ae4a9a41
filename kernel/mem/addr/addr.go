// Package addr implements the portable half of the bootloader's address
// algebra: canonical virtual and physical addresses. The architecture-
// specific canonicalization rule lives in addr_amd64.go / addr_arm64.go.
package addr

import (
	"math"

	"github.com/uefiboot/uefiboot/kernel"
	"github.com/uefiboot/uefiboot/kernel/mem"
)

// ErrNonCanonical is returned by New when the supplied value is not a
// canonical address for the running architecture.
var ErrNonCanonical = &kernel.Error{Module: "addr", Message: "address is not canonical"}

// Virtual is a canonical virtual address.
type Virtual uintptr

// Physical is a canonical physical address.
type Physical uintptr

// NewVirtual validates addr and returns it as a Virtual address, or
// ErrNonCanonical if addr is not canonical.
func NewVirtual(addr uintptr) (Virtual, *kernel.Error) {
	if !isCanonicalVirtual(addr) {
		return 0, ErrNonCanonical
	}
	return Virtual(addr), nil
}

// NewCanonicalVirtual masks/sign-extends addr into a canonical virtual
// address. It never fails.
func NewCanonicalVirtual(addr uintptr) Virtual {
	return Virtual(canonicalizeVirtual(addr))
}

// NewPhysical validates addr and returns it as a Physical address, or
// ErrNonCanonical if addr is not canonical.
func NewPhysical(addr uintptr) (Physical, *kernel.Error) {
	if !isCanonicalPhysical(addr) {
		return 0, ErrNonCanonical
	}
	return Physical(addr), nil
}

// NewCanonicalPhysical masks addr into a canonical physical address. It
// never fails.
func NewCanonicalPhysical(addr uintptr) Physical {
	return Physical(canonicalizePhysical(addr))
}

// Value returns the raw address value.
func (v Virtual) Value() uintptr { return uintptr(v) }

// Value returns the raw address value.
func (p Physical) Value() uintptr { return uintptr(p) }

// PageOffset returns the offset of v within its containing page.
func (v Virtual) PageOffset() uintptr {
	return uintptr(v) & uintptr(mem.PageSize-1)
}

// PageOffset returns the offset of p within its containing frame.
func (p Physical) PageOffset() uintptr {
	return uintptr(p) & uintptr(mem.PageSize-1)
}

// maxVirtual is the largest representable virtual address value before
// saturation.
const maxVirtual = Virtual(math.MaxUint64)

// AddSaturating returns v+delta, saturating at the maximum representable
// value instead of wrapping around.
func (v Virtual) AddSaturating(delta uintptr) Virtual {
	if uintptr(v) > uintptr(maxVirtual)-delta {
		return maxVirtual
	}
	return v + Virtual(delta)
}

// SubSaturating returns v-delta, saturating at zero instead of wrapping
// around.
func (v Virtual) SubSaturating(delta uintptr) Virtual {
	if uintptr(v) < delta {
		return 0
	}
	return v - Virtual(delta)
}

// AddSaturating returns p+delta, saturating at the maximum representable
// value instead of wrapping around.
func (p Physical) AddSaturating(delta uintptr) Physical {
	if uintptr(p) > uintptr(math.MaxUint64)-delta {
		return Physical(math.MaxUint64)
	}
	return p + Physical(delta)
}

// SubSaturating returns p-delta, saturating at zero instead of wrapping
// around.
func (p Physical) SubSaturating(delta uintptr) Physical {
	if uintptr(p) < delta {
		return 0
	}
	return p - Physical(delta)
}
