package mem

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)).
	PointerShift = 3

	// PageShift is equal to log2(PageSize).
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)
)
