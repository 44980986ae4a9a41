package bootinfo

import "github.com/uefiboot/uefiboot/firmware"

// usableDescriptorTypes collapses to MemoryRegionKind{Usable: true}: the
// bootloader's own code/data and the firmware's boot-time allocations
// become ordinary free memory once boot services have exited, in
// addition to memory already tagged conventional.
var usableDescriptorTypes = map[firmware.DescriptorType]bool{
	firmware.Conventional:     true,
	firmware.LoaderCode:       true,
	firmware.LoaderData:       true,
	firmware.BootServicesCode: true,
	firmware.BootServicesData: true,
}

// TranslateMemoryMap converts the firmware's final memory map (taken
// after ExitBootServices) into the kernel-facing MemoryRegion array.
func TranslateMemoryMap(descriptors []firmware.MemoryDescriptor) []MemoryRegion {
	regions := make([]MemoryRegion, 0, len(descriptors))
	for _, d := range descriptors {
		kind := MemoryRegionKind{UefiTag: uint32(d.Type)}
		if usableDescriptorTypes[d.Type] {
			kind.Usable = true
		}
		regions = append(regions, MemoryRegion{
			Start: uint64(d.PhysicalStart),
			End:   d.EndAddress(),
			Kind:  kind,
		})
	}
	return regions
}
