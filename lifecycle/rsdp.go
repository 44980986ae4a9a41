package lifecycle

import "github.com/uefiboot/uefiboot/firmware"

// lookupRSDP probes the firmware configuration-table list for the ACPI
// RSDP, preferring ACPI 2.0's GUID and falling back to the ACPI 1.0
// GUID if the newer table isn't present. Returns ok=false, not an
// error, if neither GUID is found — the kernel is free to keep
// searching (e.g. the legacy BIOS area) on platforms where ACPI is
// genuinely absent from the firmware's config tables; the bootloader
// does not treat that as fatal.
func lookupRSDP(tables firmware.ConfigTables) (addr uint64, ok bool) {
	if addr, ok := tables.Lookup(firmware.ACPI2GUID); ok {
		return addr, true
	}
	return tables.Lookup(firmware.ACPI1GUID)
}
