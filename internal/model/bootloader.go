package model

import "fmt"

// Bootloader is the boot mechanism the target system will use. The mode
// is fixed when the model is created and never changes for the life of
// one configuration session. It gates MAKE_BOOT availability and the
// meaning of boot-relevant partition flags; it does not otherwise
// constrain graph mutations.
type Bootloader int

const (
	BootloaderNone Bootloader = iota
	BootloaderBios
	BootloaderUefi
	BootloaderPrep
)

var bootloaderNames = [...]string{
	BootloaderNone: "none",
	BootloaderBios: "bios",
	BootloaderUefi: "uefi",
	BootloaderPrep: "prep",
}

func (b Bootloader) String() string {
	if int(b) < len(bootloaderNames) {
		return bootloaderNames[b]
	}
	return "unknown"
}

func ParseBootloader(s string) (Bootloader, error) {
	for i, name := range bootloaderNames {
		if name == s {
			return Bootloader(i), nil
		}
	}
	return 0, fmt.Errorf("unknown bootloader mode %q", s)
}

// bootFlag is the partition flag that marks a boot partition under b.
func (b Bootloader) bootFlag() string {
	switch b {
	case BootloaderBios:
		return "bios_grub"
	case BootloaderUefi:
		return "boot"
	case BootloaderPrep:
		return "prep"
	}
	return ""
}

// bootFlags is the closed set of boot-relevant partition flags. A
// partition carrying any of them is never deletable, whether or not the
// flag matters to the current bootloader mode.
var bootFlags = map[string]bool{
	"boot":      true,
	"bios_grub": true,
	"prep":      true,
}
