package snes

import (
	"fmt"

	"github.com/alttpo/snes/mapping/lorom"
)

const (
	WRAMBusStart uint32 = 0x7E_0000
	WRAMBusEnd   uint32 = 0x7F_FFFF
	WRAMPakStart uint32 = 0xF5_0000
)

// IsWRAM reports whether busAddr lies in the console's working-memory banks $7E-$7F.
func IsWRAM(busAddr uint32) bool {
	return busAddr >= WRAMBusStart && busAddr <= WRAMBusEnd
}

// WRAMToPak translates a WRAM bus address into the mirrored space exposed by usb2snes devices.
// The caller is responsible for passing an address that satisfies IsWRAM.
func WRAMToPak(busAddr uint32) uint32 {
	return busAddr - WRAMBusStart + WRAMPakStart
}

// BusToPak translates any bus address into the device address space. WRAM uses the fixed
// $F50000 mirror; everything else follows the LoROM cartridge mapping.
func BusToPak(busAddr uint32) (pakAddr uint32, err error) {
	if IsWRAM(busAddr) {
		pakAddr = WRAMToPak(busAddr)
		return
	}

	pakAddr, err = lorom.BusAddressToPak(busAddr)
	if err != nil {
		err = fmt.Errorf("snes: cannot translate bus address $%06x: %w", busAddr, err)
	}
	return
}

// TranslateReads returns a copy of reqs with each bus address translated by BusToPak.
func TranslateReads(reqs []Read) (out []Read, err error) {
	out = make([]Read, len(reqs))
	for i, r := range reqs {
		out[i].Size = r.Size
		if out[i].Address, err = BusToPak(r.Address); err != nil {
			return nil, err
		}
	}
	return
}
