// Package sm knows where Super Metroid keeps the state the tile viewer needs in WRAM and
// how to decode it.
package sm

import "tileviewer/snes"

// WRAM bus addresses read every frame.
const (
	AddrMapID     uint32 = 0x7E_079B
	AddrPlayerX   uint32 = 0x7E_0AF6
	AddrPlayerY   uint32 = 0x7E_0AFA
	AddrRadiusX   uint32 = 0x7E_0AFE
	AddrRadiusY   uint32 = 0x7E_0B00
	AddrWidth     uint32 = 0x7E_07A5
	AddrGameState uint32 = 0x7E_0998
	AddrDoorState uint32 = 0x7E_07B5
)

// The level data (block types and BTS) occupies all of WRAM bank $7F.
const (
	AddrMapData uint32 = 0x7F_0000
	MapDataSize        = 0x1_0000
)

// GameStateInGame is the game-state byte value while the player is in control.
const GameStateInGame uint8 = 0x08

// Field indexes into FrameReads.
const (
	fieldMapID = iota
	fieldPlayerX
	fieldPlayerY
	fieldRadiusX
	fieldRadiusY
	fieldWidth
	fieldGameState
	fieldDoorState
	fieldCount
)

// FrameReads lists the per-frame fields in bus address space, in the order they are
// requested and decoded.
var FrameReads = [fieldCount]snes.Read{
	fieldMapID:     {Address: AddrMapID, Size: 1},
	fieldPlayerX:   {Address: AddrPlayerX, Size: 2},
	fieldPlayerY:   {Address: AddrPlayerY, Size: 2},
	fieldRadiusX:   {Address: AddrRadiusX, Size: 2},
	fieldRadiusY:   {Address: AddrRadiusY, Size: 2},
	fieldWidth:     {Address: AddrWidth, Size: 2},
	fieldGameState: {Address: AddrGameState, Size: 1},
	fieldDoorState: {Address: AddrDoorState, Size: 2},
}

// MenuROMs are the paths reported by Info while the flash cart menu is running instead of a
// game.
var MenuROMs = []string{"/boot/menu.bin", "/boot/m3nu.bin"}

func IsMenuROM(path string) bool {
	for _, m := range MenuROMs {
		if path == m {
			return true
		}
	}
	return false
}
