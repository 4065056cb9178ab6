package sm

import (
	"fmt"

	"tileviewer/snes"
)

type Point struct {
	X int `msgpack:"x"`
	Y int `msgpack:"y"`
}

// Frame is the decoded result of one batched read of FrameReads.
type Frame struct {
	MapID     uint8
	Player    Point
	Radius    Point
	Width     uint16
	GameState uint8
	DoorState uint16
}

func (f Frame) InGame() bool { return f.GameState == GameStateInGame }

// DecodeWord decodes a little-endian 16-bit value.
func DecodeWord(lo, hi byte) uint16 {
	return uint16(lo) + 256*uint16(hi)
}

// Camera derives the top-left of the screen from the player position. Small negative values
// wrap around 16 bits; anything at or above 10000 is folded back below zero by subtracting
// 65535 (not 65536).
func Camera(player Point) Point {
	return Point{
		X: unwrapCamera((player.X - 256) & 0xFFFF),
		Y: unwrapCamera((player.Y - 224) & 0xFFFF),
	}
}

func unwrapCamera(v int) int {
	if v >= 10000 {
		return v - 65535
	}
	return v
}

// DecodeFrame decodes the concatenated reply to a batched read of FrameReads.
func DecodeFrame(data []byte) (f Frame, err error) {
	parts, err := snes.SplitReads(FrameReads[:], data)
	if err != nil {
		err = fmt.Errorf("sm: decode frame: %w", err)
		return
	}

	word := func(i int) uint16 { return DecodeWord(parts[i][0], parts[i][1]) }

	f = Frame{
		MapID:     parts[fieldMapID][0],
		Player:    Point{int(word(fieldPlayerX)), int(word(fieldPlayerY))},
		Radius:    Point{int(word(fieldRadiusX)), int(word(fieldRadiusY))},
		Width:     word(fieldWidth),
		GameState: parts[fieldGameState][0],
		DoorState: word(fieldDoorState),
	}
	return
}

// EncodeFrame writes f into a WRAM image indexed from $7E0000, the inverse of DecodeFrame.
// The simulated device uses it to stage game state.
func EncodeFrame(wram []byte, f Frame) {
	put := func(addr uint32, v uint16, size int) {
		o := addr - snes.WRAMBusStart
		wram[o] = byte(v)
		if size == 2 {
			wram[o+1] = byte(v >> 8)
		}
	}

	put(AddrMapID, uint16(f.MapID), 1)
	put(AddrPlayerX, uint16(f.Player.X), 2)
	put(AddrPlayerY, uint16(f.Player.Y), 2)
	put(AddrRadiusX, uint16(f.Radius.X), 2)
	put(AddrRadiusY, uint16(f.Radius.Y), 2)
	put(AddrWidth, f.Width, 2)
	put(AddrGameState, uint16(f.GameState), 1)
	put(AddrDoorState, f.DoorState, 2)
}
