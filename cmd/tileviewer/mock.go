package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tileviewer/games/sm"
	"tileviewer/snes/mock"
)

var (
	flagListen   string
	flagRoomTime time.Duration
)

// demo animates a Samus walking back and forth through a fixed list of rooms with a door
// transition between each.
type demo struct {
	rooms []uint8
	room  int
	tick  int
	f     sm.Frame
}

const (
	demoDoorTicks = 30
	demoMinX      = 0x0030
	demoMaxX      = 0x01C0
)

func newDemo() *demo {
	d := &demo{rooms: []uint8{0x00, 0x01, 0x02, 0x06, 0x12}}
	d.f = sm.Frame{
		MapID:     d.rooms[0],
		Player:    sm.Point{X: demoMinX, Y: 0x00B0},
		Radius:    sm.Point{X: 5, Y: 0x15},
		Width:     2,
		GameState: sm.GameStateInGame,
	}
	return d
}

// step advances one frame; door reports a room change.
func (d *demo) step(door bool) {
	d.tick++

	if door {
		d.f.GameState = 0x0B
		d.f.DoorState = 0x8000
		d.tick = 0
		d.room = (d.room + 1) % len(d.rooms)
		d.f.MapID = d.rooms[d.room]
		return
	}
	if d.f.GameState != sm.GameStateInGame {
		if d.tick >= demoDoorTicks {
			d.f.GameState = sm.GameStateInGame
			d.f.DoorState = 0
			d.f.Player.X = demoMinX
		}
		return
	}

	// walk right to the edge of the room and back:
	span := demoMaxX - demoMinX
	pos := d.tick % (2 * span)
	if pos > span {
		pos = 2*span - pos
	}
	d.f.Player.X = demoMinX + pos
}

// levelData fills bank $7F with a recognizable pattern per room.
func levelData(wram []byte, mapID uint8) {
	bank := wram[sm.AddrMapData-0x7E0000:]
	for i := 0; i < sm.MapDataSize; i++ {
		bank[i] = byte(i>>8) ^ mapID
	}
}

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "serve a simulated usb2snes device running Super Metroid",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagRoomTime <= 0 {
			return fmt.Errorf("--room-time must be positive, got %v", flagRoomTime)
		}

		s := mock.NewServer(logger.Named("mock"))
		if err := s.Listen(flagListen); err != nil {
			return err
		}
		defer s.Close()
		fmt.Printf("serving %s\n", s.URL())

		d := newDemo()
		s.Memory().Update(func(wram []byte) {
			sm.EncodeFrame(wram, d.f)
			levelData(wram, d.f.MapID)
		})

		frame := time.NewTicker(time.Second / 60)
		defer frame.Stop()
		room := time.NewTicker(flagRoomTime)
		defer room.Stop()

		for {
			door := false
			select {
			case <-cmd.Context().Done():
				return nil
			case <-room.C:
				door = true
			case <-frame.C:
			}

			d.step(door)
			s.Memory().Update(func(wram []byte) {
				sm.EncodeFrame(wram, d.f)
				if door {
					levelData(wram, d.f.MapID)
				}
			})
			if door {
				logger.Info("door", zap.Uint8("map", d.f.MapID))
			}
		}
	},
}

func init() {
	mockCmd.Flags().StringVar(&flagListen, "listen", "127.0.0.1:23074", "address to serve the usb2snes protocol on")
	mockCmd.Flags().DurationVar(&flagRoomTime, "room-time", 10*time.Second, "time spent in each room")
	rootCmd.AddCommand(mockCmd)
}
