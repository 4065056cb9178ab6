package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"tileviewer/games/sm"
	"tileviewer/snes"
)

// Poller reads the per-frame fields from the device and projects them into the State.
type Poller struct {
	dev   Device
	state *State
	log   *zap.Logger

	reqs    []snes.Read // FrameReads translated to device addresses
	mapAddr uint32

	// lastMapID is the map whose level data is currently published. It only advances after
	// a successful level data fetch.
	lastMapID uint8
	iteration uint64
}

func NewPoller(dev Device, state *State, logger *zap.Logger) (p *Poller, err error) {
	if logger == nil {
		logger = zap.L()
	}

	p = &Poller{
		dev:   dev,
		state: state,
		log:   logger,
	}

	if p.reqs, err = snes.TranslateReads(sm.FrameReads[:]); err != nil {
		return nil, err
	}
	if p.mapAddr, err = snes.BusToPak(sm.AddrMapData); err != nil {
		return nil, err
	}

	return
}

// LastMapID returns the map id whose level data was last fetched.
func (p *Poller) LastMapID() uint8 { return p.lastMapID }

// Poll runs one iteration: one batched read, an optional level data fetch, one state update.
func (p *Poller) Poll() (err error) {
	var data []byte
	if data, err = p.dev.GetMultiAddress(p.reqs); err != nil {
		return fmt.Errorf("engine: poll: %w", err)
	}

	var f sm.Frame
	if f, err = sm.DecodeFrame(data); err != nil {
		return fmt.Errorf("engine: poll: %w", err)
	}

	var mapData []byte
	if f.MapID != p.lastMapID {
		if !f.InGame() {
			// try again next iteration once gameplay resumes:
			p.log.Debug(
				"map changed outside of gameplay; skipping update",
				zap.Uint8("map", f.MapID),
				zap.Uint8("last_map", p.lastMapID),
				zap.Uint8("game_state", f.GameState),
			)
			return nil
		}

		if mapData, err = p.dev.GetAddress(p.mapAddr, sm.MapDataSize); err != nil {
			return fmt.Errorf("engine: fetch level data for map %d: %w", f.MapID, err)
		}
		p.log.Info("level data fetched", zap.Uint8("map", f.MapID), zap.Uint8("last_map", p.lastMapID))
	}

	p.iteration++
	camera := sm.Camera(f.Player)
	p.state.update(func(s *Snapshot) {
		if mapData != nil {
			s.MapData = mapData
		}
		s.MapID = f.MapID
		s.Player = f.Player
		s.Camera = camera
		s.Radius = f.Radius
		s.Width = f.Width
		s.GameState = f.GameState
		s.DoorState = f.DoorState
		s.Iteration = p.iteration
		s.UpdatedAt = time.Now()
	})

	if mapData != nil {
		p.lastMapID = f.MapID
	}
	return nil
}
