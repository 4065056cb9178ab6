package engine

import (
	"time"

	"tileviewer/games/sm"
	"tileviewer/snes/usb2snes"
)

type Config struct {
	// WebSocket URL of the usb2snes service.
	URL string
	// ClientName is announced with the Name command on every connection.
	ClientName string
	// Device to attach to; empty picks the first listed device.
	Device string

	ConnectBackoff  time.Duration
	NoDeviceBackoff time.Duration
	NoGameBackoff   time.Duration
	// PollInterval is slept between poll iterations; zero polls back to back.
	PollInterval time.Duration

	// MenuROMs are Info game paths that mean no game is running.
	MenuROMs []string

	// ClearReadyOnReconnect clears the readiness flag whenever a new connection is started.
	ClearReadyOnReconnect bool
}

func DefaultConfig() Config {
	return Config{
		URL:             usb2snes.DefaultURL,
		ClientName:      "SM TileViewer",
		ConnectBackoff:  2 * time.Second,
		NoDeviceBackoff: 1 * time.Second,
		NoGameBackoff:   2 * time.Second,
		MenuROMs:        append([]string(nil), sm.MenuROMs...),
	}
}

func (c *Config) isMenuROM(path string) bool {
	if c.MenuROMs == nil {
		return sm.IsMenuROM(path)
	}
	for _, m := range c.MenuROMs {
		if m == path {
			return true
		}
	}
	return false
}
