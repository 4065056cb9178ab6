package engine

import (
	"context"

	"go.uber.org/zap"

	"tileviewer/snes"
	"tileviewer/snes/usb2snes"
)

// Device is the part of the usb2snes client the engine drives.
type Device interface {
	ListDevice() ([]string, error)
	Attach(device string) error
	Info() (usb2snes.DeviceInfo, error)
	GetAddress(addr uint32, size int) ([]byte, error)
	GetMultiAddress(reqs []snes.Read) ([]byte, error)
	Close() error
}

// Dialer opens a new session with the client name already announced.
type Dialer interface {
	Dial(ctx context.Context) (Device, error)
}

type DialerFunc func(ctx context.Context) (Device, error)

func (f DialerFunc) Dial(ctx context.Context) (Device, error) { return f(ctx) }

// USB2SNESDialer connects to a usb2snes WebSocket service.
type USB2SNESDialer struct {
	URL    string
	Name   string
	Logger *zap.Logger
}

func (d *USB2SNESDialer) Dial(ctx context.Context) (Device, error) {
	c, err := usb2snes.Connect(ctx, d.URL, d.Name, d.Logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
