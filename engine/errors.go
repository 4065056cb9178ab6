package engine

import "errors"

var (
	ErrNoDevice = errors.New("engine: no device attached to the usb2snes service")
	ErrNoGame   = errors.New("engine: no game running")
)

// ErrorKind is the last failure published to consumers of the State.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	// ConnectError means the usb2snes service could not be reached.
	ConnectError
	// AttachError means listing or attaching the device failed at the protocol level.
	AttachError
	// NoDeviceError is recoverable: the service lists no hardware.
	NoDeviceError
	// NoGameError is recoverable: the flash cart menu is running instead of a game.
	NoGameError
	// TransferError covers protocol failures after attach, including polling.
	TransferError
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "None"
	case ConnectError:
		return "Can't connect"
	case AttachError:
		return "Can't attach to device"
	case NoDeviceError:
		return "No device"
	case NoGameError:
		return "No game present"
	case TransferError:
		return "Transfer error"
	default:
		return "Unknown error"
	}
}

// Recoverable reports whether the kind is retried without dropping the connection.
func (k ErrorKind) Recoverable() bool {
	return k == NoDeviceError || k == NoGameError
}
