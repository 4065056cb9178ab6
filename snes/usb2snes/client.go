package usb2snes

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Client is the typed usb2snes command surface. Replies carry no request identifiers so the
// client allows only one outstanding command at a time.
type Client struct {
	t   Transport
	log *zap.Logger

	lock sync.Mutex
}

func NewClient(t Transport, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.L()
	}
	return &Client{t: t, log: logger}
}

// Connect dials urlstr and announces the client as name.
func Connect(ctx context.Context, urlstr string, name string, logger *zap.Logger) (c *Client, err error) {
	var w *WebSocketClient
	w, err = Dial(ctx, urlstr, logger)
	if err != nil {
		return
	}

	c = NewClient(w, logger)
	if err = c.SetName(name); err != nil {
		_ = c.Close()
		c = nil
		return
	}

	return
}

func (c *Client) Close() error {
	return c.t.Close()
}

func (c *Client) send(cmd Command) (err error) {
	var p []byte
	p, err = EncodeCommand(cmd)
	if err != nil {
		return
	}

	if ce := c.log.Check(zap.DebugLevel, "send command"); ce != nil {
		ce.Write(zap.String("opcode", string(cmd.Opcode)), zap.ByteString("json", p))
	}

	if err = c.t.SendText(p); err != nil {
		err = fmt.Errorf("usb2snes: %s command send: %w", cmd.Opcode, err)
	}
	return
}

func (c *Client) reply(op Opcode) (rsp Reply, err error) {
	var f Frame
	f, err = c.t.Receive()
	if err != nil {
		err = fmt.Errorf("usb2snes: %s command response: %w", op, err)
		return
	}
	if !f.IsText() {
		err = fmt.Errorf("%w: %s command response: expected text frame, got %d binary bytes", ErrProtocol, op, len(f.Payload))
		return
	}

	if ce := c.log.Check(zap.DebugLevel, "reply"); ce != nil {
		ce.Write(zap.String("opcode", string(op)), zap.ByteString("json", f.Payload))
	}

	rsp, err = DecodeReply(f.Payload)
	if err != nil {
		err = fmt.Errorf("usb2snes: %s command response: %w", op, err)
	}
	return
}

func (c *Client) roundTrip(cmd Command) (rsp Reply, err error) {
	if err = c.send(cmd); err != nil {
		return
	}
	return c.reply(cmd.Opcode)
}

// receiveBinaryUntil accumulates binary frames in arrival order until exactly total bytes
// have been received. Text frames are discarded.
func (c *Client) receiveBinaryUntil(op Opcode, total int) (data []byte, err error) {
	data = make([]byte, 0, total)
	for len(data) < total {
		var f Frame
		f, err = c.t.Receive()
		if err != nil {
			err = fmt.Errorf("usb2snes: %s binary response: %w", op, err)
			return nil, err
		}

		if !f.IsBinary() {
			c.log.Warn(
				"discarding unexpected frame during binary transfer",
				zap.String("opcode", string(op)),
				zap.Int("received", len(data)),
				zap.Int("expected", total),
				zap.ByteString("frame", f.Payload),
			)
			continue
		}

		if len(data)+len(f.Payload) > total {
			err = fmt.Errorf("%w: %s received %d bytes; expected %d", ErrOverread, op, len(data)+len(f.Payload), total)
			return nil, err
		}
		data = append(data, f.Payload...)
	}

	return
}

func (c *Client) SetName(name string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.send(NewCommand(OpName, name))
}

func (c *Client) AppVersion() (version string, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	var rsp Reply
	if rsp, err = c.roundTrip(NewCommand(OpAppVersion)); err != nil {
		return
	}
	if len(rsp.Results) < 1 {
		err = fmt.Errorf("%w: AppVersion reply is empty", ErrProtocol)
		return
	}

	version = rsp.Results[0]
	return
}

// ListDevice returns the device identifiers known to the service. An empty list means no
// hardware is attached.
func (c *Client) ListDevice() (devices []string, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	var rsp Reply
	if rsp, err = c.roundTrip(NewCommand(OpDeviceList)); err != nil {
		return
	}

	devices = rsp.Results
	if devices == nil {
		devices = []string{}
	}
	return
}

// Attach selects device for subsequent commands. The service does not reply; check Info
// afterwards to confirm the device is usable.
func (c *Client) Attach(device string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.send(NewCommand(OpAttach, device))
}

func (c *Client) Info() (info DeviceInfo, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	var rsp Reply
	if rsp, err = c.roundTrip(NewCommand(OpInfo)); err != nil {
		return
	}

	return decodeInfo(rsp.Results)
}

func (c *Client) Boot(path string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.send(NewCommand(OpBoot, path))
}

func (c *Client) Reset() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.send(NewCommand(OpReset))
}

func (c *Client) Menu() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.send(NewCommand(OpMenu))
}
