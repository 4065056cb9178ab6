package usb2snes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"tileviewer/snes"
)

const DefaultURL = "ws://localhost:23074"

// Frame is one complete WebSocket data message.
type Frame struct {
	OpCode  ws.OpCode
	Payload []byte
}

func (f Frame) IsText() bool   { return f.OpCode == ws.OpText }
func (f Frame) IsBinary() bool { return f.OpCode == ws.OpBinary }

// Transport carries usb2snes frames. Receive blocks until a frame arrives or the
// connection fails; there is no read timeout.
type Transport interface {
	SendText(p []byte) error
	SendBinary(p []byte) error
	Receive() (Frame, error)
	Close() error
}

// WebSocketClient is a Transport over a single client-side WebSocket connection.
type WebSocketClient struct {
	urlstr string
	log    *zap.Logger

	lock sync.Mutex
	conn net.Conn
	rw   io.ReadWriter
}

func Dial(ctx context.Context, urlstr string, logger *zap.Logger) (w *WebSocketClient, err error) {
	if logger == nil {
		logger = zap.L()
	}

	logger.Debug("dial", zap.String("url", urlstr))
	conn, br, _, err := ws.Dial(ctx, urlstr)
	if err != nil {
		err = snes.NewTerminalError(fmt.Errorf("usb2snes: dial %s: %w", urlstr, err))
		return
	}

	w = &WebSocketClient{
		urlstr: urlstr,
		log:    logger,
		conn:   conn,
		rw:     conn,
	}
	if br != nil {
		// the server already sent data after the handshake; drain the buffer first:
		w.rw = struct {
			io.Reader
			io.Writer
		}{io.MultiReader(br, conn), conn}
	}

	return
}

func (w *WebSocketClient) URL() string { return w.urlstr }

func (w *WebSocketClient) SendText(p []byte) error {
	return w.write(ws.OpText, p)
}

func (w *WebSocketClient) SendBinary(p []byte) error {
	return w.write(ws.OpBinary, p)
}

func (w *WebSocketClient) write(op ws.OpCode, p []byte) (err error) {
	rw := w.current()
	if rw == nil {
		return snes.NewTerminalError(snes.ErrDeviceDisconnected)
	}

	err = wsutil.WriteClientMessage(rw, op, p)
	if err != nil {
		err = w.fail(fmt.Errorf("usb2snes: write %s frame: %w", opName(op), err))
	}
	return
}

func (w *WebSocketClient) Receive() (f Frame, err error) {
	rw := w.current()
	if rw == nil {
		err = snes.NewTerminalError(snes.ErrDeviceDisconnected)
		return
	}

	// control frames (ping, pong) are answered and skipped by ReadServerData:
	f.Payload, f.OpCode, err = wsutil.ReadServerData(rw)
	if err != nil {
		var closed wsutil.ClosedError
		if errors.As(err, &closed) {
			err = fmt.Errorf("usb2snes: websocket closed by peer (%d %s): %w", closed.Code, closed.Reason, snes.ErrDeviceDisconnected)
		} else {
			err = fmt.Errorf("usb2snes: error reading next websocket frame: %w", err)
		}
		err = w.fail(err)
		return
	}

	return
}

func (w *WebSocketClient) current() io.ReadWriter {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.rw
}

// fail closes the connection since the stream position is unknown after an I/O error.
func (w *WebSocketClient) fail(err error) error {
	if cerr := w.Close(); cerr != nil {
		w.log.Debug("close after failure", zap.Error(cerr))
	}
	return snes.NewTerminalError(err)
}

func (w *WebSocketClient) Close() (err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.conn == nil {
		return nil
	}

	w.log.Debug("close websocket", zap.String("url", w.urlstr))
	err = w.conn.Close()
	w.conn = nil
	w.rw = nil
	return
}

func opName(op ws.OpCode) string {
	switch op {
	case ws.OpText:
		return "text"
	case ws.OpBinary:
		return "binary"
	default:
		return fmt.Sprintf("op %#x", byte(op))
	}
}
