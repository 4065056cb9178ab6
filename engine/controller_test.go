package engine

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"tileviewer/games/sm"
	"tileviewer/snes/mock"
)

type fakeDialer struct {
	lock    sync.Mutex
	fail    int // number of initial dials that fail
	dials   int
	devices []*fakeDevice
	// newDevice builds the device for the nth successful dial, starting at 0.
	newDevice func(n int) *fakeDevice
}

func (d *fakeDialer) Dial(ctx context.Context) (Device, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.dials++
	if d.dials <= d.fail {
		return nil, errors.New("fake: connection refused")
	}

	var dev *fakeDevice
	if d.newDevice != nil {
		dev = d.newDevice(len(d.devices))
	} else {
		dev = newFakeDevice()
	}
	d.devices = append(d.devices, dev)
	return dev, nil
}

func (d *fakeDialer) count() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.dials
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ConnectBackoff = time.Millisecond
	cfg.NoDeviceBackoff = time.Millisecond
	cfg.NoGameBackoff = time.Millisecond
	return cfg
}

// runController runs c until stop returns true for a transition, and returns every stage
// entered in order.
func runController(t *testing.T, c *Controller, stop func(to ConnState) bool) (stages []ConnState) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopped := false
	c.OnTransition = func(from, to ConnState) {
		stages = append(stages, to)
		if !stopped && stop(to) {
			stopped = true
			cancel()
		}
	}

	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, expected context.Canceled", err)
	}
	return
}

func TestController_ReconnectAfterPollFailure(t *testing.T) {
	dialer := &fakeDialer{
		newDevice: func(n int) *fakeDevice {
			d := newFakeDevice()
			d.setFrame(inGame(5))
			if n == 0 {
				d.failMultiAfter = 3
			}
			return d
		},
	}
	c := NewController(testConfig(), dialer, NewState(), zaptest.NewLogger(t))

	polling := 0
	stages := runController(t, c, func(to ConnState) bool {
		if to == Polling {
			polling++
		}
		return polling == 2
	})

	expected := []ConnState{
		Connecting, Attaching, AwaitingGame, Ready, Polling,
		Connecting, Attaching, AwaitingGame, Ready, Polling,
		Disconnected,
	}
	if !reflect.DeepEqual(stages, expected) {
		t.Errorf("stages = %v, expected %v", stages, expected)
	}
	if actual, expected := dialer.count(), 2; actual != expected {
		t.Errorf("dials = %d, expected %d", actual, expected)
	}
	if !dialer.devices[0].closed {
		t.Error("first session was not closed")
	}
	if multi, _ := dialer.devices[0].counts(); multi != 3 {
		t.Errorf("first session polls = %d, expected 3", multi)
	}

	s := c.State().Snapshot()
	if actual, expected := s.LastError, TransferError; actual != expected {
		t.Errorf("LastError = %v, expected %v", actual, expected)
	}
	if !s.Ready {
		t.Error("Ready was cleared")
	}
	if actual, expected := s.Stage, Disconnected; actual != expected {
		t.Errorf("Stage = %v, expected %v", actual, expected)
	}
}

func TestController_ReadyAcrossReconnect(t *testing.T) {
	for _, clearReady := range []bool{false, true} {
		dialer := &fakeDialer{
			newDevice: func(n int) *fakeDevice {
				d := newFakeDevice()
				if n == 0 {
					d.failMultiAfter = 1
				}
				return d
			},
		}
		cfg := testConfig()
		cfg.ClearReadyOnReconnect = clearReady
		c := NewController(cfg, dialer, NewState(), zaptest.NewLogger(t))

		var readyOnReconnect []bool
		connecting := 0
		runController(t, c, func(to ConnState) bool {
			if to == Connecting {
				connecting++
				if connecting == 2 {
					readyOnReconnect = append(readyOnReconnect, c.State().Snapshot().Ready)
				}
			}
			return to == Polling && connecting == 2
		})

		if actual, expected := readyOnReconnect, []bool{!clearReady}; !reflect.DeepEqual(actual, expected) {
			t.Errorf("clearReady=%v: Ready on reconnect = %v, expected %v", clearReady, actual, expected)
		}
		if !c.State().Snapshot().Ready {
			t.Errorf("clearReady=%v: Ready not set after reconnect", clearReady)
		}
	}
}

func TestController_NoDeviceRetriesOnSameConnection(t *testing.T) {
	dialer := &fakeDialer{
		newDevice: func(n int) *fakeDevice {
			d := newFakeDevice()
			d.deviceLists = [][]string{{}, {}, {"SD2SNES COM4", "SD2SNES COM5"}}
			return d
		},
	}
	c := NewController(testConfig(), dialer, NewState(), zaptest.NewLogger(t))

	var lastError ErrorKind
	runController(t, c, func(to ConnState) bool {
		lastError = c.State().Snapshot().LastError
		return to == Polling
	})

	if actual, expected := dialer.count(), 1; actual != expected {
		t.Errorf("dials = %d, expected %d", actual, expected)
	}
	d := dialer.devices[0]
	if actual, expected := d.listCalls, 3; actual != expected {
		t.Errorf("ListDevice calls = %d, expected %d", actual, expected)
	}
	if actual, expected := d.attached, "SD2SNES COM4"; actual != expected {
		t.Errorf("attached = %q, expected %q", actual, expected)
	}
	if actual, expected := lastError, NoDeviceError; actual != expected {
		t.Errorf("LastError = %v, expected %v", actual, expected)
	}
}

func TestController_NoGameRetriesOnSameConnection(t *testing.T) {
	dialer := &fakeDialer{
		newDevice: func(n int) *fakeDevice {
			d := newFakeDevice()
			d.games = []string{sm.MenuROMs[0], sm.MenuROMs[1], "/roms/super metroid.sfc"}
			return d
		},
	}
	c := NewController(testConfig(), dialer, NewState(), zaptest.NewLogger(t))

	var lastError ErrorKind
	stages := runController(t, c, func(to ConnState) bool {
		lastError = c.State().Snapshot().LastError
		return to == Polling
	})

	expected := []ConnState{Connecting, Attaching, AwaitingGame, Ready, Polling, Disconnected}
	if !reflect.DeepEqual(stages, expected) {
		t.Errorf("stages = %v, expected %v", stages, expected)
	}
	if actual, expected := dialer.devices[0].infoCalls, 3; actual != expected {
		t.Errorf("Info calls = %d, expected %d", actual, expected)
	}
	if actual, expected := lastError, NoGameError; actual != expected {
		t.Errorf("LastError = %v, expected %v", actual, expected)
	}
}

func TestController_ConnectErrorBacksOff(t *testing.T) {
	dialer := &fakeDialer{fail: 2}
	c := NewController(testConfig(), dialer, NewState(), zaptest.NewLogger(t))

	var errs []ErrorKind
	stages := runController(t, c, func(to ConnState) bool {
		errs = append(errs, c.State().Snapshot().LastError)
		return to == Attaching
	})

	expected := []ConnState{Connecting, Connecting, Connecting, Attaching, Disconnected}
	if !reflect.DeepEqual(stages, expected) {
		t.Errorf("stages = %v, expected %v", stages, expected)
	}
	if actual, expected := errs, []ErrorKind{ErrorNone, ConnectError, ConnectError, ConnectError}; !reflect.DeepEqual(actual, expected) {
		t.Errorf("errors = %v, expected %v", actual, expected)
	}
	if actual, expected := dialer.count(), 3; actual != expected {
		t.Errorf("dials = %d, expected %d", actual, expected)
	}
}

func TestController_CancelDuringBackoff(t *testing.T) {
	dialer := &fakeDialer{fail: 1 << 30}
	cfg := testConfig()
	cfg.ConnectBackoff = time.Hour
	c := NewController(cfg, dialer, NewState(), zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := c.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() = %v, expected context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run returned after %v", elapsed)
	}
	if actual, expected := dialer.count(), 1; actual != expected {
		t.Errorf("dials = %d, expected %d", actual, expected)
	}
	if actual, expected := c.State().Snapshot().Stage, Disconnected; actual != expected {
		t.Errorf("Stage = %v, expected %v", actual, expected)
	}
}

func TestController_MockService(t *testing.T) {
	log := zaptest.NewLogger(t)

	srv := mock.NewServer(log.Named("mock"))
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	srv.Memory().Update(func(wram []byte) {
		sm.EncodeFrame(wram, inGame(5))
		wram[0x1_0000] = 0x5A
	})
	// the first poll kills the connection:
	srv.FailOn("GetAddress")

	cfg := testConfig()
	cfg.URL = srv.URL()
	cfg.PollInterval = time.Millisecond
	c := NewController(cfg, nil, NewState(), log.Named("engine"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(10 * time.Second)
	for {
		s := c.State().Snapshot()
		if s.MapID == 5 && len(s.MapData) == sm.MapDataSize && s.Stage == Polling {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for level data; snapshot stage=%v err=%v map=%d", s.Stage, s.LastError, s.MapID)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, expected context.Canceled", err)
	}

	s := c.State().Snapshot()
	if actual, expected := s.MapData[0], byte(0x5A); actual != expected {
		t.Errorf("MapData[0] = %#02x, expected %#02x", actual, expected)
	}
	if actual, expected := s.Camera, sm.Camera(sm.Point{X: 200, Y: 100}); actual != expected {
		t.Errorf("Camera = %v, expected %v", actual, expected)
	}
	if actual, expected := s.LastError, TransferError; actual != expected {
		t.Errorf("LastError = %v, expected %v", actual, expected)
	}
	if actual, expected := srv.Names(), []string{"SM TileViewer", "SM TileViewer"}; !reflect.DeepEqual(actual, expected) {
		t.Errorf("Names() = %v, expected %v", actual, expected)
	}
}

func TestController_AttachesConfiguredDevice(t *testing.T) {
	dialer := &fakeDialer{
		newDevice: func(n int) *fakeDevice {
			d := newFakeDevice()
			d.deviceLists = [][]string{{"SD2SNES COM4", "SD2SNES COM5"}}
			return d
		},
	}
	cfg := testConfig()
	cfg.Device = "SD2SNES COM5"
	c := NewController(cfg, dialer, NewState(), zaptest.NewLogger(t))

	runController(t, c, func(to ConnState) bool { return to == Polling })

	if actual, expected := dialer.devices[0].attached, "SD2SNES COM5"; actual != expected {
		t.Errorf("attached = %q, expected %q", actual, expected)
	}
	if actual, expected := c.State().Snapshot().LastError, ErrorNone; actual != expected {
		t.Errorf("LastError = %v, expected %v", actual, expected)
	}
}

func TestController_WaitsForConfiguredDevice(t *testing.T) {
	dialer := &fakeDialer{
		newDevice: func(n int) *fakeDevice {
			d := newFakeDevice()
			d.deviceLists = [][]string{{"SD2SNES COM4"}, {"SD2SNES COM4"}, {"SD2SNES COM4", "SD2SNES COM5"}}
			return d
		},
	}
	cfg := testConfig()
	cfg.Device = "SD2SNES COM5"
	c := NewController(cfg, dialer, NewState(), zaptest.NewLogger(t))

	var lastError ErrorKind
	runController(t, c, func(to ConnState) bool {
		lastError = c.State().Snapshot().LastError
		return to == Polling
	})

	d := dialer.devices[0]
	if actual, expected := d.attached, "SD2SNES COM5"; actual != expected {
		t.Errorf("attached = %q, expected %q", actual, expected)
	}
	if actual, expected := d.listCalls, 3; actual != expected {
		t.Errorf("ListDevice calls = %d, expected %d", actual, expected)
	}
	if actual, expected := dialer.count(), 1; actual != expected {
		t.Errorf("dials = %d, expected %d", actual, expected)
	}
	if actual, expected := lastError, NoDeviceError; actual != expected {
		t.Errorf("LastError = %v, expected %v", actual, expected)
	}
}

func TestController_AttachFailureRestarts(t *testing.T) {
	tests := []struct {
		name   string
		inject func(d *fakeDevice)
	}{
		{"DeviceList", func(d *fakeDevice) { d.failList = true }},
		{"Attach", func(d *fakeDevice) { d.failAttach = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := &fakeDialer{
				newDevice: func(n int) *fakeDevice {
					d := newFakeDevice()
					if n == 0 {
						tt.inject(d)
					}
					return d
				},
			}
			c := NewController(testConfig(), dialer, NewState(), zaptest.NewLogger(t))

			var errAtReconnect []ErrorKind
			connecting := 0
			stages := runController(t, c, func(to ConnState) bool {
				if to == Connecting {
					connecting++
					if connecting == 2 {
						errAtReconnect = append(errAtReconnect, c.State().Snapshot().LastError)
					}
				}
				return to == Polling
			})

			expected := []ConnState{
				Connecting, Attaching,
				Connecting, Attaching, AwaitingGame, Ready, Polling,
				Disconnected,
			}
			if !reflect.DeepEqual(stages, expected) {
				t.Errorf("stages = %v, expected %v", stages, expected)
			}
			if actual, expected := errAtReconnect, []ErrorKind{AttachError}; !reflect.DeepEqual(actual, expected) {
				t.Errorf("error at reconnect = %v, expected %v", actual, expected)
			}
			if actual, expected := dialer.count(), 2; actual != expected {
				t.Errorf("dials = %d, expected %d", actual, expected)
			}
			if !dialer.devices[0].closed {
				t.Error("failed session was not closed")
			}
		})
	}
}

func TestController_InfoFailureRestarts(t *testing.T) {
	dialer := &fakeDialer{
		newDevice: func(n int) *fakeDevice {
			d := newFakeDevice()
			d.failInfo = n == 0
			return d
		},
	}
	c := NewController(testConfig(), dialer, NewState(), zaptest.NewLogger(t))

	var errAtReconnect []ErrorKind
	connecting := 0
	stages := runController(t, c, func(to ConnState) bool {
		if to == Connecting {
			connecting++
			if connecting == 2 {
				errAtReconnect = append(errAtReconnect, c.State().Snapshot().LastError)
			}
		}
		return to == Polling
	})

	expected := []ConnState{
		Connecting, Attaching, AwaitingGame,
		Connecting, Attaching, AwaitingGame, Ready, Polling,
		Disconnected,
	}
	if !reflect.DeepEqual(stages, expected) {
		t.Errorf("stages = %v, expected %v", stages, expected)
	}
	if actual, expected := errAtReconnect, []ErrorKind{TransferError}; !reflect.DeepEqual(actual, expected) {
		t.Errorf("error at reconnect = %v, expected %v", actual, expected)
	}
	if actual, expected := dialer.count(), 2; actual != expected {
		t.Errorf("dials = %d, expected %d", actual, expected)
	}
	if !c.State().Snapshot().Ready {
		t.Error("Ready not set after reconnect")
	}
}

func TestConfig_MenuROMs(t *testing.T) {
	var zero Config
	for _, p := range sm.MenuROMs {
		if !zero.isMenuROM(p) {
			t.Errorf("zero Config: isMenuROM(%q) = false", p)
		}
	}
	if zero.isMenuROM("/roms/sm.sfc") {
		t.Error("zero Config: isMenuROM(/roms/sm.sfc) = true")
	}

	custom := Config{MenuROMs: []string{"/sd2snes/menu.bin"}}
	if !custom.isMenuROM("/sd2snes/menu.bin") {
		t.Error("custom Config: menu not recognized")
	}
	if custom.isMenuROM(sm.MenuROMs[0]) {
		t.Error("custom Config: default menu should not match")
	}
}
