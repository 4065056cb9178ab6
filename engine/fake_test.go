package engine

import (
	"errors"
	"sync"

	"tileviewer/games/sm"
	"tileviewer/snes"
	"tileviewer/snes/usb2snes"
)

var errFakeTransfer = snes.NewTerminalError(errors.New("fake: connection reset"))

// fakeDevice serves reads from a WRAM image addressed in device space.
type fakeDevice struct {
	lock sync.Mutex
	wram [0x20000]byte

	// devices returned by successive ListDevice calls; the last entry repeats.
	deviceLists [][]string
	// games returned by successive Info calls; the last entry repeats.
	games []string
	// failMultiAfter makes GetMultiAddress fail once it has succeeded this many times.
	failMultiAfter int
	// failList, failAttach and failInfo make every call of that command fail.
	failList   bool
	failAttach bool
	failInfo   bool

	listCalls  int
	infoCalls  int
	multiCalls int
	mapFetches int
	attached   string
	lastReqs   []snes.Read
	closed     bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		deviceLists: [][]string{{"fake"}},
		games:       []string{"/roms/sm.sfc"},
	}
}

func (d *fakeDevice) setFrame(f sm.Frame) {
	d.lock.Lock()
	defer d.lock.Unlock()
	sm.EncodeFrame(d.wram[:], f)
}

func (d *fakeDevice) ListDevice() ([]string, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.listCalls++
	if d.failList {
		return nil, errFakeTransfer
	}
	i := d.listCalls - 1
	if i >= len(d.deviceLists) {
		i = len(d.deviceLists) - 1
	}
	return d.deviceLists[i], nil
}

func (d *fakeDevice) Attach(device string) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.failAttach {
		return errFakeTransfer
	}
	d.attached = device
	return nil
}

func (d *fakeDevice) Info() (usb2snes.DeviceInfo, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.infoCalls++
	if d.failInfo {
		return usb2snes.DeviceInfo{}, errFakeTransfer
	}
	i := d.infoCalls - 1
	if i >= len(d.games) {
		i = len(d.games) - 1
	}
	return usb2snes.DeviceInfo{Version: "1.11.0", DeviceType: "fake", Game: d.games[i]}, nil
}

func (d *fakeDevice) read(addr uint32, size int) []byte {
	o := addr - snes.WRAMPakStart
	return append([]byte(nil), d.wram[o:o+uint32(size)]...)
}

func (d *fakeDevice) GetAddress(addr uint32, size int) ([]byte, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if addr == 0xF6_0000 {
		d.mapFetches++
	}
	return d.read(addr, size), nil
}

func (d *fakeDevice) GetMultiAddress(reqs []snes.Read) (data []byte, err error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.failMultiAfter > 0 && d.multiCalls >= d.failMultiAfter {
		return nil, errFakeTransfer
	}
	d.multiCalls++
	d.lastReqs = reqs
	for _, r := range reqs {
		data = append(data, d.read(r.Address, r.Size)...)
	}
	return
}

func (d *fakeDevice) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) counts() (multi, fetches int) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.multiCalls, d.mapFetches
}
