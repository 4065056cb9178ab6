package mock

import (
	"sync"

	"tileviewer/snes"
)

// Memory is the device address space served by the mock. Only WRAM ($F50000-$F6FFFF) is
// backed; reads elsewhere return zeros.
type Memory struct {
	lock sync.RWMutex
	wram [0x20000]byte
}

func (m *Memory) Read(pakAddr uint32, size int) []byte {
	m.lock.RLock()
	defer m.lock.RUnlock()

	data := make([]byte, size)
	for i := range data {
		addr := pakAddr + uint32(i)
		if addr >= snes.WRAMPakStart && addr < snes.WRAMPakStart+uint32(len(m.wram)) {
			data[i] = m.wram[addr-snes.WRAMPakStart]
		}
	}
	return data
}

// WriteWRAM stores data at the given WRAM bus address ($7E0000-$7FFFFF).
func (m *Memory) WriteWRAM(busAddr uint32, data ...byte) {
	m.lock.Lock()
	defer m.lock.Unlock()

	offs := busAddr - snes.WRAMBusStart
	copy(m.wram[offs:], data)
}

// WriteWRAMWord stores a little-endian 16-bit value at the given WRAM bus address.
func (m *Memory) WriteWRAMWord(busAddr uint32, value uint16) {
	m.WriteWRAM(busAddr, byte(value), byte(value>>8))
}

// Update runs fn with exclusive access to WRAM so that several fields change atomically
// with respect to device reads.
func (m *Memory) Update(fn func(wram []byte)) {
	m.lock.Lock()
	defer m.lock.Unlock()
	fn(m.wram[:])
}
