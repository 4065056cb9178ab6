package usb2snes

import (
	"fmt"
	"strconv"

	"tileviewer/snes"
)

func hex(v uint64) string { return strconv.FormatUint(v, 16) }

// GetAddress reads size bytes at addr in the device address space (see snes.BusToPak).
func (c *Client) GetAddress(addr uint32, size int) (data []byte, err error) {
	return c.GetMultiAddress([]snes.Read{{Address: addr, Size: size}})
}

// GetMultiAddress issues every read in one command and returns the concatenated payload in
// request order. Use snes.SplitReads with the same reqs to separate the fields.
func (c *Client) GetMultiAddress(reqs []snes.Read) (data []byte, err error) {
	if len(reqs) == 0 {
		return []byte{}, nil
	}

	operands := make([]string, 0, len(reqs)*2)
	for _, r := range reqs {
		if r.Size <= 0 {
			err = fmt.Errorf("usb2snes: GetAddress $%06x: invalid size %d", r.Address, r.Size)
			return
		}
		operands = append(operands, hex(uint64(r.Address)), hex(uint64(r.Size)))
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if err = c.send(NewCommand(OpGetAddress, operands...).InSpace(SpaceSNES)); err != nil {
		return
	}

	return c.receiveBinaryUntil(OpGetAddress, snes.TotalSize(reqs))
}
