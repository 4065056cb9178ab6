package snes

import "fmt"

type Read struct {
	// E00000-EFFFFF = SRAM
	// F50000-F6FFFF = WRAM
	// F70000-F8FFFF = VRAM
	// F90000-F901FF = CGRAM
	// F90200-F904FF = OAM
	Address uint32
	Size    int
}

// TotalSize is the number of bytes a batched read of reqs returns.
func TotalSize(reqs []Read) (total int) {
	for _, r := range reqs {
		total += r.Size
	}
	return
}

// SplitReads slices the concatenated response of a batched read back into one slice per
// request, in request order. The returned slices alias data.
func SplitReads(reqs []Read, data []byte) (parts [][]byte, err error) {
	if expected := TotalSize(reqs); len(data) != expected {
		err = fmt.Errorf("snes: batched read returned %d bytes; expected %d", len(data), expected)
		return
	}

	parts = make([][]byte, len(reqs))
	o := 0
	for i, r := range reqs {
		parts[i] = data[o : o+r.Size : o+r.Size]
		o += r.Size
	}
	return
}
