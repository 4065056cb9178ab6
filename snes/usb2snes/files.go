package usb2snes

import (
	"fmt"
	"strconv"
)

// PutFileChunkSize is the largest binary frame sent while uploading a file.
const PutFileChunkSize = 1024

// ChunkSizes returns the frame sizes used to send n bytes in chunks of at most chunk bytes.
func ChunkSizes(n, chunk int) []int {
	if n <= 0 || chunk <= 0 {
		return nil
	}

	sizes := make([]int, 0, (n+chunk-1)/chunk)
	for n > chunk {
		sizes = append(sizes, chunk)
		n -= chunk
	}
	return append(sizes, n)
}

func (c *Client) ListDir(path string) (entries []FileEntry, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	var rsp Reply
	if rsp, err = c.roundTrip(NewCommand(OpList, path)); err != nil {
		return
	}

	entries, err = decodeList(rsp.Results)
	if err != nil {
		err = fmt.Errorf("usb2snes: List '%s': %w", path, err)
	}
	return
}

// PutFile uploads data to path. Chunks are streamed without waiting for acknowledgement.
func (c *Client) PutFile(path string, data []byte) (err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	err = c.send(NewCommand(OpPutFile, path, strconv.FormatUint(uint64(len(data)), 16)))
	if err != nil {
		return
	}

	o := 0
	for _, size := range ChunkSizes(len(data), PutFileChunkSize) {
		if err = c.t.SendBinary(data[o : o+size]); err != nil {
			err = fmt.Errorf("usb2snes: PutFile '%s' at offset %#x: %w", path, o, err)
			return
		}
		o += size
	}

	return
}

func (c *Client) GetFile(path string) (data []byte, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	var rsp Reply
	if rsp, err = c.roundTrip(NewCommand(OpGetFile, path)); err != nil {
		return
	}
	if len(rsp.Results) < 1 {
		err = fmt.Errorf("%w: GetFile '%s' reply has no size", ErrProtocol, path)
		return
	}

	var size uint64
	size, err = strconv.ParseUint(rsp.Results[0], 16, 32)
	if err != nil {
		err = fmt.Errorf("%w: GetFile '%s' size '%s': %v", ErrProtocol, path, rsp.Results[0], err)
		return
	}

	return c.receiveBinaryUntil(OpGetFile, int(size))
}

func (c *Client) Rename(from, to string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.send(NewCommand(OpRename, from, to))
}

func (c *Client) Remove(path string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.send(NewCommand(OpRemove, path))
}
