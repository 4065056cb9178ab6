package usb2snes

import (
	"fmt"
	"strings"
)

type DeviceInfo struct {
	Version    string
	DeviceType string
	Game       string // path of the running ROM
	Flags      []string
}

func (i DeviceInfo) HasFlag(flag string) bool {
	for _, f := range i.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

func (i DeviceInfo) String() string {
	return fmt.Sprintf("%s %s running '%s' [%s]", i.DeviceType, i.Version, i.Game, strings.Join(i.Flags, ","))
}

func decodeInfo(results []string) (info DeviceInfo, err error) {
	// services always send at least one flag, but a reply without flags is still usable:
	if len(results) < 3 {
		err = fmt.Errorf("%w: Info reply has %d results; expected at least 3", ErrProtocol, len(results))
		return
	}

	info = DeviceInfo{
		Version:    results[0],
		DeviceType: results[1],
		Game:       results[2],
		Flags:      append([]string{}, results[3:]...),
	}
	return
}

type FileType int

const (
	FileTypeDir FileType = iota
	FileTypeFile
)

func (t FileType) String() string {
	if t == FileTypeFile {
		return "file"
	}
	return "dir"
}

type FileEntry struct {
	Name string
	Type FileType
}

func (e FileEntry) IsDir() bool { return e.Type == FileTypeDir }

// decodeList walks List results as flattened (type-code, name) pairs.
func decodeList(results []string) (entries []FileEntry, err error) {
	if len(results)%2 != 0 {
		err = fmt.Errorf("%w: List reply has odd number of results (%d)", ErrProtocol, len(results))
		return
	}

	entries = make([]FileEntry, 0, len(results)/2)
	for i := 0; i < len(results); i += 2 {
		e := FileEntry{Name: results[i+1], Type: FileTypeDir}
		if results[i] == "1" {
			e.Type = FileTypeFile
		}
		entries = append(entries, e)
	}
	return
}
