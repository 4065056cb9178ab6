package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Recorder appends snapshots to a msgpack stream. Level data is only written when it
// changes so a long recording stays small.
type Recorder struct {
	enc     *msgpack.Encoder
	lastMap []byte
	count   int
}

func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: msgpack.NewEncoder(w)}
}

func (r *Recorder) Count() int { return r.count }

func (r *Recorder) Record(s Snapshot) error {
	if r.lastMap != nil && bytes.Equal(r.lastMap, s.MapData) {
		s.MapData = nil
	} else {
		r.lastMap = s.MapData
	}

	if err := r.enc.Encode(&s); err != nil {
		return fmt.Errorf("engine: record snapshot: %w", err)
	}
	r.count++
	return nil
}

// ReadRecording decodes every snapshot in a recording. Snapshots recorded without level data
// carry the level data of the last snapshot that had it.
func ReadRecording(rd io.Reader, fn func(s Snapshot) error) error {
	dec := msgpack.NewDecoder(rd)
	var mapData []byte
	for {
		var s Snapshot
		if err := dec.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("engine: read recording: %w", err)
		}

		if s.MapData != nil {
			mapData = s.MapData
		} else {
			s.MapData = mapData
		}
		if err := fn(s); err != nil {
			return err
		}
	}
}
