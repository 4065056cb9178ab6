package engine

import (
	"bytes"
	"testing"

	"tileviewer/games/sm"
)

func TestRecorder(t *testing.T) {
	mapA := bytes.Repeat([]byte{0xAA}, 4096)
	mapB := bytes.Repeat([]byte{0xBB}, 4096)

	snapshots := []Snapshot{
		{Stage: Polling, MapID: 1, MapData: mapA, Iteration: 1, Player: sm.Point{X: 10, Y: 20}},
		{Stage: Polling, MapID: 1, MapData: mapA, Iteration: 2, Player: sm.Point{X: 11, Y: 20}},
		{Stage: Polling, MapID: 2, MapData: mapB, Iteration: 3, Camera: sm.Point{X: -55, Y: -123}},
		{Stage: Connecting, LastError: TransferError, MapID: 2, MapData: mapB, Iteration: 3},
	}

	var buf bytes.Buffer
	r := NewRecorder(&buf)
	for _, s := range snapshots {
		if err := r.Record(s); err != nil {
			t.Fatal(err)
		}
	}
	if actual, expected := r.Count(), len(snapshots); actual != expected {
		t.Errorf("Count() = %d, expected %d", actual, expected)
	}

	// level data is written twice, not four times:
	if size := buf.Len(); size > 3*len(mapA) {
		t.Errorf("recording is %d bytes; level data repeated?", size)
	}

	var got []Snapshot
	err := ReadRecording(&buf, func(s Snapshot) error {
		got = append(got, s)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if actual, expected := len(got), len(snapshots); actual != expected {
		t.Fatalf("read %d snapshots, expected %d", actual, expected)
	}
	for i := range snapshots {
		e, a := snapshots[i], got[i]
		if a.MapID != e.MapID || a.Iteration != e.Iteration || a.Stage != e.Stage || a.LastError != e.LastError {
			t.Errorf("snapshot %d = %+v, expected %+v", i, a, e)
		}
		if a.Player != e.Player || a.Camera != e.Camera {
			t.Errorf("snapshot %d position = %v/%v, expected %v/%v", i, a.Player, a.Camera, e.Player, e.Camera)
		}
		if !bytes.Equal(a.MapData, e.MapData) {
			t.Errorf("snapshot %d MapData = % x, expected % x", i, a.MapData, e.MapData)
		}
	}
}
