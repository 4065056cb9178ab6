package engine

import (
	"sync"
	"time"

	"tileviewer/games/sm"
)

type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Attaching
	AwaitingGame
	Ready
	Polling
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Attaching:
		return "Attaching"
	case AwaitingGame:
		return "AwaitingGame"
	case Ready:
		return "Ready"
	case Polling:
		return "Polling"
	default:
		return "Unknown"
	}
}

// Snapshot is a copy of the decoded game state. MapData is shared with the State but is
// never modified after publication.
type Snapshot struct {
	Ready     bool      `msgpack:"ready"`
	LastError ErrorKind `msgpack:"err"`
	Stage     ConnState `msgpack:"stage"`

	MapID     uint8    `msgpack:"map"`
	Player    sm.Point `msgpack:"player"`
	Camera    sm.Point `msgpack:"camera"`
	Radius    sm.Point `msgpack:"radius"`
	Width     uint16   `msgpack:"width"`
	GameState uint8    `msgpack:"gs"`
	DoorState uint16   `msgpack:"door"`
	MapData   []byte   `msgpack:"mapdata,omitempty"`

	Iteration uint64    `msgpack:"iter"`
	UpdatedAt time.Time `msgpack:"t"`
}

// State is the snapshot shared between the polling goroutine (the only writer) and any
// number of readers.
type State struct {
	lock sync.Mutex
	s    Snapshot
}

func NewState() *State {
	return &State{}
}

// Snapshot copies the current state. Readers should call this once per frame and release
// nothing else; the lock is held only for the copy.
func (st *State) Snapshot() Snapshot {
	st.lock.Lock()
	defer st.lock.Unlock()
	return st.s
}

// update applies fn to the state under a single lock acquisition so readers never observe a
// partially written batch.
func (st *State) update(fn func(s *Snapshot)) {
	st.lock.Lock()
	defer st.lock.Unlock()
	fn(&st.s)
}
