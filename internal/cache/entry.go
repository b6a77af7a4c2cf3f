package cache

import (
	"image"
	"time"
)

// State is the lifecycle position of one tile key in the memory table.
type State int

const (
	// StateAbsent means the key has never been requested (or its failure
	// window expired and it may be requested again).
	StateAbsent State = iota
	// StatePending means exactly one fetch is in flight for the key.
	StatePending
	// StateReady means the decoded tile is available for drawing.
	StateReady
	// StateFailed means the last fetch for the key failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "absent"
	}
}

// Tile is the payload of a ready entry: the decoded image plus the encoded
// bytes it came from.
type Tile struct {
	Image image.Image
	Data  []byte
}

// Entry is a consistent per-key snapshot of the table. Tile is set only in
// StateReady; Err and FailedAt only in StateFailed.
type Entry struct {
	State    State
	Tile     *Tile
	Err      error
	FailedAt time.Time
}
