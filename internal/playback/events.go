package playback

import "time"

// Every event carries the generation it was produced in. The event bus
// drops events from generations older than the current one, so a seek or
// skip never lets stale notifications through.

// StateChanged is emitted on every state transition.
type StateChanged struct {
	Generation uint64
	Previous   State
	State      State
}

// PositionTick is emitted periodically while the position advances.
type PositionTick struct {
	Generation uint64
	Position   time.Duration
	Duration   time.Duration
}

// SpectrumFrame carries visualization bins in [0, 1].
type SpectrumFrame struct {
	Generation uint64
	Bins       []float64
}

// VolumeChanged is emitted when the volume changes.
type VolumeChanged struct {
	Generation uint64
	Volume     float64
}

// QueueChanged is emitted when the queue contents or position change.
type QueueChanged struct {
	Generation uint64
	Tracks     []Track
	Index      int
}

// ModeChanged is emitted when the repeat mode or shuffle changes.
type ModeChanged struct {
	Generation uint64
	Repeat     RepeatMode
	Shuffle    bool
}

// ErrorEvent reports a failure or a rejected command.
type ErrorEvent struct {
	Generation uint64
	Kind       ErrorKind
	Op         string // e.g. "load", "seek"
	Path       string // track path if applicable
	Err        error
}

// Snapshot is a read-only copy of the controller's view, kept current by
// the event bus for synchronous readers.
type Snapshot struct {
	Generation  uint64
	State       State
	Position    time.Duration
	Duration    time.Duration
	Volume      float64
	Queue       []Track
	Index       int
	CanNext     bool
	CanPrevious bool
	Repeat      RepeatMode
	Shuffle     bool
}
