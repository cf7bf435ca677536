package playback

import "time"

// Command is a request for the controller. Commands are values; the
// controller applies them one at a time in submission order.
type Command interface {
	command()
}

type (
	// Play resumes a paused track, or restarts the current queue entry
	// when stopped, finished or failed.
	Play struct{}
	// Pause pauses a playing track.
	Pause struct{}
	// TogglePause switches between Play and Pause.
	TogglePause struct{}
	// Stop stops playback and releases the current track.
	Stop struct{}
	// Seek moves to an absolute position. If Path is set the command only
	// applies while that track is current.
	Seek struct {
		Target time.Duration
		Path   string
	}
	// SeekBy moves relative to the current position.
	SeekBy struct {
		Offset time.Duration
	}
	// SetVolume sets the linear volume; values outside [0, 1] are clamped.
	SetVolume struct {
		Volume float64
	}
	// LoadAndPlay inserts Track after the current queue entry and plays it.
	LoadAndPlay struct {
		Track Track
	}
	// Skip plays the next queue entry, or stops if there is none.
	Skip struct{}
	// Previous restarts the current track, or plays the previous entry
	// when close to the start.
	Previous struct{}
	// Enqueue appends tracks to the queue.
	Enqueue struct {
		Tracks []Track
	}
	// ClearQueue empties the queue without stopping the current track.
	ClearQueue struct{}
	// SetRepeat sets the queue's repeat mode.
	SetRepeat struct {
		Mode RepeatMode
	}
	// SetShuffle enables or disables shuffled queue order.
	SetShuffle struct {
		Enabled bool
	}
	// Quit stops playback and ends the controller.
	Quit struct{}
)

func (Play) command()        {}
func (Pause) command()       {}
func (TogglePause) command() {}
func (Stop) command()        {}
func (Seek) command()        {}
func (SeekBy) command()      {}
func (SetVolume) command()   {}
func (LoadAndPlay) command() {}
func (Skip) command()        {}
func (Previous) command()    {}
func (Enqueue) command()     {}
func (ClearQueue) command()  {}
func (SetRepeat) command()   {}
func (SetShuffle) command()  {}
func (Quit) command()        {}
