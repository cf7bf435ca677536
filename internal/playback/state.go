package playback

import (
	"fmt"
	"slices"
	"time"

	"github.com/llehouerou/cadence/internal/playlist"
)

// RepeatMode defines what follows the last queue entry.
type RepeatMode = playlist.RepeatMode

const (
	RepeatOff = playlist.RepeatOff
	RepeatAll = playlist.RepeatAll
	RepeatOne = playlist.RepeatOne
)

// Status is the kind of a State.
type Status int

const (
	StatusStopped Status = iota
	StatusLoading
	StatusPlaying
	StatusPaused
	StatusSeeking
	StatusFinished
	StatusError
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "Stopped"
	case StatusLoading:
		return "Loading"
	case StatusPlaying:
		return "Playing"
	case StatusPaused:
		return "Paused"
	case StatusSeeking:
		return "Seeking"
	case StatusFinished:
		return "Finished"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a track is loaded and can be sought.
func (s Status) IsActive() bool {
	return s == StatusPlaying || s == StatusPaused
}

// State is the playback state. Which fields are meaningful depends on
// Status:
//
//	Stopped               none
//	Loading, Finished     Track
//	Playing, Paused       Track, Position
//	Seeking               Track, Position (the seek target)
//	Error                 Kind, Track if one was involved
type State struct {
	Status   Status
	Track    *Track
	Position time.Duration
	Kind     ErrorKind
}

func stopped() State { return State{Status: StatusStopped} }

func loading(t *Track) State { return State{Status: StatusLoading, Track: t} }

func playing(t *Track, pos time.Duration) State {
	return State{Status: StatusPlaying, Track: t, Position: pos}
}

func paused(t *Track, pos time.Duration) State {
	return State{Status: StatusPaused, Track: t, Position: pos}
}

func seeking(t *Track, target time.Duration) State {
	return State{Status: StatusSeeking, Track: t, Position: target}
}

func finished(t *Track) State { return State{Status: StatusFinished, Track: t} }

func failed(kind ErrorKind, t *Track) State {
	return State{Status: StatusError, Track: t, Kind: kind}
}

// Equal reports whether two states are the same, comparing tracks by path.
func (s State) Equal(o State) bool {
	if s.Status != o.Status || s.Position != o.Position || s.Kind != o.Kind {
		return false
	}
	if (s.Track == nil) != (o.Track == nil) {
		return false
	}
	return s.Track == nil || s.Track.Path == o.Track.Path
}

// String formats the state for logs, e.g. "Playing(/a.flac, 1m2s)".
func (s State) String() string {
	path := ""
	if s.Track != nil {
		path = s.Track.Path
	}
	switch s.Status {
	case StatusStopped:
		return "Stopped"
	case StatusLoading, StatusFinished:
		return fmt.Sprintf("%s(%s)", s.Status, path)
	case StatusPlaying, StatusPaused, StatusSeeking:
		return fmt.Sprintf("%s(%s, %s)", s.Status, path, s.Position)
	case StatusError:
		if s.Track == nil {
			return fmt.Sprintf("Error(%s)", s.Kind)
		}
		return fmt.Sprintf("Error(%s, %s)", s.Kind, path)
	default:
		return s.Status.String()
	}
}

// Trigger is what causes a transition.
type Trigger int

const (
	TriggerLoadAndPlay Trigger = iota
	TriggerDecoderReady
	TriggerDecodeFailure
	TriggerPause
	TriggerPlay
	TriggerSeek
	TriggerSeekComplete
	TriggerExhausted
	TriggerStop
	TriggerSkip
	TriggerFatal
)

// String returns the trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerLoadAndPlay:
		return "LoadAndPlay"
	case TriggerDecoderReady:
		return "DecoderReady"
	case TriggerDecodeFailure:
		return "DecodeFailure"
	case TriggerPause:
		return "Pause"
	case TriggerPlay:
		return "Play"
	case TriggerSeek:
		return "Seek"
	case TriggerSeekComplete:
		return "SeekComplete"
	case TriggerExhausted:
		return "Exhausted"
	case TriggerStop:
		return "Stop"
	case TriggerSkip:
		return "Skip"
	case TriggerFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// transitions lists, per source status, the triggers it accepts and the
// statuses they may lead to. Stop, Skip and Fatal are accepted from every
// status and are not listed.
var transitions = map[Status]map[Trigger][]Status{
	StatusStopped: {
		TriggerLoadAndPlay: {StatusLoading},
	},
	StatusLoading: {
		TriggerDecoderReady:  {StatusPlaying},
		TriggerDecodeFailure: {StatusError},
	},
	StatusPlaying: {
		TriggerPause:     {StatusPaused},
		TriggerSeek:      {StatusSeeking},
		TriggerExhausted: {StatusFinished},
	},
	StatusPaused: {
		TriggerPlay: {StatusPlaying},
		TriggerSeek: {StatusSeeking},
	},
	StatusSeeking: {
		TriggerSeek:         {StatusSeeking},
		TriggerSeekComplete: {StatusPlaying, StatusPaused},
	},
}

var anyState = map[Trigger][]Status{
	TriggerStop:  {StatusStopped},
	TriggerSkip:  {StatusLoading, StatusStopped},
	TriggerFatal: {StatusError},
}

// CanTransition reports whether trigger may move from to to.
func CanTransition(from Status, trigger Trigger, to Status) bool {
	if allowed, ok := anyState[trigger]; ok {
		return slices.Contains(allowed, to)
	}
	return slices.Contains(transitions[from][trigger], to)
}
