package playback

import (
	"errors"

	"github.com/llehouerou/cadence/internal/decoder"
	"github.com/llehouerou/cadence/internal/sink"
)

var (
	// ErrInvalidCommand is reported for commands that make no sense in the
	// current state, such as Seek while stopped.
	ErrInvalidCommand = errors.New("playback: invalid command")
	// ErrBusClosed is returned when submitting to a closed command bus.
	ErrBusClosed = errors.New("playback: command bus closed")
	// ErrBusFull is returned by TrySubmit when the command backlog is full.
	ErrBusFull = errors.New("playback: command bus full")
	// ErrUnderrun describes the output running dry.
	ErrUnderrun = errors.New("playback: buffer underrun")
)

// ErrorKind classifies playback errors.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindUnsupportedFormat
	KindCorruptStream
	KindIoFailure
	KindDeviceUnavailable
	KindFormatNegotiation
	KindDeviceLost
	KindUnderrun
	KindInvalidCommand
	KindUnknown
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindCorruptStream:
		return "CorruptStream"
	case KindIoFailure:
		return "IoFailure"
	case KindDeviceUnavailable:
		return "DeviceUnavailable"
	case KindFormatNegotiation:
		return "FormatNegotiationFailed"
	case KindDeviceLost:
		return "DeviceLost"
	case KindUnderrun:
		return "Underrun"
	case KindInvalidCommand:
		return "InvalidCommand"
	default:
		return "Unknown"
	}
}

// Fatal reports whether errors of this kind end playback of the track.
func (k ErrorKind) Fatal() bool {
	return k != KindNone && k != KindUnderrun && k != KindInvalidCommand
}

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{decoder.ErrUnsupportedFormat, KindUnsupportedFormat},
	{decoder.ErrCorruptStream, KindCorruptStream},
	{decoder.ErrIoFailure, KindIoFailure},
	{sink.ErrDeviceUnavailable, KindDeviceUnavailable},
	{sink.ErrFormatNegotiation, KindFormatNegotiation},
	{sink.ErrDeviceLost, KindDeviceLost},
	{ErrUnderrun, KindUnderrun},
	{ErrInvalidCommand, KindInvalidCommand},
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}
