package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
)

var (
	// ErrDeviceUnavailable is returned when the output device cannot be
	// opened, including when opening exceeds the configured timeout.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrFormatNegotiation is returned when the device cannot agree on a
	// usable sample format.
	ErrFormatNegotiation = errors.New("audio format negotiation failed")
	// ErrDeviceLost reports that an opened device stopped working.
	ErrDeviceLost = errors.New("audio device lost")
	// ErrNotOpen is returned by Attach before Open succeeded.
	ErrNotOpen = errors.New("audio sink not open")
)

// Device is an audio output backend. It pulls stereo frames from the
// streamer given to Start on its own schedule.
type Device interface {
	// Open prepares the device, preferring want. It returns the format the
	// device actually runs at.
	Open(ctx context.Context, want beep.Format, latency time.Duration) (beep.Format, error)
	// Start begins pulling from src.
	Start(src beep.Streamer) error
	// Stop stops pulling. Once Stop returns, src is never called again.
	Stop()
	// Err reports a failure detected after Start, nil while healthy.
	Err() error
	// Close stops the device and releases it.
	Close() error
}

// Backend names accepted by NewDevice.
const (
	BackendSpeaker  = "speaker"
	BackendOto      = "oto"
	BackendHeadless = "headless"
)

// NewDevice returns the device for a backend name.
func NewDevice(backend string) (Device, error) {
	switch strings.ToLower(backend) {
	case "", BackendSpeaker:
		return &Speaker{}, nil
	case BackendOto:
		return &Oto{}, nil
	case BackendHeadless:
		return &Headless{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrDeviceUnavailable, backend)
	}
}
