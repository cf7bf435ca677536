//go:build !linux

package mpris

import (
	"log/slog"
	"time"

	"github.com/llehouerou/cadence/internal/playback"
)

// Options configures the bridge.
type Options struct {
	Name          string
	Identity      string
	Resolve       func(path string) playback.Track
	SubmitTimeout time.Duration
	Logger        *slog.Logger
}

// Adapter is a no-op where there is no session D-Bus.
type Adapter struct{}

// New returns a no-op adapter.
func New(_ *playback.CommandBus, _ *playback.EventBus, _ Options) (*Adapter, error) {
	return &Adapter{}, nil
}

// Close does nothing.
func (a *Adapter) Close() error {
	return nil
}
