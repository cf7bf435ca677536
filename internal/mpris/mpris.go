//go:build linux

package mpris

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quarckster/go-mpris-server/pkg/events"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/llehouerou/cadence/internal/playback"
)

// Options configures the bridge.
type Options struct {
	// Name is the bus name suffix: org.mpris.MediaPlayer2.<Name>.
	Name string
	// Identity is the human-readable player name.
	Identity string
	// Resolve turns a path opened over D-Bus into a track. Nil plays the
	// bare path.
	Resolve func(path string) playback.Track
	// SubmitTimeout bounds how long a D-Bus call waits for the command bus.
	SubmitTimeout time.Duration
	Logger        *slog.Logger
}

// Adapter connects the playback engine to MPRIS over D-Bus. Attaching or
// closing it has no effect on playback.
type Adapter struct {
	events *playback.EventBus
	server *server.Server
	signal *events.EventHandler
	sub    *playback.Subscription
	logger *slog.Logger
	done   chan struct{}
	wg     sync.WaitGroup
}

// New registers the player on the session bus and starts announcing state
// changes.
func New(commands *playback.CommandBus, bus *playback.EventBus, opts Options) (*Adapter, error) {
	if opts.Name == "" {
		opts.Name = "cadence"
	}
	if opts.Identity == "" {
		opts.Identity = "Cadence"
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = time.Second
	}
	if opts.Resolve == nil {
		opts.Resolve = func(path string) playback.Track { return playback.Track{Path: path} }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := controls{
		submit: func(cmd playback.Command) error {
			ctx, cancel := context.WithTimeout(context.Background(), opts.SubmitTimeout)
			defer cancel()
			return commands.Submit(ctx, cmd)
		},
		snapshot: bus.Snapshot,
		resolve:  opts.Resolve,
		art:      artURL,
	}

	a := &Adapter{
		events: bus,
		logger: logger.With("component", "mpris"),
		done:   make(chan struct{}),
	}
	a.server = server.NewServer(opts.Name, &rootAdapter{c: c, identity: opts.Identity}, &playerAdapter{c: c})
	a.signal = events.NewEventHandler(a.server)
	a.sub = bus.Subscribe()

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.server.Listen(); err != nil {
			a.logger.Warn("mpris server stopped", "err", err)
		}
	}()
	go a.announce()

	return a, nil
}

// Close unregisters the player from the bus.
func (a *Adapter) Close() error {
	close(a.done)
	a.events.Unsubscribe(a.sub)
	err := a.server.Stop()
	a.wg.Wait()
	return err
}

func (a *Adapter) announce() {
	defer a.wg.Done()
	for {
		select {
		case <-a.done:
			return
		case <-a.sub.Done:
			return
		case ev := <-a.sub.StateChanged:
			s := signalsFor(ev)
			if s.status {
				a.emit("PlaybackStatus", a.signal.Player.OnPlayPause())
			}
			if s.metadata {
				a.emit("Metadata", a.signal.Player.OnTitle())
			}
			if s.seeked {
				a.emit("Seeked", a.signal.Player.OnSeek(types.Microseconds(s.position.Microseconds())))
			}
		case <-a.sub.VolumeChanged:
			a.emit("Volume", a.signal.Player.OnVolume())
		case <-a.sub.ModeChanged:
			a.emit("LoopStatus", a.signal.Player.OnOptions())
		}
	}
}

func (a *Adapter) emit(what string, err error) {
	if err != nil {
		a.logger.Debug("mpris signal failed", "signal", what, "err", err)
	}
}
