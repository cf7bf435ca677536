// Package app is the terminal front end: it renders the playback engine's
// events and turns key presses into playback commands.
package app

import (
	"log/slog"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/cadence/internal/playback"
	"github.com/llehouerou/cadence/internal/ui/queuepanel"
)

// Submitter accepts playback commands without blocking.
// *playback.CommandBus implements it.
type Submitter interface {
	TrySubmit(cmd playback.Command) error
}

// Events is the read side of the engine. *playback.EventBus implements it.
type Events interface {
	Subscribe() *playback.Subscription
	Snapshot() playback.Snapshot
}

// Model is the bubbletea model of the player.
type Model struct {
	commands Submitter
	sub      *playback.Subscription
	logger   *slog.Logger

	snap playback.Snapshot
	bins []float64

	status        string
	statusIsError bool
	statusVersion int

	keys  keyMap
	help  help.Model
	queue queuepanel.Model

	width, height int
}

// New creates the model and subscribes to events right away so none are
// missed before the program starts.
func New(commands Submitter, events Events, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	snap := events.Snapshot()
	queue := queuepanel.New()
	queue.SetQueue(snap.Queue, snap.Index)
	queue.SetModes(snap.Repeat, snap.Shuffle)
	return Model{
		commands: commands,
		sub:      events.Subscribe(),
		logger:   logger,
		snap:     snap,
		keys:     defaultKeyMap(),
		help:     help.New(),
		queue:    queue,
	}
}

// Init starts listening for playback events.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.sub)
}

// Snapshot returns the playback view the model renders.
func (m Model) Snapshot() playback.Snapshot {
	return m.snap
}

// Status returns the status line message.
func (m Model) Status() string {
	return m.status
}
