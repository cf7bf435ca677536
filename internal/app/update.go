package app

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/cadence/internal/errmsg"
	"github.com/llehouerou/cadence/internal/playback"
)

const (
	seekStep    = 5 * time.Second
	seekStepBig = 30 * time.Second
	volumeStep  = 0.05
)

// Update handles a message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case clearStatusMsg:
		if msg.version == m.statusVersion {
			m.status = ""
			m.statusIsError = false
		}
		return m, nil

	case eventsClosedMsg:
		return m, tea.Quit
	}

	if cmd, ok := m.handleEvent(msg); ok {
		return m, tea.Batch(cmd, waitForEvent(m.sub))
	}
	return m, nil
}

// handleEvent applies a playback event. It reports false for anything
// that is not one.
func (m *Model) handleEvent(msg tea.Msg) (tea.Cmd, bool) {
	switch e := msg.(type) {
	case playback.StateChanged:
		m.snap.State = e.State
		switch e.State.Status {
		case playback.StatusPlaying, playback.StatusPaused:
			m.snap.Position = e.State.Position
		case playback.StatusStopped, playback.StatusError:
			m.snap.Position = 0
			m.snap.Duration = 0
			m.bins = nil
		case playback.StatusLoading:
			m.snap.Position = 0
			m.snap.Duration = 0
			if e.State.Track != nil {
				m.snap.Duration = e.State.Track.Duration()
			}
			m.bins = nil
		}
		return nil, true

	case playback.PositionTick:
		m.snap.Position = e.Position
		m.snap.Duration = e.Duration
		return nil, true

	case playback.VolumeChanged:
		m.snap.Volume = e.Volume
		return nil, true

	case playback.QueueChanged:
		m.snap.Queue = e.Tracks
		m.snap.Index = e.Index
		m.queue.SetQueue(e.Tracks, e.Index)
		return nil, true

	case playback.ModeChanged:
		m.snap.Repeat = e.Repeat
		m.snap.Shuffle = e.Shuffle
		m.queue.SetModes(e.Repeat, e.Shuffle)
		return nil, true

	case playback.SpectrumFrame:
		m.bins = e.Bins
		return nil, true

	case playback.ErrorEvent:
		m.logger.Debug("playback error", "kind", e.Kind, "op", e.Op, "path", e.Path, "err", e.Err)
		return m.setStatus(errmsg.FormatEvent(e), e.Kind != playback.KindInvalidCommand), true
	}
	return nil, false
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd playback.Command
	switch {
	case key.Matches(msg, m.keys.Quit):
		// The program ends even if the engine no longer accepts commands.
		_ = m.commands.TrySubmit(playback.Quit{})
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil
	case key.Matches(msg, m.keys.TogglePause):
		cmd = playback.TogglePause{}
	case key.Matches(msg, m.keys.Play):
		cmd = playback.Play{}
	case key.Matches(msg, m.keys.Stop):
		cmd = playback.Stop{}
	case key.Matches(msg, m.keys.SeekBack):
		cmd = playback.SeekBy{Offset: -seekStep}
	case key.Matches(msg, m.keys.SeekFwd):
		cmd = playback.SeekBy{Offset: seekStep}
	case key.Matches(msg, m.keys.SeekBackBig):
		cmd = playback.SeekBy{Offset: -seekStepBig}
	case key.Matches(msg, m.keys.SeekFwdBig):
		cmd = playback.SeekBy{Offset: seekStepBig}
	case key.Matches(msg, m.keys.VolumeUp):
		cmd = playback.SetVolume{Volume: min(m.snap.Volume+volumeStep, 1)}
	case key.Matches(msg, m.keys.VolumeDown):
		cmd = playback.SetVolume{Volume: max(m.snap.Volume-volumeStep, 0)}
	case key.Matches(msg, m.keys.Next):
		cmd = playback.Skip{}
	case key.Matches(msg, m.keys.Previous):
		cmd = playback.Previous{}
	case key.Matches(msg, m.keys.ClearQueue):
		cmd = playback.ClearQueue{}
	case key.Matches(msg, m.keys.Repeat):
		cmd = playback.SetRepeat{Mode: nextRepeatMode(m.snap.Repeat)}
	case key.Matches(msg, m.keys.Shuffle):
		cmd = playback.SetShuffle{Enabled: !m.snap.Shuffle}
	default:
		return m, nil
	}
	return m, m.submit(cmd)
}

// nextRepeatMode cycles Off, All, One.
func nextRepeatMode(current playback.RepeatMode) playback.RepeatMode {
	switch current {
	case playback.RepeatOff:
		return playback.RepeatAll
	case playback.RepeatAll:
		return playback.RepeatOne
	default:
		return playback.RepeatOff
	}
}

// submit sends cmd to the engine, reporting a full or closed bus on the
// status line.
func (m *Model) submit(cmd playback.Command) tea.Cmd {
	if err := m.commands.TrySubmit(cmd); err != nil {
		m.logger.Warn("command dropped", "command", cmd, "err", err)
		return m.setStatus(errmsg.Format(errmsg.OpCommand, err), true)
	}
	return nil
}

func (m *Model) setStatus(text string, isError bool) tea.Cmd {
	if text == "" {
		return nil
	}
	m.statusVersion++
	m.status = text
	m.statusIsError = isError
	return clearStatusCmd(m.statusVersion)
}
