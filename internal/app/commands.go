package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/llehouerou/cadence/internal/playback"
)

const statusTimeout = 5 * time.Second

// eventsClosedMsg is sent when the event bus shuts down.
type eventsClosedMsg struct{}

// clearStatusMsg clears the status line if nothing replaced it since.
type clearStatusMsg struct {
	version int
}

// waitForEvent returns a command that waits for the next playback event
// and delivers it as a message.
func waitForEvent(sub *playback.Subscription) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case e := <-sub.StateChanged:
			return e
		case e := <-sub.PositionChanged:
			return e
		case e := <-sub.Spectrum:
			return e
		case e := <-sub.VolumeChanged:
			return e
		case e := <-sub.QueueChanged:
			return e
		case e := <-sub.ModeChanged:
			return e
		case e := <-sub.Error:
			return e
		case <-sub.Done:
			return eventsClosedMsg{}
		}
	}
}

func clearStatusCmd(version int) tea.Cmd {
	return tea.Tick(statusTimeout, func(_ time.Time) tea.Msg {
		return clearStatusMsg{version: version}
	})
}
