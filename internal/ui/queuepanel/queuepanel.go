// Package queuepanel renders the play queue with the current entry
// highlighted.
package queuepanel

import (
	"path/filepath"

	"github.com/llehouerou/cadence/internal/playback"
	"github.com/llehouerou/cadence/internal/ui"
)

const playingSymbol = "▶"

// Model represents the queue panel state.
type Model struct {
	ui.Base
	tracks  []playback.Track
	index   int
	offset  int
	repeat  playback.RepeatMode
	shuffle bool
}

// New creates an empty queue panel.
func New() Model {
	return Model{index: -1}
}

// SetQueue replaces the displayed queue and scrolls to keep the current
// entry visible.
func (m *Model) SetQueue(tracks []playback.Track, index int) {
	m.tracks = tracks
	m.index = index
	m.ensureVisible()
}

// SetModes sets the repeat and shuffle modes shown in the header.
func (m *Model) SetModes(repeat playback.RepeatMode, shuffle bool) {
	m.repeat = repeat
	m.shuffle = shuffle
}

// SetSize sets the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.Base.SetSize(width, height)
	m.ensureVisible()
}

// Len returns the number of queued tracks.
func (m Model) Len() int {
	return len(m.tracks)
}

// Offset returns the index of the first visible entry.
func (m Model) Offset() int {
	return m.offset
}

func (m Model) listHeight() int {
	return max(m.InnerHeight()-1, 0) // header line
}

func (m *Model) ensureVisible() {
	h := m.listHeight()
	if h <= 0 || len(m.tracks) <= h {
		m.offset = 0
		return
	}
	if m.index >= 0 {
		margin := min(ui.ScrollMargin, (h-1)/2)
		if m.index < m.offset+margin {
			m.offset = m.index - margin
		}
		if m.index >= m.offset+h-margin {
			m.offset = m.index - h + margin + 1
		}
	}
	m.offset = min(max(m.offset, 0), len(m.tracks)-h)
}

// displayTitle returns the track title, or the file name if untagged.
func displayTitle(t playback.Track) string {
	if t.Title != "" {
		return t.Title
	}
	return filepath.Base(t.Path)
}
