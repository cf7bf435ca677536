package queuepanel

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/llehouerou/cadence/internal/playback"
	"github.com/llehouerou/cadence/internal/ui/render"
	"github.com/llehouerou/cadence/internal/ui/styles"
)

// View renders the queue panel.
func (m Model) View() string {
	if m.Width() <= 2 || m.InnerHeight() == 0 {
		return ""
	}
	st := styles.T().S()
	innerWidth := m.Width() - 2

	current := 0
	if m.index >= 0 {
		current = m.index + 1
	}
	title := fmt.Sprintf("Queue (%d/%d)", current, len(m.tracks))
	modes := m.modeMarkers()
	header := st.Title.Render(render.Fit(title, max(innerWidth-render.Width(modes), 0))) + st.Subtle.Render(modes)

	lines := []string{header}
	for i := range m.listHeight() {
		idx := m.offset + i
		if idx >= len(m.tracks) {
			lines = append(lines, strings.Repeat(" ", innerWidth))
			continue
		}
		lines = append(lines, m.renderTrackLine(m.tracks[idx], idx, innerWidth))
	}

	return st.Panel.Width(innerWidth).Render(strings.Join(lines, "\n"))
}

// modeMarkers returns the shuffle and repeat markers, right-padded by one
// cell, or "" when both are off.
func (m Model) modeMarkers() string {
	var parts []string
	if m.shuffle {
		parts = append(parts, "[S]")
	}
	switch m.repeat {
	case playback.RepeatAll:
		parts = append(parts, "[R]")
	case playback.RepeatOne:
		parts = append(parts, "[1]")
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + " "
}

// renderTrackLine renders a single entry: marker, title, artist.
func (m Model) renderTrackLine(t playback.Track, idx, width int) string {
	prefix := "  "
	if idx == m.index {
		prefix = playingSymbol + " "
	}

	contentWidth := max(width-2, 0)
	titleWidth := contentWidth / 2
	if t.Artist == "" {
		titleWidth = contentWidth
	}
	line := prefix + render.Fit(displayTitle(t), titleWidth) +
		render.Fit(t.Artist, contentWidth-titleWidth)

	return m.trackStyle(idx).Render(line)
}

func (m Model) trackStyle(idx int) lipgloss.Style {
	st := styles.T().S()
	switch {
	case idx == m.index:
		return st.Playing
	case m.index >= 0 && idx < m.index:
		return st.Subtle
	default:
		return st.Base
	}
}
