// Package playerbar renders the now-playing bar: track, status, progress
// and output details.
package playerbar

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/cadence/internal/playback"
	"github.com/llehouerou/cadence/internal/ui"
	"github.com/llehouerou/cadence/internal/ui/render"
	"github.com/llehouerou/cadence/internal/ui/styles"
)

// State holds everything needed to render the player bar.
type State struct {
	Status      playback.Status
	Kind        playback.ErrorKind
	Title       string
	Artist      string
	Album       string
	TrackNumber int
	Codec       string
	SampleRate  int
	Position    time.Duration
	Duration    time.Duration
	Volume      float64
	Index       int // position in the queue, -1 if none
	Total       int // queue length
}

// NewState builds a State from a playback snapshot.
func NewState(snap playback.Snapshot) State {
	s := State{
		Status:   snap.State.Status,
		Kind:     snap.State.Kind,
		Position: snap.Position,
		Duration: snap.Duration,
		Volume:   snap.Volume,
		Index:    snap.Index,
		Total:    len(snap.Queue),
	}
	if snap.State.Status == playback.StatusSeeking {
		s.Position = snap.State.Position
	}
	if t := snap.State.Track; t != nil {
		s.Title = t.Title
		s.Artist = t.Artist
		s.Album = t.Album
		s.TrackNumber = t.TrackNumber
		s.Codec = t.Codec
		s.SampleRate = t.SampleRate
		if s.Duration <= 0 {
			s.Duration = t.Duration()
		}
	}
	return s
}

// Symbol returns the status glyph shown before the progress bar.
func Symbol(st playback.Status) string {
	switch st {
	case playback.StatusPlaying:
		return "▶"
	case playback.StatusPaused:
		return "⏸"
	case playback.StatusLoading:
		return "…"
	case playback.StatusSeeking:
		return "»"
	case playback.StatusFinished:
		return "✓"
	case playback.StatusError:
		return "✗"
	default:
		return "■"
	}
}

// Render returns the three-line player bar, with border, for the given width.
func Render(s State, width int) string {
	st := styles.T().S()
	inner := max(width-6, 0) // border and padding

	lines := []string{
		titleLine(s, inner),
		RenderProgressBar(s.Position, s.Duration, inner, Symbol(s.Status)),
		detailLine(s, inner),
	}
	return st.Panel.Padding(0, 2).Width(max(width-2, 0)).Render(strings.Join(lines, "\n"))
}

func titleLine(s State, width int) string {
	st := styles.T().S()
	if s.Status == playback.StatusStopped && s.Title == "" {
		return st.Muted.Render(render.Shorten("Nothing playing", width))
	}

	title := render.Clean(s.Title)
	if title == "" {
		title = "Unknown Track"
	}
	if s.TrackNumber > 0 {
		title = fmt.Sprintf("%02d. %s", s.TrackNumber, title)
	}

	var info []string
	if s.Artist != "" {
		info = append(info, render.Clean(s.Artist))
	}
	if s.Album != "" {
		info = append(info, render.Clean(s.Album))
	}

	right := ""
	if s.Index >= 0 && s.Total > 0 {
		right = fmt.Sprintf("%d/%d", s.Index+1, s.Total)
	}
	avail := max(width-len(right)-1, 0)

	left := st.Title.Render(render.Shorten(title, avail))
	if used := render.Width(title); len(info) > 0 && used+3 < avail {
		left += "   " + st.Muted.Render(render.Shorten(strings.Join(info, " · "), avail-used-3))
	}
	return render.Row(left, st.Subtle.Render(right), width)
}

func detailLine(s State, width int) string {
	st := styles.T().S()

	var parts []string
	if s.Codec != "" {
		parts = append(parts, s.Codec)
	}
	if s.SampleRate > 0 {
		parts = append(parts, humanize.SI(float64(s.SampleRate), "Hz"))
	}
	if s.Status == playback.StatusError {
		parts = append(parts, st.Error.Render(s.Kind.String()))
	}
	left := st.Subtle.Render(strings.Join(parts, " · "))
	return render.Row(left, RenderVolume(s.Volume), width)
}

// RenderProgressBar renders a block-style progress bar.
// Format: ▶  1:23  ▓▓▓▓▓░░░░░  4:56
func RenderProgressBar(position, duration time.Duration, width int, symbol string) string {
	st := styles.T().S()
	posStr := FormatDuration(position)
	durStr := "--:--"
	if duration > 0 {
		durStr = FormatDuration(duration)
	}

	fixed := len([]rune(symbol)) + 2 + len(posStr) + 2 + 2 + len(durStr)
	barWidth := width - fixed
	if barWidth < ui.MinProgressBarWidth {
		return symbol + "  " + posStr + " / " + durStr
	}

	var ratio float64
	if duration > 0 {
		ratio = min(float64(position)/float64(duration), 1)
	}
	filled := min(int(float64(barWidth)*ratio), barWidth)
	bar := st.Filled.Render(strings.Repeat("▓", filled)) +
		st.Empty.Render(strings.Repeat("░", barWidth-filled))

	return symbol + "  " + posStr + "  " + bar + "  " + durStr
}

// RenderVolume renders the volume indicator, e.g. "vol  80%".
func RenderVolume(volume float64) string {
	return styles.T().S().Muted.Render(fmt.Sprintf("vol %3d%%", int(volume*100+0.5)))
}

// FormatDuration renders d as m:ss.
func FormatDuration(d time.Duration) string {
	d = max(d, 0)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}
