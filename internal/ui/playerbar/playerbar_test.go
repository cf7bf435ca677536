package playerbar

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/llehouerou/cadence/internal/playback"
)

func TestNewState(t *testing.T) {
	track := &playback.Track{
		Path:       "/music/a.flac",
		Codec:      "FLAC",
		Frames:     441000,
		SampleRate: 44100,
		Title:      "Song",
		Artist:     "Artist",
	}
	snap := playback.Snapshot{
		State:    playback.State{Status: playback.StatusPlaying, Track: track, Position: time.Second},
		Position: 2 * time.Second,
		Volume:   0.8,
		Queue:    []playback.Track{*track, {Path: "/music/b.flac"}},
		Index:    0,
	}

	s := NewState(snap)
	assert.Equal(t, playback.StatusPlaying, s.Status)
	assert.Equal(t, "Song", s.Title)
	assert.Equal(t, 2*time.Second, s.Position)
	assert.Equal(t, 10*time.Second, s.Duration, "falls back to the track length")
	assert.Equal(t, 2, s.Total)

	snap.State = playback.State{Status: playback.StatusSeeking, Track: track, Position: 7 * time.Second}
	assert.Equal(t, 7*time.Second, NewState(snap).Position, "seeking shows the target")
}

func TestSymbol(t *testing.T) {
	tests := []struct {
		status playback.Status
		want   string
	}{
		{playback.StatusPlaying, "▶"},
		{playback.StatusPaused, "⏸"},
		{playback.StatusStopped, "■"},
		{playback.StatusError, "✗"},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Symbol(tt.status))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{65 * time.Second, "1:05"},
		{61*time.Minute + 9*time.Second, "61:09"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d))
	}
}

func TestRenderProgressBar(t *testing.T) {
	t.Run("half played", func(t *testing.T) {
		bar := RenderProgressBar(30*time.Second, time.Minute, 39, "▶")
		assert.Equal(t, 39, lipgloss.Width(bar))
		assert.True(t, strings.HasPrefix(bar, "▶  0:30  "))
		assert.True(t, strings.HasSuffix(bar, "  1:00"))
		assert.Equal(t, strings.Count(bar, "▓"), strings.Count(bar, "░"))
	})

	t.Run("too narrow", func(t *testing.T) {
		assert.Equal(t, "⏸  0:30 / 1:00", RenderProgressBar(30*time.Second, time.Minute, 12, "⏸"))
	})

	t.Run("unknown duration", func(t *testing.T) {
		bar := RenderProgressBar(5*time.Second, 0, 40, "▶")
		assert.Contains(t, bar, "--:--")
		assert.Zero(t, strings.Count(bar, "▓"))
	})
}

func TestRender(t *testing.T) {
	s := State{
		Status:     playback.StatusPlaying,
		Title:      "Song",
		Artist:     "Artist",
		Codec:      "FLAC",
		SampleRate: 44100,
		Position:   time.Second,
		Duration:   time.Minute,
		Volume:     0.5,
		Index:      1,
		Total:      3,
	}
	out := Render(s, 80)

	assert.Equal(t, 5, lipgloss.Height(out))
	assert.Equal(t, 80, lipgloss.Width(out))
	for _, want := range []string{"Song", "Artist", "2/3", "FLAC", "kHz", "vol  50%"} {
		assert.Contains(t, out, want)
	}
}

func TestRender_Stopped(t *testing.T) {
	out := Render(State{Index: -1}, 60)
	assert.Contains(t, out, "Nothing playing")
}
