// Package mpris exposes the player on D-Bus as an MPRIS media player.
//
// The bridge keeps no playback state of its own. Property getters read the
// event bus snapshot and method calls become playback commands.
package mpris

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net/url"
	"path/filepath"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/llehouerou/cadence/internal/playback"
)

var (
	// ErrUnsupportedURI is returned by OpenUri for anything but a file URI.
	ErrUnsupportedURI = errors.New("unsupported uri")
	// ErrUnsupportedLoopStatus is returned by SetLoopStatus for an unknown value.
	ErrUnsupportedLoopStatus = errors.New("unsupported loop status")
)

const noTrackID = dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")

// controls is how the adapters reach the player.
type controls struct {
	submit   func(playback.Command) error
	snapshot func() playback.Snapshot
	resolve  func(path string) playback.Track
	art      func(path string) string
}

type rootAdapter struct {
	c        controls
	identity string
}

func (r *rootAdapter) Raise() error { return nil }

func (r *rootAdapter) Quit() error {
	return r.c.submit(playback.Quit{})
}

func (r *rootAdapter) CanQuit() (bool, error)      { return true, nil }
func (r *rootAdapter) CanRaise() (bool, error)     { return false, nil }
func (r *rootAdapter) HasTrackList() (bool, error) { return false, nil }
func (r *rootAdapter) Identity() (string, error)   { return r.identity, nil }

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{
		"audio/mpeg", "audio/flac", "audio/x-flac", "audio/wav", "audio/x-wav",
		"audio/ogg", "audio/opus", "audio/mp4", "audio/x-m4a",
	}, nil
}

type playerAdapter struct {
	c controls
}

func (p *playerAdapter) Next() error      { return p.c.submit(playback.Skip{}) }
func (p *playerAdapter) Previous() error  { return p.c.submit(playback.Previous{}) }
func (p *playerAdapter) Pause() error     { return p.c.submit(playback.Pause{}) }
func (p *playerAdapter) PlayPause() error { return p.c.submit(playback.TogglePause{}) }
func (p *playerAdapter) Stop() error      { return p.c.submit(playback.Stop{}) }
func (p *playerAdapter) Play() error      { return p.c.submit(playback.Play{}) }

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	return p.c.submit(playback.SeekBy{Offset: microsToDuration(offset)})
}

// SetPosition is ignored when trackID is not the current track.
func (p *playerAdapter) SetPosition(trackID string, position types.Microseconds) error {
	if position < 0 {
		return nil
	}
	t := p.c.snapshot().State.Track
	if t == nil || string(trackObjectPath(t.Path)) != trackID {
		return nil
	}
	return p.c.submit(playback.Seek{Target: microsToDuration(position), Path: t.Path})
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(uri string) error {
	path, err := filePath(uri)
	if err != nil {
		return err
	}
	return p.c.submit(playback.LoadAndPlay{Track: p.c.resolve(path)})
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	return playbackStatus(p.c.snapshot().State.Status), nil
}

func (p *playerAdapter) Rate() (float64, error)        { return 1.0, nil }
func (p *playerAdapter) SetRate(_ float64) error       { return nil }
func (p *playerAdapter) MinimumRate() (float64, error) { return 1.0, nil }
func (p *playerAdapter) MaximumRate() (float64, error) { return 1.0, nil }

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	return metadata(p.c.snapshot(), p.c.art), nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return p.c.snapshot().Volume, nil
}

func (p *playerAdapter) SetVolume(v float64) error {
	return p.c.submit(playback.SetVolume{Volume: v})
}

func (p *playerAdapter) Position() (int64, error) {
	return p.c.snapshot().Position.Microseconds(), nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return p.c.snapshot().CanNext, nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	s := p.c.snapshot()
	return s.CanPrevious || s.State.Track != nil, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	s := p.c.snapshot()
	return s.State.Track != nil || len(s.Queue) > 0, nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return p.c.snapshot().State.Status.IsActive(), nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	s := p.c.snapshot()
	return s.State.Track != nil && s.Duration > 0, nil
}

func (p *playerAdapter) CanControl() (bool, error) { return true, nil }

func (p *playerAdapter) LoopStatus() (types.LoopStatus, error) {
	return loopStatus(p.c.snapshot().Repeat), nil
}

func (p *playerAdapter) SetLoopStatus(status types.LoopStatus) error {
	mode, err := repeatMode(status)
	if err != nil {
		return err
	}
	return p.c.submit(playback.SetRepeat{Mode: mode})
}

func (p *playerAdapter) Shuffle() (bool, error) { return p.c.snapshot().Shuffle, nil }

func (p *playerAdapter) SetShuffle(enabled bool) error {
	return p.c.submit(playback.SetShuffle{Enabled: enabled})
}

func loopStatus(m playback.RepeatMode) types.LoopStatus {
	switch m {
	case playback.RepeatAll:
		return types.LoopStatusPlaylist
	case playback.RepeatOne:
		return types.LoopStatusTrack
	default:
		return types.LoopStatusNone
	}
}

func repeatMode(s types.LoopStatus) (playback.RepeatMode, error) {
	switch s {
	case types.LoopStatusNone:
		return playback.RepeatOff, nil
	case types.LoopStatusPlaylist:
		return playback.RepeatAll, nil
	case types.LoopStatusTrack:
		return playback.RepeatOne, nil
	default:
		return playback.RepeatOff, fmt.Errorf("%w: %q", ErrUnsupportedLoopStatus, s)
	}
}

func playbackStatus(s playback.Status) types.PlaybackStatus {
	switch s {
	case playback.StatusPlaying, playback.StatusLoading, playback.StatusSeeking:
		return types.PlaybackStatusPlaying
	case playback.StatusPaused:
		return types.PlaybackStatusPaused
	default:
		return types.PlaybackStatusStopped
	}
}

func metadata(s playback.Snapshot, art func(string) string) types.Metadata {
	t := s.State.Track
	if t == nil {
		return types.Metadata{TrackId: noTrackID}
	}
	meta := types.Metadata{
		TrackId:     trackObjectPath(t.Path),
		Length:      types.Microseconds(t.Duration().Microseconds()),
		Title:       t.Title,
		Album:       t.Album,
		TrackNumber: t.TrackNumber,
	}
	if meta.Title == "" {
		meta.Title = filepath.Base(t.Path)
	}
	if t.Artist != "" {
		meta.Artist = []string{t.Artist}
	}
	if art != nil {
		meta.ArtUrl = art(t.Path)
	}
	return meta
}

func trackObjectPath(path string) dbus.ObjectPath {
	h := fnv.New64a()
	h.Write([]byte(path))
	return dbus.ObjectPath(fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64()))
}

func microsToDuration(us types.Microseconds) time.Duration {
	return time.Duration(us) * time.Microsecond
}

func filePath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedURI, err)
	}
	if u.Scheme != "file" || u.Path == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURI, uri)
	}
	return u.Path, nil
}

// signals is what a state change must announce on the bus.
type signals struct {
	status   bool
	metadata bool
	seeked   bool
	position time.Duration
}

func signalsFor(ev playback.StateChanged) signals {
	var s signals
	s.status = playbackStatus(ev.Previous.Status) != playbackStatus(ev.State.Status)
	s.metadata = trackPath(ev.Previous) != trackPath(ev.State)
	if ev.Previous.Status == playback.StatusSeeking {
		switch ev.State.Status {
		case playback.StatusPlaying, playback.StatusPaused:
			s.seeked = true
			s.position = ev.State.Position
		}
	}
	return s
}

func trackPath(s playback.State) string {
	if s.Track == nil {
		return ""
	}
	return s.Track.Path
}
