package notify

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/llehouerou/cadence/internal/errmsg"
	"github.com/llehouerou/cadence/internal/mpris"
	"github.com/llehouerou/cadence/internal/playback"
)

const expire = 5 * time.Second

// Watcher turns playback events into desktop notifications: one per new
// track, replacing the previous one, and one per playback failure.
type Watcher struct {
	out    Sender
	logger *slog.Logger
	art    func(trackPath string) string

	lastID   uint32
	lastPath string
}

// NewWatcher creates a Watcher sending through out.
func NewWatcher(out Sender, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		out:    out,
		logger: logger.With("component", "notify"),
		art:    mpris.FindAlbumArt,
	}
}

// Run handles events from sub until ctx is done or sub is closed.
func (w *Watcher) Run(ctx context.Context, sub *playback.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case ev := <-sub.StateChanged:
			w.handleState(ev)
		case ev := <-sub.Error:
			w.handleError(ev)
		}
	}
}

func (w *Watcher) handleState(ev playback.StateChanged) {
	switch ev.State.Status {
	case playback.StatusStopped:
		w.lastPath = ""
		return
	case playback.StatusPlaying:
	default:
		return
	}
	t := ev.State.Track
	if t == nil || t.Path == w.lastPath {
		return
	}
	w.lastPath = t.Path

	m := nowPlaying(*t)
	m.Icon = w.art(t.Path)
	w.send(m)
}

func (w *Watcher) handleError(ev playback.ErrorEvent) {
	if !ev.Kind.Fatal() {
		return
	}
	w.send(failed(ev))
	w.lastPath = ""
}

// send shows m in place of the last message.
func (w *Watcher) send(m Message) {
	m.Replaces = w.lastID
	id, err := w.out.Send(m)
	if err != nil {
		w.logger.Debug("notification failed", "err", err)
		return
	}
	w.lastID = id
}

// nowPlaying describes t: title as summary, artist and album as body.
func nowPlaying(t playback.Track) Message {
	title := t.Title
	if title == "" {
		title = filepath.Base(t.Path)
	}
	var body []string
	if t.Artist != "" {
		body = append(body, t.Artist)
	}
	if t.Album != "" {
		body = append(body, t.Album)
	}
	return Message{
		Summary: title,
		Body:    strings.Join(body, " · "),
		Expire:  expire,
		Urgency: UrgencyLow,
	}
}

func failed(ev playback.ErrorEvent) Message {
	return Message{
		Summary: "Playback failed",
		Body:    errmsg.FormatEvent(ev),
		Expire:  expire,
		Urgency: UrgencyNormal,
	}
}
