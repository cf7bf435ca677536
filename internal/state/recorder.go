package state

import (
	"context"

	"github.com/llehouerou/cadence/internal/playback"
)

// Record saves the session whenever the queue, the volume or the queue
// modes change, until
// ctx is done or sub is closed. initial is the session at subscription time.
func (m *Manager) Record(ctx context.Context, sub *playback.Subscription, initial Session) {
	s := initial
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case ev := <-sub.QueueChanged:
			s.Tracks = ev.Tracks
			s.Index = ev.Index
		case ev := <-sub.VolumeChanged:
			s.Volume = ev.Volume
		case ev := <-sub.ModeChanged:
			s.Repeat = ev.Repeat
			s.Shuffle = ev.Shuffle
		}
		m.SaveLater(s)
	}
}
