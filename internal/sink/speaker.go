package sink

import (
	"context"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// The beep speaker is process-global and is initialised at most once; later
// opens reuse the first sample rate and rely on the sink to resample.
var speakerState struct {
	sync.Mutex
	ready bool
	rate  beep.SampleRate
}

// Speaker plays through github.com/gopxl/beep/v2/speaker.
//
// The speaker has no way to report a lost device, so Err is always nil.
type Speaker struct{}

func (*Speaker) Open(ctx context.Context, want beep.Format, latency time.Duration) (beep.Format, error) {
	speakerState.Lock()
	defer speakerState.Unlock()

	if err := ctx.Err(); err != nil {
		return beep.Format{}, err
	}
	if !speakerState.ready {
		if err := speaker.Init(want.SampleRate, want.SampleRate.N(latency)); err != nil {
			return beep.Format{}, err
		}
		speakerState.ready = true
		speakerState.rate = want.SampleRate
	}
	return beep.Format{SampleRate: speakerState.rate, NumChannels: 2, Precision: 2}, nil
}

func (*Speaker) Start(src beep.Streamer) error {
	speaker.Play(src)
	return nil
}

// Stop removes every streamer from the speaker. speaker.Clear takes the
// speaker lock, which is held for the whole of each callback.
func (*Speaker) Stop() {
	speakerState.Lock()
	ready := speakerState.ready
	speakerState.Unlock()
	if ready {
		speaker.Clear()
	}
}

func (*Speaker) Err() error { return nil }

// Close only stops playback: the speaker itself stays initialised for the
// life of the process.
func (s *Speaker) Close() error {
	s.Stop()
	return nil
}
