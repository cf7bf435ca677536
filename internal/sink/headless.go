package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

const defaultHeadlessPeriod = 10 * time.Millisecond

// Headless is a device without audio hardware. A goroutine pulls one
// period's worth of frames per tick, so the sink callback runs at the same
// average rate as on a real device. It backs tests and machines without a
// sound card, and can simulate failures.
type Headless struct {
	// Rate forces the device sample rate; 0 accepts the requested one.
	Rate beep.SampleRate
	// Period is the pull interval; 0 means 10ms.
	Period time.Duration
	// OpenDelay makes Open take this long, or until its context is done.
	OpenDelay time.Duration
	// OpenErr, if set, is returned by Open.
	OpenErr error

	mu     sync.Mutex
	src    beep.Streamer
	rate   beep.SampleRate
	frames [][2]float64
	pulled int64
	lost   error
	stop   chan struct{}
	done   chan struct{}
}

func (d *Headless) Open(ctx context.Context, want beep.Format, _ time.Duration) (beep.Format, error) {
	if d.OpenErr != nil {
		return beep.Format{}, d.OpenErr
	}
	if d.OpenDelay > 0 {
		t := time.NewTimer(d.OpenDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return beep.Format{}, ctx.Err()
		}
	}
	rate := want.SampleRate
	if d.Rate > 0 {
		rate = d.Rate
	}
	d.mu.Lock()
	d.rate = rate
	d.mu.Unlock()
	return beep.Format{SampleRate: rate, NumChannels: 2, Precision: 4}, nil
}

func (d *Headless) period() time.Duration {
	if d.Period > 0 {
		return d.Period
	}
	return defaultHeadlessPeriod
}

func (d *Headless) Start(src beep.Streamer) error {
	d.Stop()

	d.mu.Lock()
	if d.rate == 0 {
		d.mu.Unlock()
		return ErrNotOpen
	}
	d.src = src
	d.lost = nil
	d.frames = make([][2]float64, max(d.rate.N(d.period()), 1))
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	stop, done := d.stop, d.done
	d.mu.Unlock()

	go d.run(stop, done)
	return nil
}

func (d *Headless) run(stop, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(d.period())
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			d.mu.Lock()
			if d.src != nil && d.lost == nil {
				n, _ := d.src.Stream(d.frames)
				d.pulled += int64(n)
			}
			d.mu.Unlock()
		}
	}
}

// Stop halts the pull goroutine and waits for it to exit.
func (d *Headless) Stop() {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.src = nil
	d.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

// Lose simulates the device disappearing: pulling stops and Err reports err.
func (d *Headless) Lose(err error) {
	if err == nil {
		err = errors.New("device disconnected")
	}
	d.mu.Lock()
	d.lost = err
	d.mu.Unlock()
}

func (d *Headless) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

// Pulled returns the number of frames pulled since the device was created.
func (d *Headless) Pulled() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pulled
}

func (d *Headless) Close() error {
	d.Stop()
	return nil
}
