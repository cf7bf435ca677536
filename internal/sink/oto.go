package sink

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gopxl/beep/v2"
)

// oto allows a single context per process.
var otoState struct {
	sync.Mutex
	ctx   *oto.Context
	ready chan struct{}
	rate  beep.SampleRate
}

// Oto plays through an ebitengine/oto/v3 player in float32 format. Device
// failures reported by the player surface through Err.
type Oto struct {
	mu     sync.Mutex
	src    atomic.Pointer[beep.Streamer]
	player *oto.Player
	frames [][2]float64
}

func (d *Oto) Open(ctx context.Context, want beep.Format, latency time.Duration) (beep.Format, error) {
	otoState.Lock()
	if otoState.ctx == nil {
		c, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   int(want.SampleRate),
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   latency,
		})
		if err != nil {
			otoState.Unlock()
			return beep.Format{}, err
		}
		otoState.ctx = c
		otoState.ready = ready
		otoState.rate = want.SampleRate
	}
	ready := otoState.ready
	format := beep.Format{SampleRate: otoState.rate, NumChannels: 2, Precision: 4}
	otoState.Unlock()

	select {
	case <-ready:
	case <-ctx.Done():
		return beep.Format{}, ctx.Err()
	}

	d.mu.Lock()
	d.frames = make([][2]float64, max(format.SampleRate.N(latency), 512))
	d.mu.Unlock()
	return format, nil
}

func (d *Oto) Start(src beep.Streamer) error {
	otoState.Lock()
	c := otoState.ctx
	otoState.Unlock()
	if c == nil {
		return ErrNotOpen
	}

	d.src.Store(&src)
	p := c.NewPlayer(d)
	d.mu.Lock()
	d.player = p
	d.mu.Unlock()
	// Play may read synchronously to prefill, so it runs without d.mu.
	p.Play()
	return nil
}

// Read is called by oto's mixer goroutine. It renders stereo float32 little
// endian frames into p.
func (d *Oto) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	src := d.src.Load()
	frames := len(p) / 8
	if src == nil || len(d.frames) == 0 {
		clear(p)
		return len(p), nil
	}
	for off := 0; off < frames; {
		chunk := d.frames[:min(frames-off, len(d.frames))]
		n, _ := (*src).Stream(chunk)
		for i := n; i < len(chunk); i++ {
			chunk[i] = [2]float64{}
		}
		for i, f := range chunk {
			b := p[(off+i)*8:]
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(f[0])))
			binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(f[1])))
		}
		off += len(chunk)
	}
	clear(p[frames*8:])
	return len(p), nil
}

// Stop detaches the source first and waits out any Read in progress; the
// player is paused afterwards, outside the lock, because oto holds its own
// player lock while calling Read.
func (d *Oto) Stop() {
	d.src.Store(nil)
	d.mu.Lock()
	p := d.player
	d.player = nil
	d.mu.Unlock()
	if p != nil {
		p.Pause()
		_ = p.Close()
	}
}

func (d *Oto) Err() error {
	d.mu.Lock()
	p := d.player
	d.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Err()
}

func (d *Oto) Close() error {
	d.Stop()
	return nil
}
