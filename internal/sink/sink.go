// Package sink drives the audio output device.
//
// The device pulls frames by calling Sink.Stream from its own real-time
// context. Stream never blocks, allocates or logs: it pops blocks from the
// stream.Buffer with a try-lock, substitutes silence when nothing is ready,
// and publishes position, underrun and end-of-stream through atomics. A
// notification channel tells the control side to come and look.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/samber/lo"

	"github.com/llehouerou/cadence/internal/stream"
)

// Position packing: the low 44 bits hold the frame index, the high 20 bits
// the generation modulo 2^20. 2^44 frames is over three years at 192 kHz.
const (
	posBits  = 44
	posMask  = 1<<posBits - 1
	genMask  = 1<<(64-posBits) - 1
	noEnding = 0
)

func packPosition(gen uint64, frames int64) uint64 {
	return (gen&genMask)<<posBits | uint64(max(frames, 0))&posMask //nolint:gosec // frames is non-negative
}

func unpackPosition(v uint64) (uint64, int64) {
	return v >> posBits, int64(v & posMask) //nolint:gosec // 44 bits fit
}

// Config holds the output settings read at open time.
type Config struct {
	// SampleRate forces the device rate; 0 uses the first track's rate.
	SampleRate beep.SampleRate
	// Latency is the device buffer duration.
	Latency time.Duration
	// OpenTimeout bounds Open.
	OpenTimeout time.Duration
	// ResampleQuality is passed to beep.Resample (1..64).
	ResampleQuality int
	// Prime is how much audio must be queued before a new pipeline starts
	// consuming; 0 starts on the first block.
	Prime time.Duration
}

func (c Config) withDefaults() Config {
	if c.Latency <= 0 {
		c.Latency = 100 * time.Millisecond
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 3 * time.Second
	}
	if c.ResampleQuality == 0 {
		c.ResampleQuality = 4
	}
	c.ResampleQuality = lo.Clamp(c.ResampleQuality, 1, 64)
	return c
}

// Sink plays the blocks of a stream.Buffer on a Device.
type Sink struct {
	dev    Device
	cfg    Config
	buf    *stream.Buffer
	logger *slog.Logger

	openMu sync.Mutex // serialises Open
	mu     sync.Mutex // guards format; serialises Attach, Close and the end of Open
	opened atomic.Bool
	format beep.Format

	pipe      atomic.Pointer[pipeline]
	paused    atomic.Bool
	volume    atomic.Uint64
	position  atomic.Uint64
	underruns atomic.Uint64
	ended     atomic.Uint64 // generation+1 whose stream drained, 0 for none
	notify    chan struct{}
}

// New creates a sink over dev that plays from buf.
func New(dev Device, cfg Config, buf *stream.Buffer, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		dev:    dev,
		cfg:    cfg.withDefaults(),
		buf:    buf,
		logger: logger.With("component", "sink"),
		notify: make(chan struct{}, 1),
	}
	s.volume.Store(math.Float64bits(1))
	return s
}

type openResult struct {
	format beep.Format
	err    error
}

// Open opens the device if it is not open yet. want is the format of the
// track about to play; the device may pick another rate, in which case
// pipelines resample. Open gives up after Config.OpenTimeout with
// ErrDeviceUnavailable.
func (s *Sink) Open(ctx context.Context, want beep.Format) error {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	if s.opened.Load() {
		return nil
	}

	if s.cfg.SampleRate > 0 {
		want.SampleRate = s.cfg.SampleRate
	}
	if want.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrFormatNegotiation, want.SampleRate)
	}
	want.NumChannels = 2

	openCtx, cancel := context.WithTimeout(ctx, s.cfg.OpenTimeout)
	defer cancel()

	// s.mu is not held while waiting: Err, Close and the controller tick
	// stay responsive during a slow open.
	results := make(chan openResult, 1)
	go func() {
		f, err := s.dev.Open(openCtx, want, s.cfg.Latency)
		results <- openResult{f, err}
	}()

	var res openResult
	select {
	case res = <-results:
	case <-openCtx.Done():
		select {
		case res = <-results:
		default:
			// The device may still finish opening; release it when it does.
			go func() {
				if r := <-results; r.err == nil {
					_ = s.dev.Close()
				}
			}()
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrDeviceUnavailable, ctx.Err())
			}
			return fmt.Errorf("%w: open timed out after %s", ErrDeviceUnavailable, s.cfg.OpenTimeout)
		}
	}

	if res.err != nil {
		if errors.Is(res.err, ErrFormatNegotiation) || errors.Is(res.err, ErrDeviceUnavailable) {
			return res.err
		}
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, res.err)
	}
	if res.format.SampleRate <= 0 || res.format.NumChannels < 1 || res.format.NumChannels > 2 {
		_ = s.dev.Close()
		return fmt.Errorf("%w: device offered %d Hz, %d channels",
			ErrFormatNegotiation, res.format.SampleRate, res.format.NumChannels)
	}
	if err := ctx.Err(); err != nil {
		// Abandoned while opening, nobody will play on it.
		_ = s.dev.Close()
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dev.Start(callback{s}); err != nil {
		_ = s.dev.Close()
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	s.format = res.format
	s.opened.Store(true)
	s.logger.Info("audio device opened",
		"sample_rate", int(res.format.SampleRate),
		"requested_rate", int(want.SampleRate),
		"latency", s.cfg.Latency)
	return nil
}

// IsOpen reports whether the device is open. It never waits on Open.
func (s *Sink) IsOpen() bool {
	return s.opened.Load()
}

// DeviceFormat returns the format the device runs at.
func (s *Sink) DeviceFormat() beep.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Attach switches the callback to generation gen, whose blocks are decoded
// at format and begin at frame start.
func (s *Sink) Attach(gen uint64, format beep.Format, start int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened.Load() {
		return ErrNotOpen
	}
	prime := format.SampleRate.N(s.cfg.Prime)
	p := newPipeline(s.buf, gen, start, prime, format.SampleRate, s.format.SampleRate, s.cfg.ResampleQuality)
	s.position.Store(packPosition(gen, start))
	s.pipe.Store(p)
	return nil
}

// Detach makes the callback output silence.
func (s *Sink) Detach() {
	s.pipe.Store(nil)
}

// SetPaused pauses or resumes consumption. While paused the callback
// outputs silence and leaves the buffer untouched.
func (s *Sink) SetPaused(paused bool) {
	s.paused.Store(paused)
}

// Paused reports whether consumption is paused.
func (s *Sink) Paused() bool {
	return s.paused.Load()
}

// SetVolume sets the linear gain, clamped to [0, 1], and returns the value
// applied.
func (s *Sink) SetVolume(v float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	v = lo.Clamp(v, 0, 1)
	s.volume.Store(math.Float64bits(v))
	return v
}

// Volume returns the current linear gain.
func (s *Sink) Volume() float64 {
	return math.Float64frombits(s.volume.Load())
}

// Position returns the generation (modulo 2^20) and frame index of the last
// frame handed to the device.
func (s *Sink) Position() (uint64, int64) {
	return unpackPosition(s.position.Load())
}

// PositionFor returns the position if the callback is playing generation
// gen.
func (s *Sink) PositionFor(gen uint64) (int64, bool) {
	g, frames := s.Position()
	if g != gen&genMask {
		return 0, false
	}
	return frames, true
}

// Notify is signalled when an underrun or end of stream is recorded.
func (s *Sink) Notify() <-chan struct{} {
	return s.notify
}

// TakeUnderruns returns the number of underruns since the last call.
func (s *Sink) TakeUnderruns() uint64 {
	return s.underruns.Swap(0)
}

// Ended returns the generation whose stream has fully played out.
func (s *Sink) Ended() (uint64, bool) {
	v := s.ended.Load()
	if v == noEnding {
		return 0, false
	}
	return v - 1, true
}

// Err reports a device failure detected after Open. It never waits on
// Open.
func (s *Sink) Err() error {
	if !s.opened.Load() {
		return nil
	}
	err := s.dev.Err()
	if err == nil || errors.Is(err, ErrDeviceLost) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDeviceLost, err)
}

// Close stops the device. The callback is not invoked once Close returns.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipe.Store(nil)
	if !s.opened.Swap(false) {
		return nil
	}
	s.dev.Stop()
	err := s.dev.Close()
	s.logger.Info("audio device closed")
	return err
}

// Stream is the real-time callback.
func (s *Sink) Stream(samples [][2]float64) (int, bool) {
	p := s.pipe.Load()
	if p == nil || s.paused.Load() {
		silence(samples)
		return len(samples), true
	}

	n, _ := p.out.Stream(samples)
	silence(samples[n:])

	if vol := math.Float64frombits(s.volume.Load()); vol != 1 {
		for i := range samples {
			samples[i][0] *= vol
			samples[i][1] *= vol
		}
	}

	r := p.reader
	s.position.Store(packPosition(p.gen, r.pos))

	signal := false
	if r.underrun {
		r.underrun = false
		s.underruns.Add(1)
		signal = true
	}
	if r.ended && !p.endReported {
		p.endReported = true
		s.ended.Store(p.gen + 1)
		signal = true
	}
	if signal {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
	return len(samples), true
}

// callback is what the device pulls from. Sink.Err reports the device's
// health, which is not the streamer error beep expects.
type callback struct{ s *Sink }

func (c callback) Stream(samples [][2]float64) (int, bool) { return c.s.Stream(samples) }

func (c callback) Err() error { return nil }

func silence(samples [][2]float64) {
	for i := range samples {
		samples[i] = [2]float64{}
	}
}
