// Package spectrum computes frequency magnitude bins of the audio being
// played, for visualization.
//
// The decode worker offers every block it queues; the analyzer keeps a mono
// history of the current generation and, on each interval, transforms the
// window that ends at the sink's playback position. It runs on its own
// goroutine, drops input it cannot keep up with, and never touches the
// stream buffer.
package spectrum

import (
	"context"
	"log/slog"
	"math"
	"math/bits"
	"math/cmplx"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/llehouerou/cadence/internal/stream"
)

// Config controls the analysis.
type Config struct {
	// Window is the FFT size in frames; it must be a power of two.
	Window int
	// Interval is the time between frames.
	Interval time.Duration
	// Bins is the number of log-spaced output bins.
	Bins int
	// MinFreq and MaxFreq bound the displayed range in Hz. MaxFreq is
	// capped at the Nyquist frequency.
	MinFreq float64
	MaxFreq float64
	// Decay blends each frame with the previous one: 0 shows the new frame
	// as is, values close to 1 move slowly.
	Decay float64
	// Backlog is how many offered blocks may wait for the analyzer.
	Backlog int
}

// DefaultConfig returns the default analysis settings.
func DefaultConfig() Config {
	return Config{
		Window:   4096,
		Interval: 50 * time.Millisecond,
		Bins:     64,
		MinFreq:  40,
		MaxFreq:  16000,
		Decay:    0.5,
		Backlog:  64,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Window < 64 || bits.OnesCount(uint(c.Window)) != 1 {
		c.Window = d.Window
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Bins <= 0 {
		c.Bins = d.Bins
	}
	if c.MinFreq <= 0 {
		c.MinFreq = d.MinFreq
	}
	if c.MaxFreq <= c.MinFreq {
		c.MaxFreq = d.MaxFreq
	}
	if c.Decay < 0 || c.Decay >= 1 {
		c.Decay = d.Decay
	}
	if c.Backlog <= 0 {
		c.Backlog = d.Backlog
	}
	return c
}

// Frame is one analysis result. Bins are in [0, 1], lowest frequency first.
type Frame struct {
	Generation uint64
	Position   int64
	Bins       []float64
}

// PositionFunc reports the frame index being played for generation gen, or
// false if gen is not playing.
type PositionFunc func(gen uint64) (int64, bool)

// noise floor of the dB scale mapped to 0.
const floorDB = -60.0

type mono struct {
	start   int64
	samples []float64
}

func (m mono) end() int64 { return m.start + int64(len(m.samples)) }

type target struct {
	gen  uint64
	rate int
}

// Analyzer turns offered blocks into Frames.
type Analyzer struct {
	cfg      Config
	position PositionFunc
	publish  func(Frame)
	logger   *slog.Logger
	taps     chan stream.Block

	mu   sync.Mutex
	want target

	// Owned by Run.
	cur      target
	history  []mono
	last     int64
	fft      *fourier.FFT
	hann     []float64
	frame    []float64
	coeffs   []complex128
	smoothed []float64
	edges    []int
}

// New creates an analyzer. position is polled every interval; publish
// receives each frame from the Run goroutine.
func New(cfg Config, position PositionFunc, publish func(Frame), logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.normalized()
	a := &Analyzer{
		cfg:      cfg,
		position: position,
		publish:  publish,
		logger:   logger.With("component", "spectrum"),
		taps:     make(chan stream.Block, cfg.Backlog),
		fft:      fourier.NewFFT(cfg.Window),
		hann:     make([]float64, cfg.Window),
		frame:    make([]float64, cfg.Window),
		smoothed: make([]float64, cfg.Bins),
		last:     -1,
	}
	for i := range a.hann {
		a.hann[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(cfg.Window-1)))
	}
	return a
}

// Config returns the effective configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// Reset switches the analyzer to generation gen decoded at sampleRate.
// History from other generations is dropped.
func (a *Analyzer) Reset(gen uint64, sampleRate int) {
	a.mu.Lock()
	a.want = target{gen: gen, rate: sampleRate}
	a.mu.Unlock()
}

// Offer hands a decoded block to the analyzer without waiting. It returns
// false if the block was dropped because the analyzer is behind.
func (a *Analyzer) Offer(blk stream.Block) bool {
	select {
	case a.taps <- blk:
		return true
	default:
		return false
	}
}

// Run analyses until ctx is done.
func (a *Analyzer) Run(ctx context.Context) error {
	t := time.NewTicker(a.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case blk := <-a.taps:
			a.sync()
			a.add(blk)
		case <-t.C:
			a.sync()
			a.tick()
		}
	}
}

func (a *Analyzer) sync() {
	a.mu.Lock()
	want := a.want
	a.mu.Unlock()
	if want == a.cur {
		return
	}
	if want.rate != a.cur.rate {
		a.edges = nil
	}
	a.cur = want
	clear(a.history)
	a.history = a.history[:0]
	clear(a.smoothed)
	a.last = -1
}

func (a *Analyzer) add(blk stream.Block) {
	if blk.Generation != a.cur.gen || blk.Len() == 0 {
		return
	}
	m := mono{start: blk.Start, samples: make([]float64, blk.Len())}
	for i, s := range blk.Samples {
		m.samples[i] = (s[0] + s[1]) / 2
	}
	a.history = append(a.history, m)
}

func (a *Analyzer) tick() {
	if a.cur.rate <= 0 || a.position == nil {
		return
	}
	pos, ok := a.position(a.cur.gen)
	if !ok || pos == a.last {
		return
	}
	a.prune(pos - int64(a.cfg.Window))
	if !a.fill(pos) {
		return
	}
	a.last = pos

	a.analyse()
	out := make([]float64, len(a.smoothed))
	copy(out, a.smoothed)
	if a.publish != nil {
		a.publish(Frame{Generation: a.cur.gen, Position: pos, Bins: out})
	}
}

// prune drops history that ends before from.
func (a *Analyzer) prune(from int64) {
	i := 0
	for i < len(a.history) && a.history[i].end() <= from {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(a.history, a.history[i:])
	clear(a.history[n:])
	a.history = a.history[:n]
}

// fill copies the window ending at pos into a.frame. Frames before the
// start of the track or missing from history are silent. It reports false
// when history has nothing for the window.
func (a *Analyzer) fill(pos int64) bool {
	from := pos - int64(len(a.frame))
	clear(a.frame)
	covered := false
	for _, m := range a.history {
		if m.start >= pos {
			break
		}
		lo, hi := max(m.start, from), min(m.end(), pos)
		if lo >= hi {
			continue
		}
		copy(a.frame[lo-from:hi-from], m.samples[lo-m.start:hi-m.start])
		covered = true
	}
	return covered
}

func (a *Analyzer) analyse() {
	for i := range a.frame {
		a.frame[i] *= a.hann[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)
	if a.edges == nil {
		a.edges = binEdges(a.cfg, a.cur.rate)
	}

	// Hann window coherent gain is 0.5; a full-scale sine peaks at 0 dB.
	scale := 4 / float64(len(a.frame))
	decay := a.cfg.Decay
	for b := range a.smoothed {
		lo, hi := a.edges[b], a.edges[b+1]
		peak := 0.0
		for k := lo; k < hi && k < len(a.coeffs); k++ {
			peak = max(peak, cmplx.Abs(a.coeffs[k]))
		}
		v := level(peak * scale)
		a.smoothed[b] = decay*a.smoothed[b] + (1-decay)*v
	}
}

// binEdges returns Bins+1 FFT bin indexes; output bin b covers
// [edges[b], edges[b+1]). Every output bin spans at least one FFT bin.
func binEdges(cfg Config, rate int) []int {
	nyquist := float64(rate) / 2
	maxFreq := min(cfg.MaxFreq, nyquist)
	minFreq := min(cfg.MinFreq, maxFreq/2)
	perBin := float64(rate) / float64(cfg.Window)
	last := cfg.Window / 2

	edges := make([]int, cfg.Bins+1)
	ratio := math.Log(maxFreq / minFreq)
	for b := range edges {
		f := minFreq * math.Exp(ratio*float64(b)/float64(cfg.Bins))
		edges[b] = min(int(math.Round(f/perBin)), last)
	}
	edges[0] = max(edges[0], 1)
	for b := 1; b < len(edges); b++ {
		edges[b] = max(edges[b], edges[b-1]+1)
	}
	return edges
}

func level(mag float64) float64 {
	db := 20 * math.Log10(mag+1e-12)
	return min(max((db-floorDB)/-floorDB, 0), 1)
}
