package spectrum

import (
	"context"
	"math"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/cadence/internal/stream"
)

func sineBlock(gen uint64, start int64, n int, freq float64, rate int) stream.Block {
	s := make([][2]float64, n)
	for i := range s {
		v := 0.8 * math.Sin(2*math.Pi*freq*float64(start+int64(i))/float64(rate))
		s[i] = [2]float64{v, v}
	}
	return stream.Block{Generation: gen, Start: start, Samples: s}
}

type recorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *recorder) publish(f Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func fixedPosition(gen uint64, pos int64) PositionFunc {
	return func(g uint64) (int64, bool) {
		return pos, g == gen
	}
}

func testConfig() Config {
	return Config{
		Window:   1024,
		Interval: 10 * time.Millisecond,
		Bins:     16,
		MinFreq:  100,
		MaxFreq:  4000,
		Decay:    0,
	}
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func TestAnalyzer_SinePeaksInMatchingBin(t *testing.T) {
	const rate = 8000
	rec := &recorder{}
	a := New(testConfig(), fixedPosition(1, 2048), rec.publish, nil)
	a.Reset(1, rate)
	a.sync()
	a.add(sineBlock(1, 0, 2048, 1000, rate))

	a.tick()
	require.Equal(t, 1, rec.count())
	f := rec.frames[0]
	assert.Equal(t, uint64(1), f.Generation)
	assert.Equal(t, int64(2048), f.Position)
	require.Len(t, f.Bins, 16)

	peak := argmax(f.Bins)
	edges := binEdges(a.Config(), rate)
	perBin := float64(rate) / 1024
	assert.LessOrEqual(t, float64(edges[peak])*perBin, 1000.0)
	assert.Greater(t, float64(edges[peak+1])*perBin, 1000.0)
	assert.Greater(t, f.Bins[peak], 0.8)
	for _, v := range f.Bins {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestAnalyzer_SilenceIsFloor(t *testing.T) {
	rec := &recorder{}
	a := New(testConfig(), fixedPosition(1, 1024), rec.publish, nil)
	a.Reset(1, 8000)
	a.sync()
	a.add(stream.Block{Generation: 1, Start: 0, Samples: make([][2]float64, 1024)})

	a.tick()
	require.Equal(t, 1, rec.count())
	for _, v := range rec.frames[0].Bins {
		assert.Zero(t, v)
	}
}

func TestAnalyzer_IgnoresOtherGenerations(t *testing.T) {
	rec := &recorder{}
	a := New(testConfig(), fixedPosition(2, 1024), rec.publish, nil)
	a.Reset(2, 8000)
	a.sync()

	a.add(sineBlock(1, 0, 1024, 1000, 8000))
	assert.Empty(t, a.history)

	a.tick()
	assert.Zero(t, rec.count())
}

func TestAnalyzer_ResetDropsHistory(t *testing.T) {
	a := New(testConfig(), nil, nil, nil)
	a.Reset(1, 8000)
	a.sync()
	a.add(sineBlock(1, 0, 512, 1000, 8000))
	require.Len(t, a.history, 1)

	a.Reset(2, 8000)
	a.sync()
	assert.Empty(t, a.history)
}

func TestAnalyzer_SkipsWhenPositionDoesNotMove(t *testing.T) {
	rec := &recorder{}
	a := New(testConfig(), fixedPosition(1, 2048), rec.publish, nil)
	a.Reset(1, 8000)
	a.sync()
	a.add(sineBlock(1, 0, 2048, 500, 8000))

	a.tick()
	a.tick()
	a.tick()
	assert.Equal(t, 1, rec.count())
}

func TestAnalyzer_PrunesPlayedHistory(t *testing.T) {
	var pos int64
	a := New(testConfig(), func(uint64) (int64, bool) { return pos, true }, nil, nil)
	a.Reset(1, 8000)
	a.sync()
	for i := range 8 {
		a.add(sineBlock(1, int64(i*512), 512, 440, 8000))
	}

	pos = 3072
	a.tick()
	require.NotEmpty(t, a.history)
	assert.GreaterOrEqual(t, a.history[0].end(), pos-1024)
	assert.Len(t, a.history, 4)
}

func TestAnalyzer_OfferDropsWhenBehind(t *testing.T) {
	cfg := testConfig()
	cfg.Backlog = 2
	a := New(cfg, nil, nil, nil)

	assert.True(t, a.Offer(stream.Block{}))
	assert.True(t, a.Offer(stream.Block{}))
	assert.False(t, a.Offer(stream.Block{}))
}

func TestAnalyzer_RunPublishesOnInterval(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		const rate = 8000
		rec := &recorder{}
		var mu sync.Mutex
		var pos int64 = 1024
		position := func(gen uint64) (int64, bool) {
			mu.Lock()
			defer mu.Unlock()
			return pos, gen == 1
		}
		a := New(testConfig(), position, rec.publish, nil)
		a.Reset(1, rate)

		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error)
		go func() { done <- a.Run(ctx) }()

		for i := range 8 {
			require.True(t, a.Offer(sineBlock(1, int64(i*512), 512, 1000, rate)))
		}
		// Move the position halfway between ticks.
		time.Sleep(5 * time.Millisecond)
		for range 5 {
			mu.Lock()
			pos += 80
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
		}
		synctest.Wait()

		assert.Equal(t, 5, rec.count())
		cancel()
		assert.NoError(t, <-done)
	})
}

func TestBinEdges(t *testing.T) {
	cfg := testConfig()
	edges := binEdges(cfg, 8000)
	require.Len(t, edges, cfg.Bins+1)
	assert.GreaterOrEqual(t, edges[0], 1)
	for i := 1; i < len(edges); i++ {
		assert.Greater(t, edges[i], edges[i-1])
	}
}

func TestConfigNormalized(t *testing.T) {
	cfg := Config{Window: 1000, Decay: 1.5}.normalized()
	d := DefaultConfig()
	assert.Equal(t, d.Window, cfg.Window)
	assert.Equal(t, d.Decay, cfg.Decay)
	assert.Equal(t, d.Interval, cfg.Interval)
	assert.Equal(t, d.Bins, cfg.Bins)
}
