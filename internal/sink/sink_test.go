package sink

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"testing/synctest"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/cadence/internal/stream"
)

// manualDevice never pulls on its own; tests drive the callback with pull.
type manualDevice struct {
	rate     beep.SampleRate
	channels int
	openErr  error
	err      error
	src      beep.Streamer
	closed   int
}

func (d *manualDevice) Open(_ context.Context, want beep.Format, _ time.Duration) (beep.Format, error) {
	if d.openErr != nil {
		return beep.Format{}, d.openErr
	}
	f := beep.Format{SampleRate: want.SampleRate, NumChannels: 2, Precision: 4}
	if d.rate != 0 {
		f.SampleRate = d.rate
	}
	if d.channels != 0 {
		f.NumChannels = d.channels
	}
	return f, nil
}

func (d *manualDevice) Start(src beep.Streamer) error { d.src = src; return nil }
func (d *manualDevice) Stop()                         { d.src = nil }
func (d *manualDevice) Err() error                    { return d.err }
func (d *manualDevice) Close() error                  { d.closed++; return nil }

func (d *manualDevice) pull(n int) [][2]float64 {
	out := make([][2]float64, n)
	for i := range out {
		out[i] = [2]float64{9, 9}
	}
	if d.src != nil {
		d.src.Stream(out)
	}
	return out
}

func constBlock(gen uint64, start int64, n int, v float64) stream.Block {
	s := make([][2]float64, n)
	for i := range s {
		s[i] = [2]float64{v, v}
	}
	return stream.Block{Generation: gen, Start: start, Samples: s}
}

var testFormat = beep.Format{SampleRate: 1000, NumChannels: 2, Precision: 2}

func openSink(t *testing.T, dev Device, cfg Config) (*Sink, *stream.Buffer) {
	t.Helper()
	buf := stream.New(time.Second, 4)
	s := New(dev, cfg, buf, slog.New(slog.DiscardHandler))
	require.NoError(t, s.Open(context.Background(), testFormat))
	t.Cleanup(func() { _ = s.Close() })
	return s, buf
}

func push(t *testing.T, buf *stream.Buffer, blocks ...stream.Block) {
	t.Helper()
	for _, b := range blocks {
		require.NoError(t, buf.Push(context.Background(), b))
	}
}

func drained(t *testing.T, s *Sink) bool {
	t.Helper()
	select {
	case <-s.Notify():
		return true
	default:
		return false
	}
}

func TestSink_SilentWhenDetached(t *testing.T) {
	dev := &manualDevice{}
	_, buf := openSink(t, dev, Config{})
	buf.Flush(1, 1000)
	push(t, buf, constBlock(1, 0, 4, 0.5))

	out := dev.pull(8)
	for _, f := range out {
		assert.Equal(t, [2]float64{}, f)
	}
	assert.Equal(t, 1, buf.Len())
}

func TestSink_PlaysBlocksInOrder(t *testing.T) {
	dev := &manualDevice{}
	s, buf := openSink(t, dev, Config{})
	buf.Flush(1, 1000)
	push(t, buf, constBlock(1, 0, 4, 0.5), constBlock(1, 4, 4, 0.25))
	require.NoError(t, s.Attach(1, testFormat, 0))

	out := dev.pull(8)
	for i := range 4 {
		assert.InDelta(t, 0.5, out[i][0], 1e-9)
		assert.InDelta(t, 0.25, out[i+4][1], 1e-9)
	}

	pos, ok := s.PositionFor(1)
	require.True(t, ok)
	assert.Equal(t, int64(8), pos)
}

func TestSink_AttachRequiresOpen(t *testing.T) {
	s := New(&manualDevice{}, Config{}, stream.New(time.Second, 4), nil)
	assert.ErrorIs(t, s.Attach(1, testFormat, 0), ErrNotOpen)
}

func TestSink_PositionStartsAtAttachOffset(t *testing.T) {
	dev := &manualDevice{}
	s, buf := openSink(t, dev, Config{})
	buf.Flush(2, 1000)
	require.NoError(t, s.Attach(2, testFormat, 5000))

	pos, ok := s.PositionFor(2)
	require.True(t, ok)
	assert.Equal(t, int64(5000), pos)

	_, ok = s.PositionFor(1)
	assert.False(t, ok)
}

func TestSink_Volume(t *testing.T) {
	dev := &manualDevice{}
	s, buf := openSink(t, dev, Config{})

	assert.InDelta(t, 1.0, s.Volume(), 1e-9)
	assert.InDelta(t, 1.0, s.SetVolume(1.7), 1e-9)
	assert.InDelta(t, 0.0, s.SetVolume(-0.2), 1e-9)
	assert.InDelta(t, 0.5, s.SetVolume(0.5), 1e-9)
	assert.InDelta(t, 0.5, s.Volume(), 1e-9)

	buf.Flush(1, 1000)
	push(t, buf, constBlock(1, 0, 4, 0.8))
	require.NoError(t, s.Attach(1, testFormat, 0))
	out := dev.pull(4)
	assert.InDelta(t, 0.4, out[0][0], 1e-9)
	assert.InDelta(t, 0.4, out[3][1], 1e-9)
}

func TestSink_PausedOutputsSilenceAndKeepsBuffer(t *testing.T) {
	dev := &manualDevice{}
	s, buf := openSink(t, dev, Config{})
	buf.Flush(1, 1000)
	push(t, buf, constBlock(1, 0, 4, 0.5))
	require.NoError(t, s.Attach(1, testFormat, 0))

	s.SetPaused(true)
	out := dev.pull(4)
	assert.Equal(t, [2]float64{}, out[0])
	assert.Equal(t, 1, buf.Len())
	assert.Zero(t, s.TakeUnderruns())

	s.SetPaused(false)
	out = dev.pull(4)
	assert.InDelta(t, 0.5, out[0][0], 1e-9)
}

func TestSink_OneUnderrunPerStarvation(t *testing.T) {
	dev := &manualDevice{}
	s, buf := openSink(t, dev, Config{})
	buf.Flush(1, 1000)
	require.NoError(t, s.Attach(1, testFormat, 0))

	// Nothing queued yet: waiting for the first block is not an underrun.
	dev.pull(8)
	assert.Zero(t, s.TakeUnderruns())

	push(t, buf, constBlock(1, 0, 4, 0.5))
	out := dev.pull(8)
	assert.InDelta(t, 0.5, out[3][0], 1e-9)
	assert.Equal(t, [2]float64{}, out[4])
	assert.True(t, drained(t, s))
	assert.Equal(t, uint64(1), s.TakeUnderruns())

	dev.pull(8)
	dev.pull(8)
	assert.Zero(t, s.TakeUnderruns())

	push(t, buf, constBlock(1, 4, 4, 0.5))
	dev.pull(8)
	assert.Equal(t, uint64(1), s.TakeUnderruns())
}

func TestSink_StalePipelineNeverPlaysNewerBlocks(t *testing.T) {
	dev := &manualDevice{}
	s, buf := openSink(t, dev, Config{})
	buf.Flush(1, 1000)
	push(t, buf, constBlock(1, 0, 4, 0.5))
	require.NoError(t, s.Attach(1, testFormat, 0))
	dev.pull(4)

	buf.Flush(2, 1000)
	push(t, buf, constBlock(2, 9000, 4, 0.9))

	out := dev.pull(4)
	assert.Equal(t, [2]float64{}, out[0])
	assert.Zero(t, s.TakeUnderruns())
	assert.Equal(t, 1, buf.Len())

	require.NoError(t, s.Attach(2, testFormat, 9000))
	out = dev.pull(4)
	assert.InDelta(t, 0.9, out[0][0], 1e-9)
	pos, ok := s.PositionFor(2)
	require.True(t, ok)
	assert.Equal(t, int64(9004), pos)
}

func TestSink_ReportsEndOnce(t *testing.T) {
	dev := &manualDevice{}
	s, buf := openSink(t, dev, Config{})
	buf.Flush(3, 1000)
	push(t, buf, constBlock(3, 0, 4, 0.5))
	buf.Finish(3)
	require.NoError(t, s.Attach(3, testFormat, 0))

	_, ended := s.Ended()
	assert.False(t, ended)

	dev.pull(8)
	gen, ended := s.Ended()
	require.True(t, ended)
	assert.Equal(t, uint64(3), gen)
	assert.True(t, drained(t, s))
	assert.Zero(t, s.TakeUnderruns())

	dev.pull(8)
	assert.False(t, drained(t, s))
}

func TestSink_ResamplesToDeviceRate(t *testing.T) {
	dev := &manualDevice{rate: 2000}
	s, buf := openSink(t, dev, Config{})
	assert.Equal(t, beep.SampleRate(2000), s.DeviceFormat().SampleRate)

	buf.Flush(1, 1000)
	for i := range 50 {
		push(t, buf, constBlock(1, int64(i*4), 4, 0.5))
	}
	buf.Finish(1)
	require.NoError(t, s.Attach(1, testFormat, 0))

	out := dev.pull(200)
	assert.InDelta(t, 0.5, out[100][0], 0.05)

	pos, ok := s.PositionFor(1)
	require.True(t, ok)
	assert.Greater(t, pos, int64(90))
	assert.LessOrEqual(t, pos, int64(200))
}

func TestSink_OpenErrors(t *testing.T) {
	tests := []struct {
		name string
		dev  Device
		want beep.Format
		err  error
	}{
		{
			name: "device refuses",
			dev:  &manualDevice{openErr: errors.New("no such card")},
			want: testFormat,
			err:  ErrDeviceUnavailable,
		},
		{
			name: "device offers bad channel count",
			dev:  &manualDevice{channels: 6},
			want: testFormat,
			err:  ErrFormatNegotiation,
		},
		{
			name: "track has no sample rate",
			dev:  &manualDevice{},
			want: beep.Format{NumChannels: 2},
			err:  ErrFormatNegotiation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.dev, Config{}, stream.New(time.Second, 4), nil)
			err := s.Open(context.Background(), tt.want)
			require.ErrorIs(t, err, tt.err)
			assert.False(t, s.IsOpen())
		})
	}
}

func TestSink_ForcedSampleRate(t *testing.T) {
	dev := &manualDevice{}
	s, _ := openSink(t, dev, Config{SampleRate: 48000})
	assert.Equal(t, beep.SampleRate(48000), s.DeviceFormat().SampleRate)
}

func TestSink_OpenIsIdempotent(t *testing.T) {
	dev := &manualDevice{}
	s, _ := openSink(t, dev, Config{})
	require.NoError(t, s.Open(context.Background(), beep.Format{SampleRate: 44100}))
	assert.Equal(t, beep.SampleRate(1000), s.DeviceFormat().SampleRate)
}

func TestSink_OpenTimeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		dev := &Headless{OpenDelay: time.Minute}
		s := New(dev, Config{OpenTimeout: 2 * time.Second}, stream.New(time.Second, 4), nil)

		start := time.Now()
		err := s.Open(context.Background(), testFormat)
		require.ErrorIs(t, err, ErrDeviceUnavailable)
		assert.Equal(t, 2*time.Second, time.Since(start))
		assert.False(t, s.IsOpen())
		synctest.Wait()
	})
}

func TestSink_QueriesDoNotWaitForOpen(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		dev := &Headless{OpenDelay: 2 * time.Second}
		s := New(dev, Config{OpenTimeout: 3 * time.Second}, stream.New(time.Second, 4), nil)

		opened := make(chan error, 1)
		go func() { opened <- s.Open(t.Context(), testFormat) }()
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		start := time.Now()
		assert.False(t, s.IsOpen())
		assert.NoError(t, s.Err())
		assert.NoError(t, s.Close())
		assert.Zero(t, time.Since(start))

		require.NoError(t, <-opened)
		assert.True(t, s.IsOpen())
		require.NoError(t, s.Close())
	})
}

func TestSink_OpenAbandonedByCaller(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		dev := &Headless{OpenDelay: 2 * time.Second}
		s := New(dev, Config{OpenTimeout: 3 * time.Second}, stream.New(time.Second, 4), nil)

		ctx, cancel := context.WithCancel(t.Context())
		time.AfterFunc(500*time.Millisecond, cancel)

		start := time.Now()
		err := s.Open(ctx, testFormat)
		require.ErrorIs(t, err, ErrDeviceUnavailable)
		assert.Equal(t, 500*time.Millisecond, time.Since(start))
		assert.False(t, s.IsOpen())
		synctest.Wait()
	})
}

func TestSink_DeviceLost(t *testing.T) {
	dev := &manualDevice{}
	s, _ := openSink(t, dev, Config{})
	require.NoError(t, s.Err())

	dev.err = errors.New("pulse: stream disconnected")
	err := s.Err()
	require.ErrorIs(t, err, ErrDeviceLost)
	assert.Contains(t, err.Error(), "disconnected")
}

func TestSink_HeadlessPlaysToEnd(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		dev := &Headless{}
		buf := stream.New(time.Second, 10)
		s := New(dev, Config{}, buf, nil)
		require.NoError(t, s.Open(t.Context(), testFormat))
		defer s.Close()

		buf.Flush(1, 1000)
		for i := range 10 {
			push(t, buf, constBlock(1, int64(i*10), 10, 0.5))
		}
		buf.Finish(1)
		require.NoError(t, s.Attach(1, testFormat, 0))

		select {
		case <-s.Notify():
		case <-time.After(time.Second):
			t.Fatal("no end of stream notification")
		}
		gen, ended := s.Ended()
		require.True(t, ended)
		assert.Equal(t, uint64(1), gen)
		pos, _ := s.PositionFor(1)
		assert.Equal(t, int64(100), pos)
		assert.Zero(t, s.TakeUnderruns())
	})
}

func TestSink_NoCallbacksAfterClose(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		dev := &Headless{}
		s := New(dev, Config{}, stream.New(time.Second, 10), nil)
		require.NoError(t, s.Open(t.Context(), testFormat))

		time.Sleep(100 * time.Millisecond)
		require.NoError(t, s.Close())
		pulled := dev.Pulled()
		assert.Positive(t, pulled)

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, pulled, dev.Pulled())
		assert.False(t, s.IsOpen())
	})
}

func TestPositionPacking(t *testing.T) {
	tests := []struct {
		gen    uint64
		frames int64
	}{
		{0, 0},
		{1, 44100 * 3600},
		{1<<20 - 1, 1<<44 - 1},
	}
	for _, tt := range tests {
		gen, frames := unpackPosition(packPosition(tt.gen, tt.frames))
		assert.Equal(t, tt.gen, gen)
		assert.Equal(t, tt.frames, frames)
	}

	gen, _ := unpackPosition(packPosition(1<<20+5, 10))
	assert.Equal(t, uint64(5), gen)
}
