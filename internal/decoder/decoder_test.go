package decoder

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rampValue is the sample written at frame i by writeWAV.
func rampValue(i int) float64 {
	return float64(i%1000) / 1000
}

// writeWAV writes a 16-bit stereo WAV of the given length whose samples
// follow rampValue, so tests can tell which frame they are looking at.
func writeWAV(t *testing.T, rate beep.SampleRate, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ramp.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	i := 0
	src := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if i >= frames {
			return 0, false
		}
		n := min(len(samples), frames-i)
		for k := range n {
			v := rampValue(i + k)
			samples[k] = [2]float64{v, -v}
		}
		i += n
		return n, true
	})
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, src, format))
	return path
}

func TestOpen_WAVInfo(t *testing.T) {
	path := writeWAV(t, 8000, 8000)

	d, err := Open(path, Options{})
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, CodecWAV, d.Codec())
	assert.Equal(t, beep.SampleRate(8000), d.Format().SampleRate)
	assert.Equal(t, 8000, d.Len())
	assert.Equal(t, "1s", d.Info().Duration().String())
	assert.Equal(t, 0, d.Tolerance())
}

func TestProbe(t *testing.T) {
	path := writeWAV(t, 11025, 11025*2)

	info, err := Probe(path)
	require.NoError(t, err)
	assert.Equal(t, path, info.Path)
	assert.Equal(t, CodecWAV, info.Codec)
	assert.Equal(t, 11025*2, info.Frames)
}

func TestNext_ContiguousBlocksThenEOF(t *testing.T) {
	path := writeWAV(t, 8000, 2500)

	d, err := Open(path, Options{BlockFrames: 1000})
	require.NoError(t, err)
	defer d.Close()

	var starts []int64
	var total int
	for {
		blk, err := d.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		starts = append(starts, blk.Start)
		total += blk.Len()
	}

	assert.Equal(t, []int64{0, 1000, 2000}, starts)
	assert.Equal(t, 2500, total)

	_, err = d.Next()
	assert.ErrorIs(t, err, io.EOF, "EOF is sticky")
}

func TestNext_SamplesDecodeInOrder(t *testing.T) {
	path := writeWAV(t, 8000, 100)

	d, err := Open(path, Options{BlockFrames: 100})
	require.NoError(t, err)
	defer d.Close()

	blk, err := d.Next()
	require.NoError(t, err)
	require.Equal(t, 100, blk.Len())
	for i, s := range blk.Samples {
		assert.InDelta(t, rampValue(i), s[0], 1e-3, "frame %d", i)
		assert.InDelta(t, -rampValue(i), s[1], 1e-3, "frame %d", i)
	}
}

func TestSeek_AccurateLandsOnTarget(t *testing.T) {
	path := writeWAV(t, 8000, 8000*10)

	d, err := Open(path, Options{BlockFrames: 256})
	require.NoError(t, err)
	defer d.Close()

	got, err := d.Seek(8000 * 5)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), got)
	assert.Equal(t, int64(40000), d.Position())

	blk, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(40000), blk.Start)
	assert.InDelta(t, rampValue(40000), blk.Samples[0][0], 1e-3)
	assert.InDelta(t, rampValue(40001), blk.Samples[1][0], 1e-3)
}

func TestSeek_Clamps(t *testing.T) {
	path := writeWAV(t, 8000, 1000)

	d, err := Open(path, Options{})
	require.NoError(t, err)
	defer d.Close()

	got, err := d.Seek(5000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got)
	_, err = d.Next()
	assert.ErrorIs(t, err, io.EOF)

	got, err = d.Seek(-20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
	blk, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(0), blk.Start)
}

func TestSeek_AfterEOFResumes(t *testing.T) {
	path := writeWAV(t, 8000, 500)

	d, err := Open(path, Options{BlockFrames: 1000})
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Next()
	require.NoError(t, err)
	_, err = d.Next()
	require.ErrorIs(t, err, io.EOF)

	_, err = d.Seek(100)
	require.NoError(t, err)
	blk, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(100), blk.Start)
	assert.Equal(t, 400, blk.Len())
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("just some text, not audio"), 0o600))

	badWAV := filepath.Join(dir, "broken.wav")
	require.NoError(t, os.WriteFile(badWAV, []byte("RIFF\x00\x00\x00\x00WAVEjunkjunkjunk"), 0o600))

	fakeMP3 := filepath.Join(dir, "fake.mp3")
	require.NoError(t, os.WriteFile(fakeMP3, []byte("hello"), 0o600))

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing file", filepath.Join(dir, "missing.flac"), ErrIoFailure},
		{"unknown content and extension", text, ErrUnsupportedFormat},
		{"recognised container, bad data", badWAV, ErrCorruptStream},
		{"extension only, bad data", fakeMP3, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.path, Options{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// faultyStream yields good frames, then fails with err.
type faultyStream struct {
	good int
	pos  int
	err  error
}

func (s *faultyStream) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= s.good {
		return 0, false
	}
	n := min(len(samples), s.good-s.pos)
	for i := range n {
		samples[i] = [2]float64{0.5, 0.5}
	}
	s.pos += n
	return n, true
}

func (s *faultyStream) Err() error {
	if s.pos >= s.good {
		return s.err
	}
	return nil
}
func (s *faultyStream) Len() int         { return s.good * 2 }
func (s *faultyStream) Position() int    { return s.pos }
func (s *faultyStream) Seek(p int) error { s.pos = p; return nil }
func (s *faultyStream) Close() error     { return nil }

func TestNext_CorruptStreamDeliversPartialOutput(t *testing.T) {
	src := &faultyStream{good: 1500, err: errors.New("bad huffman table")}
	d := newDecoder(src, Info{Codec: CodecMP3, Frames: 3000}, nil, Options{BlockFrames: 1000})

	blk, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, 1000, blk.Len())

	blk, err = d.Next()
	require.NoError(t, err, "audio before the fault is delivered")
	assert.Equal(t, 500, blk.Len())
	assert.Equal(t, int64(1000), blk.Start)

	_, err = d.Next()
	assert.ErrorIs(t, err, ErrCorruptStream)
	assert.ErrorContains(t, err, "bad huffman table")
}

func TestNext_ReadErrorIsIoFailure(t *testing.T) {
	pathErr := &fs.PathError{Op: "read", Path: "/music/a.mp3", Err: errors.New("input/output error")}
	src := &faultyStream{good: 10, err: pathErr}
	d := newDecoder(src, Info{Codec: CodecMP3}, nil, Options{BlockFrames: 64})

	_, err := d.Next()
	require.NoError(t, err)
	_, err = d.Next()
	assert.ErrorIs(t, err, ErrIoFailure)
}

// stalledStream reports progress without producing frames.
type stalledStream struct{ faultyStream }

func (s *stalledStream) Stream([][2]float64) (int, bool) { return 0, true }

func TestNext_StalledDecoderIsCorrupt(t *testing.T) {
	d := newDecoder(&stalledStream{}, Info{Codec: CodecAAC}, nil, Options{})
	_, err := d.Next()
	assert.ErrorIs(t, err, ErrCorruptStream)
}

func TestTolerance(t *testing.T) {
	src := &faultyStream{good: 1}
	tests := []struct {
		codec Codec
		mode  SeekMode
		want  int
	}{
		{CodecMP3, SeekAccurate, 0},
		{CodecMP3, SeekCoarse, 1152},
		{CodecVorbis, SeekAccurate, 2048},
		{CodecOpus, SeekCoarse, 960},
		{CodecFLAC, SeekCoarse, 4608},
	}
	for _, tt := range tests {
		d := newDecoder(src, Info{Codec: tt.codec}, nil, Options{SeekMode: tt.mode})
		assert.Equal(t, tt.want, d.Tolerance(), "%s %s", tt.codec, tt.mode)
	}
}

// coarseStream lands seeks on multiples of frame.
type coarseStream struct {
	faultyStream
	frame int
}

func (s *coarseStream) Seek(p int) error {
	s.pos = p - p%s.frame
	return nil
}

func TestSeek_Modes(t *testing.T) {
	t.Run("coarse reports codec seek point", func(t *testing.T) {
		src := &coarseStream{faultyStream: faultyStream{good: 10000}, frame: 1152}
		d := newDecoder(src, Info{Codec: CodecMP3, Frames: 10000}, nil, Options{SeekMode: SeekCoarse})
		got, err := d.Seek(5000)
		require.NoError(t, err)
		assert.Equal(t, int64(4608), got)
		assert.LessOrEqual(t, 5000-got, int64(d.Codec().FrameSize()))
	})
	t.Run("accurate decodes forward", func(t *testing.T) {
		src := &coarseStream{faultyStream: faultyStream{good: 10000}, frame: 1152}
		d := newDecoder(src, Info{Codec: CodecMP3, Frames: 10000}, nil, Options{})
		got, err := d.Seek(5000)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), got)
		assert.Equal(t, 5000, src.pos)
	})
}

func TestParseSeekMode(t *testing.T) {
	m, err := ParseSeekMode("Coarse")
	require.NoError(t, err)
	assert.Equal(t, SeekCoarse, m)

	m, err = ParseSeekMode("")
	require.NoError(t, err)
	assert.Equal(t, SeekAccurate, m)

	_, err = ParseSeekMode("fast")
	assert.Error(t, err)
}

func TestToStereo(t *testing.T) {
	dst := make([][2]float64, 4)

	n := toStereo(dst, []float32{0.25, -0.5}, 1)
	assert.Equal(t, 2, n)
	assert.Equal(t, [2]float64{0.25, 0.25}, dst[0])
	assert.Equal(t, [2]float64{-0.5, -0.5}, dst[1])

	n = toStereo(dst, []float32{0.25, 0.5, 1, 0.75, -0.25, 0}, 3)
	assert.Equal(t, 2, n)
	assert.Equal(t, [2]float64{0.75, -0.25}, dst[1])
}

func TestAlacToStereo24Bit(t *testing.T) {
	// -1 and +2^22 as 24-bit little-endian.
	data := []byte{0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x40}
	frames := alacToStereo(data, 2, 24)
	require.Len(t, frames, 1)
	assert.InDelta(t, -1.0/8388608, frames[0][0], 1e-12)
	assert.InDelta(t, 0.5, frames[0][1], 1e-12)
}
