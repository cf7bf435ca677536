package decoder

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/llehouerou/go-mp3"
)

// mp3Stream adapts llehouerou/go-mp3, which decodes to interleaved 16-bit
// stereo bytes, to beep.StreamSeekCloser.
type mp3Stream struct {
	dec    *mp3.Decoder
	closer io.Closer
	buf    []byte
	err    error
}

func decodeMP3(f *file) (*mp3Stream, beep.Format, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, beep.Format{}, err
	}
	if dec.SampleRate() <= 0 {
		return nil, beep.Format{}, errors.New("mp3: invalid sample rate")
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(dec.SampleRate()),
		NumChannels: 2,
		Precision:   2,
	}
	return &mp3Stream{dec: dec, closer: f, buf: make([]byte, 4096*4)}, format, nil
}

func (s *mp3Stream) Stream(samples [][2]float64) (int, bool) {
	if s.err != nil {
		return 0, false
	}
	need := len(samples) * 4
	if len(s.buf) < need {
		s.buf = make([]byte, need)
	}
	got, err := io.ReadFull(s.dec, s.buf[:need])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		s.err = err
	}
	n := got / 4
	for i := range n {
		off := i * 4
		samples[i][0] = float64(int16(binary.LittleEndian.Uint16(s.buf[off:]))) / 32768 //nolint:gosec // PCM sample
		samples[i][1] = float64(int16(binary.LittleEndian.Uint16(s.buf[off+2:]))) / 32768 //nolint:gosec // PCM sample
	}
	return n, n > 0
}

func (s *mp3Stream) Err() error { return s.err }

func (s *mp3Stream) Len() int { return int(max(s.dec.SampleCount(), 0)) }

func (s *mp3Stream) Position() int { return int(s.dec.SamplePosition()) }

func (s *mp3Stream) Seek(p int) error {
	if err := s.dec.SeekToSample(int64(p)); err != nil {
		return err
	}
	s.err = nil
	return nil
}

func (s *mp3Stream) Close() error { return s.closer.Close() }
