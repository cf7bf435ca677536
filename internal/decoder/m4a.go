package decoder

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/llehouerou/alac"
	"github.com/llehouerou/go-faad2"
	"github.com/llehouerou/go-m4a"
)

// m4aStream decodes AAC or ALAC audio from an MP4 container.
type m4aStream struct {
	container *m4a.Reader
	closer    io.Closer
	format    beep.Format
	kind      m4a.CodecType
	channels  int
	bits      int
	total     int

	aac  *faad2.Decoder
	alac *alac.Alac

	next       int // next container sample (packet) index
	pending    [][2]float64
	pendingPos int
	pos        int

	badPackets int
	maxErrors  int
	err        error
}

func decodeM4A(f *file, maxErrors int) (*m4aStream, error) {
	c, err := m4a.Open(f)
	if err != nil {
		return nil, err
	}

	rate := int(c.SampleRate())
	s := &m4aStream{
		container: c,
		closer:    f,
		kind:      c.Codec(),
		channels:  int(c.Channels()),
		bits:      int(c.SampleSize()),
		total:     int(c.Duration().Seconds() * float64(rate)),
		maxErrors: maxErrors,
	}
	s.format = beep.Format{
		SampleRate:  beep.SampleRate(rate),
		NumChannels: s.channels,
		Precision:   2,
	}

	switch s.kind {
	case m4a.CodecAAC:
		ctx := context.Background()
		dec, err := faad2.NewDecoder(ctx)
		if err != nil {
			return nil, err
		}
		if err := dec.Init(ctx, c.CodecConfig()); err != nil {
			dec.Close(ctx)
			return nil, err
		}
		s.aac = dec
	case m4a.CodecALAC:
		dec, err := alac.NewWithConfig(alac.Config{
			SampleRate:  rate,
			SampleSize:  s.bits,
			NumChannels: s.channels,
			FrameSize:   CodecALAC.FrameSize(),
		})
		if err != nil {
			return nil, err
		}
		s.alac = dec
		if s.bits == 24 {
			s.format.Precision = 3
		}
	default:
		return nil, fmt.Errorf("%w: mp4 codec %s", ErrUnsupportedFormat, s.kind)
	}
	return s, nil
}

func (s *m4aStream) codecID() Codec {
	if s.kind == m4a.CodecALAC {
		return CodecALAC
	}
	return CodecAAC
}

func (s *m4aStream) Stream(samples [][2]float64) (int, bool) {
	if s.err != nil {
		return 0, false
	}
	n := 0
	for n < len(samples) {
		if s.pendingPos < len(s.pending) {
			k := copy(samples[n:], s.pending[s.pendingPos:])
			n += k
			s.pendingPos += k
			s.pos += k
			continue
		}
		if s.next >= s.container.SampleCount() {
			break
		}
		data, err := s.container.ReadSample(s.next)
		if err != nil {
			s.err = err
			break
		}
		s.next++

		frames, err := s.decode(data)
		if err != nil {
			s.badPackets++
			if s.badPackets > s.maxErrors {
				s.err = err
				break
			}
			continue
		}
		s.badPackets = 0
		s.pending = frames
		s.pendingPos = 0
	}
	return n, n > 0
}

func (s *m4aStream) decode(data []byte) ([][2]float64, error) {
	if s.aac != nil {
		pcm, err := s.aac.Decode(context.Background(), data)
		if err != nil {
			return nil, err
		}
		return int16ToStereo(pcm, s.channels), nil
	}
	raw := s.alac.Decode(data)
	if raw == nil {
		return nil, fmt.Errorf("alac: undecodable packet %d", s.next-1)
	}
	return alacToStereo(raw, s.channels, s.bits), nil
}

func int16ToStereo(pcm []int16, channels int) [][2]float64 {
	if channels <= 0 {
		return nil
	}
	frames := make([][2]float64, len(pcm)/channels)
	for i := range frames {
		l := float64(pcm[i*channels]) / 32768
		r := l
		if channels > 1 {
			r = float64(pcm[i*channels+1]) / 32768
		}
		frames[i] = [2]float64{l, r}
	}
	return frames
}

// alacToStereo converts little-endian 16- or 24-bit interleaved PCM.
func alacToStereo(data []byte, channels, bits int) [][2]float64 {
	width := 2
	scale := 32768.0
	if bits == 24 {
		width = 3
		scale = 8388608.0
	}
	if channels <= 0 {
		return nil
	}
	stride := width * channels
	frames := make([][2]float64, len(data)/stride)
	read := func(off int) float64 {
		if width == 2 {
			return float64(int16(uint16(data[off])|uint16(data[off+1])<<8)) / scale //nolint:gosec // PCM sample
		}
		v := int32(data[off]) | int32(data[off+1])<<8 | int32(data[off+2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float64(v) / scale
	}
	for i := range frames {
		off := i * stride
		l := read(off)
		r := l
		if channels > 1 {
			r = read(off + width)
		}
		frames[i] = [2]float64{l, r}
	}
	return frames
}

func (s *m4aStream) Err() error { return s.err }

func (s *m4aStream) Len() int { return s.total }

func (s *m4aStream) Position() int { return s.pos }

// Seek lands on the container sample (one AAC or ALAC packet) containing p.
func (s *m4aStream) Seek(p int) error {
	rate := float64(s.format.SampleRate)
	target := time.Duration(float64(p) / rate * float64(time.Second))
	s.next = s.container.SeekToTime(target)
	s.pending = nil
	s.pendingPos = 0
	s.badPackets = 0
	s.err = nil
	s.pos = int(s.container.SampleTime(s.next).Seconds() * rate)
	return nil
}

func (s *m4aStream) Close() error {
	if s.aac != nil {
		s.aac.Close(context.Background())
	}
	return s.closer.Close()
}
