package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jfreymuth/vorbis"
	"github.com/jj11hh/opus"
)

const (
	opusSampleRate = 48000
	// opusMaxFrame is the largest Opus frame per channel (120 ms at 48 kHz).
	opusMaxFrame = 5760
	// opusPreroll is how much audio is decoded ahead of a seek target so the
	// decoder state has converged (80 ms, RFC 7845 section 4.6).
	opusPreroll = 3840
)

var (
	errUnknownOggCodec     = fmt.Errorf("%w: ogg stream is neither Opus nor Vorbis", ErrUnsupportedFormat)
	errInvalidOpusHead     = errors.New("opus: invalid OpusHead")
	errInvalidVorbisHeader = errors.New("vorbis: invalid identification header")
	errVorbisNotReady      = errors.New("vorbis: headers incomplete")
)

// oggCodec decodes the packets of one logical Ogg stream.
type oggCodec interface {
	ID() Codec
	SampleRate() int
	Channels() int
	// PreSkip is the number of frames at stream start that are not audio.
	PreSkip() int
	// Preroll is how far before a seek target decoding must start.
	Preroll() int
	// AddHeader consumes a header packet following the identification one
	// and reports whether all headers have been seen.
	AddHeader(packet []byte) (bool, error)
	// Decode returns interleaved PCM for packet. The slice is only valid
	// until the next call.
	Decode(packet []byte) ([]float32, error)
	// Reset drops decoder state after a seek.
	Reset()
}

// detectOggCodec picks the codec from the identification packet.
func detectOggCodec(first []byte) (oggCodec, error) {
	switch {
	case len(first) >= 8 && string(first[:8]) == "OpusHead":
		return newOpusCodec(first)
	case len(first) >= 7 && first[0] == 0x01 && string(first[1:7]) == "vorbis":
		return newVorbisCodec(first)
	default:
		return nil, errUnknownOggCodec
	}
}

type opusCodec struct {
	dec      *opus.Decoder
	channels int
	preSkip  int
	haveTags bool
	pcm      []float32
}

func newOpusCodec(head []byte) (*opusCodec, error) {
	if len(head) < 19 || head[8] != 1 {
		return nil, errInvalidOpusHead
	}
	channels := int(head[9])
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("%w: opus with %d channels", ErrUnsupportedFormat, channels)
	}
	dec, err := opus.NewDecoder(opusSampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &opusCodec{
		dec:      dec,
		channels: channels,
		preSkip:  int(binary.LittleEndian.Uint16(head[10:12])),
		pcm:      make([]float32, opusMaxFrame*channels),
	}, nil
}

func (c *opusCodec) ID() Codec       { return CodecOpus }
func (c *opusCodec) SampleRate() int { return opusSampleRate }
func (c *opusCodec) Channels() int   { return c.channels }
func (c *opusCodec) PreSkip() int    { return c.preSkip }
func (c *opusCodec) Preroll() int    { return opusPreroll }

// AddHeader expects the OpusTags packet.
func (c *opusCodec) AddHeader(packet []byte) (bool, error) {
	if c.haveTags {
		return true, nil
	}
	if len(packet) < 8 || string(packet[:8]) != "OpusTags" {
		return false, errors.New("opus: missing OpusTags")
	}
	c.haveTags = true
	return true, nil
}

func (c *opusCodec) Decode(packet []byte) ([]float32, error) {
	n, err := c.dec.DecodeFloat32(packet, c.pcm)
	if err != nil {
		return nil, err
	}
	return c.pcm[:n*c.channels], nil
}

// Reset is a no-op: the preroll decoded before a seek target brings the
// Opus decoder back in sync.
func (c *opusCodec) Reset() {}

type vorbisCodec struct {
	dec        *vorbis.Decoder
	channels   int
	sampleRate int
	headers    [][]byte
}

func newVorbisCodec(ident []byte) (*vorbisCodec, error) {
	// [7:11] version, [11] channels, [12:16] sample rate.
	if len(ident) < 16 || binary.LittleEndian.Uint32(ident[7:11]) != 0 || ident[11] == 0 {
		return nil, errInvalidVorbisHeader
	}
	return &vorbisCodec{
		channels:   int(ident[11]),
		sampleRate: int(binary.LittleEndian.Uint32(ident[12:16])),
		headers:    [][]byte{append([]byte(nil), ident...)},
	}, nil
}

func (c *vorbisCodec) ID() Codec       { return CodecVorbis }
func (c *vorbisCodec) SampleRate() int { return c.sampleRate }
func (c *vorbisCodec) Channels() int   { return c.channels }
func (c *vorbisCodec) PreSkip() int    { return 0 }
func (c *vorbisCodec) Preroll() int    { return 0 }

// AddHeader collects the comment and setup headers and initialises the
// decoder once all three are present.
func (c *vorbisCodec) AddHeader(packet []byte) (bool, error) {
	if c.dec != nil {
		return true, nil
	}
	c.headers = append(c.headers, append([]byte(nil), packet...))
	if len(c.headers) < 3 {
		return false, nil
	}
	dec := &vorbis.Decoder{}
	for _, h := range c.headers {
		if err := dec.ReadHeader(h); err != nil {
			return false, err
		}
	}
	c.dec = dec
	c.headers = nil
	return true, nil
}

func (c *vorbisCodec) Decode(packet []byte) ([]float32, error) {
	if c.dec == nil {
		return nil, errVorbisNotReady
	}
	return c.dec.Decode(packet)
}

func (c *vorbisCodec) Reset() {
	if c.dec != nil {
		c.dec.Clear()
	}
}
