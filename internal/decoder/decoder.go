// Package decoder turns local audio files into sequences of stream.Blocks.
//
// A Decoder owns one open file. It is not safe for concurrent use: the
// playback engine hands it from one decode worker to the next, never sharing
// it between two goroutines at once.
package decoder

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/llehouerou/cadence/internal/stream"
)

// SeekMode selects how precisely Seek lands.
type SeekMode int

const (
	// SeekAccurate decodes and discards audio between the codec's seek point
	// and the requested position, so playback resumes exactly there.
	SeekAccurate SeekMode = iota
	// SeekCoarse resumes at the codec's seek point, up to one codec frame
	// (see Codec.FrameSize) before the requested position.
	SeekCoarse
)

// ParseSeekMode parses "accurate" or "coarse".
func ParseSeekMode(s string) (SeekMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "accurate":
		return SeekAccurate, nil
	case "coarse":
		return SeekCoarse, nil
	default:
		return SeekAccurate, fmt.Errorf("unknown seek mode %q", s)
	}
}

func (m SeekMode) String() string {
	if m == SeekCoarse {
		return "coarse"
	}
	return "accurate"
}

const (
	defaultBlockFrames     = 1024
	defaultMaxPacketErrors = 3
	// stalledReads bounds how many consecutive empty reads are tolerated
	// before the stream is considered corrupt.
	stalledReads = 8
)

// Options configures a Decoder.
type Options struct {
	// BlockFrames is the number of sample frames per emitted block.
	BlockFrames int
	// SeekMode selects accurate or coarse seeking.
	SeekMode SeekMode
	// MaxPacketErrors is how many consecutive undecodable packets a
	// packet-based codec skips before failing with ErrCorruptStream.
	MaxPacketErrors int
}

func (o Options) withDefaults() Options {
	if o.BlockFrames <= 0 {
		o.BlockFrames = defaultBlockFrames
	}
	if o.MaxPacketErrors <= 0 {
		o.MaxPacketErrors = defaultMaxPacketErrors
	}
	return o
}

// Info describes an opened file.
type Info struct {
	Path  string
	Codec Codec
	// Format is the native format. Blocks are always stereo; NumChannels
	// reports the channel count of the file itself.
	Format beep.Format
	// Frames is the total length in sample frames, 0 if unknown.
	Frames int
}

// Duration returns the total playing time.
func (i Info) Duration() time.Duration {
	if i.Format.SampleRate == 0 {
		return 0
	}
	return i.Format.SampleRate.D(i.Frames)
}

// Decoder produces stream.Blocks from a single file.
type Decoder struct {
	info Info
	opts Options
	src  beep.StreamSeekCloser
	file *file

	pos     int64
	err     error
	scratch [][2]float64
}

// Open opens path, identifies its codec and prepares it for decoding from
// the first sample.
func Open(path string, opts Options) (*Decoder, error) {
	opts = opts.withDefaults()

	f, err := openFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIoFailure, err)
	}

	sn, err := sniff(f, path)
	if err != nil {
		f.Close()
		return nil, classify(err, f.err, ErrUnsupportedFormat)
	}

	src, codec, format, err := openCodec(sn, f, opts)
	if err != nil {
		f.Close()
		fallback := ErrUnsupportedFormat
		if sn.magic {
			fallback = ErrCorruptStream
		}
		return nil, fmt.Errorf("open %s: %w", path, classify(err, f.err, fallback))
	}

	info := Info{
		Path:   path,
		Codec:  codec,
		Format: format,
		Frames: max(src.Len(), 0),
	}
	return newDecoder(src, info, f, opts), nil
}

func newDecoder(src beep.StreamSeekCloser, info Info, f *file, opts Options) *Decoder {
	opts = opts.withDefaults()
	return &Decoder{
		info:    info,
		opts:    opts,
		src:     src,
		file:    f,
		scratch: make([][2]float64, opts.BlockFrames),
	}
}

func openCodec(sn sniffResult, f *file, opts Options) (beep.StreamSeekCloser, Codec, beep.Format, error) {
	switch sn.kind {
	case containerMP3:
		s, format, err := decodeMP3(f)
		return s, CodecMP3, format, err
	case containerFLAC:
		s, format, err := decodeFLAC(f, sn.offset)
		return s, CodecFLAC, format, err
	case containerWAV:
		s, format, err := decodeWAV(f)
		return s, CodecWAV, format, err
	case containerOgg:
		s, err := decodeOgg(f, opts.MaxPacketErrors)
		if err != nil {
			return nil, CodecUnknown, beep.Format{}, err
		}
		return s, s.codecID(), s.format(), nil
	case containerMP4:
		s, err := decodeM4A(f, opts.MaxPacketErrors)
		if err != nil {
			return nil, CodecUnknown, beep.Format{}, err
		}
		return s, s.codecID(), s.format, nil
	default:
		return nil, CodecUnknown, beep.Format{}, ErrUnsupportedFormat
	}
}

// Probe opens path only long enough to read its Info.
func Probe(path string) (Info, error) {
	d, err := Open(path, Options{})
	if err != nil {
		return Info{}, err
	}
	defer d.Close()
	return d.Info(), nil
}

// Info returns what is known about the file.
func (d *Decoder) Info() Info { return d.info }

// Format returns the native format.
func (d *Decoder) Format() beep.Format { return d.info.Format }

// Len returns the total length in frames, 0 if unknown.
func (d *Decoder) Len() int { return d.info.Frames }

// Codec returns the file's codec.
func (d *Decoder) Codec() Codec { return d.info.Codec }

// Position returns the index of the next frame Next will emit.
func (d *Decoder) Position() int64 { return d.pos }

// Tolerance returns the maximum distance in frames between a requested seek
// position and where playback actually resumes.
func (d *Decoder) Tolerance() int {
	if d.opts.SeekMode == SeekAccurate && d.info.Codec != CodecVorbis {
		return 0
	}
	return d.info.Codec.FrameSize()
}

// Next returns the next block of decoded audio.
//
// At end of stream it returns io.EOF. When decoding fails mid-stream the
// audio decoded before the fault is returned first, as a normal block; the
// following call returns the error.
func (d *Decoder) Next() (stream.Block, error) {
	if d.err != nil {
		return stream.Block{}, d.err
	}

	buf := make([][2]float64, d.opts.BlockFrames)
	n := 0
	stalled := 0
	for n < len(buf) {
		k, ok := d.src.Stream(buf[n:])
		n += k
		if !ok {
			if err := d.src.Err(); err != nil {
				d.err = classify(err, d.ioErr(), ErrCorruptStream)
			} else {
				d.err = io.EOF
			}
			break
		}
		if k == 0 {
			stalled++
			if stalled >= stalledReads {
				d.err = fmt.Errorf("%w: decoder made no progress", ErrCorruptStream)
				break
			}
			continue
		}
		stalled = 0
	}

	if n == 0 {
		return stream.Block{}, d.err
	}
	blk := stream.Block{Start: d.pos, Samples: buf[:n]}
	d.pos += int64(n)
	return blk, nil
}

// Seek moves decoding to frame pos, clamped to [0, Len]. It returns the
// frame index the next block will start at.
func (d *Decoder) Seek(pos int64) (int64, error) {
	pos = max(pos, 0)
	if d.info.Frames > 0 {
		pos = min(pos, int64(d.info.Frames))
	}

	if err := d.src.Seek(int(pos)); err != nil {
		return d.pos, classify(err, d.ioErr(), ErrCorruptStream)
	}
	d.err = nil

	landed := int64(d.src.Position())
	if landed > pos {
		landed = pos
	}
	if d.opts.SeekMode == SeekAccurate && landed < pos {
		if err := d.discard(pos - landed); err != nil {
			return landed, err
		}
		landed = pos
	}
	d.pos = landed
	return landed, nil
}

// discard decodes and drops n frames.
func (d *Decoder) discard(n int64) error {
	for n > 0 {
		chunk := d.scratch[:min(int64(len(d.scratch)), n)]
		k, ok := d.src.Stream(chunk)
		n -= int64(k)
		if !ok {
			if err := d.src.Err(); err != nil {
				return classify(err, d.ioErr(), ErrCorruptStream)
			}
			return nil
		}
	}
	return nil
}

func (d *Decoder) ioErr() error {
	if d.file == nil {
		return nil
	}
	return d.file.err
}

// Close releases the codec and the file.
func (d *Decoder) Close() error {
	err := d.src.Close()
	if d.file != nil {
		err = errors.Join(err, d.file.Close())
	}
	return err
}
