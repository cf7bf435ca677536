package decoder

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/gopxl/beep/v2"
)

// oggStream decodes one logical Opus or Vorbis stream from an Ogg file.
type oggStream struct {
	r      io.ReadSeeker
	closer io.Closer
	codec  oggCodec
	serial uint32

	pk        oggPacketizer
	index     []oggIndexEntry
	dataStart int64
	offset    int64 // file offset of the next page
	total     int64

	queue  [][]byte
	pcm    []float32
	pcmPos int // in frames
	skip   int // frames still to drop before emitting
	pos    int64

	badPackets int
	maxErrors  int
	eof        bool
	err        error
}

func decodeOgg(f *file, maxErrors int) (*oggStream, error) {
	return openOgg(f, f, detectOggCodec, maxErrors)
}

func openOgg(
	r io.ReadSeeker,
	closer io.Closer,
	detect func([]byte) (oggCodec, error),
	maxErrors int,
) (*oggStream, error) {
	s := &oggStream{r: r, closer: closer, maxErrors: maxErrors}
	if err := s.readHeaders(detect); err != nil {
		return nil, err
	}

	index, err := indexOgg(r, s.dataStart, s.serial)
	if err != nil {
		return nil, err
	}
	s.index = index
	if n := len(index); n > 0 {
		s.total = max(index[n-1].Granule-int64(s.codec.PreSkip()), 0)
	}

	if _, err := r.Seek(s.dataStart, io.SeekStart); err != nil {
		return nil, err
	}
	s.offset = s.dataStart
	s.skip = s.codec.PreSkip()
	return s, nil
}

// readHeaders detects the codec from the first packet and feeds it header
// packets until it is ready. Audio data starts on the page after the last
// header.
func (s *oggStream) readHeaders(detect func([]byte) (oggCodec, error)) error {
	page, err := readOggPage(s.r, 0)
	if err != nil {
		return err
	}
	s.offset = page.Size()
	pkts := s.pk.packets(page)
	if len(pkts) == 0 {
		return errors.New("ogg: no packet in first page")
	}
	codec, err := detect(pkts[0])
	if err != nil {
		return err
	}
	s.codec = codec
	s.serial = page.Serial

	pending := pkts[1:]
	for {
		for _, p := range pending {
			done, err := codec.AddHeader(p)
			if err != nil {
				return err
			}
			if done {
				s.dataStart = s.offset
				s.pk.reset()
				return nil
			}
		}
		page, err := readOggPage(s.r, s.offset)
		if err != nil {
			return fmt.Errorf("ogg: reading headers: %w", err)
		}
		s.offset += page.Size()
		if page.Serial != s.serial {
			pending = nil
			continue
		}
		pending = s.pk.packets(page)
	}
}

func (s *oggStream) codecID() Codec { return s.codec.ID() }

func (s *oggStream) format() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(s.codec.SampleRate()),
		NumChannels: s.codec.Channels(),
		Precision:   2,
	}
}

func (s *oggStream) Stream(samples [][2]float64) (int, bool) {
	if s.err != nil {
		return 0, false
	}
	ch := s.codec.Channels()
	n := 0
	for n < len(samples) {
		if s.total > 0 && s.pos >= s.total {
			break
		}
		if avail := len(s.pcm)/ch - s.pcmPos; avail > 0 {
			if s.skip > 0 {
				drop := min(s.skip, avail)
				s.pcmPos += drop
				s.skip -= drop
				continue
			}
			want := len(samples) - n
			if s.total > 0 {
				want = int(min(int64(want), s.total-s.pos))
			}
			k := toStereo(samples[n:n+want], s.pcm[s.pcmPos*ch:], ch)
			n += k
			s.pcmPos += k
			s.pos += int64(k)
			continue
		}
		if len(s.queue) == 0 {
			if !s.nextPage() {
				break
			}
			continue
		}
		pkt := s.queue[0]
		s.queue = s.queue[1:]
		pcm, err := s.codec.Decode(pkt)
		if err != nil {
			s.badPackets++
			if s.badPackets > s.maxErrors {
				s.err = err
				break
			}
			continue
		}
		s.badPackets = 0
		s.pcm = pcm
		s.pcmPos = 0
	}
	return n, n > 0
}

// nextPage queues the packets of the next page of our stream. It returns
// false at end of stream or on error.
func (s *oggStream) nextPage() bool {
	if s.eof {
		return false
	}
	for {
		page, err := readOggPage(s.r, s.offset)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.eof = true
			} else {
				s.err = err
			}
			return false
		}
		s.offset += page.Size()
		if page.Serial != s.serial {
			continue
		}
		s.queue = s.pk.packets(page)
		return true
	}
}

func (s *oggStream) Err() error { return s.err }

func (s *oggStream) Len() int { return int(s.total) }

func (s *oggStream) Position() int { return int(s.pos) }

// Seek positions the stream at the start of the page that holds the first
// packet at or before p minus the codec preroll. Position reports where
// output actually resumes; the caller decodes forward if it needs more
// precision.
func (s *oggStream) Seek(p int) error {
	preSkip := int64(s.codec.PreSkip())
	want := max(int64(p)-int64(s.codec.Preroll()), 0)
	i := sort.Search(len(s.index), func(i int) bool {
		return s.index[i].Granule-preSkip > want
	}) - 1

	s.pk.reset()
	s.queue = nil
	s.pcm = nil
	s.pcmPos = 0
	s.badPackets = 0
	s.eof = false
	s.err = nil
	s.codec.Reset()

	if i < 0 {
		if _, err := s.r.Seek(s.dataStart, io.SeekStart); err != nil {
			return err
		}
		s.offset = s.dataStart
		s.pos = 0
		s.skip = int(preSkip)
		return nil
	}

	entry := s.index[i]
	if _, err := s.r.Seek(entry.Offset, io.SeekStart); err != nil {
		return err
	}
	page, err := readOggPage(s.r, entry.Offset)
	if err != nil {
		return err
	}
	s.offset = entry.Offset + page.Size()
	// Packets completing on this page end before the granule we seek from;
	// only the trailing partial packet is kept.
	s.pk.packets(page)

	s.pos = entry.Granule - preSkip
	s.skip = 0
	if s.pos < 0 {
		s.skip = int(-s.pos)
		s.pos = 0
	}
	return nil
}

func (s *oggStream) Close() error { return s.closer.Close() }
