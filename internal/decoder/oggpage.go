package decoder

import (
	"encoding/binary"
	"errors"
	"io"
)

var (
	errOggMagic   = errors.New("ogg: invalid capture pattern")
	errOggVersion = errors.New("ogg: unsupported version")
)

const (
	oggHeaderSize = 27

	oggFlagContinued = 0x01
)

// oggPage is one Ogg page. Granule is the position after the last packet
// that completes on this page, or -1 when none does.
type oggPage struct {
	Offset   int64
	Granule  int64
	Flags    byte
	Serial   uint32
	Sequence uint32
	Segments []byte
	Body     []byte
}

// Size returns the encoded size of the page in bytes.
func (p *oggPage) Size() int64 {
	return int64(oggHeaderSize + len(p.Segments) + len(p.Body))
}

func (p *oggPage) continued() bool { return p.Flags&oggFlagContinued != 0 }

// readOggPageHeader reads the fixed header and segment table. The body is
// left unread; its length is the sum of the segment table.
func readOggPageHeader(r io.Reader) (*oggPage, int, error) {
	var buf [oggHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, 0, err
	}
	if string(buf[0:4]) != "OggS" {
		return nil, 0, errOggMagic
	}
	if buf[4] != 0 {
		return nil, 0, errOggVersion
	}
	p := &oggPage{
		Flags:    buf[5],
		Granule:  int64(binary.LittleEndian.Uint64(buf[6:14])), //nolint:gosec // -1 is a legal granule
		Serial:   binary.LittleEndian.Uint32(buf[14:18]),
		Sequence: binary.LittleEndian.Uint32(buf[18:22]),
		Segments: make([]byte, buf[26]),
	}
	if _, err := io.ReadFull(r, p.Segments); err != nil {
		return nil, 0, err
	}
	body := 0
	for _, s := range p.Segments {
		body += int(s)
	}
	return p, body, nil
}

// readOggPage reads a complete page that starts at offset.
func readOggPage(r io.Reader, offset int64) (*oggPage, error) {
	p, bodyLen, err := readOggPageHeader(r)
	if err != nil {
		return nil, err
	}
	p.Offset = offset
	p.Body = make([]byte, bodyLen)
	if _, err := io.ReadFull(r, p.Body); err != nil {
		return nil, err
	}
	return p, nil
}

// oggPacketizer reassembles packets from consecutive pages. A packet that
// spans pages is carried over in partial.
type oggPacketizer struct {
	partial []byte
}

func (z *oggPacketizer) reset() { z.partial = nil }

// packets returns the packets that complete on page.
func (z *oggPacketizer) packets(page *oggPage) [][]byte {
	var out [][]byte

	// A continued page with nothing carried over starts with the tail of a
	// packet whose head we never saw; drop that tail.
	dropping := page.continued() && z.partial == nil
	var pkt []byte
	if page.continued() {
		pkt = z.partial
	}
	z.partial = nil

	pos := 0
	for _, lace := range page.Segments {
		end := min(pos+int(lace), len(page.Body))
		if !dropping {
			pkt = append(pkt, page.Body[pos:end]...)
		}
		pos = end
		if lace < 255 {
			if !dropping {
				out = append(out, pkt)
			}
			pkt = nil
			dropping = false
		}
	}
	if n := len(page.Segments); n > 0 && page.Segments[n-1] == 255 && !dropping {
		z.partial = pkt
	}
	return out
}

// oggIndexEntry locates a page with a valid granule position.
type oggIndexEntry struct {
	Offset  int64
	Granule int64
}

// indexOgg walks page headers from start to the end of the stream,
// recording every page of the given serial that carries a granule
// position. Bodies are skipped, not read.
func indexOgg(r io.ReadSeeker, start int64, serial uint32) ([]oggIndexEntry, error) {
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	var index []oggIndexEntry
	offset := start
	for {
		p, bodyLen, err := readOggPageHeader(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
				errors.Is(err, errOggMagic) || errors.Is(err, errOggVersion) {
				return index, nil
			}
			return nil, err
		}
		if p.Serial == serial && p.Granule >= 0 {
			index = append(index, oggIndexEntry{Offset: offset, Granule: p.Granule})
		}
		if _, err := r.Seek(int64(bodyLen), io.SeekCurrent); err != nil {
			return nil, err
		}
		offset += int64(oggHeaderSize + len(p.Segments) + bodyLen)
	}
}
