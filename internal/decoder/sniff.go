package decoder

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// Codec identifies the audio codec of an opened file.
type Codec int

const (
	CodecUnknown Codec = iota
	CodecMP3
	CodecFLAC
	CodecWAV
	CodecVorbis
	CodecOpus
	CodecAAC
	CodecALAC
)

// String returns the display name of the codec.
func (c Codec) String() string {
	switch c {
	case CodecMP3:
		return "MP3"
	case CodecFLAC:
		return "FLAC"
	case CodecWAV:
		return "WAV"
	case CodecVorbis:
		return "Vorbis"
	case CodecOpus:
		return "Opus"
	case CodecAAC:
		return "AAC"
	case CodecALAC:
		return "ALAC"
	default:
		return "Unknown"
	}
}

// FrameSize returns the codec's decode granularity in sample frames: the
// distance a seek may land before the requested position.
//
//	MP3     1152  (one MPEG-1 Layer III frame)
//	FLAC    4608  (largest common block size)
//	WAV        1
//	Vorbis  2048  (long block)
//	Opus     960  (20 ms at 48 kHz)
//	AAC     1024
//	ALAC    4096
func (c Codec) FrameSize() int {
	switch c {
	case CodecMP3:
		return 1152
	case CodecFLAC:
		return 4608
	case CodecWAV:
		return 1
	case CodecVorbis:
		return 2048
	case CodecOpus:
		return 960
	case CodecAAC:
		return 1024
	case CodecALAC:
		return 4096
	default:
		return 0
	}
}

type container int

const (
	containerUnknown container = iota
	containerMP3
	containerFLAC
	containerWAV
	containerOgg
	containerMP4
)

var extContainers = map[string]container{
	".mp3":  containerMP3,
	".flac": containerFLAC,
	".wav":  containerWAV,
	".wave": containerWAV,
	".ogg":  containerOgg,
	".oga":  containerOgg,
	".opus": containerOgg,
	".m4a":  containerMP4,
	".m4b":  containerMP4,
	".mp4":  containerMP4,
}

// sniffResult is what sniff learned about a file.
type sniffResult struct {
	kind container
	// offset is where the audio container starts (after an ID3v2 tag).
	offset int64
	// magic is true when the container was recognised from its contents
	// rather than from the file extension.
	magic bool
}

// sniff identifies the container from the leading bytes of r, falling back
// to the file extension. r is left positioned at the start of the file.
func sniff(r io.ReadSeeker, path string) (sniffResult, error) {
	var res sniffResult

	head := make([]byte, 12)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return res, err
	}
	head = head[:n]

	if size, ok := id3v2Size(head); ok {
		res.offset = size
		if _, err := r.Seek(size, io.SeekStart); err != nil {
			return res, err
		}
		head = head[:cap(head)]
		n, err = io.ReadFull(r, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return res, err
		}
		head = head[:n]
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return res, err
	}

	if kind := magicContainer(head); kind != containerUnknown {
		res.kind = kind
		res.magic = true
		return res, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if kind, ok := extContainers[ext]; ok {
		res.kind = kind
		return res, nil
	}
	if res.offset > 0 {
		// An ID3v2 tag followed by padding or junk is almost always MP3.
		res.kind = containerMP3
		return res, nil
	}
	return res, ErrUnsupportedFormat
}

func magicContainer(head []byte) container {
	switch {
	case bytes.HasPrefix(head, []byte("fLaC")):
		return containerFLAC
	case bytes.HasPrefix(head, []byte("OggS")):
		return containerOgg
	case len(head) >= 12 && string(head[0:4]) == "RIFF" && string(head[8:12]) == "WAVE":
		return containerWAV
	case len(head) >= 8 && string(head[4:8]) == "ftyp":
		return containerMP4
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return containerMP3
	default:
		return containerUnknown
	}
}

// id3v2Size returns the total size of an ID3v2 tag at the start of head,
// including its header and optional footer.
func id3v2Size(head []byte) (int64, bool) {
	if len(head) < 10 || string(head[0:3]) != "ID3" {
		return 0, false
	}
	// Syncsafe integer: 7 bits per byte.
	size := int64(head[6])<<21 | int64(head[7])<<14 | int64(head[8])<<7 | int64(head[9])
	size += 10
	if head[5]&0x10 != 0 {
		size += 10
	}
	return size, true
}
