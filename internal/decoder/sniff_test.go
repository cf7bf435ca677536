package decoder

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniff(t *testing.T) {
	id3 := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 20}
	withID3 := func(rest []byte) []byte {
		out := append([]byte(nil), id3...)
		out = append(out, make([]byte, 20)...)
		return append(out, rest...)
	}

	tests := []struct {
		name       string
		data       []byte
		path       string
		want       container
		wantMagic  bool
		wantOffset int64
		wantErr    error
	}{
		{"flac", []byte("fLaC\x00\x00\x00\x22"), "a.bin", containerFLAC, true, 0, nil},
		{"ogg", []byte("OggS\x00\x02"), "a", containerOgg, true, 0, nil},
		{"wav", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), "a", containerWAV, true, 0, nil},
		{"mp4", []byte("\x00\x00\x00\x20ftypM4A "), "a", containerMP4, true, 0, nil},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x64}, "a", containerMP3, true, 0, nil},
		{"id3 then flac", withID3([]byte("fLaC")), "a.flac", containerFLAC, true, 30, nil},
		{"id3 then mp3 frame", withID3([]byte{0xFF, 0xFB, 0x90, 0x64}), "a", containerMP3, true, 30, nil},
		{"id3 then padding", withID3(make([]byte, 8)), "a", containerMP3, false, 30, nil},
		{"extension fallback", []byte("????????????"), "Song.OPUS", containerOgg, false, 0, nil},
		{"unknown", []byte("????????????"), "song.txt", containerUnknown, false, 0, ErrUnsupportedFormat},
		{"empty file", nil, "x.m4a", containerMP4, false, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.data)
			res, err := sniff(r, tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.kind)
			assert.Equal(t, tt.wantMagic, res.magic)
			assert.Equal(t, tt.wantOffset, res.offset)

			pos, _ := r.Seek(0, io.SeekCurrent)
			assert.Zero(t, pos, "reader is rewound")
		})
	}
}

func TestID3v2Size(t *testing.T) {
	// 0x01 0x00 syncsafe = 128 bytes of tag, plus a footer.
	head := []byte{'I', 'D', '3', 4, 0, 0x10, 0, 0, 0x01, 0x00}
	size, ok := id3v2Size(head)
	require.True(t, ok)
	assert.Equal(t, int64(10+128+10), size)

	_, ok = id3v2Size([]byte("fLaC\x00\x00\x00\x00\x00\x00"))
	assert.False(t, ok)
}

func TestCodecString(t *testing.T) {
	assert.Equal(t, "Opus", CodecOpus.String())
	assert.Equal(t, "ALAC", CodecALAC.String())
	assert.Equal(t, "Unknown", Codec(99).String())
	assert.Zero(t, CodecUnknown.FrameSize())
}
