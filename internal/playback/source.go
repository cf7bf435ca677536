package playback

import (
	"github.com/gopxl/beep/v2"

	"github.com/llehouerou/cadence/internal/decoder"
	"github.com/llehouerou/cadence/internal/stream"
)

// Source is an opened, decodable track. *decoder.Decoder implements it.
type Source interface {
	Format() beep.Format
	Len() int
	Tolerance() int
	Next() (stream.Block, error)
	Seek(pos int64) (int64, error)
	Close() error
}

// Opener opens the file at path for decoding. It may block on I/O.
type Opener func(path string) (Source, error)

// DecoderOpener opens files with the decoder package.
func DecoderOpener(opts decoder.Options) Opener {
	return func(path string) (Source, error) {
		d, err := decoder.Open(path, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

var _ Source = (*decoder.Decoder)(nil)
