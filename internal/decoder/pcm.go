package decoder

import (
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/wav"
)

// decodeFLAC opens a FLAC stream that starts offset bytes into f. Some
// taggers put an ID3v2 tag in front of the fLaC marker, which the FLAC
// decoder does not skip by itself.
func decodeFLAC(f *file, offset int64) (beep.StreamSeekCloser, beep.Format, error) {
	if offset == 0 {
		return flac.Decode(f)
	}
	sec, err := newSection(f, offset)
	if err != nil {
		return nil, beep.Format{}, err
	}
	return flac.Decode(sec)
}

func decodeWAV(f *file) (beep.StreamSeekCloser, beep.Format, error) {
	return wav.Decode(f)
}

// toStereo writes interleaved PCM with the given channel count into dst as
// stereo frames: mono is duplicated, channels beyond the first two are
// dropped. It returns the number of frames written.
func toStereo(dst [][2]float64, pcm []float32, channels int) int {
	if channels <= 0 {
		return 0
	}
	frames := min(len(pcm)/channels, len(dst))
	for i := range frames {
		l := float64(pcm[i*channels])
		r := l
		if channels > 1 {
			r = float64(pcm[i*channels+1])
		}
		dst[i] = [2]float64{l, r}
	}
	return frames
}
