package playback

import "time"

// Track identifies a playable file. It is resolved once, by the library
// side, and never modified afterwards.
type Track struct {
	Path        string
	Codec       string
	Frames      int64 // total length in frames, 0 if unknown
	SampleRate  int
	Title       string
	Artist      string
	Album       string
	TrackNumber int
}

// Duration returns the track length.
func (t Track) Duration() time.Duration {
	return framesToDuration(t.Frames, t.SampleRate)
}

func framesToDuration(frames int64, rate int) time.Duration {
	if rate <= 0 || frames <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

func durationToFrames(d time.Duration, rate int) int64 {
	if rate <= 0 || d <= 0 {
		return 0
	}
	return int64(d / time.Microsecond * time.Duration(rate) / 1e6)
}
