// Package stream carries decoded audio from the decode worker to the
// real-time output callback.
package stream

// Block is a chunk of decoded stereo PCM.
//
// Start is the absolute index (in sample frames at the track's native rate)
// of Samples[0]. Generation ties the block to the seek/skip epoch it was
// decoded in. A block is immutable once pushed.
type Block struct {
	Generation uint64
	Start      int64
	Samples    [][2]float64
}

// End returns the index just past the last frame of the block.
func (b Block) End() int64 {
	return b.Start + int64(len(b.Samples))
}

// Len returns the number of frames in the block.
func (b Block) Len() int {
	return len(b.Samples)
}
