package sink

import (
	"github.com/gopxl/beep/v2"

	"github.com/llehouerou/cadence/internal/stream"
)

// blockReader is the source end of a pipeline: it turns the blocks of one
// generation back into a continuous stream at the track's native rate.
//
// It always fills the whole request, padding with silence, so the resampler
// above it never sees a short read. Only the audio callback touches it.
type blockReader struct {
	buf   *stream.Buffer
	gen   uint64
	prime int

	cur stream.Block
	off int
	pos int64

	primed   bool
	starved  bool
	ended    bool
	underrun bool // set on entering starvation, cleared by the sink
}

func newBlockReader(buf *stream.Buffer, gen uint64, start int64, prime int) *blockReader {
	return &blockReader{buf: buf, gen: gen, pos: start, prime: max(prime, 1)}
}

func (r *blockReader) Stream(samples [][2]float64) (int, bool) {
	n := 0
	if !r.ended && !r.primed && r.buf.Ready(r.gen, r.prime) {
		r.primed = true
	}

fill:
	for r.primed && !r.ended && n < len(samples) {
		if r.off < r.cur.Len() {
			k := copy(samples[n:], r.cur.Samples[r.off:])
			n += k
			r.off += k
			r.pos += int64(k)
			continue
		}
		blk, st := r.buf.Pop(r.gen)
		switch st {
		case stream.PopOK:
			r.cur = blk
			r.off = 0
			r.pos = blk.Start
			r.starved = false
		case stream.PopEnded:
			r.cur = stream.Block{}
			r.ended = true
		case stream.PopEmpty:
			// A flushed buffer belongs to the next pipeline; running dry
			// there is not an underrun of this one.
			if !r.starved && r.buf.Generation() == r.gen {
				r.starved = true
				r.underrun = true
			}
			break fill
		default:
			// Busy: the decode worker holds the lock; try again next call.
			break fill
		}
	}

	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

func (r *blockReader) Err() error { return nil }

// pipeline is what the callback plays for one generation.
type pipeline struct {
	gen         uint64
	reader      *blockReader
	out         beep.Streamer
	endReported bool
}

func newPipeline(buf *stream.Buffer, gen uint64, start int64, prime int, from, to beep.SampleRate, quality int) *pipeline {
	r := newBlockReader(buf, gen, start, prime)
	var out beep.Streamer = r
	if from != to {
		out = beep.Resample(quality, from, to, r)
	}
	return &pipeline{gen: gen, reader: r, out: out}
}
