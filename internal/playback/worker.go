package playback

import (
	"context"
	"errors"
	"io"
)

type resultKind int

const (
	resultLoaded resultKind = iota
	resultSeeked
	resultFailed
)

// result is what background goroutines report to the controller. Results
// from an older generation are discarded on arrival.
type result struct {
	gen  uint64
	kind resultKind
	src  Source
	pos  int64
	err  error
}

// worker decodes one generation into the stream buffer. The Source passes
// from worker to worker: a new worker starts by taking it from the
// previous one's done channel, so a seek never races an in-flight Next.
type worker struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan Source
}

func (c *Controller) report(r result) bool {
	select {
	case c.results <- r:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// loadSource opens path and the output device, then reports the Source.
func (c *Controller) loadSource(ctx context.Context, gen uint64, path string) {
	defer c.wg.Done()

	src, err := c.open(path)
	if err == nil {
		if err = c.sink.Open(ctx, src.Format()); err != nil {
			_ = src.Close()
			src = nil
		}
	}
	if !c.report(result{gen: gen, kind: resultLoaded, src: src, err: err}) && src != nil {
		_ = src.Close()
	}
}

// decode seeks to seek (unless negative) and pushes blocks until the end
// of the stream, an error, or cancellation.
func (c *Controller) decode(ctx context.Context, w *worker, prev *worker, src Source, seek int64) {
	defer c.wg.Done()
	if prev != nil {
		src = <-prev.done
	}
	defer func() { w.done <- src }()

	if seek >= 0 {
		if ctx.Err() != nil {
			return
		}
		pos, err := src.Seek(seek)
		if !c.report(result{gen: w.gen, kind: resultSeeked, pos: pos, err: err}) || err != nil {
			return
		}
	}

	for ctx.Err() == nil {
		blk, err := src.Next()
		if err != nil {
			c.buf.Finish(w.gen)
			if !errors.Is(err, io.EOF) {
				c.report(result{gen: w.gen, kind: resultFailed, err: err})
			}
			return
		}
		blk.Generation = w.gen
		if err := c.buf.Push(ctx, blk); err != nil {
			return
		}
		if c.analyzer != nil {
			c.analyzer.Offer(blk)
		}
	}
}

// release hands the Source to a goroutine that closes it once the worker
// holding it lets go.
func (c *Controller) release(w *worker, src Source) {
	if w == nil {
		if src != nil {
			_ = src.Close()
		}
		return
	}
	w.cancel()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if s := <-w.done; s != nil {
			if err := s.Close(); err != nil {
				c.logger.Debug("closing decoder", "err", err)
			}
		}
	}()
}
