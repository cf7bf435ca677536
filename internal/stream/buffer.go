package stream

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrStaleGeneration is returned by Push for blocks decoded before the
	// most recent Flush.
	ErrStaleGeneration = errors.New("stream: stale generation")
	// ErrClosed is returned by Push once the buffer has been closed.
	ErrClosed = errors.New("stream: buffer closed")
)

// PopStatus describes the outcome of a Pop.
type PopStatus int

const (
	// PopOK means a block was returned.
	PopOK PopStatus = iota
	// PopEmpty means nothing is queued for the requested generation yet.
	PopEmpty
	// PopEnded means the generation's producer finished and every block
	// has been consumed.
	PopEnded
	// PopBusy means the buffer lock could not be taken without waiting.
	PopBusy
)

// String returns the status name.
func (s PopStatus) String() string {
	switch s {
	case PopOK:
		return "OK"
	case PopEmpty:
		return "Empty"
	case PopEnded:
		return "Ended"
	case PopBusy:
		return "Busy"
	default:
		return "Unknown"
	}
}

// popAttempts bounds how many times Pop tries the lock before giving up.
const popAttempts = 4

// Buffer is a bounded FIFO of Blocks tagged with a generation.
//
// Push is called from the decode worker and blocks while the buffer is full.
// Pop is called from the audio callback and never waits: it try-acquires the
// lock and reports PopBusy if it cannot. Flush starts a new generation and
// drops everything queued for older ones.
type Buffer struct {
	mu       sync.Mutex
	slots    []Block
	head     int
	count    int
	frames   int
	capacity time.Duration
	block    int
	limit    int // frames allowed in the buffer for the current sample rate
	gen      uint64
	finished bool
	closed   bool

	genView atomic.Uint64
	space   chan struct{}
}

// New creates a buffer holding roughly capacity worth of audio, decoded in
// blocks of blockFrames frames.
func New(capacity time.Duration, blockFrames int) *Buffer {
	if capacity <= 0 {
		capacity = time.Second
	}
	if blockFrames <= 0 {
		blockFrames = 1024
	}
	b := &Buffer{
		capacity: capacity,
		block:    blockFrames,
		space:    make(chan struct{}, 1),
	}
	b.resize(44100)
	return b
}

// resize recomputes the frame limit for sampleRate and grows the slot ring
// if needed. Caller holds mu (or owns b exclusively).
func (b *Buffer) resize(sampleRate int) {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	b.limit = max(int(b.capacity.Seconds()*float64(sampleRate)), b.block)
	want := b.limit/b.block + 2
	if len(b.slots) < want {
		b.slots = make([]Block, want)
	}
}

// Push appends blk, blocking while the buffer is full.
// It fails with ErrStaleGeneration if blk belongs to an older generation,
// and with the context's error if ctx is done first.
func (b *Buffer) Push(ctx context.Context, blk Block) error {
	for {
		b.mu.Lock()
		switch {
		case b.closed:
			b.mu.Unlock()
			return ErrClosed
		case blk.Generation != b.gen:
			b.mu.Unlock()
			return ErrStaleGeneration
		case b.count == 0 || (b.count < len(b.slots) && b.frames+blk.Len() <= b.limit):
			b.slots[(b.head+b.count)%len(b.slots)] = blk
			b.count++
			b.frames += blk.Len()
			b.mu.Unlock()
			return nil
		}
		b.mu.Unlock()

		select {
		case <-b.space:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pop removes the oldest block of generation gen.
//
// Blocks from older generations are discarded on the way. Pop never blocks
// and never allocates.
func (b *Buffer) Pop(gen uint64) (Block, PopStatus) {
	locked := false
	for range popAttempts {
		if b.mu.TryLock() {
			locked = true
			break
		}
		runtime.Gosched()
	}
	if !locked {
		return Block{}, PopBusy
	}

	for b.count > 0 {
		blk := b.slots[b.head]
		if blk.Generation > gen {
			b.mu.Unlock()
			return Block{}, PopEmpty
		}
		b.slots[b.head] = Block{}
		b.head = (b.head + 1) % len(b.slots)
		b.count--
		b.frames -= blk.Len()
		b.signalSpace()
		if blk.Generation < gen {
			continue
		}
		b.mu.Unlock()
		return blk, PopOK
	}

	ended := b.finished && b.gen == gen
	b.mu.Unlock()
	if ended {
		return Block{}, PopEnded
	}
	return Block{}, PopEmpty
}

// Flush starts generation gen, discarding every queued block and rejecting
// further pushes from older generations. sampleRate sizes the buffer so it
// holds the configured capacity of playback time. Generations never go
// backwards; a Flush with gen lower than the current one is ignored.
func (b *Buffer) Flush(gen uint64, sampleRate int) {
	b.mu.Lock()
	if gen < b.gen {
		b.mu.Unlock()
		return
	}
	for i := range b.slots {
		b.slots[i] = Block{}
	}
	b.head, b.count, b.frames = 0, 0, 0
	b.gen = gen
	b.finished = false
	b.resize(sampleRate)
	b.genView.Store(gen)
	b.mu.Unlock()
	b.signalSpace()
}

// Finish marks generation gen as complete: once drained, Pop reports
// PopEnded instead of PopEmpty.
func (b *Buffer) Finish(gen uint64) {
	b.mu.Lock()
	if gen == b.gen {
		b.finished = true
	}
	b.mu.Unlock()
}

// Ready reports whether generation gen has at least minFrames queued or has
// been finished. Like Pop it never waits: a contended lock reads as not
// ready.
func (b *Buffer) Ready(gen uint64, minFrames int) bool {
	if !b.mu.TryLock() {
		return false
	}
	ready := b.gen == gen && (b.frames >= minFrames || b.finished)
	b.mu.Unlock()
	return ready
}

// Generation returns the current generation without locking.
func (b *Buffer) Generation() uint64 {
	return b.genView.Load()
}

// Len returns the number of queued blocks.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Frames returns the number of queued frames.
func (b *Buffer) Frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Close rejects further pushes and drops queued blocks.
func (b *Buffer) Close() {
	b.mu.Lock()
	b.closed = true
	for i := range b.slots {
		b.slots[i] = Block{}
	}
	b.head, b.count, b.frames = 0, 0, 0
	b.mu.Unlock()
	b.signalSpace()
}

func (b *Buffer) signalSpace() {
	select {
	case b.space <- struct{}{}:
	default:
	}
}
