package stream

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(gen uint64, start int64, n int) Block {
	return Block{Generation: gen, Start: start, Samples: make([][2]float64, n)}
}

func TestBuffer_PushPopFIFO(t *testing.T) {
	b := New(time.Second, 100)
	b.Flush(1, 1000)
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, block(1, 0, 100)))
	require.NoError(t, b.Push(ctx, block(1, 100, 100)))
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 200, b.Frames())

	blk, st := b.Pop(1)
	assert.Equal(t, PopOK, st)
	assert.Equal(t, int64(0), blk.Start)

	blk, st = b.Pop(1)
	assert.Equal(t, PopOK, st)
	assert.Equal(t, int64(100), blk.Start)

	_, st = b.Pop(1)
	assert.Equal(t, PopEmpty, st)
}

func TestBuffer_PushRejectsStaleGeneration(t *testing.T) {
	b := New(time.Second, 100)
	b.Flush(3, 1000)

	err := b.Push(context.Background(), block(2, 0, 10))
	assert.ErrorIs(t, err, ErrStaleGeneration)
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_FlushDropsQueuedBlocks(t *testing.T) {
	b := New(time.Second, 100)
	b.Flush(1, 1000)
	ctx := context.Background()
	require.NoError(t, b.Push(ctx, block(1, 0, 100)))
	require.NoError(t, b.Push(ctx, block(1, 100, 100)))

	b.Flush(2, 1000)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, uint64(2), b.Generation())

	_, st := b.Pop(2)
	assert.Equal(t, PopEmpty, st)
}

func TestBuffer_FlushIgnoresOlderGeneration(t *testing.T) {
	b := New(time.Second, 100)
	b.Flush(5, 1000)
	b.Flush(4, 1000)
	assert.Equal(t, uint64(5), b.Generation())
}

func TestBuffer_PopLeavesNewerGeneration(t *testing.T) {
	b := New(time.Second, 100)
	b.Flush(2, 1000)
	require.NoError(t, b.Push(context.Background(), block(2, 0, 10)))

	_, st := b.Pop(1)
	assert.Equal(t, PopEmpty, st)
	assert.Equal(t, 1, b.Len(), "block for the newer generation must stay queued")

	_, st = b.Pop(2)
	assert.Equal(t, PopOK, st)
}

func TestBuffer_FinishReportsEndedAfterDrain(t *testing.T) {
	b := New(time.Second, 100)
	b.Flush(1, 1000)
	require.NoError(t, b.Push(context.Background(), block(1, 0, 10)))
	b.Finish(1)

	_, st := b.Pop(1)
	assert.Equal(t, PopOK, st)
	_, st = b.Pop(1)
	assert.Equal(t, PopEnded, st)
}

func TestBuffer_FinishForOldGenerationIgnored(t *testing.T) {
	b := New(time.Second, 100)
	b.Flush(2, 1000)
	b.Finish(1)

	_, st := b.Pop(2)
	assert.Equal(t, PopEmpty, st)
}

func TestBuffer_PopBusyWhileLocked(t *testing.T) {
	b := New(time.Second, 100)
	b.Flush(1, 1000)

	b.mu.Lock()
	_, st := b.Pop(1)
	b.mu.Unlock()

	assert.Equal(t, PopBusy, st)
}

func TestBuffer_PushBlocksWhenFull(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// 100ms at 1kHz is 100 frames: exactly one block.
		b := New(100*time.Millisecond, 100)
		b.Flush(1, 1000)
		ctx := context.Background()
		require.NoError(t, b.Push(ctx, block(1, 0, 100)))

		done := make(chan error, 1)
		go func() { done <- b.Push(ctx, block(1, 100, 100)) }()

		synctest.Wait()
		select {
		case <-done:
			t.Fatal("Push returned while buffer was full")
		default:
		}

		_, st := b.Pop(1)
		require.Equal(t, PopOK, st)

		synctest.Wait()
		require.NoError(t, <-done)
		assert.Equal(t, 1, b.Len())
	})
}

func TestBuffer_PushUnblocksOnFlushWithStaleError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := New(100*time.Millisecond, 100)
		b.Flush(1, 1000)
		ctx := context.Background()
		require.NoError(t, b.Push(ctx, block(1, 0, 100)))

		done := make(chan error, 1)
		go func() { done <- b.Push(ctx, block(1, 100, 100)) }()
		synctest.Wait()

		b.Flush(2, 1000)
		synctest.Wait()
		assert.ErrorIs(t, <-done, ErrStaleGeneration)
	})
}

func TestBuffer_PushHonoursContext(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := New(100*time.Millisecond, 100)
		b.Flush(1, 1000)
		require.NoError(t, b.Push(context.Background(), block(1, 0, 100)))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err := b.Push(ctx, block(1, 100, 100))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestBuffer_Close(t *testing.T) {
	b := New(time.Second, 100)
	b.Flush(1, 1000)
	require.NoError(t, b.Push(context.Background(), block(1, 0, 10)))

	b.Close()
	assert.Equal(t, 0, b.Len())
	assert.ErrorIs(t, b.Push(context.Background(), block(1, 10, 10)), ErrClosed)
}

func TestBuffer_CapacityFollowsSampleRate(t *testing.T) {
	b := New(time.Second, 1000)
	b.Flush(1, 4000)
	ctx := context.Background()
	for i := range 4 {
		require.NoError(t, b.Push(ctx, block(1, int64(i*1000), 1000)))
	}
	assert.Equal(t, 4000, b.Frames())

	tctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, b.Push(tctx, block(1, 4000, 1000)), context.Canceled)
}

func TestPopStatus_String(t *testing.T) {
	assert.Equal(t, "OK", PopOK.String())
	assert.Equal(t, "Busy", PopBusy.String())
	assert.Equal(t, "Unknown", PopStatus(42).String())
}
