package playlist

import (
	"slices"

	"github.com/samber/lo/mutable"
)

// RepeatMode defines the repeat behavior.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

// String returns the repeat mode name.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "Off"
	case RepeatAll:
		return "All"
	case RepeatOne:
		return "One"
	default:
		return "Unknown"
	}
}

// Queue wraps a Playlist with a current position.
type Queue[T any] struct {
	playlist     *Playlist[T]
	currentIndex int // -1 if nothing is current
	repeat       RepeatMode
	shuffle      bool
	upcoming     []int // shuffle order of the entries not yet visited in this pass
}

// NewQueue creates a new empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		playlist:     NewPlaylist[T](),
		currentIndex: -1,
	}
}

// Current returns the current item, or false if none.
func (q *Queue[T]) Current() (T, bool) {
	return q.playlist.At(q.currentIndex)
}

// CurrentIndex returns the index of the current item (-1 if none).
func (q *Queue[T]) CurrentIndex() int {
	return q.currentIndex
}

// RepeatMode returns the repeat mode.
func (q *Queue[T]) RepeatMode() RepeatMode {
	return q.repeat
}

// SetRepeatMode sets the repeat mode.
func (q *Queue[T]) SetRepeatMode(mode RepeatMode) {
	q.repeat = mode
}

// Shuffle returns whether shuffle is enabled.
func (q *Queue[T]) Shuffle() bool {
	return q.shuffle
}

// SetShuffle enables or disables shuffle. Enabling it starts a new pass
// over every entry but the current one.
func (q *Queue[T]) SetShuffle(enabled bool) {
	if enabled == q.shuffle {
		return
	}
	q.shuffle = enabled
	q.upcoming = nil
	if enabled {
		q.reshuffle()
	}
}

// Next advances to the next item and returns it. In shuffle mode the next
// item is the next one of the shuffled pass. At the end of the queue,
// RepeatAll and RepeatOne wrap around.
// Returns false, leaving the position unchanged, if there is none.
func (q *Queue[T]) Next() (T, bool) {
	if !q.HasNext() {
		var zero T
		return zero, false
	}
	if q.shuffle {
		if len(q.upcoming) == 0 {
			q.reshuffle()
		}
		if len(q.upcoming) == 0 {
			// Single entry, repeating.
			return q.Current()
		}
		q.currentIndex = q.upcoming[0]
		q.upcoming = q.upcoming[1:]
		return q.Current()
	}
	if q.currentIndex >= q.playlist.Len()-1 {
		q.currentIndex = 0
	} else {
		q.currentIndex++
	}
	return q.Current()
}

// Advance moves to the item that follows when the current one finishes:
// the current item again under RepeatOne, otherwise Next.
func (q *Queue[T]) Advance() (T, bool) {
	if q.repeat == RepeatOne {
		if t, ok := q.Current(); ok {
			return t, true
		}
	}
	return q.Next()
}

// Previous moves back to the previous item and returns it.
// Returns false, leaving the position unchanged, if there is none.
func (q *Queue[T]) Previous() (T, bool) {
	if !q.HasPrevious() {
		var zero T
		return zero, false
	}
	q.currentIndex--
	q.visit(q.currentIndex)
	return q.Current()
}

// HasNext returns true if Next would return an item.
func (q *Queue[T]) HasNext() bool {
	n := q.playlist.Len()
	if n == 0 {
		return false
	}
	if q.repeat != RepeatOff {
		return true
	}
	if q.shuffle {
		return len(q.upcoming) > 0
	}
	return q.currentIndex < n-1
}

// HasPrevious returns true if there's an item before the current one.
// Previous ignores shuffle and always steps back in queue order.
func (q *Queue[T]) HasPrevious() bool {
	return q.currentIndex > 0
}

// JumpTo sets the current index to the specified position.
// Returns the item at that position, or false if invalid.
func (q *Queue[T]) JumpTo(index int) (T, bool) {
	if index < 0 || index >= q.playlist.Len() {
		var zero T
		return zero, false
	}
	q.currentIndex = index
	q.visit(index)
	return q.Current()
}

// Add appends items without changing the current position. In shuffle
// mode the new items join the current pass at random positions.
func (q *Queue[T]) Add(items ...T) {
	from := q.playlist.Len()
	q.playlist.Add(items...)
	if q.shuffle && len(items) > 0 {
		for i := range items {
			q.upcoming = append(q.upcoming, from+i)
		}
		mutable.Shuffle(q.upcoming)
	}
}

// PlayNext inserts item right after the current one and makes it current.
func (q *Queue[T]) PlayNext(item T) T {
	at := q.currentIndex + 1
	q.playlist.Insert(at, item)
	q.currentIndex = at
	for i, idx := range q.upcoming {
		if idx >= at {
			q.upcoming[i] = idx + 1
		}
	}
	return item
}

// Replace clears the queue, adds items, and sets the index to 0.
// Returns the first item, or false if items is empty.
func (q *Queue[T]) Replace(items ...T) (T, bool) {
	q.playlist.Clear()
	q.currentIndex = -1
	q.upcoming = nil
	if len(items) == 0 {
		var zero T
		return zero, false
	}
	q.playlist.Add(items...)
	q.currentIndex = 0
	q.upcoming = nil
	if q.shuffle {
		q.reshuffle()
	}
	return q.Current()
}

// RemoveAt removes the item at the given index.
// Adjusts the current index if necessary.
func (q *Queue[T]) RemoveAt(index int) bool {
	if !q.playlist.Remove(index) {
		return false
	}
	wasCurrent := q.currentIndex == index

	if q.currentIndex > index {
		q.currentIndex--
	} else if q.currentIndex == index && q.currentIndex >= q.playlist.Len() {
		// Removed the last item while it was current.
		q.currentIndex = q.playlist.Len() - 1
	}

	q.upcoming = slices.DeleteFunc(q.upcoming, func(idx int) bool { return idx == index })
	for i, idx := range q.upcoming {
		if idx > index {
			q.upcoming[i] = idx - 1
		}
	}
	if wasCurrent {
		q.visit(q.currentIndex)
	}
	return true
}

// Clear removes all items and resets the position.
func (q *Queue[T]) Clear() {
	q.playlist.Clear()
	q.currentIndex = -1
	q.upcoming = nil
}

// Items returns all items in the queue.
func (q *Queue[T]) Items() []T {
	return q.playlist.Items()
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	return q.playlist.Len()
}

// IsEmpty returns true if the queue has no items.
func (q *Queue[T]) IsEmpty() bool {
	return q.playlist.Len() == 0
}

// reshuffle starts a new shuffled pass over every entry but the current one.
func (q *Queue[T]) reshuffle() {
	q.upcoming = q.upcoming[:0]
	for i := range q.playlist.Len() {
		if i != q.currentIndex {
			q.upcoming = append(q.upcoming, i)
		}
	}
	mutable.Shuffle(q.upcoming)
}

// visit removes index from the current shuffled pass.
func (q *Queue[T]) visit(index int) {
	q.upcoming = slices.DeleteFunc(q.upcoming, func(idx int) bool { return idx == index })
}
