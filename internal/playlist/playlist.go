// Package playlist holds ordered track lists and the playing queue.
package playlist

// Playlist holds an ordered collection of items.
type Playlist[T any] struct {
	items []T
}

// NewPlaylist creates a new empty playlist.
func NewPlaylist[T any]() *Playlist[T] {
	return &Playlist[T]{
		items: make([]T, 0),
	}
}

// Add appends items to the playlist.
func (p *Playlist[T]) Add(items ...T) {
	p.items = append(p.items, items...)
}

// Insert inserts items before index. An index equal to Len appends.
// Returns false if index is out of bounds.
func (p *Playlist[T]) Insert(index int, items ...T) bool {
	if index < 0 || index > len(p.items) {
		return false
	}
	tail := append([]T(nil), p.items[index:]...)
	p.items = append(append(p.items[:index], items...), tail...)
	return true
}

// Remove removes the item at the given index.
// Returns false if index is out of bounds.
func (p *Playlist[T]) Remove(index int) bool {
	if index < 0 || index >= len(p.items) {
		return false
	}
	p.items = append(p.items[:index], p.items[index+1:]...)
	return true
}

// Clear removes all items from the playlist.
func (p *Playlist[T]) Clear() {
	clear(p.items)
	p.items = p.items[:0]
}

// Items returns a copy of all items.
func (p *Playlist[T]) Items() []T {
	result := make([]T, len(p.items))
	copy(result, p.items)
	return result
}

// At returns the item at the given index, or false if out of bounds.
func (p *Playlist[T]) At(index int) (T, bool) {
	if index < 0 || index >= len(p.items) {
		var zero T
		return zero, false
	}
	return p.items[index], true
}

// Len returns the number of items.
func (p *Playlist[T]) Len() int {
	return len(p.items)
}

// Move moves the item at fromIndex to toIndex.
// Returns false if either index is out of bounds.
func (p *Playlist[T]) Move(fromIndex, toIndex int) bool {
	if fromIndex < 0 || fromIndex >= len(p.items) {
		return false
	}
	if toIndex < 0 || toIndex >= len(p.items) {
		return false
	}
	if fromIndex == toIndex {
		return true
	}

	item := p.items[fromIndex]
	p.items = append(p.items[:fromIndex], p.items[fromIndex+1:]...)
	p.items = append(p.items[:toIndex], append([]T{item}, p.items[toIndex:]...)...)
	return true
}
