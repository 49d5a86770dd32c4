// Package logring keeps recent log lines in a bounded buffer that is shared
// between log producers and the session log view.
package logring

// Ring is a fixed-capacity FIFO. Pushing into a full ring evicts the oldest
// element. Ring is not safe for concurrent use; Relay adds the locking.
type Ring[T any] struct {
	items []T
	start int
	size  int
}

// NewRing returns an empty ring holding at most capacity elements.
// A capacity below one is treated as one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends v and reports whether an element was evicted to make room.
func (r *Ring[T]) Push(v T) bool {
	capacity := len(r.items)
	if r.size < capacity {
		r.items[(r.start+r.size)%capacity] = v
		r.size++
		return false
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % capacity
	return true
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.items) }

// At returns the i-th oldest element.
func (r *Ring[T]) At(i int) T {
	return r.items[(r.start+i)%len(r.items)]
}

// Items returns a copy of the stored elements, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}

// Reset drops every element.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.start = 0
	r.size = 0
}
