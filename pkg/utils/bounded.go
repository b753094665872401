package utils

// BoundedSequence is a fixed-capacity ring buffer. Pushing onto a full
// sequence evicts the oldest element.
type BoundedSequence[T any] struct {
	items []T
	head  int
	size  int
}

// NewBoundedSequence creates a sequence holding at most capacity elements.
// A capacity below 1 is raised to 1.
func NewBoundedSequence[T any](capacity int) *BoundedSequence[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &BoundedSequence[T]{items: make([]T, capacity)}
}

// Push appends v and reports whether an element was evicted to make room.
func (s *BoundedSequence[T]) Push(v T) bool {
	capacity := len(s.items)
	if s.size < capacity {
		s.items[(s.head+s.size)%capacity] = v
		s.size++
		return false
	}
	s.items[s.head] = v
	s.head = (s.head + 1) % capacity
	return true
}

// Len returns the number of stored elements
func (s *BoundedSequence[T]) Len() int {
	return s.size
}

// Cap returns the maximum number of elements
func (s *BoundedSequence[T]) Cap() int {
	return len(s.items)
}

// Last returns the most recently pushed element
func (s *BoundedSequence[T]) Last() (T, bool) {
	var zero T
	if s.size == 0 {
		return zero, false
	}
	return s.items[(s.head+s.size-1)%len(s.items)], true
}

// Reset drops all elements, keeping the capacity
func (s *BoundedSequence[T]) Reset() {
	var zero T
	for i := range s.items {
		s.items[i] = zero
	}
	s.head = 0
	s.size = 0
}

// Slice copies the elements out, oldest first
func (s *BoundedSequence[T]) Slice() []T {
	out := make([]T, s.size)
	for i := 0; i < s.size; i++ {
		out[i] = s.items[(s.head+i)%len(s.items)]
	}
	return out
}
