package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedSequence(t *testing.T) {
	t.Run("keeps insertion order under capacity", func(t *testing.T) {
		s := NewBoundedSequence[int](4)
		assert.False(t, s.Push(1))
		assert.False(t, s.Push(2))
		assert.False(t, s.Push(3))

		assert.Equal(t, []int{1, 2, 3}, s.Slice())
		last, ok := s.Last()
		require.True(t, ok)
		assert.Equal(t, 3, last)
	})

	t.Run("evicts oldest first at capacity", func(t *testing.T) {
		s := NewBoundedSequence[int](3)
		evicted := 0
		for i := 1; i <= 10; i++ {
			if s.Push(i) {
				evicted++
			}
		}
		assert.Equal(t, 7, evicted)
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, []int{8, 9, 10}, s.Slice())
	})

	t.Run("reset empties the sequence", func(t *testing.T) {
		s := NewBoundedSequence[string](2)
		s.Push("a")
		s.Push("b")
		s.Push("c")
		s.Reset()

		assert.Equal(t, 0, s.Len())
		assert.Empty(t, s.Slice())
		_, ok := s.Last()
		assert.False(t, ok)

		s.Push("d")
		assert.Equal(t, []string{"d"}, s.Slice())
	})

	t.Run("capacity floor", func(t *testing.T) {
		s := NewBoundedSequence[int](0)
		assert.Equal(t, 1, s.Cap())
		s.Push(1)
		s.Push(2)
		assert.Equal(t, []int{2}, s.Slice())
	})
}
