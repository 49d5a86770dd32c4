package logring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingKeepsLastCapacityInOrder(t *testing.T) {
	const capacity = 5
	for k := 0; k <= 12; k++ {
		t.Run(fmt.Sprintf("overflow_%d", k), func(t *testing.T) {
			r := NewRing[int](capacity)
			total := capacity + k
			for i := 0; i < total; i++ {
				r.Push(i)
			}
			require.Equal(t, capacity, r.Len())
			want := make([]int, 0, capacity)
			for i := total - capacity; i < total; i++ {
				want = append(want, i)
			}
			assert.Equal(t, want, r.Items())
		})
	}
}

func TestRingPartialFill(t *testing.T) {
	r := NewRing[string](4)
	assert.False(t, r.Push("a"))
	assert.False(t, r.Push("b"))
	assert.Equal(t, []string{"a", "b"}, r.Items())
	assert.Equal(t, 4, r.Cap())
}

func TestRingPushReportsEviction(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	r.Push(2)
	assert.True(t, r.Push(3))
	assert.Equal(t, []int{2, 3}, r.Items())
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{2}, r.Items())
}

func TestRingReset(t *testing.T) {
	r := NewRing[int](3)
	r.Push(1)
	r.Push(2)
	r.Reset()
	assert.Equal(t, 0, r.Len())
	r.Push(9)
	assert.Equal(t, []int{9}, r.Items())
}
