package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	r := NewRing[int](10)
	assert.Equal(t, 16, r.Cap())
}

func TestRingPushPopFIFOOrder(t *testing.T) {
	r := NewRing[int](4)
	require.True(t, r.Push(1))
	require.True(t, r.Push(2))
	require.True(t, r.Push(3))

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, r.Len())
}

func TestRingPushFailsWhenFull(t *testing.T) {
	r := NewRing[int](2)
	require.True(t, r.Push(1))
	require.True(t, r.Push(2))
	assert.False(t, r.Push(3))
}

func TestRingPopFailsWhenEmpty(t *testing.T) {
	r := NewRing[int](4)
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestRingWrapsAroundCleanlyAfterDrainAndRefill(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	r.Push(2)
	r.Pop()
	r.Pop()
	require.True(t, r.Push(3))
	require.True(t, r.Push(4))

	v1, _ := r.Pop()
	v2, _ := r.Pop()
	assert.Equal(t, 3, v1)
	assert.Equal(t, 4, v2)
}
