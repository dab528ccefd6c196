package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifoPushPopOrderIsLastInFirstOut(t *testing.T) {
	l := NewLifo(3)
	s0 := l.Push()
	s1 := l.Push()
	s2 := l.Push()
	assert.Equal(t, 3, l.ActiveLayers())

	slot, ok := l.Pop()
	require.True(t, ok)
	assert.Equal(t, s2, slot)

	slot, ok = l.Pop()
	require.True(t, ok)
	assert.Equal(t, s1, slot)

	slot, ok = l.Pop()
	require.True(t, ok)
	assert.Equal(t, s0, slot)

	_, ok = l.Pop()
	assert.False(t, ok)
}

func TestLifoPushBeyondCapacityOverwritesOldest(t *testing.T) {
	l := NewLifo(2)
	l.Push()
	l.Push()
	l.Push() // overwrites the first slot; active layers stays capped at 2
	assert.Equal(t, 2, l.ActiveLayers())
}

func TestLifoResetClearsOccupancy(t *testing.T) {
	l := NewLifo(4)
	l.Push()
	l.Push()
	l.Reset()
	assert.Equal(t, 0, l.ActiveLayers())
	_, ok := l.Pop()
	assert.False(t, ok)
}

func TestLifoZeroCapacityNeverPushes(t *testing.T) {
	l := NewLifo(0)
	assert.Equal(t, -1, l.Push())
	_, ok := l.Pop()
	assert.False(t, ok)
}
