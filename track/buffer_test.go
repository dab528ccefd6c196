package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerFirstPassAccumulatesProvisionalLength(t *testing.T) {
	m := NewManager(1, 32)
	m.BeginFirstPass()

	src := [][]float32{{1, 1, 1, 1}}
	prevented := m.WriteToAudioBuffer(func(dst, s []float32, n int, overdub bool) {
		copy(dst[:n], s[:n])
	}, src, 4, false, false)
	require.False(t, prevented)
	assert.Equal(t, 4, m.ProvisionalLength())

	m.FinalizeLayer()
	assert.Equal(t, 4, m.Length())
}

func TestManagerLaterPassesNeverChangeLength(t *testing.T) {
	m := NewManager(1, 32)
	m.BeginFirstPass()
	src := [][]float32{{1, 1, 1, 1}}
	applyFn := func(dst, s []float32, n int, overdub bool) { copy(dst[:n], s[:n]) }
	m.WriteToAudioBuffer(applyFn, src, 4, false, false)
	m.FinalizeLayer()

	m.WriteToAudioBuffer(applyFn, src, 4, true, false)
	m.FinalizeLayer()
	assert.Equal(t, 4, m.Length())
}

func TestManagerReadFromAudioBufferWrapsAtMusicalLength(t *testing.T) {
	m := NewManager(1, 32)
	m.SetExplicitLength(4)
	for i, v := range []float32{10, 20, 30, 40} {
		m.buf.Channel(0)[i] = v
	}
	m.fifo.readPos = 3

	dst := [][]float32{make([]float32, 4)}
	m.ReadFromAudioBuffer(func(d, s []float32, n int, overdub bool) { copy(d[:n], s[:n]) }, dst, 4, 1, false)
	assert.Equal(t, []float32{40, 10, 20, 30}, dst[0])
}

func TestManagerSetExplicitLengthFixesLength(t *testing.T) {
	m := NewManager(1, 16)
	m.SetExplicitLength(10)
	assert.Equal(t, 10, m.Length())
	assert.Equal(t, 10, m.Fifo().MusicalLength())

	// A later WriteToAudioBuffer pass must not grow provisional length once fixed.
	src := [][]float32{make([]float32, 10)}
	m.WriteToAudioBuffer(func(d, s []float32, n int, overdub bool) { copy(d[:n], s[:n]) }, src, 10, true, false)
	assert.Equal(t, 10, m.Length())
}

func TestManagerHasWrappedAroundEdgeDetects(t *testing.T) {
	m := NewManager(1, 16)
	m.SetExplicitLength(8)
	m.fifo.readPos = 2
	assert.False(t, m.HasWrappedAround())

	m.fifo.readPos = 1 // decreased => wrapped
	assert.True(t, m.HasWrappedAround())
}
