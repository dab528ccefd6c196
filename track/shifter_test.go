package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullShifterUnityRatePassesThroughLinearly(t *testing.T) {
	s := NewNullShifter()
	src := [][]float32{{0, 1, 2, 3, 4, 5}}
	dst := [][]float32{make([]float32, 4)}

	produced := s.Process(dst, src)
	assert.Equal(t, 4, produced)
	assert.InDelta(t, 0, dst[0][0], 1e-6)
	assert.InDelta(t, 3, dst[0][3], 1e-6)
}

func TestNullShifterSetRateHalvesRatioForDoubleSpeed(t *testing.T) {
	s := NewNullShifter()
	s.SetRate(2)
	src := [][]float32{{0, 2, 4, 6, 8, 10}}
	dst := [][]float32{make([]float32, 3)}

	s.Process(dst, src)
	// Stepping at 2x through evenly spaced input doubles the per-sample delta.
	assert.InDelta(t, 4, dst[0][1]-dst[0][0], 1e-6)
}

func TestNullShifterFlushResetsPhase(t *testing.T) {
	s := NewNullShifter()
	s.phase = 3.5
	s.Flush()
	assert.Equal(t, 0.0, s.phase)
}

func TestNullShifterZeroRateTreatedAsUnity(t *testing.T) {
	s := NewNullShifter()
	s.SetRate(0)
	assert.Equal(t, 1.0, s.ratio)
}
