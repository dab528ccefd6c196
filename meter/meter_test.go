package meter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessTracksInstantaneousPeakOfLastBlock(t *testing.T) {
	m := New(48000, 0.3, 0.1)
	m.Process([]float32{0.1, -0.8, 0.3}, 3)
	assert.InDelta(t, 0.8, m.Peak(), 1e-6)

	m.Process([]float32{0.05, 0.02}, 2)
	assert.InDelta(t, 0.05, m.Peak(), 1e-6)
}

func TestDecayedPeakHoldsAboveInstantaneousPeakAndDecaysOverTime(t *testing.T) {
	m := New(48000, 0.3, 0.1)
	m.Process([]float32{0.9}, 1)
	assert.InDelta(t, 0.9, m.DecayedPeak(), 1e-6)

	silence := make([]float32, 48000)
	m.Process(silence, len(silence))
	assert.Less(t, m.DecayedPeak(), float32(0.9))
	assert.Greater(t, m.DecayedPeak(), float32(0))
}

func TestRMSRespondsGraduallyToASuddenLevelChange(t *testing.T) {
	m := New(48000, 0.3, 0.1)
	loud := make([]float32, 4800) // 0.1s at 48kHz
	for i := range loud {
		loud[i] = 1
	}
	m.Process(loud, len(loud))
	assert.Greater(t, m.RMS(), float32(0.5))
}

func TestRMSOfASineWaveConvergesToPeakOverSqrtTwo(t *testing.T) {
	const sampleRate = 48000
	m := New(sampleRate, 0.3, 0.05)

	buf := make([]float32, 2*sampleRate) // 2s, long enough for the one-pole RMS follower to settle
	freq := 1000.0
	for i := range buf {
		buf[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / sampleRate))
	}
	m.Process(buf, len(buf))

	// True RMS of a unit sine is 1/sqrt(2); a mean-absolute-value follower
	// would instead settle near 2/pi (~0.637), which this tolerance excludes.
	assert.InDelta(t, 1/math.Sqrt2, float64(m.RMS()), 0.02)
}

func TestResetZeroesAllAccumulatedState(t *testing.T) {
	m := New(48000, 0.3, 0.1)
	m.Process([]float32{1, 1, 1}, 3)
	m.Reset()
	assert.Equal(t, float32(0), m.Peak())
	assert.Equal(t, float32(0), m.DecayedPeak())
	assert.Equal(t, float32(0), m.RMS())
}

func TestNewFallsBackToDefaultTimeConstantsWhenNonPositive(t *testing.T) {
	m := New(48000, 0, 0)
	assert.Greater(t, m.decayPerSample, float32(0))
	assert.Greater(t, m.rmsAlpha, float32(0))
}
