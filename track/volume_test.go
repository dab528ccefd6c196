package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVolumeMuteUnmuteRoundTrips(t *testing.T) {
	v := NewVolume()
	v.SetGain(0.75)

	v.SetMuted(true)
	assert.Equal(t, 0.0, v.Gain())
	assert.True(t, v.Muted())

	v.SetMuted(false)
	assert.InDelta(t, 0.75, v.Gain(), 1e-9)
	assert.False(t, v.Muted())
}

func TestVolumeApplyVolumeFlatWhenUnchanged(t *testing.T) {
	v := NewVolume()
	v.previousGain = 0.5
	v.gain = 0.5
	buf := []float32{1, 1, 1, 1}
	v.ApplyVolume(buf, 4)
	for _, s := range buf {
		assert.InDelta(t, 0.5, s, 1e-6)
	}
}

func TestVolumeApplyVolumeRampsOnChange(t *testing.T) {
	v := NewVolume()
	v.previousGain = 0
	v.gain = 1
	buf := []float32{1, 1, 1, 1}
	v.ApplyVolume(buf, 4)
	assert.Less(t, buf[0], buf[3])
	assert.InDelta(t, 1.0, buf[3], 1e-6)
}

func TestVolumeSaveBalancedLayersFirstPassOverwrites(t *testing.T) {
	v := NewVolume()
	v.SetOverdubGains(0.8, 1.0)
	dst := []float32{9, 9, 9}
	src := []float32{1, 1, 1}
	v.SaveBalancedLayers(dst, src, 3, false)
	for _, s := range dst {
		assert.InDelta(t, 1.0, s, 1e-6)
	}
}

func TestVolumeSaveBalancedLayersOverdubMixesWithOldGain(t *testing.T) {
	v := NewVolume()
	v.SetOverdubGains(0.5, 1.0)
	dst := []float32{2, 2, 2}
	src := []float32{1, 1, 1}
	v.SaveBalancedLayers(dst, src, 3, true)
	for _, s := range dst {
		assert.InDelta(t, 2.0, s, 1e-6) // 2*0.5 + 1*1.0
	}
}

func TestVolumeNormalizeOutputScalesDownToTarget(t *testing.T) {
	v := NewVolume()
	v.SetNormalize(true)
	buf := []float32{2, -2, 1}
	v.NormalizeOutput(buf, 3)
	assert.InDelta(t, 0.9, buf[0], 1e-6)
	assert.InDelta(t, -0.9, buf[1], 1e-6)
}

func TestVolumeNormalizeOutputLeavesQuietBufferAlone(t *testing.T) {
	v := NewVolume()
	v.SetNormalize(true)
	buf := []float32{0.1, -0.05}
	v.NormalizeOutput(buf, 2)
	assert.InDelta(t, 0.1, buf[0], 1e-6)
	assert.InDelta(t, -0.05, buf[1], 1e-6)
}

func TestVolumeApplyCrossfadeFadesEdgesToZero(t *testing.T) {
	v := NewVolume()
	v.crossFadeLen = 2
	buf := make([]float32, 8)
	for i := range buf {
		buf[i] = 1
	}
	v.ApplyCrossfade(buf, 8)
	assert.InDelta(t, 0, buf[0], 1e-6)
	assert.InDelta(t, 0, buf[7], 1e-6)
	assert.InDelta(t, 1, buf[4], 1e-6)
}
