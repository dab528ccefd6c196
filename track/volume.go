package track

import "math"

const mdB = 0.001 // one millibel-ish gain-delta threshold for ramp-vs-flat

// Volume applies per-track gain, mute, solo, overdub mix gains, output
// normalization, and loop-seam crossfade. All state here is scalar; no
// method allocates.
type Volume struct {
	gain, previousGain float64
	preMuteGain        float64
	muted              bool
	soloed             bool
	oldGain, newGain   float64 // overdub feedback gains
	normalize          bool
	normalizeTarget    float64
	crossFadeLen       int
}

// NewVolume returns a processor at unity gain with the classic tape-loop
// overdub gains (existing loop unchanged, new pass at full level).
func NewVolume() *Volume {
	return &Volume{
		gain:            1,
		previousGain:    1,
		oldGain:         1,
		newGain:         1,
		normalizeTarget: 0.9,
		crossFadeLen:    64,
	}
}

func (v *Volume) Gain() float64 { return v.gain }
func (v *Volume) SetGain(g float64) {
	v.previousGain = v.gain
	v.gain = g
}

func (v *Volume) Muted() bool { return v.muted }
func (v *Volume) Soloed() bool { return v.soloed }
func (v *Volume) SetSoloed(b bool) { v.soloed = b }

// SetMuted(true) remembers the pre-mute gain and zeroes output; SetMuted
// (false) restores it exactly, per the mute/unmute round-trip property.
func (v *Volume) SetMuted(m bool) {
	if m == v.muted {
		return
	}
	if m {
		v.preMuteGain = v.gain
		v.SetGain(0)
	} else {
		v.SetGain(v.preMuteGain)
	}
	v.muted = m
}

func (v *Volume) SetOverdubGains(oldGain, newGain float64) {
	v.oldGain, v.newGain = oldGain, newGain
}

func (v *Volume) OverdubGains() (oldGain, newGain float64) { return v.oldGain, v.newGain }

func (v *Volume) SetNormalize(b bool) { v.normalize = b }
func (v *Volume) Normalize() bool     { return v.normalize }

// ApplyVolume ramps gain linearly across the block when the gain changed by
// more than one mdB since the previous call, else applies a flat multiply —
// avoiding a per-sample branch/ramp when nothing changed.
func (v *Volume) ApplyVolume(buf []float32, n int) {
	if math.Abs(v.gain-v.previousGain) <= mdB {
		g := float32(v.gain)
		for i := 0; i < n; i++ {
			buf[i] *= g
		}
		v.previousGain = v.gain
		return
	}
	start := v.previousGain
	end := v.gain
	for i := 0; i < n; i++ {
		t := float64(i+1) / float64(n)
		g := start + (end-start)*t
		buf[i] *= float32(g)
	}
	v.previousGain = v.gain
}

// SaveBalancedLayers is the ApplyFn passed to Manager.WriteToAudioBuffer
// while recording. The first pass clears dst then adds src*newGain; later
// passes decay dst by oldGain before adding src*newGain — the classic
// tape-loop overdub feedback model.
func (v *Volume) SaveBalancedLayers(dst, src []float32, n int, overdub bool) {
	newGain := float32(v.newGain)
	if !overdub {
		for i := 0; i < n; i++ {
			dst[i] = src[i] * newGain
		}
		return
	}
	oldGain := float32(v.oldGain)
	for i := 0; i < n; i++ {
		dst[i] = dst[i]*oldGain + src[i]*newGain
	}
}

// NormalizeOutput, if enabled, scales buf down to the configured target peak
// when its peak exceeds it; quieter buffers are left unchanged.
func (v *Volume) NormalizeOutput(buf []float32, n int) {
	if !v.normalize {
		return
	}
	var peak float32
	for i := 0; i < n; i++ {
		a := buf[i]
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	if peak <= 0 {
		return
	}
	scale := float32(v.normalizeTarget) / peak
	if scale >= 1 {
		return
	}
	for i := 0; i < n; i++ {
		buf[i] *= scale
	}
}

// ApplyCrossfade fades the first and last min(crossFadeLen, n/4) samples to
// zero, suppressing the seam click on a loop's first commit.
func (v *Volume) ApplyCrossfade(buf []float32, n int) {
	length := v.crossFadeLen
	if length > n/4 {
		length = n / 4
	}
	if length <= 0 {
		return
	}
	for i := 0; i < length; i++ {
		g := float32(i) / float32(length)
		buf[i] *= g
		buf[n-1-i] *= g
	}
}
