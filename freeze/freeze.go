// Package freeze implements the granular "freeze" effect: a short circular
// snapshot of the input is captured and a continuous granular pad is
// synthesized from it (spec §4.11).
package freeze

import "math"

const (
	MaxGrains = 64

	// lookup table resolution for the slow pitch/amp modulators.
	lutSize = 1024
)

// Grain is one active grain reading from the snapshot with linear
// interpolation, modulated by the pitch/amp LUTs and enveloped by a Hann
// window. Fixed-size array; allocation only in New.
type Grain struct {
	Position      float64
	EnvPosition   float64
	EnvIncrement  float64
	Increment     float64
	PitchMod      float64
	AmpMod        float64
	Active        bool
}

// Freeze owns the snapshot buffer, the grain pool, and the spacing
// scheduler that triggers new grains.
type Freeze struct {
	sampleRate int
	channels   int

	snapshot       [][]float32 // captured ~0.5s of input per channel
	snapshotLen    int
	inputRing      [][]float32 // short circular buffer the audio thread always writes
	inputRingLen   int
	inputRingPos   int

	grains     [MaxGrains]Grain
	nextGrain  int
	spacingCounter int
	grainSpacing   int
	grainLength    float64 // in samples, envelope duration

	pitchLUT, ampLUT [lutSize]float64
	modPhase         float64
	modIncrement     float64

	engaged bool

	pendingSnapshot bool // set by audio thread, cleared by snapshot thread
}

// New allocates a freeze effect capturing up to snapshotSeconds of audio at
// the given sample rate/channel count.
func New(sampleRate, channels int, snapshotSeconds float64) *Freeze {
	snapLen := int(snapshotSeconds * float64(sampleRate))
	f := &Freeze{
		sampleRate:   sampleRate,
		channels:     channels,
		snapshotLen:  snapLen,
		inputRingLen: snapLen,
		grainSpacing: sampleRate / 40, // ~25ms between grain triggers
		grainLength:  float64(sampleRate) / 10, // ~100ms grains
	}
	f.snapshot = make([][]float32, channels)
	f.inputRing = make([][]float32, channels)
	for ch := 0; ch < channels; ch++ {
		f.snapshot[ch] = make([]float32, snapLen)
		f.inputRing[ch] = make([]float32, snapLen)
	}
	for i := 0; i < lutSize; i++ {
		t := float64(i) / lutSize
		f.pitchLUT[i] = 1 + 0.02*math.Sin(2*math.Pi*t)
		f.ampLUT[i] = 0.8 + 0.2*math.Sin(2*math.Pi*t*1.3)
	}
	f.modIncrement = 1.0 / float64(sampleRate) // one LUT cycle per second
	return f
}

// CaptureInput is called every block by the audio thread: it always writes
// into the short circular input buffer so a snapshot thread can later copy
// from it without touching the audio thread's state directly.
func (f *Freeze) CaptureInput(in [][]float32, n int) {
	for i := 0; i < n; i++ {
		for ch := 0; ch < f.channels; ch++ {
			f.inputRing[ch][f.inputRingPos] = in[ch][i]
		}
		f.inputRingPos = (f.inputRingPos + 1) % f.inputRingLen
	}
}

// Engage requests a snapshot capture and marks the effect engaged; the
// actual copy happens on the freeze snapshot thread via TakeSnapshot.
func (f *Freeze) Engage() {
	f.engaged = true
	f.pendingSnapshot = true
}

func (f *Freeze) Disengage() { f.engaged = false }
func (f *Freeze) Engaged() bool { return f.engaged }

// PendingSnapshot reports whether a snapshot copy is still owed; polled by
// the freeze snapshot thread (spec §5).
func (f *Freeze) PendingSnapshot() bool { return f.pendingSnapshot }

// TakeSnapshot performs the bulk copy from the input ring into the
// snapshot buffer, unwinding the ring so index 0 is the oldest sample. Runs
// on the low-priority freeze snapshot thread, never on the audio thread.
func (f *Freeze) TakeSnapshot() {
	start := f.inputRingPos
	for ch := 0; ch < f.channels; ch++ {
		for i := 0; i < f.inputRingLen; i++ {
			f.snapshot[ch][i] = f.inputRing[ch][(start+i)%f.inputRingLen]
		}
	}
	f.pendingSnapshot = false
}

func (f *Freeze) triggerGrain() {
	g := &f.grains[f.nextGrain]
	f.nextGrain = (f.nextGrain + 1) % MaxGrains
	g.Position = 0
	g.EnvPosition = 0
	g.EnvIncrement = 1.0 / f.grainLength
	g.Increment = 1
	lutIdx := int(f.modPhase*lutSize) % lutSize
	g.PitchMod = f.pitchLUT[lutIdx]
	g.AmpMod = f.ampLUT[lutIdx]
	g.Active = true
}

// hann evaluates a Hann window at position in [0,1].
func hann(position float64) float64 {
	return 0.5 * (1 - math.Cos(2*math.Pi*position))
}

// Process synthesizes n frames of the granular pad into out, adding to
// whatever is already there. Output is envelope-weighted and divided by
// sqrt(activeCount) (with a 0.25 headroom factor per spec §9) for roughly
// constant perceived loudness, then hard-clipped to [-1, 1].
func (f *Freeze) Process(out [][]float32, n int) {
	if !f.engaged || f.snapshotLen == 0 {
		return
	}
	for i := 0; i < n; i++ {
		f.spacingCounter++
		if f.spacingCounter >= f.grainSpacing {
			f.spacingCounter = 0
			f.triggerGrain()
		}
		f.modPhase += f.modIncrement
		if f.modPhase >= 1 {
			f.modPhase -= 1
		}

		var mix [8]float64 // supports up to 8 channels without allocating
		activeCount := 0
		for g := 0; g < MaxGrains; g++ {
			grain := &f.grains[g]
			if !grain.Active {
				continue
			}
			activeCount++
			env := hann(grain.EnvPosition) * grain.AmpMod
			pos := grain.Position
			i0 := int(pos) % f.snapshotLen
			i1 := (i0 + 1) % f.snapshotLen
			frac := pos - math.Floor(pos)
			for ch := 0; ch < f.channels && ch < len(mix); ch++ {
				s0 := float64(f.snapshot[ch][i0])
				s1 := float64(f.snapshot[ch][i1])
				sample := s0 + (s1-s0)*frac
				mix[ch] += sample * env
			}
			grain.Position += grain.Increment * grain.PitchMod
			if grain.Position >= float64(f.snapshotLen) {
				grain.Position -= float64(f.snapshotLen)
			}
			grain.EnvPosition += grain.EnvIncrement
			if grain.EnvPosition >= 1 {
				grain.Active = false
			}
		}

		scale := 1.0
		if activeCount > 1 {
			scale = 1.0 / math.Sqrt(float64(activeCount))
		}
		scale *= 0.25

		for ch := 0; ch < f.channels && ch < len(out); ch++ {
			v := out[ch][i] + float32(mix[ch]*scale)
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			out[ch][i] = v
		}
	}
}
