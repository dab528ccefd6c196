package track

import "math"

// PitchShifter is the black-box time-stretch/pitch-shift capability the slow
// path invokes. Its DSP kernel internals are out of this core's scope (spec
// §1); only the contract the playback stage depends on is specified here.
type PitchShifter interface {
	// SetTempo sets the pitch-preserving playback-rate parameter.
	SetTempo(tempo float64)
	// SetRate sets the pitch-and-speed-changing playback-rate parameter.
	SetRate(rate float64)
	// SetPitchSemitones transposes independent of tempo/rate.
	SetPitchSemitones(semitones float64)
	// Process consumes src (per-channel) and writes up to len(dst[ch])
	// frames per channel, returning the number of frames actually produced;
	// fewer than requested is valid and the caller pads with silence.
	Process(dst, src [][]float32) (produced int)
	// Flush resets internal state (called on fast/slow path transitions and
	// on pitch-lock toggles to avoid stale-state artifacts).
	Flush()
}

// Engine selects between the fast path (1x forward, no pitch change) and the
// slow path (resample + pitch-shift kernel) and drives the chosen one.
type Engine struct {
	speed          float64
	reverse        bool
	pitchSemitones float64
	pitchLock      bool
	wasSlowPath    bool
	shifter        PitchShifter
	scratch        [][]float32 // per-channel interpolation scratch
	srcWindow      [][]float32 // reusable view over scratch, resliced per block
}

const (
	MinPlaybackSpeed = 0.25
	MaxPlaybackSpeed = 4.0

	fastPathSpeedTol  = 0.01
	fastPathPitchTol  = 0.01
	resampleGuard     = 4
)

// NewEngine creates a playback engine over the given pitch shifter,
// preallocating per-channel scratch of the given capacity.
func NewEngine(shifter PitchShifter, channelCount, scratchCapacity int) *Engine {
	scratch := make([][]float32, channelCount)
	for i := range scratch {
		scratch[i] = make([]float32, scratchCapacity)
	}
	return &Engine{speed: 1, shifter: shifter, scratch: scratch, srcWindow: make([][]float32, channelCount)}
}

func (e *Engine) Speed() float64 { return e.speed }

// SetSpeed clamps to [MinPlaybackSpeed, MaxPlaybackSpeed]; zero or negative
// magnitudes never silently freeze playback (spec §8 boundary behavior).
func (e *Engine) SetSpeed(s float64) {
	mag := math.Abs(s)
	if mag < MinPlaybackSpeed {
		mag = MinPlaybackSpeed
	}
	if mag > MaxPlaybackSpeed {
		mag = MaxPlaybackSpeed
	}
	if s < 0 {
		mag = -mag
	}
	e.speed = mag
}

func (e *Engine) Reverse() bool    { return e.reverse }
func (e *Engine) SetReverse(r bool) { e.reverse = r }

func (e *Engine) PitchLock() bool { return e.pitchLock }

// SetPitchLock flushes the kernel on any change to avoid carrying stale
// tempo/rate state across the semantic switch.
func (e *Engine) SetPitchLock(b bool) {
	if b != e.pitchLock {
		e.shifter.Flush()
	}
	e.pitchLock = b
}

func (e *Engine) SetPitchSemitones(s float64) {
	e.pitchSemitones = s
	e.shifter.SetPitchSemitones(s)
}

// signedSpeed folds reverse into the sign the Manager/Fifo expect.
func (e *Engine) signedSpeed() float64 {
	if e.reverse {
		return -e.speed
	}
	return e.speed
}

// isFastPath reports whether 1x/forward/no-pitch-change lets playback skip
// the resampler entirely.
func (e *Engine) isFastPath() bool {
	return math.Abs(e.speed-1) < fastPathSpeedTol &&
		!e.reverse &&
		math.Abs(e.pitchSemitones) < fastPathPitchTol
}

// Process reads outputFrames frames of playback into dst, via mgr and
// applyFn (VolumeProcessor.ApplyVolume-style consumers apply gain
// afterwards; this only moves/shapes samples).
func (e *Engine) Process(mgr *Manager, applyFn ApplyFn, dst [][]float32, outputFrames int, overdub bool) {
	fast := e.isFastPath()
	if fast != !e.wasSlowPath {
		e.shifter.Flush()
	}
	e.wasSlowPath = !fast

	mgr.Fifo().SetPlaybackRate(e.signedSpeed())

	if fast {
		mgr.ReadFromAudioBuffer(applyFn, dst, outputFrames, 1, overdub)
		return
	}

	if e.pitchLock {
		e.shifter.SetTempo(e.signedSpeed())
	} else {
		e.shifter.SetRate(e.signedSpeed())
	}

	sourceFrames := int(math.Ceil(float64(outputFrames)*math.Abs(e.speed))) + resampleGuard
	for ch := range e.scratch {
		if sourceFrames > cap(e.scratch[ch]) {
			sourceFrames = cap(e.scratch[ch])
		}
	}

	if e.reverse {
		e.readReverseWindow(mgr, sourceFrames)
	} else {
		mgr.LinearizeAndRead(e.scratch, sourceFrames, outputFrames)
	}

	for ch := range e.scratch {
		e.srcWindow[ch] = e.scratch[ch][:sourceFrames]
	}
	produced := e.shifter.Process(dst, e.srcWindow)
	if produced < outputFrames {
		for ch := range dst {
			for i := produced; i < outputFrames; i++ {
				dst[ch][i] = 0
			}
		}
	}
}

func (e *Engine) readReverseWindow(mgr *Manager, sourceFrames int) {
	fifo := mgr.Fifo()
	for i := 0; i < sourceFrames; i++ {
		idx := fifo.ReverseReadIndex(i)
		for ch := 0; ch < mgr.Buffer().Channels(); ch++ {
			e.scratch[ch][i] = mgr.Buffer().Channel(ch)[idx]
		}
	}
	fifo.FinishedRead(sourceFrames, -1, false)
}
