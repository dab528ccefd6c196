// Package metronome implements the shared click generator: tempo, time
// signature, accent, and phase sync to a track's loop position (spec §4.10).
package metronome

import "math"

const (
	MinBPM = 30
	MaxBPM = 300

	strongFreqHz = 1200.0
	weakFreqHz   = 800.0
	strongMs     = 10.0
	weakMs       = 8.0
)

// StrongBeatNone means no beat in the bar is accented.
const StrongBeatNone = -1

// Metronome synthesizes strong/weak clicks at the configured tempo and time
// signature, mixing the active click into the engine's output block.
type Metronome struct {
	sampleRate int
	bpm        float64
	num, den   int
	strongBeat int // 0..num-1, or StrongBeatNone

	samplesPerBeat float64
	beat           int
	elapsedInBeat  float64

	strongClick, weakClick []float32
	playhead               int
	activeClick            []float32
	enabled                bool
	volume                 float64

	onBeat func(beat int) // optional hook the engine uses to emit Events
}

// New builds a metronome at the given sample rate with default 120 BPM 4/4,
// strong accent on beat 0.
func New(sampleRate int) *Metronome {
	m := &Metronome{
		sampleRate: sampleRate,
		bpm:        120,
		num:        4,
		den:        4,
		strongBeat: 0,
		volume:     0.6,
	}
	m.strongClick = synthesizeClick(sampleRate, strongFreqHz, strongMs)
	m.weakClick = synthesizeClick(sampleRate, weakFreqHz, weakMs)
	m.recomputeSamplesPerBeat()
	return m
}

func synthesizeClick(sampleRate int, freqHz, durationMs float64) []float32 {
	n := int(durationMs / 1000 * float64(sampleRate))
	if n < 1 {
		n = 1
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		decay := math.Exp(-40 * t)
		out[i] = float32(math.Sin(2*math.Pi*freqHz*t) * decay)
	}
	return out
}

func (m *Metronome) recomputeSamplesPerBeat() {
	m.samplesPerBeat = 60 / m.bpm * (4 / float64(m.den)) * float64(m.sampleRate)
}

func (m *Metronome) SetEnabled(b bool)  { m.enabled = b }
func (m *Metronome) Enabled() bool      { return m.enabled }
func (m *Metronome) SetVolume(v float64) { m.volume = v }
func (m *Metronome) Volume() float64     { return m.volume }
func (m *Metronome) BPM() float64        { return m.bpm }

// SetBPM clamps to [MinBPM, MaxBPM].
func (m *Metronome) SetBPM(bpm float64) {
	if bpm < MinBPM {
		bpm = MinBPM
	}
	if bpm > MaxBPM {
		bpm = MaxBPM
	}
	m.bpm = bpm
	m.recomputeSamplesPerBeat()
}

func (m *Metronome) SetTimeSignature(num, den int) {
	if num < 1 {
		num = 1
	}
	if den < 1 {
		den = 1
	}
	m.num, m.den = num, den
	m.recomputeSamplesPerBeat()
	if m.beat >= num {
		m.beat = 0
	}
}

func (m *Metronome) TimeSignature() (num, den int) { return m.num, m.den }

// SetStrongBeat selects which beat in the bar is accented, or StrongBeatNone.
func (m *Metronome) SetStrongBeat(beat int) { m.strongBeat = beat }

// SetBeatCallback installs the hook fired each time a new beat is due; the
// engine uses it to enqueue MetronomeBeatOccurred events without the
// metronome package depending on bus.
func (m *Metronome) SetBeatCallback(fn func(beat int)) { m.onBeat = fn }

// Beat returns the current beat index within the bar.
func (m *Metronome) Beat() int { return m.beat }

// barSamples is the duration of a full bar in samples.
func (m *Metronome) barSamples() float64 {
	return m.samplesPerBeat * float64(m.num)
}

// Process advances the click engine by n samples and mixes the active click
// into out (mono reference channel broadcast across all channels of out).
func (m *Metronome) Process(out [][]float32, n int) {
	if !m.enabled {
		return
	}
	for i := 0; i < n; i++ {
		if m.elapsedInBeat <= 0 {
			m.triggerBeat()
		}
		var sample float32
		if m.playhead < len(m.activeClick) {
			sample = m.activeClick[m.playhead] * float32(m.volume)
			m.playhead++
		}
		for ch := range out {
			out[ch][i] += sample
		}
		m.elapsedInBeat++
		if m.elapsedInBeat >= m.samplesPerBeat {
			m.elapsedInBeat -= m.samplesPerBeat
			m.beat = (m.beat + 1) % m.num
			// An exact wrap to 0 is triggered by the check at the top of
			// the next sample; triggering here too would fire it twice.
			if m.elapsedInBeat > 0 {
				m.triggerBeat()
			}
		}
	}
}

func (m *Metronome) triggerBeat() {
	if m.beat == m.strongBeat {
		m.activeClick = m.strongClick
	} else {
		m.activeClick = m.weakClick
	}
	m.playhead = 0
	if m.onBeat != nil {
		m.onBeat(m.beat)
	}
}

// SyncToPosition snaps the beat counter to a loop's phase so the metronome
// aligns to imported or slowed loops: beat = floor((loopPos mod barSamples)
// / samplesPerBeat).
func (m *Metronome) SyncToPosition(loopPos int) {
	bar := m.barSamples()
	if bar <= 0 {
		return
	}
	phase := math.Mod(float64(loopPos), bar)
	if phase < 0 {
		phase += bar
	}
	m.beat = int(math.Floor(phase / m.samplesPerBeat))
	if m.beat >= m.num {
		m.beat = m.num - 1
	}
	m.elapsedInBeat = math.Mod(phase, m.samplesPerBeat)
}
