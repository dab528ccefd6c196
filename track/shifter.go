package track

// NullShifter is a minimal default PitchShifter: a linear-interpolation
// resampler that honors the tempo/rate contract but performs no actual
// pitch-preserving time-stretch. The real kernel is a black box per spec
// §1 ("Pitch-shift/time-stretch DSP kernel internals ... specified as a
// black-box capability"); this default exists so PlaybackEngine is usable
// without a production kernel wired in, and so tests can exercise the slow
// path deterministically.
type NullShifter struct {
	ratio    float64 // output/input frame ratio implied by tempo or rate
	phase    float64
}

// NewNullShifter returns a shifter at unity ratio.
func NewNullShifter() *NullShifter {
	return &NullShifter{ratio: 1}
}

func (s *NullShifter) SetTempo(tempo float64) {
	if tempo == 0 {
		tempo = 1
	}
	s.ratio = 1 / absf(tempo)
}

func (s *NullShifter) SetRate(rate float64) {
	if rate == 0 {
		rate = 1
	}
	s.ratio = 1 / absf(rate)
}

func (s *NullShifter) SetPitchSemitones(semitones float64) {
	// No-op: a real kernel would detune independent of rate here.
}

// Process linearly interpolates src into dst at the configured ratio.
func (s *NullShifter) Process(dst, src [][]float32) int {
	if len(src) == 0 || len(src[0]) == 0 {
		return 0
	}
	srcLen := len(src[0])
	outLen := len(dst[0])
	produced := 0
	pos := s.phase
	step := 1 / s.ratio
	if step <= 0 {
		step = 1
	}
	for produced < outLen && pos < float64(srcLen-1) {
		i0 := int(pos)
		frac := float32(pos - float64(i0))
		for ch := range dst {
			if ch >= len(src) {
				continue
			}
			s0 := src[ch][i0]
			s1 := src[ch][i0+1]
			dst[ch][produced] = s0 + (s1-s0)*frac
		}
		pos += step
		produced++
	}
	s.phase = pos - float64(srcLen)
	if s.phase < 0 {
		s.phase = 0
	}
	return produced
}

func (s *NullShifter) Flush() {
	s.phase = 0
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
