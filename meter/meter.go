// Package meter implements per-channel peak/RMS level metering with decay,
// read from the UI thread (spec §2 LevelMeter).
package meter

import "math"

// Meter tracks one channel's instantaneous peak, decaying peak, and RMS.
type Meter struct {
	peak       float32
	decayedPeak float32
	meanSq     float32
	rms        float32
	decayPerSample float32
	rmsAlpha   float32
}

// New creates a meter whose decaying peak falls to -60dB over
// decaySeconds, and whose RMS is a one-pole follower with the given time
// constant.
func New(sampleRate int, decaySeconds, rmsSeconds float64) *Meter {
	m := &Meter{}
	if decaySeconds <= 0 {
		decaySeconds = 0.3
	}
	if rmsSeconds <= 0 {
		rmsSeconds = 0.1
	}
	m.decayPerSample = float32(math.Pow(0.001, 1/(decaySeconds*float64(sampleRate))))
	m.rmsAlpha = float32(1 - math.Exp(-1/(rmsSeconds*float64(sampleRate))))
	return m
}

// Process consumes n samples of one channel, updating peak/decayedPeak/RMS.
// Allocation-free; safe to call from the audio thread. The read side
// (Peak/RMS) reads the same plain float fields with no lock or atomic;
// bridge.StateBridge's snapshot carries no meter values.
func (m *Meter) Process(buf []float32, n int) {
	var peak float32
	for i := 0; i < n; i++ {
		a := buf[i]
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
		m.decayedPeak *= m.decayPerSample
		if a > m.decayedPeak {
			m.decayedPeak = a
		}
		m.meanSq += m.rmsAlpha * (buf[i]*buf[i] - m.meanSq)
		m.rms = float32(math.Sqrt(float64(m.meanSq)))
	}
	m.peak = peak
}

// Peak returns the instantaneous peak of the last processed block.
func (m *Meter) Peak() float32 { return m.peak }

// DecayedPeak returns the slower-falling peak-hold value, suitable for a
// meter ballistics display.
func (m *Meter) DecayedPeak() float32 { return m.decayedPeak }

// RMS returns the smoothed RMS estimate.
func (m *Meter) RMS() float32 { return m.rms }

// Reset zeroes all accumulated state (used when a track is cleared).
func (m *Meter) Reset() {
	m.peak = 0
	m.decayedPeak = 0
	m.meanSq = 0
	m.rms = 0
}
