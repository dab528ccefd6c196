package track

// SampleBuffer is a multi-channel block of non-interleaved sample frames:
// one separate slice of length bufferSize per channel. Samples outside
// [0, musicalLength) are defined but unused; they are never zeroed on a
// length change, matching spec's "undefined but not cleared" contract.
type SampleBuffer struct {
	channels   [][]float32
	bufferSize int
}

// NewSampleBuffer allocates a buffer for the given channel count and
// capacity. Called only outside the audio thread (Prepare).
func NewSampleBuffer(channelCount, bufferSize int) *SampleBuffer {
	chans := make([][]float32, channelCount)
	for i := range chans {
		chans[i] = make([]float32, bufferSize)
	}
	return &SampleBuffer{channels: chans, bufferSize: bufferSize}
}

func (b *SampleBuffer) Channels() int    { return len(b.channels) }
func (b *SampleBuffer) Capacity() int    { return b.bufferSize }
func (b *SampleBuffer) Channel(i int) []float32 { return b.channels[i] }

// AllChannels exposes the full per-channel slice view, used by the UI
// bridge to stash a pointer for the waveform copy thread.
func (b *SampleBuffer) AllChannels() [][]float32 { return b.channels }

// ApplyFn is the convention BufferManager uses so callers choose copy-in
// (record) vs gain-mix (overdub) without the manager knowing which.
// dst is the destination region within the channel buffer, src is the
// matching slice of input samples, n is the frame count.
type ApplyFn func(dst, src []float32, n int, overdub bool)

// Manager owns one track's SampleBuffer and serves windowed read/write
// regions through a Fifo, including reverse traversal and variable-rate
// linearization for the playback engine's slow path.
type Manager struct {
	buf           *SampleBuffer
	fifo          *Fifo
	length        int
	provisional   int
	lengthFixed   bool
	lastReadPos   float64
	scratch       [][]float32 // per-channel reverse scratch, sized at Prepare
}

// NewManager creates a manager over a freshly allocated buffer.
func NewManager(channelCount, bufferSize int) *Manager {
	buf := NewSampleBuffer(channelCount, bufferSize)
	scratch := make([][]float32, channelCount)
	for i := range scratch {
		scratch[i] = make([]float32, bufferSize)
	}
	return &Manager{
		buf:     buf,
		fifo:    NewFifo(bufferSize),
		scratch: scratch,
	}
}

func (m *Manager) Buffer() *SampleBuffer { return m.buf }
func (m *Manager) Fifo() *Fifo           { return m.fifo }
func (m *Manager) Length() int           { return m.length }
func (m *Manager) ProvisionalLength() int { return m.provisional }

// Reset clears length state (used by Clear / cancel-after-first-pass).
func (m *Manager) Reset() {
	m.length = 0
	m.provisional = 0
	m.lengthFixed = false
	m.fifo.SetMusicalLength(0)
}

// BeginFirstPass prepares the manager to accumulate a provisional length
// across successive WriteToAudioBuffer calls until FinalizeLayer promotes it.
func (m *Manager) BeginFirstPass() {
	if !m.lengthFixed {
		m.provisional = 0
		m.fifo.SetMusicalLength(m.buf.Capacity())
	}
}

// WriteToAudioBuffer writes n frames of src into the buffer via applyFn,
// honoring reverse playback (scratch-reversing src when the Fifo's
// playbackRate is negative) and wrap policy. It returns true if the wrap
// was prevented (the pass should stop).
func (m *Manager) WriteToAudioBuffer(applyFn ApplyFn, src [][]float32, n int, overdub, syncWriteWithRead bool) bool {
	if n <= 0 {
		return false
	}
	if !m.lengthFixed {
		// First pass: musicalLength tracks how far we've written so far.
		if m.provisional+n > m.buf.Capacity() {
			n = m.buf.Capacity() - m.provisional
			if n <= 0 {
				return true
			}
		}
	}

	r1, r2, prevented := m.fifo.PrepareWrite(n)
	written := 0
	for _, r := range []Region{r1, r2} {
		if r.Size == 0 {
			continue
		}
		for ch := 0; ch < m.buf.Channels(); ch++ {
			dst := m.buf.Channel(ch)[r.Start : r.Start+r.Size]
			var s []float32
			if m.fifo.PlaybackRate() < 0 {
				s = m.reverseInto(ch, src[ch][written:written+r.Size], r.Size)
			} else {
				s = src[ch][written : written+r.Size]
			}
			applyFn(dst, s, r.Size, overdub)
		}
		written += r.Size
	}
	m.fifo.FinishedWrite(written, overdub, syncWriteWithRead)

	if !m.lengthFixed {
		m.provisional += written
	}
	return prevented
}

func (m *Manager) reverseInto(ch int, src []float32, n int) []float32 {
	dst := m.scratch[ch][:n]
	for i := 0; i < n; i++ {
		dst[i] = src[n-1-i]
	}
	return dst
}

// ReadFromAudioBuffer reads n frames into dst via applyFn. For negative
// speedMultiplier it reads by direct reverse indexing to preserve phase
// continuity across the loop seam instead of going through Fifo regions.
func (m *Manager) ReadFromAudioBuffer(applyFn ApplyFn, dst [][]float32, n int, speedMultiplier float64, overdub bool) {
	if n <= 0 || m.fifo.MusicalLength() == 0 {
		return
	}
	if speedMultiplier < 0 {
		for i := 0; i < n; i++ {
			idx := m.fifo.ReverseReadIndex(i)
			for ch := 0; ch < m.buf.Channels(); ch++ {
				applyFn(dst[ch][i:i+1], m.buf.Channel(ch)[idx:idx+1], 1, overdub)
			}
		}
		m.fifo.FinishedRead(n, -1, overdub)
		return
	}

	r1, r2, _ := m.fifo.PrepareRead(n)
	read := 0
	for _, r := range []Region{r1, r2} {
		if r.Size == 0 {
			continue
		}
		for ch := 0; ch < m.buf.Channels(); ch++ {
			applyFn(dst[ch][read:read+r.Size], m.buf.Channel(ch)[r.Start:r.Start+r.Size], r.Size, overdub)
		}
		read += r.Size
	}
	m.fifo.FinishedRead(read, 1, overdub)
}

// LinearizeAndRead produces a contiguous window of sourceFrames across the
// Fifo's wrap point and advances the read cursor by outputFrames -
// sourceFrames to compensate for the resampler's output/input ratio.
func (m *Manager) LinearizeAndRead(dst [][]float32, sourceFrames, outputFrames int) {
	if sourceFrames <= 0 || m.fifo.MusicalLength() == 0 {
		return
	}
	r1, r2, _ := m.fifo.PrepareRead(sourceFrames)
	written := 0
	for _, r := range []Region{r1, r2} {
		if r.Size == 0 {
			continue
		}
		for ch := 0; ch < m.buf.Channels(); ch++ {
			copy(dst[ch][written:written+r.Size], m.buf.Channel(ch)[r.Start:r.Start+r.Size])
		}
		written += r.Size
	}
	m.fifo.FinishedRead(outputFrames-sourceFrames, 1, false)
}

// HasWrappedAround edge-detects a decrease in readPos since the last call;
// used by the orchestrator to defer pending actions to a loop seam.
func (m *Manager) HasWrappedAround() bool {
	cur := m.fifo.ReadPos()
	wrapped := cur < m.lastReadPos
	m.lastReadPos = cur
	return wrapped
}

// FinalizeLayer promotes provisional length to length if no length has been
// established yet (first pass defines the loop); later passes never change
// length — they are strict overdubs, per spec §4.6/§9.
func (m *Manager) FinalizeLayer() {
	if !m.lengthFixed {
		m.length = m.provisional
		m.lengthFixed = true
		m.fifo.SetMusicalLength(m.length)
	}
}

// SetExplicitLength is used by the sync-master quantization path and by
// file import, both of which establish length outside the record path.
func (m *Manager) SetExplicitLength(n int) {
	m.length = n
	m.provisional = n
	m.lengthFixed = true
	m.fifo.SetMusicalLength(n)
}
