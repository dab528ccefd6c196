package track

import "math"

// Fifo is a circular read/write cursor over a single track's sample buffer.
// It never allocates and never locks; every method is safe to call from the
// real-time audio thread. The buffer it addresses is owned elsewhere (Buffer).
type Fifo struct {
	bufferSize    int
	musicalLength int
	writePos      int
	readPos       float64
	playbackRate  float64
	wrapAround    bool

	subLoopOn           bool
	subStart, subLength int // read-side window, absolute into the buffer
}

// NewFifo creates a cursor over a buffer of the given capacity. MusicalLength
// starts at zero: no region has been committed yet.
func NewFifo(bufferSize int) *Fifo {
	return &Fifo{
		bufferSize:   bufferSize,
		playbackRate: 1,
		wrapAround:   true,
	}
}

// Resize changes the backing capacity; called only from Prepare, never on the
// audio thread.
func (f *Fifo) Resize(bufferSize int) {
	f.bufferSize = bufferSize
	f.writePos = 0
	f.readPos = 0
	f.musicalLength = 0
}

func (f *Fifo) MusicalLength() int    { return f.musicalLength }
func (f *Fifo) WritePos() int         { return f.writePos }
func (f *Fifo) ReadPos() float64      { return f.readPos }
func (f *Fifo) SetWrapAround(b bool)  { f.wrapAround = b }
func (f *Fifo) WrapAround() bool      { return f.wrapAround }
func (f *Fifo) SetPlaybackRate(r float64) { f.playbackRate = r }
func (f *Fifo) PlaybackRate() float64 { return f.playbackRate }

// SetMusicalLength establishes or changes the active loop length. Called when
// a first pass is finalized, or when a track is prepared/cleared.
func (f *Fifo) SetMusicalLength(n int) {
	if n > f.bufferSize {
		n = f.bufferSize
	}
	f.musicalLength = n
	if f.writePos >= n && n > 0 {
		f.writePos = f.writePos % n
	}
	if n == 0 {
		f.writePos = 0
		f.readPos = 0
	}
}

// SetSubLoopRegion confines forward playback reads to [start, start+length)
// within the committed loop, leaving the write/record side untouched. Used
// by the sub-loop commands (spec §6 SetSubLoopRegion) to let a player
// repeat a phrase without re-recording.
func (f *Fifo) SetSubLoopRegion(start, length int) {
	if start < 0 {
		start = 0
	}
	if start+length > f.musicalLength {
		length = f.musicalLength - start
	}
	if length <= 0 {
		return
	}
	f.subStart = start
	f.subLength = length
	f.subLoopOn = true
	f.readPos = 0
}

// ClearSubLoopRegion restores full-loop playback.
func (f *Fifo) ClearSubLoopRegion() {
	f.subLoopOn = false
	f.readPos = 0
}

func (f *Fifo) readWindow() (start, length int) {
	if f.subLoopOn {
		return f.subStart, f.subLength
	}
	return 0, f.musicalLength
}

// Region is a single contiguous span returned by PrepareWrite/PrepareRead.
type Region struct {
	Start int
	Size  int
}

// PrepareWrite returns up to two contiguous regions, totaling at most n
// frames, starting at writePos. A second region is only non-empty when the
// request wraps past musicalLength and wrapAround is enabled; otherwise the
// request is clipped and preventedWrap reports that a caller should stop.
func (f *Fifo) PrepareWrite(n int) (r1, r2 Region, preventedWrap bool) {
	if f.musicalLength == 0 || n <= 0 {
		return Region{}, Region{}, false
	}
	remaining := f.musicalLength - f.writePos
	if n <= remaining {
		return Region{Start: f.writePos, Size: n}, Region{}, false
	}
	if f.wrapAround {
		first := Region{Start: f.writePos, Size: remaining}
		second := Region{Start: 0, Size: n - remaining}
		if second.Size > f.musicalLength {
			second.Size = f.musicalLength
		}
		return first, second, false
	}
	return Region{Start: f.writePos, Size: remaining}, Region{}, true
}

// FinishedWrite advances writePos by k modulo musicalLength. When
// syncWriteWithRead is set (used by overdubs whose speed/direction may have
// drifted write and read apart), writePos snaps to floor(readPos) instead.
func (f *Fifo) FinishedWrite(k int, overdub, syncWriteWithRead bool) {
	if f.musicalLength == 0 {
		return
	}
	if syncWriteWithRead {
		f.writePos = int(math.Floor(f.readPos)) % f.musicalLength
		if f.writePos < 0 {
			f.writePos += f.musicalLength
		}
		return
	}
	f.writePos = floorMod(f.writePos+k, f.musicalLength)
}

// PrepareRead mirrors PrepareWrite from the current (integer-truncated)
// readPos.
func (f *Fifo) PrepareRead(n int) (r1, r2 Region, preventedWrap bool) {
	winStart, winLen := f.readWindow()
	if f.musicalLength == 0 || winLen == 0 || n <= 0 {
		return Region{}, Region{}, false
	}
	local := int(math.Floor(f.readPos)) % winLen
	remaining := winLen - local
	if n <= remaining {
		return Region{Start: winStart + local, Size: n}, Region{}, false
	}
	if f.wrapAround {
		first := Region{Start: winStart + local, Size: remaining}
		second := Region{Start: winStart, Size: n - remaining}
		if second.Size > winLen {
			second.Size = winLen
		}
		return first, second, false
	}
	return Region{Start: winStart + local, Size: remaining}, Region{}, true
}

// FinishedRead advances readPos by rate*k frames and reduces it back into
// [0, musicalLength) with a floored modulo, so negative rates wrap correctly.
func (f *Fifo) FinishedRead(k int, rate float64, overdub bool) {
	if f.musicalLength == 0 {
		return
	}
	_, winLen := f.readWindow()
	f.readPos += rate * float64(k)
	f.readPos = floorModF(f.readPos, float64(winLen))
}

// ReverseReadIndex returns (writePos - offset) mod musicalLength, used by the
// playback engine's backward traversal when it reads directly rather than
// through FIFO regions.
func (f *Fifo) ReverseReadIndex(offset int) int {
	if f.musicalLength == 0 {
		return 0
	}
	return floorMod(f.writePos-offset, f.musicalLength)
}

func floorMod(a, m int) int {
	if m == 0 {
		return 0
	}
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

func floorModF(a, m float64) float64 {
	if m == 0 {
		return 0
	}
	r := math.Mod(a, m)
	if r < 0 {
		r += m
	}
	return r
}
