// Package bridge implements the cross-thread publish mechanisms that let the
// UI observe engine state without ever touching audio-thread-owned memory
// directly: a lock-free triple buffer for waveform snapshots (spec §4.12)
// and an atomic transport/selection snapshot (spec §2 EngineStateBridge).
package bridge

import (
	"sync"
	"sync/atomic"
)

// Snapshot is one published waveform sample: a copy of a track's buffer
// content plus the length and a monotonic version stamp.
type Snapshot struct {
	Samples [][]float32
	Length  int
	Version uint64
}

// Waveform is the classic retire-lock triple buffer: three preallocated
// slots and three indices {write, read, ui}, which are always pairwise
// distinct so the audio-side pointer and the UI-side snapshot never alias.
type Waveform struct {
	slots  [3]Snapshot
	write  atomic.Int32
	read   atomic.Int32
	uiIdx  atomic.Int32

	stateVersion atomic.Uint64

	mu              sync.Mutex
	pendingUpdate   bool
	pendingBuffer   [][]float32
	pendingLength   int
	signal          chan struct{}
	shouldStop      atomic.Bool
}

// NewWaveform preallocates three snapshot slots sized for channelCount x
// capacity samples, so the copy thread never allocates either.
func NewWaveform(channelCount, capacity int) *Waveform {
	w := &Waveform{signal: make(chan struct{}, 1)}
	w.read.Store(1)
	w.uiIdx.Store(2)
	for i := range w.slots {
		w.slots[i].Samples = make([][]float32, channelCount)
		for ch := range w.slots[i].Samples {
			w.slots[i].Samples[ch] = make([]float32, capacity)
		}
	}
	return w
}

// MarkDirty is called from the audio thread once per block (Engine.Process
// calls it whether or not the track buffer changed); it stashes a pointer
// (not a copy) and signals the copy thread. Allocation-free but not
// lock-free: it takes w.mu for the pointer handoff.
func (w *Waveform) MarkDirty(buf [][]float32, length int) {
	w.mu.Lock()
	w.pendingUpdate = true
	w.pendingBuffer = buf
	w.pendingLength = length
	w.mu.Unlock()
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// takePending atomically exchanges pendingUpdate to false and returns the
// stashed pointer, run by the copy thread.
func (w *Waveform) takePending() (buf [][]float32, length int, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.pendingUpdate {
		return nil, 0, false
	}
	w.pendingUpdate = false
	return w.pendingBuffer, w.pendingLength, true
}

// RunCopier is the dedicated, low-priority waveform copy thread: it waits on
// the signal channel, takes the pending pointer, copies into whichever slot
// is neither `read` nor `ui`, and publishes it.
func (w *Waveform) RunCopier() {
	for {
		select {
		case <-w.signal:
		}
		if w.shouldStop.Load() {
			return
		}
		buf, length, ok := w.takePending()
		if !ok {
			continue
		}
		w.copyAndPublish(buf, length)
		if w.shouldStop.Load() {
			return
		}
	}
}

func (w *Waveform) copyAndPublish(buf [][]float32, length int) {
	r := int(w.read.Load())
	ui := int(w.uiIdx.Load())
	var target int
	for i := 0; i < 3; i++ {
		if i != r && i != ui {
			target = i
			break
		}
	}
	slot := &w.slots[target]
	for ch := range buf {
		if ch >= len(slot.Samples) {
			break
		}
		n := length
		if n > len(slot.Samples[ch]) {
			n = len(slot.Samples[ch])
		}
		copy(slot.Samples[ch][:n], buf[ch][:n])
	}
	slot.Length = length
	version := w.stateVersion.Add(1)
	slot.Version = version
	w.write.Store(int32(target))
}

// Acquire is called by the UI thread on repaint: if stateVersion advanced
// since lastVersion, it rotates write->ui->read and returns the new
// snapshot; otherwise ok is false and the caller keeps its existing data.
func (w *Waveform) Acquire(lastVersion uint64) (snap Snapshot, newVersion uint64, ok bool) {
	cur := w.stateVersion.Load()
	if cur == lastVersion {
		return Snapshot{}, lastVersion, false
	}
	newUI := int(w.write.Load())
	oldUI := w.uiIdx.Swap(int32(newUI))
	w.read.Store(oldUI)
	return w.slots[newUI], cur, true
}

// Shutdown stops the copy thread and wakes it if it is blocked waiting.
func (w *Waveform) Shutdown() {
	w.shouldStop.Store(true)
	select {
	case w.signal <- struct{}{}:
	default:
	}
}
