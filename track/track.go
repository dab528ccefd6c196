package track

// Track composes a sample buffer manager, undo stack, playback engine, and
// volume processor into one track's full record/overdub/playback pipeline.
type Track struct {
	mgr     *Manager
	undo    *UndoStack
	volume  *Volume
	playback *Engine

	sampleRate int
	blockSize  int
	isRecording bool
	staged     bool // whether StageCurrentBuffer has run for the pass in flight
}

// Config bundles the parameters Prepare needs.
type Config struct {
	SampleRate   int
	BlockSize    int
	Channels     int
	MaxSeconds   float64
	MaxUndoLayers int
	Shifter      PitchShifter
}

// Prepare allocates all internal buffers sized to maxSeconds*sampleRate
// rounded up to a multiple of blockSize. All subsequent operations are
// allocation-free.
func Prepare(cfg Config) *Track {
	frames := int(cfg.MaxSeconds * float64(cfg.SampleRate))
	if rem := frames % cfg.BlockSize; rem != 0 {
		frames += cfg.BlockSize - rem
	}
	t := &Track{
		mgr:        NewManager(cfg.Channels, frames),
		undo:       NewUndoStack(cfg.MaxUndoLayers, cfg.Channels, frames),
		volume:     NewVolume(),
		playback:   NewEngine(cfg.Shifter, cfg.Channels, frames),
		sampleRate: cfg.SampleRate,
		blockSize:  cfg.BlockSize,
	}
	return t
}

func (t *Track) Manager() *Manager     { return t.mgr }
func (t *Track) UndoStack() *UndoStack { return t.undo }
func (t *Track) Volume() *Volume       { return t.volume }
func (t *Track) Playback() *Engine   { return t.playback }
func (t *Track) Length() int         { return t.mgr.Length() }
func (t *Track) IsRecording() bool   { return t.isRecording }

// ProcessRecord stages the pre-overdub snapshot once per pass, then writes
// mixed samples through Volume into the buffer manager. If the Fifo reports
// a prevented wrap during non-wrap-around overdub, recording stops and the
// caller should finalize the pass (transition out of Recording).
func (t *Track) ProcessRecord(input [][]float32, n int, overdub bool) (preventedWrap bool) {
	if !overdub && !t.isRecording {
		t.mgr.BeginFirstPass()
	}
	t.isRecording = true
	if overdub && !t.staged {
		t.undo.StageCurrentBuffer(t.mgr.Buffer(), t.mgr.Length())
		t.staged = true
	}
	return t.mgr.WriteToAudioBuffer(t.volume.SaveBalancedLayers, input, n, overdub, false)
}

// ProcessPlayback reads n frames of playback into output via the playback
// engine, then applies volume. Muting for "soloed elsewhere" is the engine
// orchestrator's job (it knows all tracks' solo state); Track only applies
// its own Volume.
func (t *Track) ProcessPlayback(output [][]float32, n int, overdub bool) {
	t.playback.Process(t.mgr, identityApply, output, n, overdub)
	for ch := range output {
		t.volume.ApplyVolume(output[ch][:n], n)
		t.volume.NormalizeOutput(output[ch][:n], n)
	}
}

func identityApply(dst, src []float32, n int, overdub bool) {
	copy(dst[:n], src[:n])
}

// nearestMultiple rounds n to the closest whole multiple of m (minimum one
// multiple), favoring the lower multiple on an exact tie.
func nearestMultiple(n, m int) int {
	if m <= 0 {
		return n
	}
	lower := (n / m) * m
	upper := lower + m
	if lower == 0 {
		return upper
	}
	if n-lower <= upper-n {
		return lower
	}
	return upper
}

// FinalizeLayer commits the staged snapshot into the undo ring and promotes
// provisional length to length on the first pass. This is the only site that
// finalizes a pass — called from every egress path out of Recording/
// Overdubbing (stop, track switch, undo request, shutdown) per spec §4.7.
//
// quantizeToMultipleOf, when > 0 and this is the track's first pass, rounds
// the freshly promoted length to the nearest whole multiple of it (the
// sync-master quantization of spec §4.9/§9): a second track's first commit
// locks to the master loop's length instead of whatever the player happened
// to hit.
func (t *Track) FinalizeLayer(overdub bool, quantizeToMultipleOf int) {
	wasFirstPass := t.mgr.Length() == 0
	t.mgr.FinalizeLayer()
	if wasFirstPass && quantizeToMultipleOf > 0 {
		t.mgr.SetExplicitLength(nearestMultiple(t.mgr.Length(), quantizeToMultipleOf))
	}
	if overdub || !wasFirstPass {
		t.undo.FinalizeCopyAndPush()
	} else {
		// First pass: apply the loop-seam crossfade to suppress the click,
		// then stage and push the just-recorded buffer itself as the
		// baseline undo layer (Undo after this commit is a no-op until a
		// later overdub gives it something earlier to fall back to).
		for ch := 0; ch < t.mgr.Buffer().Channels(); ch++ {
			t.volume.ApplyCrossfade(t.mgr.Buffer().Channel(ch)[:t.mgr.Length()], t.mgr.Length())
		}
		t.undo.StageCurrentBuffer(t.mgr.Buffer(), t.mgr.Length())
		t.undo.FinalizeCopyAndPush()
	}
	t.isRecording = false
	t.staged = false
}

// Undo delegates to the undo manager and swaps the current live buffer.
func (t *Track) Undo() bool {
	live := t.mgr.Buffer()
	ok := t.undo.Undo(&live)
	if ok {
		t.mgr.buf = live
	}
	return ok
}

// Redo is the mirror of Undo.
func (t *Track) Redo() bool {
	live := t.mgr.Buffer()
	ok := t.undo.Redo(&live)
	if ok {
		t.mgr.buf = live
	}
	return ok
}

// CancelCurrentRecording discards the current pass: resets provisional
// length on a first pass, and does not push to undo either way.
func (t *Track) CancelCurrentRecording() {
	if t.mgr.Length() == 0 {
		t.mgr.Reset()
	}
	t.isRecording = false
	t.staged = false
}

// Clear resets the track to the empty state. Spec §9: a clear routes any
// subsequent overdub attempt through Recording instead, since there is no
// established length left to overdub onto.
func (t *Track) Clear() {
	t.mgr.Reset()
	t.isRecording = false
	t.staged = false
}
