package engine

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loopcore/looperengine/automation"
	"github.com/loopcore/looperengine/bridge"
	"github.com/loopcore/looperengine/bus"
	"github.com/loopcore/looperengine/freeze"
	"github.com/loopcore/looperengine/meter"
	"github.com/loopcore/looperengine/metronome"
	"github.com/loopcore/looperengine/track"
)

// PlayMode selects whether only the active track plays or all non-muted
// tracks play together (spec §4.9).
type PlayMode int

const (
	PlayModeSingleTrack PlayMode = iota
	PlayModeMultiTrack
)

// MaxTracks is the spec's typical hard cap (§6 Runtime configuration
// constants). Engine does not enforce it as a hard limit — TrackCount in
// Config is the caller's choice — but host binaries should respect it.
const MaxTracks = 4

// Exporter persists a track's current buffer to durable storage. It is
// invoked only off the audio thread (spec §6: Save* commands are
// "synchronous export; not on audio thread"). The export package implements
// this via 16-bit PCM WAV.
type Exporter interface {
	SaveTrack(path string, channels [][]float32, length, sampleRate int) error
}

// ExportRequest is queued by SaveTrackToFile/SaveAllTracksToFolder and
// drained by a control-thread worker, never by the audio callback.
type ExportRequest struct {
	TrackIndex int
	Path       string
	AllTracks  bool
}

// Config bundles the parameters Prepare needs to allocate every track and
// shared component up front; nothing in Process allocates afterward.
type Config struct {
	SampleRate     int
	BlockSize      int
	Channels       int
	TrackCount     int
	MaxSeconds     float64
	MaxUndoLayers  int
	ShifterFactory func() track.PitchShifter
	Logger         *slog.Logger
}

// Engine is the top-level orchestrator: it owns N tracks, the state
// machine, the shared metronome and freeze effect, input/output gain, and
// drives per-block processing per spec §4.8.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	tracks  []*track.Track
	machine *Machine
	metro   *metronome.Metronome
	fx      *freeze.Freeze
	automationEngine *automation.Engine

	bus         *bus.Bus
	waveform    *bridge.Waveform
	stateBridge *bridge.StateBridge

	inputMeters  []*meter.Meter
	outputMeters []*meter.Meter

	activeTrack int
	playMode    PlayMode
	pending     Pending
	syncMaster  int // -1 = none
	trackSync   []bool

	inputGain, outputGain float64

	freezeOn bool

	exportCh chan ExportRequest
	exporter Exporter
	exportWG sync.WaitGroup
	stopExport chan struct{}

	freezeWG   sync.WaitGroup
	stopFreeze chan struct{}

	// preallocated per-block scratch, sized at Prepare.
	trackOutScratch [][]float32
	loopPositions    map[int]int

	// stateSnapshots is a two-slot alternation so publishState never mutates
	// the struct the state bridge currently holds a pointer to.
	stateSnapshots [2]bridge.StateSnapshot
	stateSnapIdx   int

	// Dropped{Events,Commands} are lock-free tallies of spec §7's
	// BackpressureDropped cases. Incrementing an atomic from the audio
	// thread is allowed (no lock, no allocation); translating the count
	// into a Prometheus metric is a control-thread job (see
	// metrics.Recorder.PollEngineCounters).
	droppedEvents   atomic.Uint64
	droppedCommands atomic.Uint64
}

// DroppedEvents and DroppedCommands report the running BackpressureDropped
// tallies for a control-thread metrics poller.
func (e *Engine) DroppedEvents() uint64   { return e.droppedEvents.Load() }
func (e *Engine) DroppedCommands() uint64 { return e.droppedCommands.Load() }

// New allocates every track, the shared metronome/freeze, the message bus,
// and the two UI bridges. All subsequent Process calls are allocation-free.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	e := &Engine{
		cfg:         cfg,
		logger:      cfg.Logger,
		machine:     NewMachine(),
		metro:       metronome.New(cfg.SampleRate),
		fx:          freeze.New(cfg.SampleRate, cfg.Channels, 0.5),
		automationEngine: automation.NewEngine(),
		bus:         bus.NewBus(),
		waveform:    bridge.NewWaveform(cfg.Channels, int(cfg.MaxSeconds*float64(cfg.SampleRate))+cfg.BlockSize),
		stateBridge: bridge.NewStateBridge(cfg.TrackCount),
		syncMaster:  -1,
		inputGain:   1,
		outputGain:  1,
		exportCh:    make(chan ExportRequest, 8),
		stopExport:  make(chan struct{}),
		stopFreeze:  make(chan struct{}),
	}

	for i := 0; i < cfg.TrackCount; i++ {
		var shifter track.PitchShifter
		if cfg.ShifterFactory != nil {
			shifter = cfg.ShifterFactory()
		} else {
			shifter = track.NewNullShifter()
		}
		t := track.Prepare(track.Config{
			SampleRate:    cfg.SampleRate,
			BlockSize:     cfg.BlockSize,
			Channels:      cfg.Channels,
			MaxSeconds:    cfg.MaxSeconds,
			MaxUndoLayers: cfg.MaxUndoLayers,
			Shifter:       shifter,
		})
		e.tracks = append(e.tracks, t)
	}
	e.trackSync = make([]bool, cfg.TrackCount)

	e.inputMeters = make([]*meter.Meter, cfg.Channels)
	e.outputMeters = make([]*meter.Meter, cfg.Channels)
	for ch := 0; ch < cfg.Channels; ch++ {
		e.inputMeters[ch] = meter.New(cfg.SampleRate, 0.3, 0.1)
		e.outputMeters[ch] = meter.New(cfg.SampleRate, 0.3, 0.1)
	}

	e.trackOutScratch = make([][]float32, cfg.Channels)
	for ch := range e.trackOutScratch {
		e.trackOutScratch[ch] = make([]float32, cfg.BlockSize)
	}
	for i := range e.stateSnapshots {
		e.stateSnapshots[i].TrackLengths = make([]int32, cfg.TrackCount)
	}
	e.loopPositions = make(map[int]int, cfg.TrackCount)
	for i := 0; i < cfg.TrackCount; i++ {
		e.loopPositions[i] = 0
	}

	e.machine.SetEnterHook(StateOverdubbing, func() {
		t := e.tracks[e.activeTrack]
		t.UndoStack().StageCurrentBuffer(t.Manager().Buffer(), t.Manager().Length())
	})
	finalize := func() {
		t := e.tracks[e.activeTrack]
		if !t.IsRecording() {
			return
		}
		if t.Manager().Length() == 0 && t.Manager().ProvisionalLength() == 0 {
			// Stopped before a single frame committed: nothing to finalize
			// into a loop, so cancel instead of promoting a zero-length pass.
			t.CancelCurrentRecording()
		} else {
			overdub := t.Manager().Length() > 0
			t.FinalizeLayer(overdub, e.quantizeFor(e.activeTrack))
		}
		e.emit(bus.Event{Type: bus.EvtRecordingStateChanged, TrackIndex: e.activeTrack, Data: bus.EventData{Bool: false}})
	}
	e.machine.SetExitHook(StateRecording, finalize)
	e.machine.SetExitHook(StateOverdubbing, finalize)
	e.machine.SetIllegalHook(func(from, to State) {
		// Tracing an illegal transition happens via the lock-free event
		// ring, never a synchronous log call — RequestTransition can be
		// invoked from the audio thread's command dispatch (spec §7).
		e.emit(bus.Event{Type: bus.EvtIllegalTransition, TrackIndex: e.activeTrack})
	})

	e.metro.SetBeatCallback(func(beat int) {
		e.emit(bus.Event{Type: bus.EvtMetronomeBeatOccurred, Data: bus.EventData{Int: beat}})
	})

	go e.waveform.RunCopier()
	e.freezeWG.Add(1)
	go e.runFreezeSnapshotThread()

	return e
}

// runFreezeSnapshotThread is the low-priority thread of spec §5 that performs
// the bulk copy Freeze.Engage defers: it polls for a pending snapshot rather
// than blocking on a signal channel, since Engage can be requested from the
// audio thread's command dispatch and must never itself block on a send.
func (e *Engine) runFreezeSnapshotThread() {
	defer e.freezeWG.Done()
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopFreeze:
			return
		case <-ticker.C:
			if e.fx.PendingSnapshot() {
				e.fx.TakeSnapshot()
			}
		}
	}
}

// Bus exposes the command/event rings for the host binary's control threads.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Waveform and StateBridge expose the two UI publish mechanisms.
func (e *Engine) Waveform() *bridge.Waveform       { return e.waveform }
func (e *Engine) StateBridge() *bridge.StateBridge { return e.stateBridge }

// Track returns the track at index i, or nil if out of range.
func (e *Engine) Track(i int) *track.Track {
	if i < 0 || i >= len(e.tracks) {
		return nil
	}
	return e.tracks[i]
}

func (e *Engine) TrackCount() int { return len(e.tracks) }
func (e *Engine) ActiveTrack() int { return e.activeTrack }
func (e *Engine) State() State     { return e.machine.Current() }
func (e *Engine) Metronome() *metronome.Metronome { return e.metro }
func (e *Engine) Freeze() *freeze.Freeze          { return e.fx }
func (e *Engine) Automation() *automation.Engine  { return e.automationEngine }

// SetExporter installs the Save*-command sink and starts the background
// worker that drains ExportRequests off the audio thread.
func (e *Engine) SetExporter(exp Exporter) {
	e.exporter = exp
	e.exportWG.Add(1)
	go e.runExportWorker()
}

func (e *Engine) runExportWorker() {
	defer e.exportWG.Done()
	for {
		select {
		case req := <-e.exportCh:
			e.handleExport(req)
		case <-e.stopExport:
			return
		}
	}
}

func (e *Engine) handleExport(req ExportRequest) {
	if e.exporter == nil {
		return
	}
	save := func(idx int, path string) {
		t := e.Track(idx)
		if t == nil {
			return
		}
		buf := t.Manager().Buffer()
		chans := make([][]float32, buf.Channels())
		for ch := range chans {
			chans[ch] = buf.Channel(ch)
		}
		if err := e.exporter.SaveTrack(path, chans, t.Manager().Length(), e.cfg.SampleRate); err != nil {
			e.logger.Error("track export failed", "track", idx, "path", path, "err", err)
		}
	}
	if req.AllTracks {
		for i := range e.tracks {
			save(i, filepath.Join(req.Path, fmt.Sprintf("track%d.wav", i+1)))
		}
		return
	}
	save(req.TrackIndex, req.Path)
}

// Shutdown stops the waveform copier and export worker, the copy/freeze
// threads of spec §5 that must join cleanly.
func (e *Engine) Shutdown() {
	e.waveform.Shutdown()
	close(e.stopExport)
	e.exportWG.Wait()
	close(e.stopFreeze)
	e.freezeWG.Wait()
}

func (e *Engine) emit(evt bus.Event) {
	if !e.bus.PushEvent(evt) {
		e.droppedEvents.Add(1)
	}
}

// Process runs exactly one block: the eleven-step sequence of spec §4.8.
// input and output are per-channel slices of length n. Nothing here
// allocates. Two steps take a mutex: the waveform handoff
// (Waveform.MarkDirty) and automation's re-enqueue through Bus.PushCommand.
func (e *Engine) Process(input, output [][]float32, n int) {
	// 1. input gain + input meter
	e.applyGain(input, n, e.inputGain)
	for ch := 0; ch < len(input) && ch < len(e.inputMeters); ch++ {
		e.inputMeters[ch].Process(input[ch][:n], n)
	}
	e.fx.CaptureInput(input, n)

	// 2/3. drain and dispatch pending commands (includes MIDI-originated
	// commands, which arrive pre-translated — see midiio.Handler).
	e.drainCommands()

	// 4. evaluate pending action
	e.resolvePending()

	// 5. run the state machine's per-block action
	action := e.machine.Action()
	if action.RunRecord {
		e.runRecord(input, n)
	}
	for ch := range e.trackOutScratch {
		for i := 0; i < n; i++ {
			e.trackOutScratch[ch][i] = 0
		}
	}
	if action.RunPlaybackActive || action.RunPlaybackOthers {
		e.runPlayback(n, action)
	}

	// 6. sum into output
	for ch := 0; ch < len(output); ch++ {
		copy(output[ch][:n], e.trackOutScratch[ch][:n])
	}

	// 7. metronome
	e.metro.Process(output, n)

	// 8. freeze
	if e.freezeOn {
		e.fx.Process(output, n)
	}

	// 9. output gain + output meter
	e.applyGain(output, n, e.outputGain)
	for ch := 0; ch < len(output) && ch < len(e.outputMeters); ch++ {
		e.outputMeters[ch].Process(output[ch][:n], n)
	}

	// 10. waveform bridge
	active := e.tracks[e.activeTrack]
	e.waveform.MarkDirty(active.Manager().Buffer().AllChannels(), active.Manager().Length())

	// 11. state bridge
	e.publishState(n)

	// automation curves evaluate last so a parameter change they emit takes
	// effect starting next block, never mid-block.
	for i, t := range e.tracks {
		e.loopPositions[i] = int(t.Manager().Fifo().ReadPos())
	}
	e.automationEngine.Evaluate(e.loopPositions, n, e.enqueueCommand)
}

// enqueueCommand is automation's sink: it re-enters the same command ring
// UI-originated commands use, so automation and user input share one
// dispatch path with no special-casing in handleCommand.
func (e *Engine) enqueueCommand(c bus.Command) {
	if !e.bus.PushCommand(c) {
		e.droppedCommands.Add(1)
	}
}

func (e *Engine) applyGain(buf [][]float32, n int, gain float64) {
	g := float32(gain)
	if math.Abs(gain-1) < 1e-9 {
		return
	}
	for ch := range buf {
		for i := 0; i < n; i++ {
			buf[ch][i] *= g
		}
	}
}

func (e *Engine) runRecord(input [][]float32, n int) {
	t := e.tracks[e.activeTrack]
	overdub := t.Manager().Length() > 0
	prevented := t.ProcessRecord(input, n, overdub)
	if prevented {
		t.FinalizeLayer(overdub, e.quantizeFor(e.activeTrack))
		e.machine.RequestTransition(StateStopped)
		e.emit(bus.Event{Type: bus.EvtRecordingStateChanged, TrackIndex: e.activeTrack, Data: bus.EventData{Bool: false}})
	}
}

// quantizeFor returns the sync-master's established length when idx is a
// sync-enabled non-master track recording its first pass, else 0 (no
// quantization).
func (e *Engine) quantizeFor(idx int) int {
	if e.syncMaster < 0 || e.syncMaster == idx || idx >= len(e.trackSync) || !e.trackSync[idx] {
		return 0
	}
	master := e.Track(e.syncMaster)
	if master == nil {
		return 0
	}
	return master.Manager().Length()
}

func (e *Engine) runPlayback(n int, action AudioAction) {
	anySolo := false
	for _, t := range e.tracks {
		if t.Volume().Soloed() {
			anySolo = true
			break
		}
	}

	for i, t := range e.tracks {
		isActive := i == e.activeTrack
		if e.playMode == PlayModeSingleTrack && !isActive {
			continue
		}
		if !isActive && !action.RunPlaybackOthers {
			continue
		}
		if isActive && !action.RunPlaybackActive {
			continue
		}
		audible := !t.Volume().Muted()
		if anySolo {
			audible = t.Volume().Soloed()
		}
		if !audible {
			continue
		}
		if t.Manager().Length() == 0 {
			continue
		}
		t.ProcessPlayback(e.trackOutScratch, n, i == e.activeTrack && action.RunRecord)
		wrapped := t.Manager().HasWrappedAround()
		if wrapped && i == e.wrapSourceIndex() {
			e.onWrapSourceWrapped()
		}
	}
}

// wrapSourceIndex is the track whose loop seam gates deferred (pending)
// transitions: the sync master if one is set, else the active track.
func (e *Engine) wrapSourceIndex() int {
	if e.syncMaster >= 0 {
		return e.syncMaster
	}
	return e.activeTrack
}

func (e *Engine) onWrapSourceWrapped() {
	if e.pending.Kind != PendingNone && e.pending.WaitForWrap {
		e.applyPendingNow()
	}
	e.metro.SyncToPosition(0)
}

func (e *Engine) publishState(n int) {
	snap := &e.stateSnapshots[e.stateSnapIdx]
	e.stateSnapIdx = 1 - e.stateSnapIdx

	snap.State = int32(e.machine.Current())
	snap.ActiveTrack = int32(e.activeTrack)
	snap.FreezeOn = e.freezeOn
	snap.MetronomeBeat = int32(e.metro.Beat())
	snap.HasPending = e.pending.Kind != PendingNone
	snap.PendingTrack = int32(e.pending.TargetTrackIndex)
	for i, t := range e.tracks {
		if i < len(snap.TrackLengths) {
			snap.TrackLengths[i] = int32(t.Manager().Length())
		}
	}
	e.stateBridge.Publish(snap)
}
