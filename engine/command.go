package engine

import "github.com/loopcore/looperengine/bus"

// maxCommandsPerBlock bounds how much dispatch work a single audio callback
// absorbs, so a burst of queued UI commands can never make one block's
// processing time unbounded.
const maxCommandsPerBlock = 32

// drainCommands pops and dispatches queued commands (spec §4.8 steps 2-3).
// MIDI-originated commands arrive on the same ring as UI ones, pre-translated
// by midiio.Handler, so there is nothing MIDI-specific here.
func (e *Engine) drainCommands() {
	for i := 0; i < maxCommandsPerBlock; i++ {
		cmd, ok := e.bus.PopCommand()
		if !ok {
			return
		}
		e.handleCommand(cmd)
	}
}

// resolvePending performs a pending action immediately if it does not wait
// for a loop wrap; wrap-gated pending actions are instead resolved from
// onWrapSourceWrapped once the wrap-source track's Fifo reports a wrap.
func (e *Engine) resolvePending() {
	if e.pending.Kind != PendingNone && !e.pending.WaitForWrap {
		e.applyPendingNow()
	}
}

// applyPendingNow executes the deferred action and clears it. Both the
// immediate (resolvePending) and wrap-gated (onWrapSourceWrapped) paths
// funnel through here so the action only ever runs once.
func (e *Engine) applyPendingNow() {
	p := e.pending
	e.pending = Pending{Kind: PendingNone}
	switch p.Kind {
	case PendingSwitchTrack:
		e.completeSwitchTrackDeferred(p.TargetTrackIndex)
	case PendingCancelRecording:
		e.tracks[e.activeTrack].CancelCurrentRecording()
		e.machine.RequestTransition(StateStopped)
		e.emit(bus.Event{Type: bus.EvtRecordingStateChanged, TrackIndex: e.activeTrack, Data: bus.EventData{Bool: false}})
	case PendingFinalizeRecording:
		e.machine.RequestTransition(StateStopped)
	}
}

// resolveTrackIndex picks the command's explicit track, falling back to the
// active track for commands that omit one (e.g. transport commands).
func (e *Engine) resolveTrackIndex(cmd bus.Command) int {
	if cmd.TrackIndex >= 0 && cmd.TrackIndex < len(e.tracks) {
		return cmd.TrackIndex
	}
	return e.activeTrack
}

// handleCommand is the full spec §6 command table.
func (e *Engine) handleCommand(cmd bus.Command) {
	idx := e.resolveTrackIndex(cmd)
	switch cmd.Type {
	case bus.CmdTogglePlay:
		e.cmdTogglePlay()
	case bus.CmdToggleRecord:
		e.cmdToggleRecord()
	case bus.CmdStop:
		e.machine.RequestTransition(StateStopped)
	case bus.CmdUndo:
		e.tracks[idx].Undo()
	case bus.CmdRedo:
		e.tracks[idx].Redo()
	case bus.CmdClear:
		e.tracks[idx].Clear()
	case bus.CmdNextTrack:
		e.cmdSelectTrack((e.activeTrack + 1) % len(e.tracks))
	case bus.CmdPreviousTrack:
		e.cmdSelectTrack((e.activeTrack - 1 + len(e.tracks)) % len(e.tracks))
	case bus.CmdSelectTrack:
		e.cmdSelectTrack(cmd.TrackIndex)
	case bus.CmdSetVolume:
		e.tracks[idx].Volume().SetGain(cmd.Payload.Float)
		e.emit(bus.Event{Type: bus.EvtTrackVolumeChanged, TrackIndex: idx, Data: bus.EventData{Float: cmd.Payload.Float}})
	case bus.CmdSetPlaybackSpeed:
		e.tracks[idx].Playback().SetSpeed(cmd.Payload.Float)
		e.emit(bus.Event{Type: bus.EvtTrackSpeedChanged, TrackIndex: idx, Data: bus.EventData{Float: cmd.Payload.Float}})
	case bus.CmdSetPlaybackPitch:
		e.tracks[idx].Playback().SetPitchSemitones(cmd.Payload.Float)
		e.emit(bus.Event{Type: bus.EvtTrackPitchChanged, TrackIndex: idx, Data: bus.EventData{Float: cmd.Payload.Float}})
	case bus.CmdSetExistingAudioGain:
		_, newG := e.tracks[idx].Volume().OverdubGains()
		e.tracks[idx].Volume().SetOverdubGains(cmd.Payload.Float, newG)
	case bus.CmdSetNewOverdubGain:
		oldG, _ := e.tracks[idx].Volume().OverdubGains()
		e.tracks[idx].Volume().SetOverdubGains(oldG, cmd.Payload.Float)
	case bus.CmdToggleMute:
		v := e.tracks[idx].Volume()
		v.SetMuted(!v.Muted())
		e.emit(bus.Event{Type: bus.EvtTrackMuteChanged, TrackIndex: idx, Data: bus.EventData{Bool: v.Muted()}})
	case bus.CmdToggleSolo:
		v := e.tracks[idx].Volume()
		v.SetSoloed(!v.Soloed())
		e.emit(bus.Event{Type: bus.EvtTrackSoloChanged, TrackIndex: idx, Data: bus.EventData{Bool: v.Soloed()}})
	case bus.CmdToggleSyncTrack:
		e.cmdToggleSyncTrack(idx)
	case bus.CmdTogglePitchLock:
		p := e.tracks[idx].Playback()
		p.SetPitchLock(!p.PitchLock())
	case bus.CmdToggleReverse:
		p := e.tracks[idx].Playback()
		p.SetReverse(!p.Reverse())
		e.emit(bus.Event{Type: bus.EvtTrackReverseDirection, TrackIndex: idx, Data: bus.EventData{Bool: p.Reverse()}})
	case bus.CmdToggleSinglePlayMode:
		if e.playMode == PlayModeSingleTrack {
			e.playMode = PlayModeMultiTrack
		} else {
			e.playMode = PlayModeSingleTrack
		}
		e.emit(bus.Event{Type: bus.EvtSinglePlayModeChanged, Data: bus.EventData{Bool: e.playMode == PlayModeSingleTrack}})
	case bus.CmdToggleFreeze:
		e.freezeOn = !e.freezeOn
		if e.freezeOn {
			e.fx.Engage()
		} else {
			e.fx.Disengage()
		}
		e.emit(bus.Event{Type: bus.EvtFreezeStateChanged, Data: bus.EventData{Bool: e.freezeOn}})
	case bus.CmdToggleVolumeNormalize:
		v := e.tracks[idx].Volume()
		v.SetNormalize(!v.Normalize())
	case bus.CmdLoadAudioFile:
		e.cmdLoadAudioFile(idx, cmd.Payload)
	case bus.CmdSetMetronomeEnabled:
		e.metro.SetEnabled(cmd.Payload.Bool)
		e.emit(bus.Event{Type: bus.EvtMetronomeEnabledChanged, Data: bus.EventData{Bool: cmd.Payload.Bool}})
	case bus.CmdSetMetronomeBPM:
		e.metro.SetBPM(cmd.Payload.Float)
		e.emit(bus.Event{Type: bus.EvtMetronomeBPMChanged, Data: bus.EventData{Float: e.metro.BPM()}})
	case bus.CmdSetMetronomeVolume:
		e.metro.SetVolume(cmd.Payload.Float)
	case bus.CmdSetMetronomeStrongBeat:
		e.metro.SetStrongBeat(cmd.Payload.Int)
	case bus.CmdSetMetronomeTimeSignature:
		e.metro.SetTimeSignature(cmd.Payload.IntA, cmd.Payload.IntB)
	case bus.CmdSetSubLoopRegion:
		e.tracks[idx].Manager().Fifo().SetSubLoopRegion(cmd.Payload.IntA, cmd.Payload.IntB)
	case bus.CmdClearSubLoopRegion:
		e.tracks[idx].Manager().Fifo().ClearSubLoopRegion()
	case bus.CmdSetInputGain:
		e.inputGain = cmd.Payload.Float
	case bus.CmdSetOutputGain:
		e.outputGain = cmd.Payload.Float
	case bus.CmdSaveTrackToFile:
		e.enqueueExport(ExportRequest{TrackIndex: idx, Path: cmd.Payload.FilePath})
	case bus.CmdSaveAllTracksToFolder:
		e.enqueueExport(ExportRequest{AllTracks: true, Path: cmd.Payload.FilePath})
	}
}

// enqueueExport hands a Save* command to the background export worker;
// never performed inline since export is disk I/O and must not run on the
// audio thread (spec §6).
func (e *Engine) enqueueExport(req ExportRequest) {
	select {
	case e.exportCh <- req:
	default:
		// Called from handleCommand, which runs inside Process on the audio
		// thread: record the drop lock-free in droppedCommands, which
		// metrics.Recorder.PollEngineCounters reads on the control thread;
		// never a synchronous log here.
		e.droppedCommands.Add(1)
	}
}

func (e *Engine) cmdTogglePlay() {
	switch e.machine.Current() {
	case StatePlaying, StateOverdubbing:
		e.machine.RequestTransition(StateStopped)
		e.emit(bus.Event{Type: bus.EvtPlaybackStateChanged, TrackIndex: e.activeTrack, Data: bus.EventData{Bool: false}})
	default:
		if e.tracks[e.activeTrack].Length() > 0 {
			e.machine.RequestTransition(StatePlaying)
			e.emit(bus.Event{Type: bus.EvtPlaybackStateChanged, TrackIndex: e.activeTrack, Data: bus.EventData{Bool: true}})
		}
	}
}

func (e *Engine) cmdToggleRecord() {
	switch e.machine.Current() {
	case StateRecording:
		e.machine.RequestTransition(StateStopped)
	case StatePlaying:
		e.machine.RequestTransition(StateOverdubbing)
		e.emit(bus.Event{Type: bus.EvtRecordingStateChanged, TrackIndex: e.activeTrack, Data: bus.EventData{Bool: true}})
	case StateOverdubbing:
		e.machine.RequestTransition(StatePlaying)
	case StateIdle, StateStopped:
		e.machine.RequestTransition(StateRecording)
		e.emit(bus.Event{Type: bus.EvtRecordingStateChanged, TrackIndex: e.activeTrack, Data: bus.EventData{Bool: true}})
	}
}

// cmdSelectTrack switches the active track immediately from Idle/Stopped, and
// from Recording/Overdubbing after stopping (and finalizing) the pass in
// progress; in the other states it defers to the wrap-source's next loop
// wrap (spec §4.9: switching
// mid-phrase never clicks — the outgoing track finishes its bar).
func (e *Engine) cmdSelectTrack(target int) {
	if target < 0 || target >= len(e.tracks) || target == e.activeTrack {
		return
	}
	switch e.machine.Current() {
	case StateIdle, StateStopped:
		e.completeSwitchTrackImmediate(target)
	case StateRecording, StateOverdubbing:
		// A pass in progress on the outgoing track finishes (and finalizes,
		// via the exit hook) immediately rather than waiting for a wrap that
		// a still-accumulating first pass may never produce.
		e.machine.RequestTransition(StateStopped)
		e.completeSwitchTrackImmediate(target)
	default:
		e.pending = Pending{
			Kind:             PendingSwitchTrack,
			TargetTrackIndex: target,
			WaitForWrap:      true,
			PreviousState:    e.machine.Current(),
		}
		e.machine.RequestTransition(StatePendingTrackChange)
		e.emit(bus.Event{Type: bus.EvtPendingTrackChanged, TrackIndex: target})
	}
}

// completeSwitchTrackImmediate updates selection with no crossfade state:
// used when there was no in-progress playback to interrupt (Idle/Stopped),
// or when a just-finalized recording pass already forced a Stop.
func (e *Engine) completeSwitchTrackImmediate(target int) {
	e.activeTrack = target
	e.emit(bus.Event{Type: bus.EvtActiveTrackChanged, TrackIndex: target})
	if e.tracks[target].Length() > 0 {
		e.machine.RequestTransition(StatePlaying)
	} else {
		e.machine.RequestTransition(StateStopped)
	}
}

// completeSwitchTrackDeferred is reached only from StatePendingTrackChange at
// the wrap-source's loop seam: it passes through Transitioning so a listener
// reading state mid-swap sees neither the old nor the new track as settled.
func (e *Engine) completeSwitchTrackDeferred(target int) {
	e.machine.RequestTransition(StateTransitioning)
	e.activeTrack = target
	e.emit(bus.Event{Type: bus.EvtActiveTrackChanged, TrackIndex: target})
	if e.tracks[target].Length() > 0 {
		e.machine.RequestTransition(StatePlaying)
	} else {
		e.machine.RequestTransition(StateStopped)
	}
}

// cmdToggleSyncTrack flips idx's sync-follower flag. The first track ever
// enabled becomes the sync master (spec §4.9/§9); disabling the master
// clears sync for every track rather than silently promoting another.
func (e *Engine) cmdToggleSyncTrack(idx int) {
	if idx < 0 || idx >= len(e.trackSync) {
		return
	}
	if e.trackSync[idx] {
		e.trackSync[idx] = false
		if e.syncMaster == idx {
			e.syncMaster = -1
			for i := range e.trackSync {
				e.trackSync[i] = false
			}
		}
		return
	}
	e.trackSync[idx] = true
	if e.syncMaster < 0 {
		e.syncMaster = idx
	}
}

// cmdLoadAudioFile writes pre-decoded frames directly into a track's buffer,
// bypassing the record path entirely (spec §1: file-format decoding happens
// upstream; the core only ever consumes already-decoded sample frames).
func (e *Engine) cmdLoadAudioFile(idx int, payload bus.Payload) {
	frames := payload.SampleBlock
	if len(frames) == 0 || len(frames[0]) == 0 {
		e.emit(bus.Event{Type: bus.EvtFileLoadFailed, TrackIndex: idx, Data: bus.EventData{String: "empty or missing sample data"}})
		return
	}
	t := e.tracks[idx]
	buf := t.Manager().Buffer()
	length := len(frames[0])
	if length > buf.Capacity() {
		length = buf.Capacity()
	}
	for ch := 0; ch < buf.Channels(); ch++ {
		if ch >= len(frames) {
			break
		}
		copy(buf.Channel(ch)[:length], frames[ch][:length])
	}
	t.Manager().SetExplicitLength(length)
}
