package engine

import (
	"testing"

	"github.com/loopcore/looperengine/automation"
	"github.com/loopcore/looperengine/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	e := New(Config{
		SampleRate:    8000,
		BlockSize:     4,
		Channels:      1,
		TrackCount:    2,
		MaxSeconds:    0.01,
		MaxUndoLayers: 3,
	})
	t.Cleanup(e.Shutdown)
	return e
}

func block(n int) ([][]float32, [][]float32) {
	in := [][]float32{make([]float32, n)}
	for i := range in[0] {
		in[0][i] = 1
	}
	out := [][]float32{make([]float32, n)}
	return in, out
}

func TestNewEngineStartsIdleWithNoTracksRecorded(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, 0, e.ActiveTrack())
	assert.Equal(t, 2, e.TrackCount())
}

func TestToggleRecordCommandEntersRecordingFromIdle(t *testing.T) {
	e := newTestEngine(t)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdToggleRecord})
	in, out := block(4)
	e.Process(in, out, 4)
	assert.Equal(t, StateRecording, e.State())
}

func TestStopWhileRecordingFinalizesFirstPassAndEstablishesLength(t *testing.T) {
	e := newTestEngine(t)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdToggleRecord})
	in, out := block(4)
	e.Process(in, out, 4)
	require.Equal(t, StateRecording, e.State())

	e.Bus().PushCommand(bus.Command{Type: bus.CmdStop})
	e.Process(in, out, 4)

	assert.Equal(t, StateStopped, e.State())
	assert.Equal(t, 4, e.Track(0).Length())
}

func TestTogglePlayAfterRecordingEntersPlayingAndProducesOutput(t *testing.T) {
	e := newTestEngine(t)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdToggleRecord})
	in, out := block(4)
	e.Process(in, out, 4)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdStop})
	e.Process(in, out, 4)

	e.Bus().PushCommand(bus.Command{Type: bus.CmdTogglePlay})
	silentIn, out := block(4)
	for i := range silentIn[0] {
		silentIn[0][i] = 0
	}
	e.Process(silentIn, out, 4)

	assert.Equal(t, StatePlaying, e.State())
	nonZero := false
	for _, s := range out[0] {
		if s != 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero)
}

func TestOverdubAddsOntoExistingLayerWithoutChangingLength(t *testing.T) {
	e := newTestEngine(t)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdToggleRecord})
	in, out := block(4)
	e.Process(in, out, 4)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdStop})
	e.Process(in, out, 4)
	require.Equal(t, 4, e.Track(0).Length())

	e.Bus().PushCommand(bus.Command{Type: bus.CmdTogglePlay})
	e.Process(in, out, 4)
	require.Equal(t, StatePlaying, e.State())

	e.Bus().PushCommand(bus.Command{Type: bus.CmdToggleRecord})
	e.Process(in, out, 4)
	assert.Equal(t, StateOverdubbing, e.State())
	e.Process(in, out, 4)

	e.Bus().PushCommand(bus.Command{Type: bus.CmdStop})
	e.Process(in, out, 4)
	assert.Equal(t, 4, e.Track(0).Length())
	assert.Equal(t, 2, e.Track(0).UndoStack().ActiveUndoLayers())
}

func TestUndoCommandAfterFirstPassKeepsLoopLength(t *testing.T) {
	e := newTestEngine(t)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdToggleRecord})
	in, out := block(4)
	e.Process(in, out, 4)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdStop})
	e.Process(in, out, 4)

	e.Bus().PushCommand(bus.Command{Type: bus.CmdUndo})
	e.Process(in, out, 4)

	// The first pass's baseline layer is a copy of the loop itself, so
	// undoing it leaves the loop (and its length) in place.
	assert.Equal(t, 4, e.Track(0).Length())
}

func TestNextTrackCommandSwitchesActiveTrackImmediatelyWhenStopped(t *testing.T) {
	e := newTestEngine(t)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdNextTrack})
	in, out := block(4)
	e.Process(in, out, 4)
	assert.Equal(t, 1, e.ActiveTrack())
}

func TestSelectTrackDuringPlaybackDefersToPendingTrackChange(t *testing.T) {
	e := newTestEngine(t)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdToggleRecord})
	in, out := block(4)
	e.Process(in, out, 4)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdStop})
	e.Process(in, out, 4)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdTogglePlay})
	e.Process(in, out, 4)
	require.Equal(t, StatePlaying, e.State())

	e.Bus().PushCommand(bus.Command{Type: bus.CmdSelectTrack, TrackIndex: 1})
	e.Process(in, out, 4)
	assert.Equal(t, StatePendingTrackChange, e.State())
	assert.Equal(t, 0, e.ActiveTrack())
}

func TestSetVolumeCommandUpdatesTrackGain(t *testing.T) {
	e := newTestEngine(t)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdSetVolume, TrackIndex: 0, Payload: bus.Payload{Kind: bus.PayloadFloat, Float: 0.5}})
	in, out := block(4)
	e.Process(in, out, 4)
	assert.InDelta(t, 0.5, e.Track(0).Volume().Gain(), 1e-9)
}

func TestToggleFreezeCommandEngagesFreezeEffect(t *testing.T) {
	e := newTestEngine(t)
	e.Bus().PushCommand(bus.Command{Type: bus.CmdToggleFreeze})
	in, out := block(4)
	e.Process(in, out, 4)
	assert.True(t, e.Freeze().Engaged())
}

func TestDroppedCommandsTallyIncrementsWhenRingIsFull(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < bus.DefaultRingCapacity+5; i++ {
		e.Bus().PushCommand(bus.Command{Type: bus.CmdUndo})
	}
	// The tally counts the engine's own enqueues. Process drains
	// maxCommandsPerBlock commands, leaving that many free slots; one more
	// automation curve than that emits into the ring, so one emit is dropped.
	for i := 0; i <= maxCommandsPerBlock; i++ {
		e.Automation().AddCurve(&automation.Curve{
			Points: []automation.Breakpoint{{X: 0, Value: float64(i)}},
			Target: bus.CmdSetVolume,
		})
	}
	in, out := block(4)
	e.Process(in, out, 4)
	assert.Greater(t, e.DroppedCommands(), uint64(0))
}

func TestLoadAudioFileCommandWritesFramesDirectlyIntoTrackBuffer(t *testing.T) {
	e := newTestEngine(t)
	frames := [][]float32{{0.1, 0.2, 0.3}}
	e.Bus().PushCommand(bus.Command{
		Type:       bus.CmdLoadAudioFile,
		TrackIndex: 0,
		Payload:    bus.Payload{Kind: bus.PayloadSampleBlock, SampleBlock: frames},
	})
	in, out := block(4)
	e.Process(in, out, 4)
	assert.Equal(t, 3, e.Track(0).Length())
}
