package ui

import (
	"testing"

	"github.com/loopcore/looperengine/bridge"
	"github.com/loopcore/looperengine/engine"
	"github.com/stretchr/testify/assert"
)

func TestRenderStatusMarksActiveTrackAndNonEmptyTracks(t *testing.T) {
	snap := bridge.StateSnapshot{
		ActiveTrack:   1,
		TrackLengths:  []int32{0, 100, 0},
		MetronomeBeat: 2,
	}
	out := RenderStatus(snap, engine.StatePlaying, 3)

	assert.Contains(t, out, "T1")
	assert.Contains(t, out, "T2*")
	assert.Contains(t, out, "beat 2")
}

func TestRenderStatusShowsFreezeAndPendingAnnotations(t *testing.T) {
	snap := bridge.StateSnapshot{
		FreezeOn:     true,
		HasPending:   true,
		PendingTrack: 2,
		TrackLengths: []int32{0},
	}
	out := RenderStatus(snap, engine.StateIdle, 1)

	assert.Contains(t, out, "FREEZE")
	assert.Contains(t, out, "T3 at wrap")
}

func TestRenderStatusOmitsFreezeAndPendingWhenInactive(t *testing.T) {
	snap := bridge.StateSnapshot{TrackLengths: []int32{0}}
	out := RenderStatus(snap, engine.StateStopped, 1)

	assert.NotContains(t, out, "FREEZE")
	assert.NotContains(t, out, "at wrap")
}

func TestRenderHelpListsKeyBindings(t *testing.T) {
	out := RenderHelp()
	assert.Contains(t, out, "record")
	assert.Contains(t, out, "undo")
	assert.Contains(t, out, "freeze")
}
