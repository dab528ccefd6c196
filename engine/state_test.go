package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionAllowsSelfTransitionAlways(t *testing.T) {
	assert.True(t, CanTransition(StatePlaying, StatePlaying))
	assert.True(t, CanTransition(StateIdle, StateIdle))
}

func TestCanTransitionRejectsEdgeNotInTable(t *testing.T) {
	assert.False(t, CanTransition(StateIdle, StateOverdubbing))
	assert.False(t, CanTransition(StateOverdubbing, StateRecording))
}

func TestCanTransitionAllowsKnownEdges(t *testing.T) {
	assert.True(t, CanTransition(StateStopped, StateRecording))
	assert.True(t, CanTransition(StateRecording, StateOverdubbing))
	assert.True(t, CanTransition(StatePendingTrackChange, StateTransitioning))
}

func TestActionForEachStateMatchesAudioActionTable(t *testing.T) {
	assert.Equal(t, AudioAction{}, actionFor(StateIdle))
	assert.Equal(t, AudioAction{}, actionFor(StateStopped))
	assert.Equal(t, AudioAction{RunPlaybackActive: true, RunPlaybackOthers: true}, actionFor(StatePlaying))
	assert.Equal(t, AudioAction{RunRecord: true}, actionFor(StateRecording))
	assert.Equal(t, AudioAction{RunRecord: true, RunPlaybackActive: true, RunPlaybackOthers: true}, actionFor(StateOverdubbing))
}

func TestMachineRequestTransitionAppliesLegalEdgeAndRunsHooks(t *testing.T) {
	m := NewMachine()
	var entered, exited []State
	m.SetEnterHook(StateRecording, func() { entered = append(entered, StateRecording) })
	m.SetExitHook(StateIdle, func() { exited = append(exited, StateIdle) })

	ok := m.RequestTransition(StateRecording)
	require.True(t, ok)
	assert.Equal(t, StateRecording, m.Current())
	assert.Equal(t, []State{StateRecording}, entered)
	assert.Equal(t, []State{StateIdle}, exited)
}

func TestMachineRequestTransitionRejectsIllegalEdgeAndFiresIllegalHook(t *testing.T) {
	m := NewMachine()
	var gotFrom, gotTo State
	fired := false
	m.SetIllegalHook(func(from, to State) {
		fired = true
		gotFrom, gotTo = from, to
	})

	ok := m.RequestTransition(StateOverdubbing)
	assert.False(t, ok)
	assert.Equal(t, StateIdle, m.Current())
	assert.True(t, fired)
	assert.Equal(t, StateIdle, gotFrom)
	assert.Equal(t, StateOverdubbing, gotTo)
}

func TestMachineSelfTransitionRunsNoHooks(t *testing.T) {
	m := NewMachine()
	fired := false
	m.SetEnterHook(StateIdle, func() { fired = true })
	m.SetExitHook(StateIdle, func() { fired = true })

	ok := m.RequestTransition(StateIdle)
	assert.True(t, ok)
	assert.False(t, fired)
}

func TestMachineActionReflectsCurrentState(t *testing.T) {
	m := NewMachine()
	m.RequestTransition(StateRecording)
	assert.Equal(t, AudioAction{RunRecord: true}, m.Action())
}
