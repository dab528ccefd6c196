package midiio

import (
	"testing"

	"github.com/loopcore/looperengine/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMappingBindsTransportNotesAndFaderCCs(t *testing.T) {
	m := DefaultMapping()

	b, ok := m.NoteBinding(36)
	require.True(t, ok)
	assert.Equal(t, bus.CmdToggleRecord, b.Command)

	b, ok = m.CCBinding(7)
	require.True(t, ok)
	assert.Equal(t, bus.CmdSetVolume, b.Command)
	assert.True(t, b.ValueIsFloat01)

	_, ok = m.NoteBinding(99)
	assert.False(t, ok)
}

func TestBeginLearnCapturesNextObservedNote(t *testing.T) {
	m := DefaultMapping()
	ch := m.BeginLearn(Binding{Command: bus.CmdToggleMute, TrackIndex: 2})

	consumed := m.observeNote(60)
	assert.True(t, consumed)

	select {
	case note := <-ch:
		assert.Equal(t, uint8(60), note)
	default:
		t.Fatal("expected learned note on channel")
	}

	b, ok := m.NoteBinding(60)
	require.True(t, ok)
	assert.Equal(t, bus.CmdToggleMute, b.Command)
	assert.Equal(t, 2, b.TrackIndex)
}

func TestBeginLearnCapturesNextObservedCC(t *testing.T) {
	m := DefaultMapping()
	ch := m.BeginLearn(Binding{Command: bus.CmdSetInputGain, ValueIsFloat01: true, FloatMax: 2})

	consumed := m.observeCC(20)
	assert.True(t, consumed)
	<-ch

	b, ok := m.CCBinding(20)
	require.True(t, ok)
	assert.Equal(t, bus.CmdSetInputGain, b.Command)
}

func TestObserveNoteIgnoredWhenNotLearning(t *testing.T) {
	m := DefaultMapping()
	consumed := m.observeNote(60)
	assert.False(t, consumed)
	_, ok := m.NoteBinding(60)
	assert.False(t, ok)
}

func TestCancelLearnStopsCaptureWithoutBinding(t *testing.T) {
	m := DefaultMapping()
	m.BeginLearn(Binding{Command: bus.CmdToggleSolo})
	m.CancelLearn()

	consumed := m.observeNote(70)
	assert.False(t, consumed)
	_, ok := m.NoteBinding(70)
	assert.False(t, ok)
}

func TestScale01MapsRawMidiRangeToMinMax(t *testing.T) {
	assert.InDelta(t, 0, scale01(0, 0, 2), 1e-9)
	assert.InDelta(t, 2, scale01(127, 0, 2), 1e-9)
	assert.InDelta(t, 1, scale01(63, 0, 2), 0.02)
}

func TestLearnOnlyConsumesOneTriggerThenStopsLearning(t *testing.T) {
	m := DefaultMapping()
	m.BeginLearn(Binding{Command: bus.CmdNextTrack})
	m.observeNote(10)

	consumed := m.observeNote(11)
	assert.False(t, consumed)
	_, ok := m.NoteBinding(11)
	assert.False(t, ok)
}
