package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTrack() *Track {
	return Prepare(Config{
		SampleRate:    48000,
		BlockSize:     8,
		Channels:      1,
		MaxSeconds:    0.01,
		MaxUndoLayers: 3,
		Shifter:       NewNullShifter(),
	})
}

func TestTrackFirstPassRecordThenFinalizeEstablishesLength(t *testing.T) {
	tr := newTestTrack()
	tr.mgr.BeginFirstPass()
	input := [][]float32{{1, 1, 1, 1}}
	tr.ProcessRecord(input, 4, false)
	tr.FinalizeLayer(false, 0)

	assert.Equal(t, 4, tr.Length())
	assert.False(t, tr.IsRecording())
	assert.Equal(t, 1, tr.UndoStack().ActiveUndoLayers())
}

func TestTrackOverdubStagesBeforeFirstWrite(t *testing.T) {
	tr := newTestTrack()
	tr.mgr.BeginFirstPass()
	tr.ProcessRecord([][]float32{{1, 1, 1, 1}}, 4, false)
	tr.FinalizeLayer(false, 0)

	tr.ProcessRecord([][]float32{{2, 2, 2, 2}}, 4, true)
	assert.True(t, tr.staged)
	tr.FinalizeLayer(true, 0)
	assert.Equal(t, 2, tr.UndoStack().ActiveUndoLayers())
}

func TestTrackUndoRestoresPriorBuffer(t *testing.T) {
	tr := newTestTrack()
	tr.mgr.BeginFirstPass()
	tr.ProcessRecord([][]float32{{1, 1, 1, 1}}, 4, false)
	tr.FinalizeLayer(false, 0)
	firstSample := tr.mgr.Buffer().Channel(0)[1]

	tr.ProcessRecord([][]float32{{2, 2, 2, 2}}, 4, true)
	tr.FinalizeLayer(true, 0)

	ok := tr.Undo()
	require.True(t, ok)
	assert.InDelta(t, firstSample, tr.mgr.Buffer().Channel(0)[1], 1e-6)
}

func TestTrackQuantizesFirstPassLengthToSyncMaster(t *testing.T) {
	tr := newTestTrack()
	tr.mgr.BeginFirstPass()
	tr.ProcessRecord([][]float32{{1, 1, 1, 1, 1, 1, 1}}, 7, false)
	tr.FinalizeLayer(false, 4) // nearest multiple of 4 to provisional length 7 is 8

	assert.Equal(t, 8, tr.Length())
}

func TestTrackCancelCurrentRecordingOnFirstPassResetsLength(t *testing.T) {
	tr := newTestTrack()
	tr.mgr.BeginFirstPass()
	tr.ProcessRecord([][]float32{{1, 1, 1, 1}}, 4, false)
	tr.CancelCurrentRecording()

	assert.Equal(t, 0, tr.Length())
	assert.False(t, tr.IsRecording())
}

func TestTrackClearResetsLengthAndState(t *testing.T) {
	tr := newTestTrack()
	tr.mgr.BeginFirstPass()
	tr.ProcessRecord([][]float32{{1, 1, 1, 1}}, 4, false)
	tr.FinalizeLayer(false, 0)

	tr.Clear()
	assert.Equal(t, 0, tr.Length())
}

func TestNearestMultipleFavorsLowerOnTie(t *testing.T) {
	assert.Equal(t, 4, nearestMultiple(6, 4)) // 6 is equidistant from 4 and 8
	assert.Equal(t, 8, nearestMultiple(7, 4))
	assert.Equal(t, 4, nearestMultiple(1, 4))
}
