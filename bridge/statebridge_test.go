package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateBridgePublishAndLoadRoundTrips(t *testing.T) {
	b := NewStateBridge(4)
	snap := b.Load()
	assert.Equal(t, 4, len(snap.TrackLengths))
	assert.Equal(t, uint64(0), snap.Version)

	b.Publish(&StateSnapshot{ActiveTrack: 2, TrackLengths: []int32{1, 2, 3, 4}})
	snap = b.Load()
	assert.Equal(t, int32(2), snap.ActiveTrack)
	assert.Equal(t, uint64(1), snap.Version)
}

func TestStateBridgeVersionIncrementsOnEveryPublish(t *testing.T) {
	b := NewStateBridge(1)
	b.Publish(&StateSnapshot{})
	b.Publish(&StateSnapshot{})
	snap := b.Load()
	assert.Equal(t, uint64(2), snap.Version)
}
