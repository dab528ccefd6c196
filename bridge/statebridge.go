package bridge

import "sync/atomic"

// StateSnapshot is the flattened transport + selection state the UI polls.
type StateSnapshot struct {
	State         int32
	ActiveTrack   int32
	PendingTrack  int32
	HasPending    bool
	TrackLengths  []int32
	Position      int32
	MetronomeBeat int32
	FreezeOn      bool
	Version       uint64
}

// StateBridge publishes an atomic snapshot of transport and selection state
// for the UI (spec §2 EngineStateBridge). Unlike Waveform it carries only
// small scalars, so a single atomic.Pointer swap (rather than a triple
// buffer) is enough to avoid tearing.
type StateBridge struct {
	current atomic.Pointer[StateSnapshot]
	version atomic.Uint64
}

// NewStateBridge returns a bridge with an empty initial snapshot.
func NewStateBridge(trackCount int) *StateBridge {
	b := &StateBridge{}
	b.current.Store(&StateSnapshot{TrackLengths: make([]int32, trackCount)})
	return b
}

// Publish is called once per block from the audio thread with a freshly
// built snapshot (the caller reuses a preallocated TrackLengths slice to
// stay allocation-free — see Engine.stateSnapshots).
func (b *StateBridge) Publish(s *StateSnapshot) {
	s.Version = b.version.Add(1)
	b.current.Store(s)
}

// Load is called from the UI thread.
func (b *StateBridge) Load() StateSnapshot {
	return *b.current.Load()
}
