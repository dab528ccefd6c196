package bus

import "sync"

// CommandType enumerates the UI→engine command set (spec §6).
type CommandType int

const (
	CmdTogglePlay CommandType = iota
	CmdToggleRecord
	CmdStop
	CmdUndo
	CmdRedo
	CmdClear
	CmdNextTrack
	CmdPreviousTrack
	CmdSelectTrack
	CmdSetVolume
	CmdSetPlaybackSpeed
	CmdSetPlaybackPitch
	CmdSetExistingAudioGain
	CmdSetNewOverdubGain
	CmdToggleMute
	CmdToggleSolo
	CmdToggleSyncTrack
	CmdTogglePitchLock
	CmdToggleReverse
	CmdToggleSinglePlayMode
	CmdToggleFreeze
	CmdToggleVolumeNormalize
	CmdLoadAudioFile
	CmdSetMetronomeEnabled
	CmdSetMetronomeBPM
	CmdSetMetronomeVolume
	CmdSetMetronomeStrongBeat
	CmdSetMetronomeTimeSignature
	CmdSetSubLoopRegion
	CmdClearSubLoopRegion
	CmdSetInputGain
	CmdSetOutputGain
	CmdSaveTrackToFile
	CmdSaveAllTracksToFolder
)

// PayloadKind tags which field of Payload is live, modeling the spec's
// tagged-union payload without heap-allocated closures (spec §9: no
// std::function-style dispatch table on the audio thread).
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadFloat
	PayloadInt
	PayloadBool
	PayloadFilePath
	PayloadSampleBlock
	PayloadIntPair
	PayloadFloatPair
)

// Payload is a flat tagged union. Only the field matching Kind is valid.
type Payload struct {
	Kind        PayloadKind
	Float       float64
	Int         int
	Bool        bool
	FilePath    string
	SampleBlock [][]float32
	IntA, IntB  int
	FloatA, FloatB float64
}

// Command is consumed by the audio thread exactly once.
type Command struct {
	Type       CommandType
	TrackIndex int
	Payload    Payload
}

// EventType enumerates the engine→UI event set (spec §6).
type EventType int

const (
	EvtRecordingStateChanged EventType = iota
	EvtPlaybackStateChanged
	EvtActiveTrackChanged
	EvtPendingTrackChanged
	EvtTrackVolumeChanged
	EvtTrackMuteChanged
	EvtTrackSoloChanged
	EvtTrackSpeedChanged
	EvtTrackPitchChanged
	EvtTrackReverseDirection
	EvtMetronomeEnabledChanged
	EvtMetronomeBPMChanged
	EvtMetronomeBeatOccurred
	EvtFreezeStateChanged
	EvtSinglePlayModeChanged
	EvtFileLoadFailed
	EvtIllegalTransition
)

// EventData is the event side's narrower tagged union: a scalar plus an
// optional string (for UnsupportedFile's failure reason).
type EventData struct {
	Float  float64
	Int    int
	Bool   bool
	String string
}

// Event is produced by the engine and delivered to UI listeners on a
// control thread.
type Event struct {
	Type       EventType
	TrackIndex int
	Data       EventData
}

// DefaultRingCapacity is generous enough that a block of UI interaction
// (e.g. a fader drag emitting one command per repaint) never overflows
// before the audio thread's next drain.
const DefaultRingCapacity = 256

// Bus pairs the two rings: commands flow UI→engine, events flow engine→UI.
// The event ring stays genuinely SPSC (the audio thread is its one
// producer). The command ring has two independent control-thread
// producers — the UI event loop and the MIDI listener goroutine — so
// commandPushMu serializes their Push calls; Ring.Push itself is still the
// plain SPSC implementation, matching its documented single-producer
// contract everywhere else it is used (e.g. the audio capture rings).
type Bus struct {
	commands      *Ring[Command]
	commandPushMu sync.Mutex
	events        *Ring[Event]
}

// NewBus allocates a bus with DefaultRingCapacity slots in each direction.
func NewBus() *Bus {
	return &Bus{
		commands: NewRing[Command](DefaultRingCapacity),
		events:   NewRing[Event](DefaultRingCapacity),
	}
}

// PushCommand is called from a control thread — the UI event loop and the
// MIDI listener goroutine both call it concurrently, so the push itself is
// serialized under commandPushMu; only one of them ever races the ring's
// single-consumer audio thread at a time. On a full ring it drops the
// command being produced (not the oldest queued one — the newest command a
// user issues is the one they expect to take effect) and reports false so
// the caller can log the drop.
func (b *Bus) PushCommand(c Command) bool {
	b.commandPushMu.Lock()
	defer b.commandPushMu.Unlock()
	return b.commands.Push(c)
}

// PopCommand is called from the audio thread.
func (b *Bus) PopCommand() (Command, bool) { return b.commands.Pop() }

// PushEvent is called from the audio thread. Events are idempotent state
// snapshots, so dropping one on a full ring is safe: the next one recovers
// the UI (spec §7).
func (b *Bus) PushEvent(e Event) bool { return b.events.Push(e) }

// PopEvent is called from a control thread (typically a 60–120 Hz ticker).
func (b *Bus) PopEvent() (Event, bool) { return b.events.Pop() }

// PendingCommands reports queue depth, used to bound per-block drain work.
func (b *Bus) PendingCommands() int { return b.commands.Len() }
