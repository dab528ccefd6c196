// Package engine implements the top-level orchestrator: the table-driven
// state machine (spec §4.7) and the Engine that owns N tracks, the shared
// metronome and freeze, and drives per-block processing (spec §4.8).
package engine

// State names the seven transport states of spec §4.7.
type State int

const (
	StateIdle State = iota
	StateStopped
	StatePlaying
	StateRecording
	StateOverdubbing
	StatePendingTrackChange
	StateTransitioning
	stateCount
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStopped:
		return "Stopped"
	case StatePlaying:
		return "Playing"
	case StateRecording:
		return "Recording"
	case StateOverdubbing:
		return "Overdubbing"
	case StatePendingTrackChange:
		return "Pending"
	case StateTransitioning:
		return "Transitioning"
	default:
		return "Unknown"
	}
}

// transitions is the allowed-transition table from spec §4.7's matrix.
// A state is always allowed to transition to itself (treated as a no-op by
// callers) but that is not encoded here — only genuine cross-state edges.
var transitions = map[State]map[State]bool{
	StateIdle:               {StatePlaying: true, StateRecording: true},
	StateStopped:            {StateIdle: true, StatePlaying: true, StateRecording: true, StateOverdubbing: true},
	StatePlaying:            {StateStopped: true, StateOverdubbing: true, StatePendingTrackChange: true},
	StateRecording:          {StateIdle: true, StateStopped: true, StatePlaying: true, StateOverdubbing: true},
	StateOverdubbing:        {StateStopped: true, StatePlaying: true},
	StatePendingTrackChange: {StateStopped: true, StatePlaying: true, StateTransitioning: true},
	StateTransitioning:      {StateIdle: true, StateStopped: true, StatePlaying: true},
}

// CanTransition reports whether from->to is a legal edge in the table.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// AudioAction is what a state does per block: which of record/playback run.
type AudioAction struct {
	RunRecord          bool
	RunPlaybackActive  bool
	RunPlaybackOthers  bool
}

// actionFor returns the per-state audio action table of spec §4.7.
func actionFor(s State) AudioAction {
	switch s {
	case StateIdle, StateStopped:
		return AudioAction{}
	case StatePlaying, StatePendingTrackChange, StateTransitioning:
		return AudioAction{RunPlaybackActive: true, RunPlaybackOthers: true}
	case StateRecording:
		return AudioAction{RunRecord: true}
	case StateOverdubbing:
		return AudioAction{RunRecord: true, RunPlaybackActive: true, RunPlaybackOthers: true}
	default:
		return AudioAction{}
	}
}

// Machine drives transitions and dispatches the active state's audio
// action plus enter/exit hooks. Hooks are supplied by Engine as closures
// captured once at construction (no per-block allocation).
type Machine struct {
	current State
	onEnter map[State]func()
	onExit  map[State]func()
	onIllegal func(from, to State)
}

// NewMachine starts in Idle.
func NewMachine() *Machine {
	return &Machine{
		current: StateIdle,
		onEnter: make(map[State]func()),
		onExit:  make(map[State]func()),
	}
}

func (m *Machine) Current() State { return m.current }

// SetEnterHook / SetExitHook install the enter/exit hooks for a state.
// Entering Overdubbing stages the undo snapshot; exiting Recording or
// Overdubbing finalizes the pass — the only site that does so, guaranteeing
// exactly-once finalization on every egress path (spec §4.7).
func (m *Machine) SetEnterHook(s State, fn func())  { m.onEnter[s] = fn }
func (m *Machine) SetExitHook(s State, fn func())   { m.onExit[s] = fn }
func (m *Machine) SetIllegalHook(fn func(from, to State)) { m.onIllegal = fn }

// RequestTransition applies from->to if legal; illegal requests are
// rejected (the engine remains in its current state) and the illegal hook,
// if set, is invoked for tracing.
func (m *Machine) RequestTransition(to State) bool {
	from := m.current
	if !CanTransition(from, to) {
		if m.onIllegal != nil {
			m.onIllegal(from, to)
		}
		return false
	}
	if from == to {
		return true
	}
	if fn := m.onExit[from]; fn != nil {
		fn()
	}
	m.current = to
	if fn := m.onEnter[to]; fn != nil {
		fn()
	}
	return true
}

// Action returns the current state's per-block audio action.
func (m *Machine) Action() AudioAction { return actionFor(m.current) }
