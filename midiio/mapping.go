// Package midiio translates MIDI Note On and Control Change messages into
// bus.Command values and pushes them directly onto the engine's command
// ring, the same path UI-originated commands use (spec §6's MIDI mapping
// table). It owns no engine state; it is purely a translation layer,
// grounded on the teacher's midi/midi.go gomidi/v2 handler.
package midiio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/loopcore/looperengine/bus"
)

// Binding is one learned or default mapping entry: a MIDI trigger maps to a
// command, optionally parameterized by the note/CC value.
type Binding struct {
	Command    bus.CommandType
	TrackIndex int // -1 means "the currently active track"
	// ValueIsFloat01 marks CC bindings whose 0-127 value should be scaled to
	// [0,1] and carried as Payload.Float (volume, speed, pitch); when false
	// the raw command fires with no payload (transport toggles).
	ValueIsFloat01 bool
	FloatMin, FloatMax float64
}

// Mapping holds the Note On and Control Change lookup tables. The MIDI
// channel does not select a track: each Binding's TrackIndex does (-1 means
// the active track).
type Mapping struct {
	mu    sync.RWMutex
	Notes map[uint8]Binding `json:"notes"`
	CCs   map[uint8]Binding `json:"ccs"`

	learning     bool
	learnBinding Binding
	learnResult  chan uint8
}

// DefaultMapping returns the out-of-the-box bindings: transport on the
// bottom row of a typical 25-key controller, faders/knobs on the standard
// CC numbers the teacher's midi.go already names (volume=7).
func DefaultMapping() *Mapping {
	m := &Mapping{
		Notes: map[uint8]Binding{
			36: {Command: bus.CmdToggleRecord, TrackIndex: -1},
			38: {Command: bus.CmdTogglePlay, TrackIndex: -1},
			40: {Command: bus.CmdStop, TrackIndex: -1},
			41: {Command: bus.CmdUndo, TrackIndex: -1},
			43: {Command: bus.CmdRedo, TrackIndex: -1},
			45: {Command: bus.CmdNextTrack, TrackIndex: -1},
			47: {Command: bus.CmdPreviousTrack, TrackIndex: -1},
			48: {Command: bus.CmdToggleMute, TrackIndex: -1},
			50: {Command: bus.CmdToggleSolo, TrackIndex: -1},
			52: {Command: bus.CmdToggleFreeze, TrackIndex: -1},
		},
		CCs: map[uint8]Binding{
			7:  {Command: bus.CmdSetVolume, TrackIndex: -1, ValueIsFloat01: true, FloatMin: 0, FloatMax: 1.5},
			10: {Command: bus.CmdSetPlaybackSpeed, TrackIndex: -1, ValueIsFloat01: true, FloatMin: 0.25, FloatMax: 4.0},
			11: {Command: bus.CmdSetPlaybackPitch, TrackIndex: -1, ValueIsFloat01: true, FloatMin: -12, FloatMax: 12},
			91: {Command: bus.CmdSetInputGain, TrackIndex: -1, ValueIsFloat01: true, FloatMin: 0, FloatMax: 2},
			93: {Command: bus.CmdSetOutputGain, TrackIndex: -1, ValueIsFloat01: true, FloatMin: 0, FloatMax: 2},
		},
	}
	return m
}

// configPath is where the mapping is persisted: $XDG_CONFIG_HOME (or OS
// equivalent via os.UserConfigDir) /looperd/midimap.json.
func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "looperd", "midimap.json"), nil
}

// Load reads a persisted mapping, falling back to DefaultMapping if none
// exists or it fails to parse.
func Load() *Mapping {
	path, err := configPath()
	if err != nil {
		return DefaultMapping()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultMapping()
	}
	m := &Mapping{}
	if err := json.Unmarshal(data, m); err != nil {
		return DefaultMapping()
	}
	if m.Notes == nil {
		m.Notes = map[uint8]Binding{}
	}
	if m.CCs == nil {
		m.CCs = map[uint8]Binding{}
	}
	return m
}

// Save persists the mapping, creating the config directory if needed.
func (m *Mapping) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// NoteBinding and CCBinding look up a trigger, reporting ok=false if unmapped.
func (m *Mapping) NoteBinding(note uint8) (Binding, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.Notes[note]
	return b, ok
}

func (m *Mapping) CCBinding(cc uint8) (Binding, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.CCs[cc]
	return b, ok
}

// BeginLearn arms the mapping to capture the next Note On or CC number and
// bind it to the given command, returning a channel that receives the
// learned trigger number once one arrives.
func (m *Mapping) BeginLearn(b Binding) <-chan uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.learning = true
	m.learnBinding = b
	m.learnResult = make(chan uint8, 1)
	return m.learnResult
}

// CancelLearn aborts an in-progress learn without binding anything.
func (m *Mapping) CancelLearn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.learning = false
}

// observeNote and observeCC feed every incoming trigger through the learn
// state machine; they report true if the message was consumed by learning
// (and should not also be dispatched as a command this time).
func (m *Mapping) observeNote(note uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.learning {
		return false
	}
	m.Notes[note] = m.learnBinding
	m.learning = false
	select {
	case m.learnResult <- note:
	default:
	}
	return true
}

func (m *Mapping) observeCC(cc uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.learning {
		return false
	}
	m.CCs[cc] = m.learnBinding
	m.learning = false
	select {
	case m.learnResult <- cc:
	default:
	}
	return true
}

// scale01 maps a 0-127 MIDI value into [min, max].
func scale01(raw uint8, min, max float64) float64 {
	return min + (max-min)*float64(raw)/127.0
}
