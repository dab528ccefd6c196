package midiio

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/loopcore/looperengine/bus"
)

// Handler owns one input/output MIDI port pair and drains every message
// straight into an engine's command ring via its Mapping, adapted from the
// teacher's single-purpose CC-to-channel handler into a general Note
// On/CC-to-Command translator.
type Handler struct {
	inPort  drivers.In
	outPort drivers.Out

	stopFunc func()
	mapping  *Mapping
	push     func(bus.Command) bool

	mu        sync.RWMutex
	connected bool
}

// NewHandler builds a handler that pushes translated commands via push
// (typically engine.Bus().PushCommand) using the given mapping.
func NewHandler(mapping *Mapping, push func(bus.Command) bool) *Handler {
	return &Handler{mapping: mapping, push: push}
}

// GetInputPorts and GetOutputPorts enumerate available ports for the host
// binary's device-selection UI.
func GetInputPorts() []drivers.In   { return midi.GetInPorts() }
func GetOutputPorts() []drivers.Out { return midi.GetOutPorts() }

// Connect opens the given ports (either may be nil) and starts listening.
func (h *Handler) Connect(inPort drivers.In, outPort drivers.Out) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connected {
		h.disconnect()
	}
	h.inPort = inPort
	h.outPort = outPort

	if outPort != nil {
		if err := outPort.Open(); err != nil {
			return fmt.Errorf("failed to open output port: %w", err)
		}
	}
	if inPort != nil {
		stop, err := midi.ListenTo(inPort, h.handleMIDI, midi.UseSysEx())
		if err != nil {
			if outPort != nil {
				outPort.Close()
			}
			return fmt.Errorf("failed to listen on input port: %w", err)
		}
		h.stopFunc = stop
	}
	h.connected = true
	return nil
}

// handleMIDI runs on gomidi's own listener goroutine; it only translates and
// enqueues, never touching engine state directly.
func (h *Handler) handleMIDI(msg midi.Message, timestampms int32) {
	var ch, key, vel uint8
	if msg.GetNoteOn(&ch, &key, &vel) {
		if h.mapping.observeNote(key) {
			return
		}
		b, ok := h.mapping.NoteBinding(key)
		if !ok {
			return
		}
		h.push(bus.Command{Type: b.Command, TrackIndex: b.TrackIndex})
		return
	}
	var cc, val uint8
	if msg.GetControlChange(&ch, &cc, &val) {
		if h.mapping.observeCC(cc) {
			return
		}
		b, ok := h.mapping.CCBinding(cc)
		if !ok {
			return
		}
		payload := bus.Payload{Kind: bus.PayloadNone}
		if b.ValueIsFloat01 {
			payload = bus.Payload{Kind: bus.PayloadFloat, Float: scale01(val, b.FloatMin, b.FloatMax)}
		}
		h.push(bus.Command{Type: b.Command, TrackIndex: b.TrackIndex, Payload: payload})
	}
}

// SendCC lets the engine drive MIDI feedback (e.g. motorized fader sync)
// back out to a controller.
func (h *Handler) SendCC(channel, controller, value uint8) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.outPort == nil || !h.connected {
		return nil
	}
	return h.outPort.Send(midi.ControlChange(channel, controller, value))
}

func (h *Handler) disconnect() {
	if h.stopFunc != nil {
		h.stopFunc()
		h.stopFunc = nil
	}
	if h.outPort != nil {
		h.outPort.Close()
	}
	h.connected = false
}

// Close tears down the MIDI connection.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnect()
}

// IsConnected reports whether a port pair is currently open.
func (h *Handler) IsConnected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connected
}
