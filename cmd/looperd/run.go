package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loopcore/looperengine/bus"
	"github.com/loopcore/looperengine/engine"
	"github.com/loopcore/looperengine/export"
	"github.com/loopcore/looperengine/loader"
	"github.com/loopcore/looperengine/metrics"
	"github.com/loopcore/looperengine/midiio"
	"github.com/loopcore/looperengine/ui"
)

func runCommand() *cobra.Command {
	var loadPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the looper against a live audio device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd, loadPath)
		},
	}
	cmd.Flags().StringVar(&loadPath, "load", "", "preload a WAV file into track 0 before starting")
	return cmd
}

// tickMsg drives the status-line repaint; it carries no data of its own,
// the model re-reads the engine's bridges fresh on every tick.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// model is the bubbletea wrapper around the running engine: it never
// touches engine internals directly, only Bus().PushCommand, the two
// read-side bridges and TrackCount, the same surface a real UI frontend
// would use.
type model struct {
	eng *engine.Engine
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	push := m.eng.Bus().PushCommand
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		push(bus.Command{Type: bus.CmdToggleRecord, TrackIndex: -1})
	case " ":
		push(bus.Command{Type: bus.CmdTogglePlay, TrackIndex: -1})
	case "tab":
		push(bus.Command{Type: bus.CmdNextTrack, TrackIndex: -1})
	case "u":
		push(bus.Command{Type: bus.CmdUndo, TrackIndex: -1})
	case "U":
		push(bus.Command{Type: bus.CmdRedo, TrackIndex: -1})
	case "f":
		push(bus.Command{Type: bus.CmdToggleFreeze, TrackIndex: -1})
	}
	return m, nil
}

func (m model) View() string {
	snap := m.eng.StateBridge().Load()
	status := ui.RenderStatus(snap, engine.State(snap.State), m.eng.TrackCount())
	return ui.TitleStyle.Render("looperd") + "\n" + status + "\n" + ui.RenderHelp()
}

func runLoop(cmd *cobra.Command, loadPath string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger()

	eng := engine.New(engine.Config{
		SampleRate:    settings.SampleRate,
		BlockSize:     settings.BlockSize,
		Channels:      settings.Channels,
		TrackCount:    settings.TrackCount,
		MaxSeconds:    settings.MaxSeconds,
		MaxUndoLayers: settings.MaxUndoLayers,
		Logger:        logger,
	})
	defer eng.Shutdown()

	exporter := export.NewWAVExporter()
	eng.SetExporter(exporter)

	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go rec.PollEngineCounters(ctx, eng, time.Second)

	capture, err := NewCapture(settings.SampleRate, settings.Channels, settings.InputDevice, rec)
	if err != nil {
		return fmt.Errorf("looperd: opening capture device: %w", err)
	}
	defer capture.Stop()
	if err := capture.Start(); err != nil {
		return fmt.Errorf("looperd: starting capture: %w", err)
	}

	player, err := NewPlaybackSink(eng, capture, rec, settings.SampleRate, settings.BlockSize, settings.Channels)
	if err != nil {
		return fmt.Errorf("looperd: opening playback sink: %w", err)
	}
	defer player.Close()

	mapping := midiio.Load()
	handler := midiio.NewHandler(mapping, eng.Bus().PushCommand)
	defer handler.Close()
	if err := connectDefaultMIDI(handler); err != nil {
		logger.Warn("continuing without MIDI controller", "error", err)
	}

	if loadPath != "" {
		if err := loader.LoadFile(loadPath, 0, eng.Bus().PushCommand); err != nil {
			logger.Warn("preload failed", "path", loadPath, "error", err)
		}
	}

	m := model{eng: eng}
	program := tea.NewProgram(m)
	_, err = program.Run()
	return err
}

// connectDefaultMIDI opens the first available input/output port pair, if
// any; a looper session is just as usable from the keyboard alone.
func connectDefaultMIDI(h *midiio.Handler) error {
	ins := midiio.GetInputPorts()
	if len(ins) == 0 {
		return fmt.Errorf("no MIDI input ports found")
	}
	outs := midiio.GetOutputPorts()
	if len(outs) > 0 {
		return h.Connect(ins[0], outs[0])
	}
	return h.Connect(ins[0], nil)
}
