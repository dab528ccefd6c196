package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loopcore/looperengine/bus"
	"github.com/loopcore/looperengine/engine"
	"github.com/loopcore/looperengine/export"
)

// exportCommand is a non-interactive batch mode: capture N seconds of input
// into track 0 and write it to a WAV file, demonstrating the engine's
// record and SaveTrackToFile path with no terminal UI attached.
func exportCommand() *cobra.Command {
	var seconds float64
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Record a fixed-length pass and save it to a WAV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(seconds, outPath)
		},
	}
	cmd.Flags().Float64Var(&seconds, "seconds", 8, "length of the capture pass in seconds")
	cmd.Flags().StringVar(&outPath, "out", "looperd-export.wav", "output WAV path")
	return cmd
}

func runExport(seconds float64, outPath string) error {
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

	capture, err := NewCapture(settings.SampleRate, settings.Channels, settings.InputDevice, nil)
	if err != nil {
		return fmt.Errorf("looperd: opening capture device: %w", err)
	}
	defer capture.Stop()
	if err := capture.Start(); err != nil {
		return fmt.Errorf("looperd: starting capture: %w", err)
	}

	eng.Bus().PushCommand(bus.Command{Type: bus.CmdToggleRecord, TrackIndex: -1})

	block := settings.BlockSize
	input := make([][]float32, settings.Channels)
	output := make([][]float32, settings.Channels)
	for ch := range input {
		input[ch] = make([]float32, block)
		output[ch] = make([]float32, block)
	}

	deadline := time.Now().Add(time.Duration(seconds * float64(time.Second)))
	for time.Now().Before(deadline) {
		if capture.rings[0].Len() < block {
			time.Sleep(time.Millisecond)
			continue
		}
		capture.Pull(input, block)
		eng.Process(input, output, block)
	}

	eng.Bus().PushCommand(bus.Command{Type: bus.CmdStop, TrackIndex: -1})
	// One more block lets handleCommand's exit hook finalize the pass before
	// the SaveTrackToFile command below is dispatched on a later block.
	eng.Process(input, output, block)

	eng.Bus().PushCommand(bus.Command{
		Type:       bus.CmdSaveTrackToFile,
		TrackIndex: 0,
		Payload:    bus.Payload{Kind: bus.PayloadFilePath, FilePath: outPath},
	})
	eng.Process(input, output, block)
	// Give the background export worker a moment to flush before Shutdown
	// drains it properly via the deferred call above.
	time.Sleep(200 * time.Millisecond)

	logger.Info("export complete", "path", outPath, "seconds", seconds)
	return nil
}
