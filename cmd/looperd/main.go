// Command looperd is the demo host binary for the looper engine: it wires
// an audio I/O backend, a MIDI controller, and a terminal status line
// around the engine package, following birdnet-go's cmd/root.go cobra
// wiring pattern.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "looperd",
		Short: "Multi-track live looper engine host",
	}
	root.PersistentFlags().String("config", "", "path to a looperd.yaml config file")
	_ = viper.BindPFlag("config_file", root.PersistentFlags().Lookup("config"))

	root.AddCommand(runCommand())
	root.AddCommand(exportCommand())
	return root
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
