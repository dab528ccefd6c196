package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Settings is looperd's configuration surface: everything Config needs to
// Prepare the engine, plus host-binary-only knobs (MIDI map path, device
// names). Following birdnet-go's internal/conf pattern, the engine package
// itself never imports viper — Settings is unmarshaled here and translated
// into a plain engine.Config before New is called.
type Settings struct {
	SampleRate    int     `mapstructure:"sample_rate"`
	BlockSize     int     `mapstructure:"block_size"`
	Channels      int     `mapstructure:"channels"`
	TrackCount    int     `mapstructure:"track_count"`
	MaxSeconds    float64 `mapstructure:"max_seconds"`
	MaxUndoLayers int     `mapstructure:"max_undo_layers"`
	MidiMapPath   string  `mapstructure:"midi_map_path"`
	InputDevice   string  `mapstructure:"input_device"`
	OutputDevice  string  `mapstructure:"output_device"`
}

func setDefaultConfig() {
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("block_size", 512)
	viper.SetDefault("channels", 2)
	viper.SetDefault("track_count", 4)
	viper.SetDefault("max_seconds", 600.0) // spec §6: 10 minute hard cap
	viper.SetDefault("max_undo_layers", 5)
	viper.SetDefault("midi_map_path", "")
	viper.SetDefault("input_device", "")
	viper.SetDefault("output_device", "")
}

// loadSettings reads the file named by --config if one is given, otherwise
// ./looperd.yaml or $XDG_CONFIG_HOME/looperd/looperd.yaml, falling back
// silently to defaults if neither exists, then applies
// LOOPERD_-prefixed environment overrides (e.g. LOOPERD_SAMPLE_RATE=96000).
func loadSettings() (*Settings, error) {
	viper.SetConfigName("looperd")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(dir, "looperd"))
	}
	if p := viper.GetString("config_file"); p != "" {
		viper.SetConfigFile(p)
	}

	setDefaultConfig()

	viper.SetEnvPrefix("LOOPERD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("looperd: reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("looperd: unmarshaling config: %w", err)
	}
	if settings.SampleRate <= 0 || settings.BlockSize <= 0 || settings.Channels <= 0 || settings.TrackCount <= 0 {
		return nil, fmt.Errorf("looperd: invalid configuration: sample_rate=%d block_size=%d channels=%d track_count=%d",
			settings.SampleRate, settings.BlockSize, settings.Channels, settings.TrackCount)
	}
	return settings, nil
}
