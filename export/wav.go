// Package export persists a track's sample buffer to a 16-bit PCM WAV file,
// the on-disk format spec §6 names for Save* commands. It is called only
// from the engine's background export worker, never the audio thread.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const bitDepth = 16

// WAVExporter implements engine.Exporter via go-audio/wav with an
// atomic write-then-rename (write to a .tmp sibling, rename into place) so
// a crash mid-export never leaves a half-written file
// at the destination path.
type WAVExporter struct{}

// NewWAVExporter returns a ready-to-use exporter; it holds no state.
func NewWAVExporter() *WAVExporter { return &WAVExporter{} }

// SaveTrack writes length frames of channels (each channel a slice of at
// least length float32 samples in [-1, 1]) to path as interleaved 16-bit
// PCM WAV at sampleRate.
func (w *WAVExporter) SaveTrack(path string, channels [][]float32, length, sampleRate int) error {
	if len(channels) == 0 || length <= 0 {
		return fmt.Errorf("export: nothing to write for %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: create output directory: %w", err)
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	success := false
	defer func() {
		f.Close()
		if !success {
			os.Remove(tempPath)
		}
	}()

	numChans := len(channels)
	enc := wav.NewEncoder(f, sampleRate, bitDepth, numChans, 1)

	buf := &audio.IntBuffer{
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: numChans},
		Data:   make([]int, length*numChans),
	}
	for i := 0; i < length; i++ {
		for ch := 0; ch < numChans; ch++ {
			buf.Data[i*numChans+ch] = floatToPCM16(channels[ch][i])
		}
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("export: write PCM data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("export: close encoder: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("export: rename into place: %w", err)
	}
	success = true
	return nil
}

func floatToPCM16(s float32) int {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int(s * 32767)
}
