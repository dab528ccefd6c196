// Package loader decodes a WAV file and stages it for a track's
// CmdLoadAudioFile command (spec §6's LoadAudioFile). Decoding and staging
// both run on the control thread; the audio thread only ever receives
// already-decoded float32 frames via bus.Payload.SampleBlock (spec §1).
package loader

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/wav"
	"github.com/smallnest/ringbuffer"

	"github.com/loopcore/looperengine/bus"
)

// stagingCapacity bounds how much decoded PCM sits in the byte ring at
// once; decode() drains it in fixed-size frames as it fills rather than
// holding a second full copy of the file in memory.
const stagingCapacity = 1 << 16

// LoadFile decodes a WAV file at path and pushes its frames onto push
// (typically engine.Bus().PushCommand) as a CmdLoadAudioFile command
// targeting trackIndex.
func LoadFile(path string, trackIndex int, push func(bus.Command) bool) error {
	channelData, err := decode(path)
	if err != nil {
		return err
	}
	ok := push(bus.Command{
		Type:       bus.CmdLoadAudioFile,
		TrackIndex: trackIndex,
		Payload:    bus.Payload{Kind: bus.PayloadSampleBlock, SampleBlock: channelData},
	})
	if !ok {
		return fmt.Errorf("loader: command ring full, %s was not loaded", path)
	}
	return nil
}

// decode reads the whole file through go-audio/wav, staging whole batches
// of frames through a byte ring buffer ahead of a separate drain pass that
// converts them to float32 — a real write-ahead/drain-behind split rather
// than a single sample round-tripping through the ring on its own
// iteration, since the ring's point is to let the producer (batch encode)
// run ahead of the consumer (batch decode) at its own cadence.
func decode(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("loader: %s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("loader: decode %s: %w", path, err)
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("loader: %s reports zero channels", path)
	}
	bytesPerSample := buf.SourceBitDepth / 8
	if bytesPerSample <= 0 {
		bytesPerSample = 2
	}
	frames := len(buf.Data) / channels
	maxVal := float64(int64(1) << uint(bytesPerSample*8-1))

	stage := ringbuffer.New(stagingCapacity)
	channelData := make([][]float32, channels)
	for ch := range channelData {
		channelData[ch] = make([]float32, frames)
	}

	bytesPerFrame := channels * bytesPerSample
	batchFrames := stagingCapacity / bytesPerFrame
	if batchFrames < 1 {
		batchFrames = 1
	}

	encodeBuf := make([]byte, 0, batchFrames*bytesPerFrame)
	for start := 0; start < frames; start += batchFrames {
		end := start + batchFrames
		if end > frames {
			end = frames
		}

		// Encode this whole batch into the ring before draining any of it,
		// so the ring genuinely holds more than one pending sample at once.
		encodeBuf = encodeBuf[:0]
		var raw [4]byte
		for i := start; i < end; i++ {
			for ch := 0; ch < channels; ch++ {
				binary.LittleEndian.PutUint32(raw[:], uint32(int32(buf.Data[i*channels+ch])))
				encodeBuf = append(encodeBuf, raw[:bytesPerSample]...)
			}
		}
		if _, err := stage.Write(encodeBuf); err != nil {
			return nil, fmt.Errorf("loader: stage batch: %w", err)
		}

		decodeBuf := make([]byte, len(encodeBuf))
		if _, err := stage.Read(decodeBuf); err != nil {
			return nil, fmt.Errorf("loader: drain batch: %w", err)
		}
		pos := 0
		var word [4]byte
		for i := start; i < end; i++ {
			for ch := 0; ch < channels; ch++ {
				copy(word[:bytesPerSample], decodeBuf[pos:pos+bytesPerSample])
				fill := byte(0)
				if word[bytesPerSample-1]&0x80 != 0 {
					fill = 0xFF
				}
				for b := bytesPerSample; b < 4; b++ {
					word[b] = fill
				}
				channelData[ch][i] = float32(float64(int32(binary.LittleEndian.Uint32(word[:]))) / maxVal)
				pos += bytesPerSample
			}
		}
	}
	return channelData, nil
}
