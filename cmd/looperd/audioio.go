package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/hajimehoshi/oto/v2"

	"github.com/loopcore/looperengine/bus"
	"github.com/loopcore/looperengine/engine"
	"github.com/loopcore/looperengine/metrics"
)

// captureRingSize is generous enough to absorb the latency between malgo's
// capture callback and oto's playback Read callback without ever blocking
// either side (spec §5: the two audio-adjacent threads never lock against
// each other).
const captureRingSize = 1 << 16

// Capture owns a malgo input-only device and a per-channel lock-free ring
// (bus.Ring[float32], one ring per channel) that the playback side drains.
// Grounded on tphakala-birdnet-go's audiocore/sources/malgo device wiring;
// the teacher never captured audio (it only synthesized), so this side of
// the I/O has no teacher precedent and is adapted from that source instead.
type Capture struct {
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	rings    []*bus.Ring[float32]
	channels int
	metrics  *metrics.Recorder
}

// NewCapture opens a capture-only device at sampleRate/channels. deviceName
// empty selects the platform default.
func NewCapture(sampleRate, channels int, deviceName string, rec *metrics.Recorder) (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("looperd: init malgo context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	c := &Capture{ctx: ctx, channels: channels, metrics: rec}
	c.rings = make([]*bus.Ring[float32], channels)
	for ch := range c.rings {
		c.rings[ch] = bus.NewRing[float32](captureRingSize)
	}

	callbacks := malgo.DeviceCallbacks{
		Data: c.onData,
		Stop: func() {
			if c.metrics != nil {
				c.metrics.IncUnderrun()
			}
		},
	}
	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		return nil, fmt.Errorf("looperd: init capture device %q: %w", deviceName, err)
	}
	c.device = device
	return c, nil
}

// onData runs on malgo's own capture thread, never the Go scheduler's
// engine goroutine: it decodes interleaved f32 PCM and pushes one ring per
// channel, dropping samples on overrun rather than ever blocking (the
// ring's Push already reports false on a full buffer; the sample is simply
// not retried).
func (c *Capture) onData(_, in []byte, frameCount uint32) {
	const bytesPerSample = 4
	stride := c.channels * bytesPerSample
	for i := uint32(0); i < frameCount; i++ {
		base := int(i) * stride
		if base+stride > len(in) {
			break
		}
		for ch := 0; ch < c.channels; ch++ {
			off := base + ch*bytesPerSample
			bits := binary.LittleEndian.Uint32(in[off : off+4])
			c.rings[ch].Push(math.Float32frombits(bits))
		}
	}
}

func (c *Capture) Start() error { return c.device.Start() }

func (c *Capture) Stop() {
	_ = c.device.Stop()
	c.device.Uninit()
	_ = c.ctx.Uninit()
}

// Pull drains up to n frames per channel into dst, zero-filling any channel
// whose ring underran (no input connected yet, or the capture thread is
// behind) so the engine always sees a full block.
func (c *Capture) Pull(dst [][]float32, n int) {
	for ch := 0; ch < c.channels && ch < len(dst); ch++ {
		for i := 0; i < n; i++ {
			v, ok := c.rings[ch].Pop()
			if !ok {
				v = 0
			}
			dst[ch][i] = v
		}
	}
}

// playbackStream is the oto.Player's io.Reader: every Read pulls the
// latest captured input, drives exactly one engine.Process block, and
// encodes the result as interleaved 16-bit PCM. Grounded on the teacher's
// audio/engine.go audioStream.Read, generalized from a fixed synth mix to
// the looper engine's per-block output.
type playbackStream struct {
	eng      *engine.Engine
	cap      *Capture
	rec      *metrics.Recorder
	blockN   int
	channels int
	input    [][]float32
	output   [][]float32
}

func newPlaybackStream(eng *engine.Engine, cap *Capture, rec *metrics.Recorder, blockN, channels int) *playbackStream {
	s := &playbackStream{eng: eng, cap: cap, rec: rec, blockN: blockN, channels: channels}
	s.input = make([][]float32, channels)
	s.output = make([][]float32, channels)
	for ch := 0; ch < channels; ch++ {
		s.input[ch] = make([]float32, blockN)
		s.output[ch] = make([]float32, blockN)
	}
	return s
}

// Read produces one block of PCM16 at a time; oto calls this repeatedly on
// its own playback-feeder goroutine, which is this host's stand-in for the
// real-time audio callback.
func (s *playbackStream) Read(p []byte) (int, error) {
	frameBytes := s.channels * 2
	n := len(p) / frameBytes
	if n > s.blockN {
		n = s.blockN
	}
	if n <= 0 {
		return 0, nil
	}

	s.cap.Pull(s.input, n)
	for ch := range s.output {
		for i := 0; i < n; i++ {
			s.output[ch][i] = 0
		}
	}

	start := time.Now()
	s.eng.Process(s.input, s.output, n)
	if s.rec != nil {
		s.rec.ObserveBlockAsync(time.Since(start))
	}

	for i := 0; i < n; i++ {
		for ch := 0; ch < s.channels; ch++ {
			v := s.output[ch][i]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			sample := int16(v * 32767)
			off := (i*s.channels + ch) * 2
			binary.LittleEndian.PutUint16(p[off:off+2], uint16(sample))
		}
	}
	return n * frameBytes, nil
}

// NewPlaybackSink opens an oto context and starts a player reading from eng
// via a playbackStream. The returned oto.Player must be stopped by the
// caller on shutdown.
func NewPlaybackSink(eng *engine.Engine, cap *Capture, rec *metrics.Recorder, sampleRate, blockN, channels int) (oto.Player, error) {
	ctx, ready, err := oto.NewContext(sampleRate, channels, 2)
	if err != nil {
		return nil, fmt.Errorf("looperd: init oto context: %w", err)
	}
	<-ready

	stream := newPlaybackStream(eng, cap, rec, blockN, channels)
	player := ctx.NewPlayer(stream)
	player.Play()
	return player, nil
}
