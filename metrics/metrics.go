// Package metrics exposes Prometheus collectors for the demo host binary,
// grounded on tphakala-birdnet-go's internal/telemetry use of
// client_golang: a block-processing duration histogram and counters for
// underruns and the bus's BackpressureDropped cases (spec §7).
//
// Every collector here is updated from control-thread code only — never
// from the audio callback. Block duration in particular never calls
// Observe from inside the realtime callback: the callback pushes a sample
// into a small buffered channel and a dedicated goroutine drains it into
// the histogram, so a registry lock or cardinality bookkeeping never runs
// on the audio thread (spec §5).
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loopcore/looperengine/engine"
)

// Recorder owns the collectors and the async block-duration channel.
type Recorder struct {
	BlockDuration    prometheus.Histogram
	Underruns        prometheus.Counter
	DroppedEvents    prometheus.Counter
	DroppedCommands  prometheus.Counter

	blockSamples chan time.Duration
}

// NewRecorder builds and registers the collectors against reg (pass
// prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer for the process-wide one).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		BlockDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "looperd_block_duration_seconds",
			Help:    "Wall-clock time spent processing one audio block.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		Underruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "looperd_audio_underruns_total",
			Help: "Audio device underrun/overrun callbacks reported by the backend.",
		}),
		DroppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "looperd_dropped_events_total",
			Help: "Engine events dropped because the event ring was full.",
		}),
		DroppedCommands: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "looperd_dropped_commands_total",
			Help: "Commands dropped because the command ring was full.",
		}),
		blockSamples: make(chan time.Duration, 256),
	}
	reg.MustRegister(r.BlockDuration, r.Underruns, r.DroppedEvents, r.DroppedCommands)
	return r
}

// ObserveBlockAsync is the only metrics call the audio callback itself may
// make: a non-blocking channel send. A full channel drops the sample rather
// than ever blocking the callback.
func (r *Recorder) ObserveBlockAsync(d time.Duration) {
	select {
	case r.blockSamples <- d:
	default:
	}
}

// IncUnderrun is safe to call from the backend's underrun callback, which
// audio libraries invoke off the realtime render thread.
func (r *Recorder) IncUnderrun() { r.Underruns.Inc() }

// runBlockDurationDrain is the dedicated goroutine that turns queued
// duration samples into histogram observations.
func (r *Recorder) runBlockDurationDrain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-r.blockSamples:
			r.BlockDuration.Observe(d.Seconds())
		}
	}
}

// PollEngineCounters periodically copies the engine's lock-free drop
// tallies into the Prometheus counters, and drains queued block-duration
// samples, until ctx is canceled. Run this as a background goroutine from
// the host binary, never from the audio callback.
func (r *Recorder) PollEngineCounters(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	go r.runBlockDurationDrain(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastEvents, lastCommands uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ev := eng.DroppedEvents(); ev > lastEvents {
				r.DroppedEvents.Add(float64(ev - lastEvents))
				lastEvents = ev
			}
			if cm := eng.DroppedCommands(); cm > lastCommands {
				r.DroppedCommands.Add(float64(cm - lastCommands))
				lastCommands = cm
			}
		}
	}
}
