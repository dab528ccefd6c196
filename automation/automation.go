// Package automation evaluates breakpoint curves against loop index or
// elapsed time and emits parameter-change commands (spec §2 AutomationEngine).
package automation

import "github.com/loopcore/looperengine/bus"

// TimeBase selects whether a curve is driven by loop position or wall clock.
type TimeBase int

const (
	TimeBaseLoopIndex TimeBase = iota
	TimeBaseElapsed
)

// Breakpoint is one (x, value) control point; x is either a frame index
// (TimeBaseLoopIndex) or a sample count since engagement (TimeBaseElapsed).
type Breakpoint struct {
	X     float64
	Value float64
}

// Curve drives a single target command (e.g. SetVolume on a given track) by
// linearly interpolating between sorted breakpoints, looping at the end.
type Curve struct {
	Points     []Breakpoint
	TimeBase   TimeBase
	TrackIndex int
	Target     bus.CommandType
	Loop       bool

	lastEmitted float64
	haveEmitted bool
}

// Engine evaluates a set of curves once per block and emits the resulting
// commands via emit, letting the caller route them onto the command ring
// (or apply them directly, for the single-process embedding case).
type Engine struct {
	curves  []*Curve
	elapsed int64
}

// NewEngine creates an automation engine with no curves installed.
func NewEngine() *Engine { return &Engine{} }

// AddCurve installs a curve; returns its index for later removal.
func (e *Engine) AddCurve(c *Curve) int {
	e.curves = append(e.curves, c)
	return len(e.curves) - 1
}

// RemoveCurve drops the curve at index i.
func (e *Engine) RemoveCurve(i int) {
	if i < 0 || i >= len(e.curves) {
		return
	}
	e.curves = append(e.curves[:i], e.curves[i+1:]...)
}

// Evaluate advances elapsed-time curves by n frames and, for the given
// track's loop position (in frames), emits a Command for every curve whose
// value changed since the last call. emit is expected to be a cheap,
// allocation-free sink (e.g. Bus.PushCommand) since this runs per block.
func (e *Engine) Evaluate(loopPositions map[int]int, n int, emit func(bus.Command)) {
	e.elapsed += int64(n)
	for _, c := range e.curves {
		var x float64
		switch c.TimeBase {
		case TimeBaseElapsed:
			x = float64(e.elapsed)
		default:
			x = float64(loopPositions[c.TrackIndex])
		}
		v, ok := evalCurve(c, x)
		if !ok {
			continue
		}
		if c.haveEmitted && v == c.lastEmitted {
			continue
		}
		c.lastEmitted = v
		c.haveEmitted = true
		emit(bus.Command{
			Type:       c.Target,
			TrackIndex: c.TrackIndex,
			Payload:    bus.Payload{Kind: bus.PayloadFloat, Float: v},
		})
	}
}

func evalCurve(c *Curve, x float64) (float64, bool) {
	pts := c.Points
	if len(pts) == 0 {
		return 0, false
	}
	if len(pts) == 1 {
		return pts[0].Value, true
	}
	span := pts[len(pts)-1].X - pts[0].X
	if c.Loop && span > 0 {
		x = pts[0].X + modFloat(x-pts[0].X, span)
	}
	if x <= pts[0].X {
		return pts[0].Value, true
	}
	last := pts[len(pts)-1]
	if x >= last.X {
		if c.Loop {
			return last.Value, true
		}
		return last.Value, true
	}
	for i := 1; i < len(pts); i++ {
		if x <= pts[i].X {
			prev := pts[i-1]
			cur := pts[i]
			if cur.X == prev.X {
				return cur.Value, true
			}
			t := (x - prev.X) / (cur.X - prev.X)
			return prev.Value + (cur.Value-prev.Value)*t, true
		}
	}
	return last.Value, true
}

func modFloat(a, m float64) float64 {
	for a < 0 {
		a += m
	}
	for a >= m {
		a -= m
	}
	return a
}
