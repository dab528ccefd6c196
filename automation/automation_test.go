package automation

import (
	"testing"

	"github.com/loopcore/looperengine/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalCurveInterpolatesLinearlyBetweenBreakpoints(t *testing.T) {
	c := &Curve{Points: []Breakpoint{{X: 0, Value: 0}, {X: 10, Value: 1}}}
	v, ok := evalCurve(c, 5)
	require.True(t, ok)
	assert.InDelta(t, 0.5, v, 1e-9)
}

func TestEvalCurveClampsBeforeFirstAndAfterLastWhenNotLooping(t *testing.T) {
	c := &Curve{Points: []Breakpoint{{X: 0, Value: 2}, {X: 10, Value: 5}}}
	v, ok := evalCurve(c, -3)
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	v, ok = evalCurve(c, 99)
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
}

func TestEvalCurveWrapsWhenLooping(t *testing.T) {
	c := &Curve{Points: []Breakpoint{{X: 0, Value: 0}, {X: 10, Value: 10}}, Loop: true}
	v, ok := evalCurve(c, 15)
	require.True(t, ok)
	assert.InDelta(t, 5, v, 1e-9)
}

func TestEvalCurveWithNoPointsReportsFalse(t *testing.T) {
	c := &Curve{}
	_, ok := evalCurve(c, 1)
	assert.False(t, ok)
}

func TestEvalCurveWithSinglePointIsConstant(t *testing.T) {
	c := &Curve{Points: []Breakpoint{{X: 5, Value: 7}}}
	v, ok := evalCurve(c, 1000)
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
}

func TestEngineEvaluateEmitsOnlyOnValueChange(t *testing.T) {
	e := NewEngine()
	c := &Curve{
		Points:     []Breakpoint{{X: 0, Value: 0}, {X: 100, Value: 0}, {X: 200, Value: 1}},
		TimeBase:   TimeBaseLoopIndex,
		TrackIndex: 0,
		Target:     bus.CmdSetVolume,
	}
	e.AddCurve(c)

	var emitted []bus.Command
	positions := map[int]int{0: 0}
	e.Evaluate(positions, 0, func(cmd bus.Command) { emitted = append(emitted, cmd) })
	require.Len(t, emitted, 1)

	positions[0] = 50
	e.Evaluate(positions, 0, func(cmd bus.Command) { emitted = append(emitted, cmd) })
	assert.Len(t, emitted, 1) // value unchanged (still 0 across flat segment)
}

func TestEngineEvaluateUsesElapsedTimeBaseIndependentOfLoopPosition(t *testing.T) {
	e := NewEngine()
	c := &Curve{
		Points:   []Breakpoint{{X: 0, Value: 0}, {X: 100, Value: 1}},
		TimeBase: TimeBaseElapsed,
		Target:   bus.CmdSetVolume,
	}
	e.AddCurve(c)

	var emitted []bus.Command
	e.Evaluate(map[int]int{}, 50, func(cmd bus.Command) { emitted = append(emitted, cmd) })
	require.Len(t, emitted, 1)
	assert.InDelta(t, 0.5, emitted[0].Payload.Float, 1e-9)
}

func TestRemoveCurveDropsByIndex(t *testing.T) {
	e := NewEngine()
	a := e.AddCurve(&Curve{Points: []Breakpoint{{X: 0, Value: 1}}})
	b := e.AddCurve(&Curve{Points: []Breakpoint{{X: 0, Value: 2}}})
	e.RemoveCurve(a)

	require.Len(t, e.curves, 1)
	assert.Equal(t, 2.0, e.curves[0].Points[0].Value)
	_ = b
}

func TestModFloatWrapsNegativeAndOverflowingValues(t *testing.T) {
	assert.InDelta(t, 3, modFloat(-7, 10), 1e-9)
	assert.InDelta(t, 3, modFloat(23, 10), 1e-9)
	assert.InDelta(t, 0, modFloat(0, 10), 1e-9)
}
