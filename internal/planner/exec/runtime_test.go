package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leealpha1/TinyG/internal/config"
	"github.com/Leealpha1/TinyG/internal/planner"
	"github.com/Leealpha1/TinyG/internal/stepper"
)

func newTestRig(t *testing.T, poolSize int) (*planner.Planner, *Runtime, *stepper.Fake) {
	t.Helper()
	cfg := config.Default()
	if poolSize > 0 {
		cfg.PoolSize = poolSize
	}
	pool := planner.NewPool(cfg.PoolSize)
	p := planner.NewPlanner(pool, cfg)
	fake := stepper.NewFake()
	ik := stepper.Identity(planner.NumAxes, 1)
	rt := New(pool, cfg, fake, ik)
	return p, rt, fake
}

func runToCompletion(t *testing.T, rt *Runtime, maxTicks int) []planner.Result {
	t.Helper()
	var results []planner.Result
	for i := 0; i < maxTicks; i++ {
		res, err := rt.Tick()
		require.NoError(t, err)
		results = append(results, res)
		if res == planner.ResultOk {
			if !rt.Pool.IsBusy() {
				return results
			}
		}
		if res == planner.ResultNoOp {
			return results
		}
	}
	t.Fatalf("did not reach completion within %d ticks", maxTicks)
	return nil
}

func TestRuntimeNoOpOnEmptyQueue(t *testing.T) {
	t.Parallel()
	_, rt, _ := newTestRig(t, 0)

	res, err := rt.Tick()
	require.NoError(t, err)
	assert.Equal(t, planner.ResultNoOp, res)
}

func TestRuntimeUnaccelLineIsSingleSegment(t *testing.T) {
	t.Parallel()
	p, rt, fake := newTestRig(t, 0)

	_, err := p.SubmitLine([planner.NumAxes]float64{10, 0, 0, 0, 0, 0}, 0.01)
	require.NoError(t, err)

	res, err := rt.Tick()
	require.NoError(t, err)
	assert.Equal(t, planner.ResultOk, res)
	require.Len(t, fake.Lines, 1)
	assert.InDelta(t, 10.0, float64(fake.Lines[0].Steps[0]), 1e-6)
	assert.False(t, rt.Pool.IsBusy())
}

func TestRuntimeAccelLineReachesEndpointExactly(t *testing.T) {
	t.Parallel()
	p, rt, fake := newTestRig(t, 0)

	_, err := p.SubmitAccelLine([planner.NumAxes]float64{10, 0, 0, 0, 0, 0}, 0.01, false)
	require.NoError(t, err)

	runToCompletion(t, rt, 10000)

	require.NotEmpty(t, fake.Lines)
	assert.InDelta(t, 10.0, rt.Position[0], 1e-6)
	assert.False(t, rt.Pool.IsBusy())
}

func TestRuntimeAccelLineEmitsMultipleSegments(t *testing.T) {
	t.Parallel()
	p, rt, fake := newTestRig(t, 0)

	_, err := p.SubmitAccelLine([planner.NumAxes]float64{50, 0, 0, 0, 0, 0}, 0.01, false)
	require.NoError(t, err)

	runToCompletion(t, rt, 10000)

	assert.Greater(t, len(fake.Lines), 1, "a jerk-limited move spans more than one downstream segment")
}

func TestSetAxisPositionResetsPlanAndRuntimePosition(t *testing.T) {
	t.Parallel()
	p, rt, _ := newTestRig(t, 0)

	_, err := p.SubmitLine([planner.NumAxes]float64{10, 0, 0, 0, 0, 0}, 0.01)
	require.NoError(t, err)
	runToCompletion(t, rt, 100)
	require.InDelta(t, 10.0, rt.Position[0], 1e-6)
	require.InDelta(t, 10.0, p.Position()[0], 1e-6)

	home := [planner.NumAxes]float64{0, 0, 0, 0, 0, 0}
	require.NoError(t, SetAxisPosition(rt, p, home))
	assert.Equal(t, home, rt.Position)
	assert.Equal(t, home, p.Position())

	// A subsequent move is measured from the reset position, not the old one.
	_, err = p.SubmitLine([planner.NumAxes]float64{3, 0, 0, 0, 0, 0}, 0.01)
	require.NoError(t, err)
	runToCompletion(t, rt, 100)
	assert.InDelta(t, 3.0, rt.Position[0], 1e-6)
}

func TestSetAxisPositionRejectedWhileBusy(t *testing.T) {
	t.Parallel()
	p, rt, _ := newTestRig(t, 0)

	_, err := p.SubmitAccelLine([planner.NumAxes]float64{200, 0, 0, 0, 0, 0}, 0.05, false)
	require.NoError(t, err)

	_, err = rt.Tick()
	require.NoError(t, err)
	require.NotNil(t, rt.block)

	err = SetAxisPosition(rt, p, [planner.NumAxes]float64{})
	require.Error(t, err)
}

func TestRuntimeDwellPrepsDuration(t *testing.T) {
	t.Parallel()
	p, rt, fake := newTestRig(t, 0)

	_, err := p.SubmitDwell(0.25)
	require.NoError(t, err)

	res, err := rt.Tick()
	require.NoError(t, err)
	assert.Equal(t, planner.ResultOk, res)
	require.Len(t, fake.Dwells, 1)
	assert.InDelta(t, 250000.0, fake.Dwells[0], 1e-6)
}

func TestRuntimeMCodeInvokesRegisteredHandler(t *testing.T) {
	t.Parallel()
	p, rt, fake := newTestRig(t, 0)

	var seen int
	rt.RegisterMCode(42, func(code int) error {
		seen = code
		return nil
	})

	_, err := p.SubmitMCode(42)
	require.NoError(t, err)

	res, err := rt.Tick()
	require.NoError(t, err)
	assert.Equal(t, planner.ResultOk, res)
	assert.Equal(t, 42, seen)
	assert.Equal(t, 1, fake.Nulls)
}

func TestRuntimeUnregisteredMCodeFallsBackToBuiltins(t *testing.T) {
	t.Parallel()
	p, rt, _ := newTestRig(t, 0)

	var stopped bool
	rt.OnProgramStop = func() { stopped = true }

	_, err := p.SubmitMCode(MCodeProgramStop)
	require.NoError(t, err)

	res, err := rt.Tick()
	require.NoError(t, err)
	assert.Equal(t, planner.ResultOk, res)
	assert.True(t, stopped)
}

func TestRuntimeProcessesQueueInOrder(t *testing.T) {
	t.Parallel()
	p, rt, fake := newTestRig(t, 0)

	_, err := p.SubmitLine([planner.NumAxes]float64{1, 0, 0, 0, 0, 0}, 0.01)
	require.NoError(t, err)
	_, err = p.SubmitDwell(0.01)
	require.NoError(t, err)
	_, err = p.SubmitLine([planner.NumAxes]float64{1, 1, 0, 0, 0, 0}, 0.01)
	require.NoError(t, err)

	assert.Equal(t, 3, len(collectUntilIdle(t, rt)))
	require.Len(t, fake.Lines, 2)
	assert.Equal(t, int64(1), fake.Lines[0].Steps[0], "the X move runs first")
	assert.Equal(t, int64(1), fake.Lines[1].Steps[1], "the Y move runs last")
}

// TestRuntimeTailSegmentsSumToTailLengthAndDecelerateMonotonically guards
// the §8 testable property that summed segment travel over a section
// matches its planned length, specifically for Tail: an isolated move's
// Tail ramps from cruise down to zero, and every segment's velocity must
// be non-increasing across it. The endpoint snap on the final segment
// would otherwise mask a sign error in the Run2 deceleration formula.
func TestRuntimeTailSegmentsSumToTailLengthAndDecelerateMonotonically(t *testing.T) {
	t.Parallel()
	p, rt, fake := newTestRig(t, 0)

	_, err := p.SubmitAccelLine([planner.NumAxes]float64{200, 0, 0, 0, 0, 0}, 0.05, false)
	require.NoError(t, err)

	// The first tick loads the block and plans its Head/Body/Tail lengths.
	_, err = rt.Tick()
	require.NoError(t, err)
	require.NotNil(t, rt.block)
	tailLength := rt.block.TailLength
	require.Greater(t, tailLength, 0.0, "test fixture must be long enough to reach cruise and decelerate")

	var tailTravel float64
	var tailVelocities []float64
	for i := 0; i < 10000 && (rt.Pool.IsBusy() || rt.block != nil); i++ {
		inTail := rt.section == SectionTail
		var posBefore float64
		if inTail {
			tailVelocities = append(tailVelocities, rt.Velocity())
			posBefore = rt.Position[0]
		}
		_, err := rt.Tick()
		require.NoError(t, err)
		if inTail {
			tailTravel += rt.Position[0] - posBefore
		}
	}

	require.NotEmpty(t, tailVelocities, "the move must actually enter a Tail section")
	assert.InDelta(t, tailLength, tailTravel, 1e-6, "segment travel summed over Tail must match the planned tail length")
	for i := 1; i < len(tailVelocities); i++ {
		assert.LessOrEqual(t, tailVelocities[i], tailVelocities[i-1]+1e-9, "Tail velocity must decrease monotonically")
	}
	require.NotEmpty(t, fake.Lines)
}

func collectUntilIdle(t *testing.T, rt *Runtime) []planner.Result {
	t.Helper()
	var out []planner.Result
	for i := 0; i < 100; i++ {
		if !rt.Pool.IsBusy() && rt.block == nil {
			break
		}
		res, err := rt.Tick()
		require.NoError(t, err)
		if res == planner.ResultOk {
			out = append(out, res)
		}
	}
	return out
}
