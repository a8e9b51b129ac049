package feedhold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leealpha1/TinyG/internal/config"
	"github.com/Leealpha1/TinyG/internal/planner"
	"github.com/Leealpha1/TinyG/internal/planner/exec"
	"github.com/Leealpha1/TinyG/internal/stepper"
)

func newTestRig(t *testing.T, poolSize int) (*planner.Planner, *exec.Runtime, *Controller, *stepper.Fake) {
	t.Helper()
	cfg := config.Default()
	if poolSize > 0 {
		cfg.PoolSize = poolSize
	}
	pool := planner.NewPool(cfg.PoolSize)
	pl := planner.NewPlanner(pool, cfg)
	fake := stepper.NewFake()
	ik := stepper.Identity(planner.NumAxes, 1)
	rt := exec.New(pool, cfg, fake, ik)
	ctrl := New(rt, pl)
	return pl, rt, ctrl, fake
}

func tick(t *testing.T, rt *exec.Runtime, ctrl *Controller) planner.Result {
	t.Helper()
	res, err := rt.Tick()
	require.NoError(t, err)
	ctrl.Tick()
	return res
}

// S5: a feedhold mid-move decelerates to zero, then resuming completes
// the remaining travel to the original target exactly.
func TestFeedholdMidMoveThenResume(t *testing.T) {
	t.Parallel()
	pl, rt, ctrl, fake := newTestRig(t, 0)

	_, err := pl.SubmitAccelLine([planner.NumAxes]float64{100, 0, 0, 0, 0, 0}, 0.1, false)
	require.NoError(t, err)

	// Let the executor produce at least one segment before holding.
	res := tick(t, rt, ctrl)
	require.Equal(t, planner.ResultAgain, res)

	ctrl.RequestFeedhold()
	assert.Equal(t, exec.HoldSync, rt.HoldState)

	// One more tick finishes a segment and the executor observes Sync,
	// yielding to Plan; the controller's Tick then runs the hold-plan
	// callback and advances to Decel.
	for i := 0; i < 5 && rt.HoldState != exec.HoldDecel; i++ {
		res = tick(t, rt, ctrl)
		require.NotEqual(t, planner.ResultInternalError, res)
	}
	require.Equal(t, exec.HoldDecel, rt.HoldState)

	// Drain until the executor parks at the hold point.
	for i := 0; i < 10000 && rt.HoldState != exec.HoldHold; i++ {
		_, err := rt.Tick()
		require.NoError(t, err)
	}

	ctrl.EndFeedhold()
	assert.Equal(t, exec.HoldOff, rt.HoldState)

	for i := 0; i < 10000 && (rt.Pool.IsBusy() || rt.HoldState != exec.HoldOff); i++ {
		_, err := rt.Tick()
		require.NoError(t, err)
	}

	require.NotEmpty(t, fake.Lines)
	assert.InDelta(t, 100.0, rt.Position[0], 1e-3)
}

func TestRequestFeedholdIsIdempotentOffState(t *testing.T) {
	t.Parallel()
	_, rt, ctrl, _ := newTestRig(t, 0)

	ctrl.RequestFeedhold()
	assert.Equal(t, exec.HoldSync, rt.HoldState)
	ctrl.RequestFeedhold()
	assert.Equal(t, exec.HoldSync, rt.HoldState, "a second request before Off is a no-op")
}
