package exec

import (
	"errors"

	"github.com/Leealpha1/TinyG/internal/errext"
	"github.com/Leealpha1/TinyG/internal/errext/exitcodes"
	"github.com/Leealpha1/TinyG/internal/planner"
)

var errRuntimeBusy = errext.WithExitCodeIfNone(
	errext.WithHint(
		errors.New("exec: cannot set runtime position while a block is in flight"),
		"call SetPosition/SetAxisPosition only while IsBusy() is false",
	),
	exitcodes.Internal,
)

// SetPosition resets the runtime's in-flight position directly. Position
// is otherwise exec-context-owned and unsynchronized (spec.md §5), so
// this is only safe to call while the executor is idle; it exists for
// set_axis_position (spec.md §6), distinct from the planner-only
// SetPlanPosition used by plain set_plan_position/G92.
func (r *Runtime) SetPosition(pos [planner.NumAxes]float64) error {
	if r.block != nil || r.Pool.IsBusy() {
		return errRuntimeBusy
	}
	r.Position = pos
	return nil
}

// SetAxisPosition resets both the planner's end-of-queue position and the
// runtime's in-flight position in one call (spec.md §6's set_axis_position,
// "reset both planning and runtime positions", used by G92.1/G28-style
// homing) — distinct from set_plan_position/Planner.SetPlanPosition, which
// touches planning state only. Coordinating the two here, rather than
// leaving callers to poke Runtime.Position directly, keeps the
// exec-context-only write rule spec.md §5 states for Position intact.
func SetAxisPosition(rt *Runtime, pl *planner.Planner, pos [planner.NumAxes]float64) error {
	if err := rt.SetPosition(pos); err != nil {
		return err
	}
	pl.SetPlanPosition(pos)
	return nil
}
