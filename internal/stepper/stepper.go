// Package stepper is the narrow downstream interface spec.md §1/§6
// describes: the planner pushes segments to a stepper pulse generator
// and inverse-kinematics layer through prep_line/prep_dwell/prep_null,
// and asks it to schedule another exec() call via RequestExec. Both the
// real pulse generator and the inverse-kinematics math are out of scope
// (spec.md §1); this package is the seam plus a deterministic fake used
// by tests and the demo CLI.
package stepper

import "errors"

// ErrBusy is returned by a Prep* call when the stepper layer cannot
// accept another prepared move yet.
var ErrBusy = errors.New("stepper: busy")

// Interface is the downstream collaborator the runtime executor drives.
type Interface interface {
	// PrepLine submits one segment's per-motor step counts for duration_us.
	PrepLine(steps []int64, durationUs float64) error
	// PrepDwell submits a dwell of duration_us with no motion.
	PrepDwell(durationUs float64) error
	// PrepNull is a loader-ordering placeholder for auxiliary commands
	// that have no motion of their own (spec.md §4.5).
	PrepNull() error
	// RequestExec asks the stepper ISR to call exec() again.
	RequestExec()
	// IsBusy reports whether the stepper still has prepared work pending.
	IsBusy() bool
}

// InverseKinematics turns a travel vector and segment duration into
// per-motor step counts. The real implementation is out of scope
// (spec.md §1); the motor count may differ from planner.NumAxes.
type InverseKinematics func(travel []float64, durationUs float64) []int64

// Identity is the trivial Cartesian IK used by the demo CLI and tests:
// one motor per axis, steps = travel × stepsPerMM, truncated toward zero.
func Identity(numMotors int, stepsPerMM float64) InverseKinematics {
	return func(travel []float64, _ float64) []int64 {
		steps := make([]int64, numMotors)
		for i := 0; i < numMotors && i < len(travel); i++ {
			steps[i] = int64(travel[i] * stepsPerMM)
		}
		return steps
	}
}

// Fake is an in-memory Interface recording every prepared segment, for
// tests and the demo CLI's offline mode.
type Fake struct {
	Lines  []FakeLine
	Dwells []float64
	Nulls  int
	busy   bool
}

// FakeLine is one recorded PrepLine call.
type FakeLine struct {
	Steps      []int64
	DurationUs float64
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) PrepLine(steps []int64, durationUs float64) error {
	cp := append([]int64(nil), steps...)
	f.Lines = append(f.Lines, FakeLine{Steps: cp, DurationUs: durationUs})
	return nil
}

func (f *Fake) PrepDwell(durationUs float64) error {
	f.Dwells = append(f.Dwells, durationUs)
	return nil
}

func (f *Fake) PrepNull() error {
	f.Nulls++
	return nil
}

func (f *Fake) RequestExec() {}

func (f *Fake) IsBusy() bool { return f.busy }

// SetBusy lets tests simulate the stepper layer refusing more work.
func (f *Fake) SetBusy(busy bool) { f.busy = busy }
