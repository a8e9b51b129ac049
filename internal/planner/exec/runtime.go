// Package exec implements the runtime executor (spec.md §4.5): a single
// state machine, invoked once per "exec tick" from a low-priority
// interrupt stand-in, that dequeues one block at a time and emits
// exactly one downstream segment per invocation.
package exec

import (
	"math"

	"github.com/Leealpha1/TinyG/internal/config"
	"github.com/Leealpha1/TinyG/internal/planner"
	"github.com/Leealpha1/TinyG/internal/stepper"
)

// Section is the move-level state within a block (spec.md §4.5):
// Off → Head → Body → Tail → Off. A zero-length section is skipped.
type Section int

const (
	SectionOff Section = iota
	SectionHead
	SectionBody
	SectionTail
)

// SubPhase is the section-level state within Head/Tail (New→Run1→Run2)
// or Body (New→Run).
type SubPhase int

const (
	PhaseNew SubPhase = iota
	PhaseRun1
	PhaseRun2
	PhaseDone
)

// HoldState is the feedhold FSM (spec.md §4.6): Off, Sync, Plan, Decel,
// Hold, EndHold.
type HoldState int

const (
	HoldOff HoldState = iota
	HoldSync
	HoldPlan
	HoldDecel
	HoldHold
	HoldEndHold
)

func (h HoldState) String() string {
	switch h {
	case HoldOff:
		return "Off"
	case HoldSync:
		return "Sync"
	case HoldPlan:
		return "Plan"
	case HoldDecel:
		return "Decel"
	case HoldHold:
		return "Hold"
	case HoldEndHold:
		return "EndHold"
	default:
		return "Unknown"
	}
}

const minutesPerMicrosecond = 1.0 / 60e6

// MCodeHandler is the side-effect callback for one M-code. The handler
// table replaces a switch over numeric codes (spec.md §9 design note).
type MCodeHandler func(code int) error

// Runtime is the exec-context-owned singleton (spec.md §3, "Runtime
// singleton"). Only Tick (exec context) mutates it, except that the
// feedhold package's plan callback is allowed to mutate it while
// HoldState is HoldPlan — the handoff the hold-state field encodes.
type Runtime struct {
	Pool    *planner.Pool
	cfg     config.Config
	stepper stepper.Interface
	ik      stepper.InverseKinematics

	Position [planner.NumAxes]float64
	endpoint [planner.NumAxes]float64
	unit     [planner.NumAxes]float64

	block   *planner.Block
	section Section
	phase   SubPhase

	lastSectionActive bool // true once the section in progress is the final one

	segmentsRemaining int
	segDurationMin    float64
	elapsedMin        float64

	tAccelMin float64 // full two-half ramp duration, for a_mid

	lineNumber int

	HoldState HoldState

	mcodeHandlers map[int]MCodeHandler

	OnProgramStop        func()
	OnProgramEnd         func()
	OnSpindleControl     func(dir int)
	OnMistCoolant        func(on bool)
	OnFloodCoolant       func(on bool)
	OnFeedOverrideEnable func(enable bool)

	lastErr error
}

// New constructs a Runtime driving iface via ik, using cfg's segment
// duration target.
func New(pool *planner.Pool, cfg config.Config, iface stepper.Interface, ik stepper.InverseKinematics) *Runtime {
	return &Runtime{
		Pool:          pool,
		cfg:           cfg,
		stepper:       iface,
		ik:            ik,
		mcodeHandlers: make(map[int]MCodeHandler),
	}
}

// RegisterMCode installs the side-effect handler for code.
func (r *Runtime) RegisterMCode(code int, h MCodeHandler) {
	r.mcodeHandlers[code] = h
}

// IsBusy reports whether the runtime has a block in flight.
func (r *Runtime) IsBusy() bool {
	return r.block != nil || r.Pool.IsBusy()
}

// LastError returns the most recently latched exec-context error
// (spec.md §7: "latched and surfaced on the next main-loop query").
func (r *Runtime) LastError() error { return r.lastErr }

// LineNumber returns the source line of the block currently executing.
func (r *Runtime) LineNumber() int { return r.lineNumber }

// Velocity returns the instantaneous velocity of the segment about to be
// (or most recently) prepared, used by the feedhold controller to size
// the braking ramp.
func (r *Runtime) Velocity() float64 {
	return r.currentVelocity()
}

// CurrentBlock returns the block in flight, or nil if the executor is
// idle. The feedhold controller uses this during the Hold-Plan handoff.
func (r *Runtime) CurrentBlock() *planner.Block { return r.block }

// ReshapeDecelTail rewrites the in-flight block into a pure braking tail
// from fromVelocity down to exitVelocity (zero in Case A) over length, reusing the
// ordinary Tail ramp machinery (spec.md §4.6, Case A/B). It must only be
// called while HoldState is HoldPlan, the window the main-loop's
// plan_hold_callback owns (spec.md §5).
func (r *Runtime) ReshapeDecelTail(fromVelocity, length, exitVelocity float64) {
	r.block.HeadLength = 0
	r.block.BodyLength = 0
	r.block.TailLength = length
	r.block.CruiseVelocity = fromVelocity
	r.block.ExitVelocity = exitVelocity
	r.endpoint = r.Position
	for i := range r.endpoint {
		r.endpoint[i] += r.unit[i] * length
	}
	r.section = SectionOff
	r.phase = PhaseNew
}

// RequestHold asserts a feedhold (spec.md §4.6: Off→Sync is normally
// performed by the canonical machine; exposed here for the demo CLI).
func (r *Runtime) RequestHold() {
	if r.HoldState == HoldOff {
		r.HoldState = HoldSync
	}
}

// Resume releases a completed hold (spec.md §4.6: EndHold clears
// hold_point and notifies the stepper to pump the executor again).
func (r *Runtime) Resume() {
	if r.HoldState != HoldHold {
		return
	}
	r.Pool.BlockAt(r.Pool.RunIndex()).HoldPoint = false
	r.HoldState = HoldOff
	r.stepper.RequestExec()
}

// Tick prepares exactly one downstream segment and returns the spec.md
// §7 Result for this call.
func (r *Runtime) Tick() (planner.Result, error) {
	if r.block == nil {
		idx := r.Pool.RunIndex()
		if r.Pool.BlockAt(idx).HoldPoint {
			// Reaching the hold_point: pause here until EndHold (spec.md
			// §4.6). CurrentRun is deliberately not called, so the block
			// is not promoted to Running and stays eligible for replan.
			r.HoldState = HoldHold
			return planner.ResultNoOp, nil
		}
		b, ok := r.Pool.CurrentRun()
		if !ok {
			return planner.ResultNoOp, nil
		}
		r.loadBlock(b)
	}

	var res planner.Result
	var err error
	switch r.block.Kind {
	case planner.KindDwell:
		res, err = r.tickDwell()
	case planner.KindLine:
		res, err = r.tickLine()
	case planner.KindMCode, planner.KindTool, planner.KindSpindleSpeed:
		res, err = r.tickAux()
	case planner.KindAccelLine:
		res, err = r.tickAccelLine()
	default:
		res, err = planner.ResultInternalError, planner.ErrInternal
	}

	if err != nil {
		r.lastErr = err
	}
	if res == planner.ResultOk {
		r.finishBlock()
	}

	if r.HoldState == HoldSync {
		r.HoldState = HoldPlan
	}

	return res, err
}

func (r *Runtime) loadBlock(b *planner.Block) {
	r.block = b
	r.unit = b.Unit
	r.endpoint = b.Target
	r.lineNumber = b.LineNumber
	r.section = SectionOff
	r.phase = PhaseNew
	b.SetMoveState(planner.MoveNew)
}

func (r *Runtime) finishBlock() {
	wasHoldPoint := r.block.HoldPoint
	r.block.SetMoveState(planner.MoveOff)
	r.Pool.FinaliseRun()
	r.block = nil
	r.section = SectionOff
	r.phase = PhaseNew
	if wasHoldPoint && r.HoldState == HoldDecel {
		// The hold point was this very block (no post-hold continuation
		// was queued behind it): there is nothing left to pin on, so the
		// hold is reached the instant it finishes.
		r.HoldState = HoldHold
	}
}

func (r *Runtime) tickDwell() (planner.Result, error) {
	durationUs := r.block.DwellSecs * 1e6
	if err := r.stepper.PrepDwell(durationUs); err != nil {
		return planner.ResultAgain, err
	}
	return planner.ResultOk, nil
}

func (r *Runtime) tickLine() (planner.Result, error) {
	if r.block.Length <= 0 {
		return planner.ResultOk, nil
	}
	var travel [planner.NumAxes]float64
	for i := range travel {
		travel[i] = r.endpoint[i] - r.Position[i]
	}
	durationUs := r.block.Time * 60e6
	if err := r.emitSegment(travel, durationUs); err != nil {
		return planner.ResultAgain, err
	}
	return planner.ResultOk, nil
}

func (r *Runtime) tickAux() (planner.Result, error) {
	var handlerErr error
	switch r.block.Kind {
	case planner.KindMCode:
		if h, ok := r.mcodeHandlers[r.block.MCode]; ok {
			handlerErr = h(r.block.MCode)
		} else {
			switch r.block.MCode {
			case MCodeProgramStop:
				if r.OnProgramStop != nil {
					r.OnProgramStop()
				}
			case MCodeProgramEnd:
				if r.OnProgramEnd != nil {
					r.OnProgramEnd()
				}
			case MCodeSpindleCW:
				if r.OnSpindleControl != nil {
					r.OnSpindleControl(1)
				}
			case MCodeSpindleCCW:
				if r.OnSpindleControl != nil {
					r.OnSpindleControl(-1)
				}
			case MCodeSpindleOff:
				if r.OnSpindleControl != nil {
					r.OnSpindleControl(0)
				}
			case MCodeMistCoolantOn:
				if r.OnMistCoolant != nil {
					r.OnMistCoolant(true)
				}
			case MCodeMistCoolantOff:
				if r.OnMistCoolant != nil {
					r.OnMistCoolant(false)
				}
			case MCodeFloodCoolantOn:
				if r.OnFloodCoolant != nil {
					r.OnFloodCoolant(true)
				}
			case MCodeFloodCoolantOff:
				if r.OnFloodCoolant != nil {
					r.OnFloodCoolant(false)
				}
			case MCodeCoolantOff:
				if r.OnMistCoolant != nil {
					r.OnMistCoolant(false)
				}
				if r.OnFloodCoolant != nil {
					r.OnFloodCoolant(false)
				}
			default:
				return planner.ResultInternalError, planner.ErrInternal
			}
		}
	case planner.KindTool, planner.KindSpindleSpeed:
		// No registered side effect in this simulation beyond bookkeeping;
		// the canonical machine layer owns the real tool table / spindle
		// controller (spec.md §1, out of scope).
	}
	if handlerErr != nil {
		return planner.ResultInternalError, handlerErr
	}
	if err := r.stepper.PrepNull(); err != nil {
		return planner.ResultAgain, err
	}
	return planner.ResultOk, nil
}

func (r *Runtime) currentVelocity() float64 {
	if r.block == nil {
		return 0
	}
	switch r.section {
	case SectionHead:
		ve, vt := r.block.EntryVelocity, r.block.CruiseVelocity
		return r.rampVelocity(ve, vt, r.elapsedMin, true)
	case SectionBody:
		return r.block.CruiseVelocity
	case SectionTail:
		vt, vx := r.block.CruiseVelocity, r.block.ExitVelocity
		return r.rampVelocity(vt, vx, r.elapsedMin, false)
	default:
		return 0
	}
}

// rampVelocity implements the four v(t) formulas of spec.md §4.5. low/high
// are (Ve,Vt) for Head or (Vt,Vx) for Tail; accelerating selects the Head
// vs Tail sign convention.
func (r *Runtime) rampVelocity(low, high, t float64, accelerating bool) float64 {
	j := r.block.Jerk
	switch r.phase {
	case PhaseRun1:
		if accelerating {
			return low + (j/2)*t*t
		}
		return low - (j/2)*t*t // Tail Run1: v(t) = Vt - (j/2)t^2
	case PhaseRun2:
		mid := (low + high) / 2
		if accelerating {
			aMid := 2 * (high - low) / r.tAccelMin
			return mid + aMid*t - (j/2)*t*t
		}
		// Tail Run2: a_mid = 2(Vt-Vx)/t_accel > 0 (spec.md §4.5); the ramp
		// decelerates from mid toward Vx, so a_mid is built from (low-high)
		// rather than reusing the Head branch's (high-low).
		aMid := 2 * (low - high) / r.tAccelMin
		return mid - aMid*t + (j/2)*t*t
	default:
		return low
	}
}

func ceilDiv(total, target float64) int {
	if target <= 0 {
		return 1
	}
	n := int(math.Ceil(total / target))
	if n < 1 {
		n = 1
	}
	return n
}
