package exec

import (
	"math"

	"github.com/Leealpha1/TinyG/internal/planner"
)

// M-code side effects the exec package recognises by default (spec.md
// §4.5); a caller may override any of these via RegisterMCode.
const (
	MCodeProgramStop     = 0
	MCodeProgramEnd      = 2
	MCodeSpindleCW       = 3
	MCodeSpindleCCW      = 4
	MCodeSpindleOff      = 5
	MCodeMistCoolantOn   = 7
	MCodeFloodCoolantOn  = 8
	MCodeCoolantOff      = 9
	MCodeMistCoolantOff  = 107
	MCodeFloodCoolantOff = 108
)

// tickAccelLine advances one segment of the active jerk-limited move,
// driving the Head→Body→Tail section machine and the New→Run1→Run2
// sub-phase machine within Head/Tail (spec.md §4.5).
func (r *Runtime) tickAccelLine() (planner.Result, error) {
	if r.section == SectionOff {
		if !r.enterSection(r.nextSection(SectionOff)) {
			return planner.ResultOk, nil
		}
	}

	isLastPhase := r.section == SectionBody || r.phase == PhaseRun2
	isLastSegment := isLastPhase && r.segmentsRemaining == 1 && r.lastSectionActive

	segDurationUs := r.segDurationMin * 60e6

	var travel [planner.NumAxes]float64
	if isLastSegment {
		for i := range travel {
			travel[i] = r.endpoint[i] - r.Position[i]
		}
	} else {
		// Simpson's rule over the segment interval: exact for the quadratic
		// v(t) of every ramp phase, so summed travel equals the section length.
		t0 := r.elapsedMin
		vStart := r.currentVelocity()
		r.elapsedMin = t0 + r.segDurationMin/2
		vMid := r.currentVelocity()
		r.elapsedMin = t0 + r.segDurationMin
		vEnd := r.currentVelocity()
		r.elapsedMin = t0
		dist := (vStart + 4*vMid + vEnd) / 6 * r.segDurationMin
		for i := range travel {
			travel[i] = r.unit[i] * dist
		}
	}

	if err := r.emitSegment(travel, segDurationUs); err != nil {
		return planner.ResultAgain, err
	}

	r.elapsedMin += r.segDurationMin
	r.segmentsRemaining--

	if r.segmentsRemaining > 0 {
		return planner.ResultAgain, nil
	}

	if !isLastPhase {
		r.enterRun2()
		return planner.ResultAgain, nil
	}

	next := r.nextSection(r.section)
	if next == SectionOff {
		return planner.ResultOk, nil
	}
	r.enterSection(next)
	return planner.ResultAgain, nil
}

func (r *Runtime) emitSegment(travel [planner.NumAxes]float64, durationUs float64) error {
	steps := r.ik(travel[:], durationUs)
	if err := r.stepper.PrepLine(steps, durationUs); err != nil {
		return err
	}
	for i := range r.Position {
		r.Position[i] += travel[i]
	}
	return nil
}

func sectionLength(b *planner.Block, s Section) float64 {
	switch s {
	case SectionHead:
		return b.HeadLength
	case SectionBody:
		return b.BodyLength
	case SectionTail:
		return b.TailLength
	default:
		return 0
	}
}

// nextSection returns the first non-empty section after cur, or
// SectionOff once Tail has been consumed (spec.md §4.5).
func (r *Runtime) nextSection(cur Section) Section {
	order := [...]Section{SectionHead, SectionBody, SectionTail}
	start := 0
	switch cur {
	case SectionHead:
		start = 1
	case SectionBody:
		start = 2
	case SectionTail:
		start = 3
	}
	tol := r.cfg.MinSectionLength.ValueOrZero()
	for i := start; i < len(order); i++ {
		if sectionLength(r.block, order[i]) > tol {
			return order[i]
		}
	}
	return SectionOff
}

// enterSection configures the runtime for the first phase of s. It
// reports false if s is SectionOff (nothing left to execute).
func (r *Runtime) enterSection(s Section) bool {
	if s == SectionOff {
		r.section = SectionOff
		return false
	}
	r.section = s
	r.lastSectionActive = r.nextSection(s) == SectionOff

	switch s {
	case SectionHead:
		r.setupRamp(r.block.EntryVelocity, r.block.CruiseVelocity)
	case SectionBody:
		r.setupBody()
	case SectionTail:
		r.setupRamp(r.block.CruiseVelocity, r.block.ExitVelocity)
	}
	return true
}

// setupRamp initialises Run1 of a Head or Tail ramp between low and high
// velocity (spec.md §4.5: symmetric concave/convex halves of equal
// duration, t_half = sqrt(|high-low|/j)).
func (r *Runtime) setupRamp(low, high float64) {
	j := r.block.Jerk
	halfMin := math.Sqrt(math.Abs(high-low) / j)
	r.tAccelMin = 2 * halfMin
	r.phase = PhaseRun1
	r.configurePhase(halfMin)
}

func (r *Runtime) enterRun2() {
	r.phase = PhaseRun2
	r.configurePhase(r.tAccelMin / 2)
}

func (r *Runtime) setupBody() {
	r.phase = PhaseRun1 // Body has a single run phase; PhaseRun2 never used.
	var durationMin float64
	if r.block.CruiseVelocity > r.cfg.Epsilon.ValueOrZero() {
		durationMin = r.block.BodyLength / r.block.CruiseVelocity
	}
	r.configurePhase(durationMin)
}

func (r *Runtime) configurePhase(durationMin float64) {
	segTargetMin := r.cfg.SegmentTargetUs * minutesPerMicrosecond
	r.segmentsRemaining = ceilDiv(durationMin, segTargetMin)
	r.segDurationMin = durationMin / float64(r.segmentsRemaining)
	r.elapsedMin = 0
}
