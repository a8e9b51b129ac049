// Package trapezoid implements the jerk-limited S-curve trapezoid
// generator (spec.md §4.3): given a block's entry/cruise/exit velocity
// targets, its length, and its jerk, it produces the head/body/tail
// section lengths (and, in the degraded cases, revised endpoint
// velocities).
package trapezoid

import (
	"math"

	"github.com/Leealpha1/TinyG/internal/planner/geom"
)

// Tolerances bundles the tunables spec.md §6 lists as configuration
// inputs that the trapezoid generator needs.
type Tolerances struct {
	Epsilon           float64
	VelocityTolerance float64
	LengthTolerance   float64
	MinSectionLength  float64
	LengthFactor      float64
	IterationErrorPct float64
	MaxIterations     int
}

// Result is the head/body/tail decomposition plus whatever endpoint
// velocities the generator had to revise (degraded and symmetric cases).
type Result struct {
	HeadLength, BodyLength, TailLength          float64
	EntryVelocity, CruiseVelocity, ExitVelocity float64
}

func within(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// Plan decomposes a block of the given length into head/body/tail
// sections under jerk j, given the entry/cruise/exit velocity targets
// already chosen by the look-ahead planner (entry ≤ cruise ≥ exit is
// assumed, per spec.md §4.3's precondition).
func Plan(entry, cruise, exit, length, j float64, tol Tolerances) Result {
	switch {
	case length < tol.Epsilon:
		// 1. Zero.
		return Result{EntryVelocity: entry, CruiseVelocity: cruise, ExitVelocity: exit}

	case within(entry, cruise, tol.VelocityTolerance) && within(cruise, exit, tol.VelocityTolerance):
		// 2. Body-only.
		return finalize(0, length, 0, entry, cruise, exit, tol)
	}

	head := geom.TargetLength(entry, cruise, j)
	if head < length {
		tail := geom.TargetLength(exit, cruise, j)
		body := length - head - tail
		if body > tol.Epsilon {
			// 3. HBT.
			return finalize(head, body, tail, entry, cruise, exit, tol)
		}
	}

	if within(entry, exit, tol.VelocityTolerance) {
		// 4. Symmetric HT.
		half := length / 2
		newCruise := geom.TargetVelocity(entry, half, j)
		return finalize(half, 0, half, entry, newCruise, exit, tol)
	}

	required := geom.TargetLength(entry, exit, j)
	switch {
	case required > length+tol.LengthTolerance:
		// 5. Degraded H'/T': the line is too short to complete the
		// requested velocity change at all; collapse to one section and
		// degrade the endpoint that can't be met.
		if entry < exit {
			newExit := geom.TargetVelocity(entry, length, j)
			return finalize(length, 0, 0, entry, entry, newExit, tol)
		}
		newEntry := geom.TargetVelocity(exit, length, j)
		return finalize(0, 0, length, newEntry, exit, exit, tol)

	case length <= tol.LengthFactor*required:
		// 6. H/T with body: the full velocity change fits, with only a
		// little body length to spare.
		peak := math.Max(entry, exit)
		if entry < exit {
			h := geom.TargetLength(entry, peak, j)
			body := length - h
			return finalize(h, body, 0, entry, peak, exit, tol)
		}
		t := geom.TargetLength(exit, peak, j)
		body := length - t
		return finalize(0, body, t, entry, peak, exit, tol)

	default:
		// 7. Asymmetric HT: no body achievable, Ve ≠ Vx. Fixed-point
		// iterate the peak velocity down from cruise until head+tail
		// exactly consumes length.
		vt, converged := iterateAsymmetricPeak(entry, exit, cruise, length, j, tol)
		if !converged {
			// Design note §9: bounded iteration with a symmetric fallback
			// to preserve realtime determinism.
			half := length / 2
			vt = geom.TargetVelocity(math.Min(entry, exit), half, j)
		}
		h := geom.TargetLength(entry, vt, j)
		t := geom.TargetLength(exit, vt, j)
		sum := h + t
		if sum > tol.Epsilon {
			scale := length / sum
			h *= scale
			t *= scale
		} else {
			h, t = length/2, length/2
		}
		return finalize(h, 0, t, entry, vt, exit, tol)
	}
}

func iterateAsymmetricPeak(entry, exit, cruise, length, j float64, tol Tolerances) (vt float64, converged bool) {
	vt = cruise
	maxIter := tol.MaxIterations
	if maxIter <= 0 {
		maxIter = 20
	}
	for i := 0; i < maxIter; i++ {
		h := geom.TargetLength(entry, vt, j)
		t := geom.TargetLength(exit, vt, j)
		sum := h + t
		if sum <= tol.Epsilon {
			return vt, true
		}
		scale := length / sum
		h *= scale
		t *= scale

		var newVt float64
		if h >= t {
			newVt = geom.TargetVelocity(entry, h, j)
		} else {
			newVt = geom.TargetVelocity(exit, t, j)
		}

		denom := math.Max(vt, tol.Epsilon)
		relChange := math.Abs(newVt-vt) / denom
		vt = newVt
		if relChange < tol.IterationErrorPct {
			return vt, true
		}
	}
	return vt, false
}

// finalize raises the reported cruise velocity to at least max(entry, exit)
// (spec.md §3 invariant) and, for a block at least MinSectionLength long,
// zeroes any section shorter than MinSectionLength and redistributes its
// length to keep the total exact.
func finalize(head, body, tail, entry, cruise, exit float64, tol Tolerances) Result {
	total := head + body + tail
	cruise = math.Max(cruise, math.Max(entry, exit))

	if total < tol.MinSectionLength {
		// No section of a block this short can reach MinSectionLength, so
		// the decomposition is kept as computed.
		return Result{head, body, tail, entry, cruise, exit}
	}

	if head > 0 && head < tol.MinSectionLength {
		body += head
		head = 0
	}
	if tail > 0 && tail < tol.MinSectionLength {
		body += tail
		tail = 0
	}
	if body > 0 && body < tol.MinSectionLength && (head > 0 || tail > 0) {
		if head >= tail {
			head += body
		} else {
			tail += body
		}
		body = 0
	}

	if drift := total - (head + body + tail); drift != 0 {
		body += drift
		if body < 0 {
			// Length was concentrated entirely in head/tail; absorb the
			// drift back into whichever section is larger instead of
			// reporting a negative body.
			if head >= tail {
				head += body
			} else {
				tail += body
			}
			body = 0
		}
	}

	return Result{
		HeadLength:     head,
		BodyLength:     body,
		TailLength:     tail,
		EntryVelocity:  entry,
		CruiseVelocity: cruise,
		ExitVelocity:   exit,
	}
}
