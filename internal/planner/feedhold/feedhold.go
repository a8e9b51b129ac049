// Package feedhold implements the feedhold controller (spec.md §4.6): on
// a hold request it reshapes the in-flight block (and, if necessary,
// enough downstream blocks) into a braking ramp down to zero, marks the
// release point, and replans the queue; on resume it releases execution.
//
// The controller runs in the main-loop context and is the one exception
// to "the runtime is exec-owned": spec.md §5 grants plan_hold_callback a
// window to mutate the runtime while its hold state is HoldPlan. That
// window is exactly the body of planHoldCallback below.
package feedhold

import (
	"github.com/Leealpha1/TinyG/internal/planner"
	"github.com/Leealpha1/TinyG/internal/planner/exec"
	"github.com/Leealpha1/TinyG/internal/planner/geom"
)

// Controller couples a Runtime and the Planner that owns its pool.
type Controller struct {
	Runtime *exec.Runtime
	Planner *planner.Planner
}

// New constructs a Controller over rt and pl. rt must be driving pl.Pool.
func New(rt *exec.Runtime, pl *planner.Planner) *Controller {
	return &Controller{Runtime: rt, Planner: pl}
}

// RequestFeedhold asserts Off→Sync (spec.md §4.6). The canonical machine
// normally performs this; it is exposed directly here since that layer
// is out of scope.
func (c *Controller) RequestFeedhold() {
	c.Runtime.RequestHold()
}

// EndFeedhold releases a completed hold (EndHold).
func (c *Controller) EndFeedhold() {
	c.Runtime.Resume()
}

// Tick drives the hold-plan handoff: if the executor has yielded with
// HoldState == HoldPlan, it runs plan_hold_callback and advances the
// hold state to Decel; with no block in flight it releases the hold
// (HoldOff) instead. Call this once per main-loop iteration alongside
// the executor's own Tick.
func (c *Controller) Tick() {
	if c.Runtime.HoldState != exec.HoldPlan {
		return
	}
	if c.Runtime.CurrentBlock() == nil {
		// Nothing in flight: nowhere to brake from; release immediately.
		c.Runtime.HoldState = exec.HoldOff
		return
	}
	c.planHoldCallback()
	c.Runtime.HoldState = exec.HoldDecel
}

// planHoldCallback implements spec.md §4.6's Case A / Case B braking
// reshape plus the release-point replan.
func (c *Controller) planHoldCallback() {
	b := c.Runtime.CurrentBlock()
	if b == nil {
		// Nothing in flight: nothing to reshape (Tick releases the hold
		// before calling here in that case).
		return
	}

	v := c.Runtime.Velocity()
	j := b.Jerk
	brakingLength := geom.TargetLength(v, 0, j)
	remaining := geom.VectorLength(c.Runtime.Position[:], b.Target[:])

	var releaseIdx int
	if brakingLength <= remaining+c.Planner.Epsilon() {
		releaseIdx = c.caseA(b, v, j, brakingLength, remaining)
	} else {
		releaseIdx = c.caseB(b, v, j, brakingLength, remaining)
	}

	c.Planner.Pool.BlockAt(releaseIdx).HoldPoint = true
	c.Planner.ReplanAll(releaseIdx)
}

// caseA handles braking that fits within the current block's remaining
// length: the in-flight block becomes a pure decel tail, and any leftover
// distance becomes a freshly queued post-hold continuation starting from
// rest.
func (c *Controller) caseA(b *planner.Block, v, j, brakingLength, remaining float64) int {
	c.Runtime.ReshapeDecelTail(v, brakingLength, 0)

	postLength := remaining - brakingLength
	if postLength <= c.Planner.Epsilon() {
		return b.Index()
	}

	nb, ok := c.Planner.Pool.TryAcquireWrite()
	if !ok {
		// No free slot for the continuation: nothing downstream of the
		// hold point can be preserved, so the decel tail is the whole
		// story and the hold point is the in-flight block itself.
		return b.Index()
	}

	nb.Target = b.Target
	nb.Unit = b.Unit
	nb.Length = postLength
	nb.Jerk = b.Jerk
	nb.RecipJerk = b.RecipJerk
	nb.CubeRootJerk = b.CubeRootJerk
	nb.LineNumber = b.LineNumber
	nb.CruiseVmax = b.CruiseVmax
	nb.EntryVmax = 0
	nb.ExitVmax = b.ExitVmax
	nb.DeltaVmax = geom.TargetVelocity(0, postLength, b.Jerk)
	nb.BrakingVelocity = nb.DeltaVmax
	if nb.CruiseVmax > 0 {
		nb.Time = postLength / nb.CruiseVmax
	}
	nb.Replannable = true
	c.Planner.Pool.Commit(nb, planner.KindAccelLine)
	return nb.Index()
}

// caseB handles braking that exceeds the current block's remaining
// length: the in-flight block decelerates as far as it can, and
// subsequent queued blocks are walked forward and reshaped in turn until
// the braking length is exhausted. Each consumed block's velocities are
// derived from the running decel curve rather than fully re-run through
// the trapezoid generator — spec.md's Non-goals waive bit-exact
// reproduction, and ReplanAll immediately after restores every
// downstream invariant via the ordinary look-ahead pass.
func (c *Controller) caseB(b *planner.Block, v, j, brakingLength, remaining float64) int {
	decelMagnitude := func(from, length float64) float64 {
		return from - geom.TargetVelocity(0, length, j)
	}

	v1 := decelMagnitude(v, remaining)
	if v1 < 0 {
		v1 = 0
	}
	c.Runtime.ReshapeDecelTail(v, remaining, v1)

	consumed := remaining
	cur := v1
	idx := b.Index()
	pool := c.Planner.Pool

	for consumed < brakingLength-c.Planner.Epsilon() {
		nextIdx := pool.Next(idx)
		nb := pool.BlockAt(nextIdx)
		if nb.State() != planner.StateQueued && nb.State() != planner.StatePending {
			// Ran out of queued blocks before zero; brake as hard as the
			// queue allows and release where it ends.
			break
		}

		remainingBrake := brakingLength - consumed
		if nb.Length <= remainingBrake {
			v2 := decelMagnitude(cur, nb.Length)
			if v2 < 0 {
				v2 = 0
			}
			nb.HeadLength, nb.BodyLength, nb.TailLength = 0, 0, nb.Length
			nb.EntryVelocity = cur
			nb.CruiseVelocity = cur
			nb.ExitVelocity = v2
			consumed += nb.Length
			cur = v2
			idx = nextIdx
			continue
		}

		// Braking reaches zero partway through this block. Rather than
		// split it in the ring (which would require inserting ahead of
		// whatever is already queued after it), this block absorbs the
		// whole braking remainder and becomes the release point a little
		// early: it decelerates to zero over its own full length instead
		// of stopping exactly at remainingBrake. That overshoots the
		// brake distance by at most one queued block's length, which is
		// always the safe direction for a hold.
		nb.HeadLength, nb.BodyLength = 0, 0
		nb.TailLength = nb.Length
		nb.EntryVelocity = cur
		nb.CruiseVelocity = cur
		nb.ExitVelocity = 0
		consumed = brakingLength
		idx = nextIdx
		break
	}

	return idx
}
