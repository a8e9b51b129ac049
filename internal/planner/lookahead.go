// Package planner implements the look-ahead motion planner of spec.md:
// the buffer pool (block.go, pool.go) and the two-pass look-ahead
// optimisation (this file) that keeps entry/exit velocities consistent
// across the queued tail and invokes the trapezoid generator per block.
package planner

import (
	"math"
	"sync"

	"github.com/Leealpha1/TinyG/internal/config"
	"github.com/Leealpha1/TinyG/internal/planner/geom"
	"github.com/Leealpha1/TinyG/internal/planner/trapezoid"
)

// Result is the taxonomy spec.md §7 defines for planner operations.
type Result int

const (
	ResultOk Result = iota
	ResultAgain
	ResultNoOp
	ResultZeroLengthMove
	ResultBufferFullFatal
	ResultInternalError
)

func (r Result) String() string {
	switch r {
	case ResultOk:
		return "Ok"
	case ResultAgain:
		return "Again"
	case ResultNoOp:
		return "NoOp"
	case ResultZeroLengthMove:
		return "ZeroLengthMove"
	case ResultBufferFullFatal:
		return "BufferFullFatal"
	case ResultInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Planner is the main-loop-owned singleton: the pool plus the
// planning-time end-of-queue position (spec.md §3, "Planner singleton").
// Only the main-loop context ever touches it, so it needs no internal
// synchronization of its own beyond guarding concurrent CLI callers of
// the same Planner.
type Planner struct {
	mu sync.Mutex

	Pool *Pool
	cfg  config.Config

	position    [NumAxes]float64
	prevUnit    [NumAxes]float64
	havePrev    bool
	lastCommit  int
	haveCommit  bool
}

// NewPlanner constructs a Planner over pool using cfg's tolerances.
func NewPlanner(pool *Pool, cfg config.Config) *Planner {
	return &Planner{Pool: pool, cfg: cfg}
}

func (p *Planner) tolerances() trapezoid.Tolerances {
	return trapezoid.Tolerances{
		Epsilon:           p.cfg.Epsilon.ValueOrZero(),
		VelocityTolerance: p.cfg.VelocityTolerance.ValueOrZero(),
		LengthTolerance:   p.cfg.LengthTolerance.ValueOrZero(),
		MinSectionLength:  p.cfg.MinSectionLength.ValueOrZero(),
		LengthFactor:      p.cfg.LengthFactor.ValueOrZero(),
		IterationErrorPct: p.cfg.IterationErrorPct.ValueOrZero(),
		MaxIterations:     config.DefaultMaxIterations,
	}
}

func (p *Planner) epsilon() float64 { return p.cfg.Epsilon.ValueOrZero() }

// QueueHasSpace reports whether a submission would succeed right now.
func (p *Planner) QueueHasSpace() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Pool.QueueHasSpace()
}

// SetPlanPosition resets the planning-time position only (G92-style),
// without touching any runtime/executor state (spec.md §6).
func (p *Planner) SetPlanPosition(pos [NumAxes]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = pos
	p.havePrev = false
}

// Position returns the current planning-time end-of-queue position.
func (p *Planner) Position() [NumAxes]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Flush clears queued/pending work (spec.md §5).
func (p *Planner) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Pool.Flush()
	p.haveCommit = false
}

// SubmitLine queues an unaccelerated move: a single prep_line with no
// look-ahead planning (spec.md §6).
func (p *Planner) SubmitLine(target [NumAxes]float64, minutes float64) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if minutes < p.epsilon() {
		return ResultZeroLengthMove, nil
	}
	length := geom.VectorLength(p.position[:], target[:])
	if length < p.epsilon() {
		return ResultZeroLengthMove, nil
	}

	b, ok := p.Pool.TryAcquireWrite()
	if !ok {
		return ResultBufferFullFatal, bufferFullErr()
	}
	b.Target = target
	b.Length = length
	b.Time = minutes
	b.CruiseVelocity = length / minutes
	p.Pool.Commit(b, KindLine)
	p.position = target
	p.havePrev = false
	return ResultOk, nil
}

// SubmitDwell queues a dwell of the given duration (spec.md §6).
func (p *Planner) SubmitDwell(seconds float64) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seconds < p.epsilon() {
		return ResultZeroLengthMove, nil
	}
	b, ok := p.Pool.TryAcquireWrite()
	if !ok {
		return ResultBufferFullFatal, bufferFullErr()
	}
	b.DwellSecs = seconds
	p.Pool.Commit(b, KindDwell)
	return ResultOk, nil
}

// SubmitMCode queues an auxiliary M-code side-effect (spec.md §6).
func (p *Planner) SubmitMCode(code int) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.Pool.TryAcquireWrite()
	if !ok {
		return ResultBufferFullFatal, bufferFullErr()
	}
	b.MCode = code
	p.Pool.Commit(b, KindMCode)
	return ResultOk, nil
}

// SubmitTool queues a tool-change auxiliary command.
func (p *Planner) SubmitTool(id int) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.Pool.TryAcquireWrite()
	if !ok {
		return ResultBufferFullFatal, bufferFullErr()
	}
	b.ToolID = id
	p.Pool.Commit(b, KindTool)
	return ResultOk, nil
}

// SubmitSpindleSpeed queues a spindle-speed auxiliary command.
func (p *Planner) SubmitSpindleSpeed(rpm float64) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.Pool.TryAcquireWrite()
	if !ok {
		return ResultBufferFullFatal, bufferFullErr()
	}
	b.SpindleRPM = rpm
	p.Pool.Commit(b, KindSpindleSpeed)
	return ResultOk, nil
}

// SubmitAccelLine queues a jerk-limited move and runs the look-ahead
// planner across the tail of the queue ending at it (spec.md §6, §4.4).
// exactStop forces entry/exit vmax to zero at this block's boundaries
// (G61-style exact-stop path control).
func (p *Planner) SubmitAccelLine(target [NumAxes]float64, minutes float64, exactStop bool) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if minutes < p.epsilon() {
		return ResultZeroLengthMove, nil
	}
	unit, length, ok := geom.UnitVector(p.position[:], target[:], p.epsilon())
	if !ok {
		return ResultZeroLengthMove, nil
	}

	b, acquired := p.Pool.TryAcquireWrite()
	if !acquired {
		return ResultBufferFullFatal, bufferFullErr()
	}

	var u [NumAxes]float64
	copy(u[:], unit)
	b.Target = target
	b.Unit = u
	b.Length = length
	b.Time = minutes

	b.Jerk = perMoveJerk(u, p.cfg.JerkMax)
	if b.Jerk <= 0 {
		b.Jerk = p.cfg.JerkMax[0]
	}
	b.RecipJerk = 1 / b.Jerk
	b.CubeRootJerk = math.Cbrt(b.Jerk)

	b.CruiseVelocity = length / minutes
	b.CruiseVmax = b.CruiseVelocity

	exactStopCap := math.Inf(1)
	if exactStop {
		exactStopCap = 0
	}

	junctionLimit := geom.StraightThroughVelocity
	if p.havePrev {
		junctionLimit = geom.JunctionVmax(p.prevUnit[:], u[:], p.cfg.JunctionDeviation[:], p.cfg.JunctionAccel)
	}
	b.EntryVmax = math.Min(b.CruiseVmax, math.Min(junctionLimit, exactStopCap))
	b.DeltaVmax = geom.TargetVelocity(0, length, b.Jerk)
	b.ExitVmax = math.Min(b.CruiseVmax, math.Min(b.EntryVmax+b.DeltaVmax, exactStopCap))
	b.BrakingVelocity = b.DeltaVmax
	b.Replannable = !exactStop

	p.Pool.Commit(b, KindAccelLine)
	p.position = target
	p.prevUnit = u
	p.havePrev = true
	p.lastCommit = b.Index()
	p.haveCommit = true

	p.lookahead(b.Index())
	return ResultOk, nil
}

func perMoveJerk(unit [NumAxes]float64, jerkMax [NumAxes]float64) float64 {
	sum := 0.0
	for i := range unit {
		v := unit[i] * jerkMax[i]
		sum += v * v
	}
	return math.Sqrt(sum)
}

// lookahead runs the reverse-braking then forward-cruising passes
// (spec.md §4.4) across the chain of still-committed blocks ending at
// the block just admitted at poolIdx.
func (p *Planner) lookahead(poolIdx int) {
	chain := p.activeChain(poolIdx)
	if len(chain) == 0 {
		return
	}

	// Reverse pass: anchorPos is the index within chain of the first
	// non-replannable block encountered walking backward from the end,
	// or -1 if the whole chain (down to the run cursor) is replannable.
	anchorPos := -1
	for k := len(chain) - 1; k >= 1; k-- {
		cur := chain[k]
		prev := chain[k-1]
		if prev.State() == StateRunning {
			anchorPos = k - 1
			break
		}
		limit := math.Min(cur.EntryVmax, cur.BrakingVelocity)
		braking := limit + prev.DeltaVmax
		if braking > prev.CruiseVmax {
			// spec.md §9 open question: clamp against cruise_vmax.
			braking = prev.CruiseVmax
		}
		prev.BrakingVelocity = braking
		if !prev.Replannable {
			anchorPos = k - 1
			break
		}
	}

	tol := p.tolerances()
	for k := anchorPos + 1; k < len(chain); k++ {
		cur := chain[k]
		var entry float64
		if k == 0 {
			entry = 0
		} else {
			entry = chain[k-1].ExitVelocity
		}
		cur.EntryVelocity = entry
		cur.CruiseVelocity = cur.CruiseVmax

		if k == len(chain)-1 {
			cur.ExitVelocity = 0
		} else {
			next := chain[k+1]
			exit := math.Min(cur.ExitVmax, math.Min(next.BrakingVelocity, next.EntryVmax))
			exit = math.Min(exit, entry+cur.DeltaVmax)
			if exit < 0 {
				exit = 0
			}
			cur.ExitVelocity = exit
		}

		if cur.ExitVelocity >= cur.ExitVmax-tol.VelocityTolerance {
			cur.Replannable = false
		}

		tr := trapezoid.Plan(cur.EntryVelocity, cur.CruiseVelocity, cur.ExitVelocity, cur.Length, cur.Jerk, tol)
		cur.HeadLength, cur.BodyLength, cur.TailLength = tr.HeadLength, tr.BodyLength, tr.TailLength
		cur.EntryVelocity, cur.CruiseVelocity, cur.ExitVelocity = tr.EntryVelocity, tr.CruiseVelocity, tr.ExitVelocity
	}
}

// activeChain returns every committed-but-not-finished block from the
// run cursor up to and including throughIdx, in submission order.
func (p *Planner) activeChain(throughIdx int) []*Block {
	pool := p.Pool
	start := pool.RunIndex()
	chain := make([]*Block, 0, pool.Size())
	i := start
	for n := 0; n < pool.Size(); n++ {
		b := pool.BlockAt(i)
		if b.State() == StateEmpty {
			break
		}
		chain = append(chain, b)
		if i == throughIdx {
			break
		}
		i = pool.Next(i)
	}
	return chain
}

// ReplanAll resets every block from the run cursor through throughIdx to
// replannable and re-runs the look-ahead pass across them. The feedhold
// controller uses this after reshaping the in-flight block and marking a
// new hold_point (spec.md §4.6: "reset all blocks to replannable and run
// a full look-ahead pass ending at the last block").
func (p *Planner) ReplanAll(throughIdx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	chain := p.activeChain(throughIdx)
	for _, b := range chain {
		b.Replannable = true
	}
	p.lookahead(throughIdx)
}

// Epsilon exposes the configured zero-length threshold to collaborators
// outside this package (the feedhold controller's length bookkeeping).
func (p *Planner) Epsilon() float64 { return p.epsilon() }

func bufferFullErr() error {
	return errBufferFull
}
