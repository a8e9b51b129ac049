package planner

import "sync/atomic"

// NumAxes is the compile-time axis count (spec.md §3).
const NumAxes = 6

// Kind is the variant of queued work a Block represents (spec.md §3).
type Kind int

const (
	// KindLine is an unaccelerated, unplanned move.
	KindLine Kind = iota
	// KindAccelLine is a jerk-limited move subject to look-ahead planning.
	KindAccelLine
	// KindDwell pauses motion for a fixed duration.
	KindDwell
	// KindMCode is an auxiliary side-effecting command.
	KindMCode
	// KindTool selects a tool.
	KindTool
	// KindSpindleSpeed sets the spindle speed.
	KindSpindleSpeed
)

func (k Kind) String() string {
	switch k {
	case KindLine:
		return "Line"
	case KindAccelLine:
		return "AccelLine"
	case KindDwell:
		return "Dwell"
	case KindMCode:
		return "MCode"
	case KindTool:
		return "Tool"
	case KindSpindleSpeed:
		return "SpindleSpeed"
	default:
		return "Unknown"
	}
}

// LifecycleState is a Block's place in the Empty→Loading→Queued→Pending→
// Running→Empty cycle (spec.md §3).
type LifecycleState int32

const (
	StateEmpty LifecycleState = iota
	StateLoading
	StateQueued
	StatePending
	StateRunning
)

func (s LifecycleState) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateLoading:
		return "Loading"
	case StateQueued:
		return "Queued"
	case StatePending:
		return "Pending"
	case StateRunning:
		return "Running"
	default:
		return "Unknown"
	}
}

// MoveState is the execution state of a block within the runtime executor
// (spec.md §3): Off→New→Run.
type MoveState int32

const (
	MoveOff MoveState = iota
	MoveNew
	MoveRun
)

// Block is one queued unit of planned motion or auxiliary command
// (spec.md §3). The `state` field is the single synchronization point
// between the main-loop (write/queue) and exec (run) contexts: it is
// always read and written through atomic.Int32, which gives every prior
// plain write in the writer's goroutine a happens-before edge over every
// subsequent read in a goroutine that observes the new value (Go memory
// model, atomic operations). That stands in for the "release on
// transition, acquire on read" ordering spec.md §9 asks for, without any
// explicit locking.
type Block struct {
	index int // fixed slot index within the owning Pool's ring.

	state     atomic.Int32 // LifecycleState
	moveState atomic.Int32 // MoveState

	Kind       Kind
	LineNumber int

	Replannable bool
	HoldPoint   bool

	Target [NumAxes]float64
	Unit   [NumAxes]float64
	Length float64
	Time   float64 // requested duration, minutes

	HeadLength, BodyLength, TailLength float64

	EntryVelocity, CruiseVelocity, ExitVelocity float64
	EntryVmax, CruiseVmax, ExitVmax, DeltaVmax  float64
	BrakingVelocity                             float64

	Jerk, RecipJerk, CubeRootJerk float64

	// Non-motion payload: MCode, ToolID and SpindleRPM for the
	// MCode/Tool/SpindleSpeed kinds, DwellSecs for Dwell.
	MCode       int
	ToolID      int
	SpindleRPM  float64
	DwellSecs   float64
}

// State returns the block's current lifecycle state.
func (b *Block) State() LifecycleState {
	return LifecycleState(b.state.Load())
}

func (b *Block) setState(s LifecycleState) {
	b.state.Store(int32(s))
}

func (b *Block) casState(old, new LifecycleState) bool {
	return b.state.CompareAndSwap(int32(old), int32(new))
}

// MoveState returns the block's execution sub-state.
func (b *Block) MoveState() MoveState {
	return MoveState(b.moveState.Load())
}

// SetMoveState is exported for the runtime executor, the only owner of
// this field once a block reaches Running.
func (b *Block) SetMoveState(s MoveState) {
	b.moveState.Store(int32(s))
}

// Index returns the block's fixed slot index in its Pool.
func (b *Block) Index() int { return b.index }

// reset zeros every field except the slot index, matching spec.md §4.1's
// "zero it (preserving link pointers)" instruction for try_acquire_write.
func (b *Block) reset() {
	idx := b.index
	*b = Block{index: idx}
}
