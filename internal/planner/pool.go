package planner

import "sync/atomic"

// Pool is the fixed-capacity ring of planning blocks described in
// spec.md §3/§4.1. It is represented as an array with three integer
// cursors rather than a doubly linked list (Design Note §9): prev/next
// are computed with modular arithmetic instead of followed through
// pointers, which sidesteps any pointer-aliasing concern and makes the
// three-cursor protocol easy to state precisely.
//
// write and queue are written only from the main-loop context; run is
// written only from the exec-interrupt context (spec.md §5). Each is a
// single-writer cursor read with atomic.Int32, so the other side always
// observes a valid, monotonically-advancing index.
type Pool struct {
	blocks []Block
	size   int

	writeIdx atomic.Int32
	queueIdx atomic.Int32
	runIdx   atomic.Int32

	// Notify is signalled (non-blocking) whenever Commit queues a new
	// block, standing in for spec.md §4.1's "notify the executor".
	Notify chan struct{}
}

// NewPool allocates a Pool of the given capacity (spec.md: "typically 48").
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		blocks: make([]Block, size),
		size:   size,
		Notify: make(chan struct{}, 1),
	}
	for i := range p.blocks {
		p.blocks[i].index = i
	}
	return p
}

// Size returns the pool's fixed capacity.
func (p *Pool) Size() int { return p.size }

// Next returns (i+1) mod size.
func (p *Pool) Next(i int) int { return (i + 1) % p.size }

// Prev returns (i-1) mod size.
func (p *Pool) Prev(i int) int { return (i - 1 + p.size) % p.size }

// BlockAt returns the block at slot i, without regard for its state.
func (p *Pool) BlockAt(i int) *Block { return &p.blocks[i] }

func (p *Pool) writeIndex() int { return int(p.writeIdx.Load()) }
func (p *Pool) queueIndex() int { return int(p.queueIdx.Load()) }

// RunIndex returns the current run cursor position.
func (p *Pool) RunIndex() int { return int(p.runIdx.Load()) }

// QueueHasSpace reports whether the write cursor points at an Empty slot,
// the gate every upstream caller must check before submitting (spec.md
// §7, BufferFullFatal).
func (p *Pool) QueueHasSpace() bool {
	return p.blocks[p.writeIndex()].State() == StateEmpty
}

// TryAcquireWrite hands out the slot at write if it is Empty, zeroes it,
// marks it Loading, and advances write. It returns false if the pool is
// full (spec.md §4.1).
func (p *Pool) TryAcquireWrite() (*Block, bool) {
	idx := p.writeIndex()
	b := &p.blocks[idx]
	if b.State() != StateEmpty {
		return nil, false
	}
	b.reset()
	b.setState(StateLoading)
	p.writeIdx.Store(int32(p.Next(idx)))
	return b, true
}

// ReleaseWrite relinquishes the most recent unsubmitted Loading slot,
// rewinding write by one and resetting it to Empty (spec.md §4.1).
func (p *Pool) ReleaseWrite() {
	prev := p.Prev(p.writeIndex())
	b := &p.blocks[prev]
	if b.State() == StateLoading {
		b.reset()
		p.writeIdx.Store(int32(prev))
	}
}

// Commit stamps kind and MoveNew, marks the slot Queued, advances queue,
// and notifies the executor (spec.md §4.1).
func (p *Pool) Commit(b *Block, kind Kind) {
	b.Kind = kind
	b.SetMoveState(MoveNew)
	b.setState(StateQueued)
	p.queueIdx.Store(int32(p.Next(p.queueIndex())))
	select {
	case p.Notify <- struct{}{}:
	default:
	}
}

// CurrentRun promotes the slot at run to Running (from Queued or Pending)
// and returns it; if it is already Running, it is returned unchanged; if
// it is neither, CurrentRun returns false. It is idempotent across
// repeated calls within one block's lifetime (spec.md §4.1).
func (p *Pool) CurrentRun() (*Block, bool) {
	idx := p.RunIndex()
	b := &p.blocks[idx]
	switch b.State() {
	case StateRunning:
		return b, true
	case StateQueued, StatePending:
		b.setState(StateRunning)
		return b, true
	default:
		return nil, false
	}
}

// FinaliseRun clears the Running slot to Empty, advances run, and
// promotes the new run slot from Queued to Pending if applicable
// (spec.md §4.1).
func (p *Pool) FinaliseRun() {
	idx := p.RunIndex()
	b := &p.blocks[idx]
	b.reset()
	next := p.Next(idx)
	p.runIdx.Store(int32(next))

	nb := &p.blocks[next]
	nb.casState(StateQueued, StatePending)
}

// First returns the block CurrentRun would dequeue next.
func (p *Pool) First() (*Block, bool) {
	return p.CurrentRun()
}

// Last walks forward from First while the chain is not MoveOff, returning
// the last non-Off block (spec.md §4.1).
func (p *Pool) Last() (*Block, bool) {
	first, ok := p.First()
	if !ok {
		return nil, false
	}
	last := first
	for i := p.Next(first.index); i != p.writeIndex(); i = p.Next(i) {
		b := &p.blocks[i]
		if b.MoveState() == MoveOff {
			break
		}
		last = b
	}
	return last, true
}

// IsBusy reports whether any block is in flight: the queue is non-empty
// whenever run has not caught up to write.
func (p *Pool) IsBusy() bool {
	return p.RunIndex() != p.writeIndex()
}

// Flush clears every Queued/Pending slot (never the Running one) and
// rewinds write/queue to just past the Running block, or to the run
// cursor itself when no block is Running (spec.md §5).
func (p *Pool) Flush() {
	runIdx := p.RunIndex()
	for i := 0; i < p.size; i++ {
		b := &p.blocks[i]
		switch b.State() {
		case StateQueued, StatePending:
			b.reset()
		}
	}
	next := runIdx
	if p.blocks[runIdx].State() == StateRunning {
		next = p.Next(runIdx)
	}
	p.writeIdx.Store(int32(next))
	p.queueIdx.Store(int32(next))
}
