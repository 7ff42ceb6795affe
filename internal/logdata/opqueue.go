package logdata

import "github.com/alienxp03/logscope/internal/detect"

// Op is the tagged-variant sum type the operation queue dispatches on,
// replacing a virtual-method Operation base (spec.md §9). Each concrete op
// below is a distinct Go type; the worker switches on a type assertion.
type Op interface{ isOp() }

type opAttach struct{ path string }

type opFullReindex struct{ forced detect.Encoding }

type opPartialIndex struct{}

type opCheckChanges struct{}

func (opAttach) isOp()       {}
func (opFullReindex) isOp()  {}
func (opPartialIndex) isOp() {}
func (opCheckChanges) isOp() {}

// supersede reports whether newOp should replace existing as the pending
// slot: FullReindex always wins; once FullReindex is pending nothing
// displaces it; otherwise the latest enqueued op wins (spec.md §4.3
// "PartialIndex supersedes PartialIndex, FullReindex supersedes anything").
func supersede(newOp, existing Op) bool {
	if _, ok := newOp.(opFullReindex); ok {
		return true
	}
	if _, ok := existing.(opFullReindex); ok {
		return false
	}
	return true
}

// opQueue enforces "at most one Op running at a time" with a single pending
// slot, matching spec.md §4.3's `{executing, pending}` state machine.
type opQueue struct {
	executing Op
	pending   Op
}

// enqueue returns the op to dispatch immediately, or nil if it was queued as
// pending (or coalesced into the existing pending op).
func (q *opQueue) enqueue(op Op) Op {
	if q.executing == nil {
		q.executing = op
		return op
	}
	if q.pending == nil || supersede(op, q.pending) {
		q.pending = op
	}
	return nil
}

// finished reports the currently executing op's completion and returns the
// next op to dispatch, or nil if the queue is now idle.
func (q *opQueue) finished() Op {
	if q.pending == nil {
		q.executing = nil
		return nil
	}
	next := q.pending
	q.pending = nil
	q.executing = next
	return next
}
