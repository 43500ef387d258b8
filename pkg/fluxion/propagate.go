package fluxion

import (
	"sort"
	"time"
)

// =============================================================================
// Transaction boundaries
// =============================================================================

// startBatch opens a (possibly nested) transaction. Every write path goes
// through startBatch/endBatch; a bare Set is an implicit one-write
// transaction.
func (rt *Runtime) startBatch() {
	rt.batchDepth++
}

// endBatch closes a transaction. Only the outermost close triggers
// propagation.
func (rt *Runtime) endBatch() {
	rt.batchDepth--
	if rt.batchDepth == 0 {
		rt.runPendingReactions()
	}
}

// =============================================================================
// Staleness propagation
//
// Two-phase protocol: a signal write marks its direct observers stale; a
// memo that turns stale marks its own observers maybe-stale, because whether
// the memo's output actually changes is unknown until it recomputes. When a
// memo recomputes to a different value it confirms the change, upgrading
// maybe-stale observers to stale. This is what keeps diamond-shaped graphs
// glitch-free with each memo recomputing at most once per pass.
// =============================================================================

// propagateChanged marks the observers of a definitely-changed observable.
func (rt *Runtime) propagateChanged(l *observerList) {
	for _, d := range l.snapshot() {
		switch d.state() {
		case stateClean, stateRunning:
			d.setState(stateStale)
			d.onBecomeStale()
		case stateMaybeStale:
			d.setState(stateStale)
		}
	}
}

// propagateMaybeChanged marks the observers of a memo whose dependencies
// changed but whose own output is not yet known to differ.
func (rt *Runtime) propagateMaybeChanged(l *observerList) {
	for _, d := range l.snapshot() {
		if d.state() == stateClean {
			d.setState(stateMaybeStale)
			d.onBecomeStale()
		}
	}
}

// propagateChangeConfirmed upgrades maybe-stale observers to stale after a
// memo recomputed to a different value. Observers already settled this pass
// are left alone.
func (rt *Runtime) propagateChangeConfirmed(l *observerList) {
	for _, d := range l.snapshot() {
		if d.state() == stateMaybeStale {
			d.setState(stateStale)
		}
	}
}

// shouldCompute reports whether d needs to re-run. A maybe-stale derivation
// is settled by refreshing the memos it depends on: if any confirms a
// change, d is stale; if none does, d returns to clean without running.
func (rt *Runtime) shouldCompute(d derivation) bool {
	switch d.state() {
	case stateStale:
		return true
	case stateMaybeStale:
		for _, dep := range d.deps() {
			if m, ok := dep.(staleResolver); ok {
				m.refresh()
				if d.state() == stateStale {
					return true
				}
			}
		}
		d.setState(stateClean)
		return false
	default:
		return false
	}
}

// reactionNeedsRun decides whether a pending reaction must run, settling the
// memos it depends on first. A memo panic while settling must not escape to
// the code that performed the triggering write, so it is swallowed here and
// the reaction runs anyway: it meets the same error reading the memo under
// its own error boundary (memos never cache errors).
func (rt *Runtime) reactionNeedsRun(r *Reaction) (need bool) {
	defer func() {
		if rec := recover(); rec != nil {
			need = true
		}
	}()
	return rt.shouldCompute(r)
}

// =============================================================================
// Reaction scheduling
// =============================================================================

// schedule queues a reaction for the current propagation pass.
// Disposed reactions and reactions already queued are dropped.
func (rt *Runtime) schedule(r *Reaction) {
	if r.isDisposed || r.scheduled {
		return
	}
	r.scheduled = true
	rt.pending = append(rt.pending, r)
}

// runPendingReactions drains the pending queue, running each affected
// reaction at most once per settled batch. Reactions run in creation order
// (ascending ID) when the dependency graph forces no other order; memos
// consulted along the way settle in topological order by construction.
//
// Writes performed by a running reaction re-enter schedule and are picked up
// by the next loop iteration, folding into this pass. The iteration bound
// converts infinite mutual triggering into a *CyclicReactionError panic that
// surfaces at the top-level write or transaction end.
func (rt *Runtime) runPendingReactions() {
	if rt.reacting {
		return
	}
	rt.reacting = true
	defer func() { rt.reacting = false }()

	start := time.Now()
	ran := 0
	iterations := 0

	for len(rt.pending) > 0 {
		iterations++
		if iterations > rt.maxIterations {
			// Abort the pass. Dropped reactions return to clean so the next
			// change to their dependencies schedules them again.
			names := make([]string, 0, len(rt.pending))
			for _, r := range rt.pending {
				r.scheduled = false
				r.st = stateClean
				names = append(names, r.derivName())
			}
			rt.pending = nil
			panic(&CyclicReactionError{
				Limit:     rt.maxIterations,
				Reactions: names,
			})
		}

		batch := rt.pending
		rt.pending = nil
		sort.Slice(batch, func(i, j int) bool {
			return batch[i].id < batch[j].id
		})

		for _, r := range batch {
			r.scheduled = false
			if r.isDisposed {
				continue
			}
			if !rt.reactionNeedsRun(r) {
				continue
			}
			r.run()
			ran++
		}
	}

	if ran > 0 {
		took := time.Since(start)
		for _, h := range rt.hooks {
			h.TransactionEnded(rt.txName, took, ran)
		}
	}
}
