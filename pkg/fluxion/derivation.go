package fluxion

// derivState is the staleness state of a derivation.
type derivState uint8

const (
	// stateClean means the derivation is consistent with its dependencies.
	stateClean derivState = iota

	// stateMaybeStale means an upstream memo may have changed; whether this
	// derivation is actually stale is unknown until that memo is settled.
	stateMaybeStale

	// stateStale means a dependency definitely changed.
	stateStale

	// stateRunning means the derivation's function is currently executing.
	stateRunning
)

// String returns a human-readable name for the state.
func (s derivState) String() string {
	switch s {
	case stateClean:
		return "clean"
	case stateMaybeStale:
		return "maybe-stale"
	case stateStale:
		return "stale"
	case stateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// derivation is anything that tracks dependencies and re-executes when they
// change. Implemented by Memo and Reaction; the two share one tracking
// algorithm through this interface rather than through embedding.
type derivation interface {
	// derivID returns a unique identifier, used for dependency dedup and as
	// the creation-order tie-break when scheduling.
	derivID() uint64

	// derivName returns the debug label, or a generated fallback.
	derivName() string

	// state and setState expose the staleness state to the propagation
	// algorithm.
	state() derivState
	setState(derivState)

	// deps and setDeps expose the dependency set observed during the most
	// recent run. The set is replaced wholesale after each run.
	deps() []observable
	setDeps([]observable)

	// onBecomeStale is invoked on the first transition away from clean.
	// Reactions schedule themselves; memos propagate maybe-stale downstream.
	onBecomeStale()
}

// observable is anything a derivation can depend on: signals and memos.
// Observables keep back-references to their observers for notification.
type observable interface {
	// obsID returns a unique identifier, used for read dedup within a run.
	obsID() uint64

	// addObserver and removeObserver maintain the observer back-references.
	// Every observer currently lists this observable in its own dependency
	// set; the tracking frame keeps the two directions consistent.
	addObserver(d derivation)
	removeObserver(d derivation)
}

// staleResolver is implemented by observables that can be stale themselves
// (memos). The scheduler settles these before deciding whether a maybe-stale
// derivation needs to run.
type staleResolver interface {
	observable
	refresh()
}

// observerList manages the observers of a signal or memo.
// All access happens under the owning Runtime's lock.
type observerList struct {
	observers []derivation
}

// add appends an observer, deduplicating by ID.
// Returns true if the observer was not already present.
func (l *observerList) add(d derivation) bool {
	id := d.derivID()
	for _, existing := range l.observers {
		if existing.derivID() == id {
			return false
		}
	}
	l.observers = append(l.observers, d)
	return true
}

// remove deletes an observer by ID.
// Returns true if the observer was present.
func (l *observerList) remove(d derivation) bool {
	id := d.derivID()
	for i, existing := range l.observers {
		if existing.derivID() == id {
			// Remove by swapping with last element (order doesn't matter)
			l.observers[i] = l.observers[len(l.observers)-1]
			l.observers = l.observers[:len(l.observers)-1]
			return true
		}
	}
	return false
}

// count returns the number of observers.
func (l *observerList) count() int {
	return len(l.observers)
}

// snapshot copies the observer slice so propagation can iterate without
// being affected by concurrent subscription changes it causes itself.
func (l *observerList) snapshot() []derivation {
	out := make([]derivation, len(l.observers))
	copy(out, l.observers)
	return out
}
