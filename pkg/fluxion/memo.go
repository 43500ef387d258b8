package fluxion

// Memo is a cached computation that automatically tracks its dependencies.
// When a dependency changes, the memo is invalidated and recomputes on the
// next read; it never recomputes eagerly.
//
// Memos can themselves be observed, which allows chains of derived values.
// A memo with zero observers is inert: it drops its cached value and its
// dependency subscriptions, and an untracked Get evaluates the computation
// directly without re-subscribing.
type Memo[T any] struct {
	rt *Runtime

	id   uint64
	name string

	obs observerList

	// compute is the function that computes the memo's value.
	compute func() T

	// value is the cached computed value; meaningful only while hasValue.
	value    T
	hasValue bool

	st      derivState
	depList []observable

	// equal is the equality policy used to decide whether a recomputation
	// actually changed the output (and so whether downstream derivations
	// must run).
	equal func(T, T) bool
}

// NewMemo creates a new memo with the given computation function.
// The computation is not run immediately; it runs lazily on first Get().
func NewMemo[T any](rt *Runtime, compute func() T, opts ...Option) *Memo[T] {
	o := applyOptions(opts)
	return &Memo[T]{
		rt:      rt,
		id:      nextID(),
		name:    o.name,
		compute: compute,
		st:      stateStale,
	}
}

// Get returns the memo's value, recomputing if a dependency changed since
// the last computation. Inside a tracked run it also registers the memo as a
// dependency of the caller. An untracked Get on an unobserved memo computes
// the value directly, without caching or subscribing (inert mode).
func (m *Memo[T]) Get() T {
	m.rt.lk.lock()
	defer m.rt.lk.unlock()

	if m.rt.activeFrame() == nil && m.obs.count() == 0 {
		return m.computeInert()
	}

	m.rt.reportObserved(m)
	m.refresh()
	return m.value
}

// Peek returns the memo's value without subscribing the current derivation.
// Still recomputes if a dependency changed.
func (m *Memo[T]) Peek() T {
	m.rt.lk.lock()
	defer m.rt.lk.unlock()

	if m.obs.count() == 0 {
		return m.computeInert()
	}
	m.refresh()
	return m.value
}

// computeInert evaluates the computation with tracking suppressed, without
// caching or subscribing. The suppression matters: an inert evaluation may
// happen inside another derivation's run (a reaction calling Peek), and the
// memo's internal reads must not attribute to that caller.
func (m *Memo[T]) computeInert() T {
	m.rt.frames = append(m.rt.frames, nil)
	defer func() {
		m.rt.frames = m.rt.frames[:len(m.rt.frames)-1]
	}()

	start := hookNow(m.rt)
	v := m.compute()
	hookMemoRecomputed(m.rt, m.Name(), start)
	return v
}

// WithEquals configures the memo with a custom equality function.
func (m *Memo[T]) WithEquals(fn func(T, T) bool) *Memo[T] {
	m.equal = fn
	return m
}

// ID returns the unique identifier for this memo.
func (m *Memo[T]) ID() uint64 {
	return m.id
}

// Name returns the debug label, or a generated fallback.
func (m *Memo[T]) Name() string {
	if m.name != "" {
		return m.name
	}
	return fallbackName("memo", m.id)
}

// ObserverCount returns the number of derivations currently subscribed to
// this memo.
func (m *Memo[T]) ObserverCount() int {
	m.rt.lk.lock()
	defer m.rt.lk.unlock()
	return m.obs.count()
}

// refresh recomputes the memo if it is stale, settling maybe-stale upstream
// memos first. Implements staleResolver; the scheduler calls this to decide
// whether downstream reactions actually need to run.
func (m *Memo[T]) refresh() {
	if m.st == stateRunning {
		// Cycle: the memo read itself during its own computation. The stale
		// cached value (or zero value) is returned rather than recursing.
		return
	}
	if !m.hasValue || m.rt.shouldCompute(m) {
		m.recompute()
	}
}

// recompute runs the computation tracked, replaces the dependency set, and
// confirms the change downstream if the output differs under the equality
// policy. A panic in the computation propagates to the caller: the partial
// dependency set is kept, no value (or error) is cached, and the memo stays
// stale so the next read retries.
func (m *Memo[T]) recompute() {
	prev := m.value
	hadValue := m.hasValue

	m.st = stateRunning
	defer func() {
		if m.st == stateRunning {
			// Did not reach the success path below: the computation panicked.
			m.st = stateStale
		}
	}()

	start := hookNow(m.rt)

	var next T
	m.rt.track(m, func() {
		next = m.compute()
	})

	m.st = stateClean
	m.value = next
	m.hasValue = true

	hookMemoRecomputed(m.rt, m.Name(), start)

	if hadValue && !m.equals(prev, next) {
		m.rt.propagateChangeConfirmed(&m.obs)
	}
}

// suspend makes the memo inert once its last observer is gone: the cached
// value is discarded and every dependency subscription is dropped, which can
// cascade suspension up a memo chain.
func (m *Memo[T]) suspend() {
	for _, dep := range m.depList {
		dep.removeObserver(m)
	}
	m.depList = nil

	var zero T
	m.value = zero
	m.hasValue = false
	m.st = stateStale
}

// equals checks if two values are equal under the configured policy.
func (m *Memo[T]) equals(a, b T) bool {
	if m.equal != nil {
		return m.equal(a, b)
	}
	return defaultEquals(a, b)
}

// observable interface

func (m *Memo[T]) obsID() uint64 { return m.id }

func (m *Memo[T]) addObserver(d derivation) { m.obs.add(d) }

func (m *Memo[T]) removeObserver(d derivation) {
	if m.obs.remove(d) && m.obs.count() == 0 {
		m.suspend()
	}
}

// derivation interface

func (m *Memo[T]) derivID() uint64 { return m.id }

func (m *Memo[T]) derivName() string { return m.Name() }

func (m *Memo[T]) state() derivState { return m.st }

func (m *Memo[T]) setState(s derivState) { m.st = s }

func (m *Memo[T]) deps() []observable { return m.depList }

func (m *Memo[T]) setDeps(d []observable) { m.depList = d }

// onBecomeStale tells the memo's own observers that its output may have
// changed. Whether it actually did is settled lazily, on the next read.
func (m *Memo[T]) onBecomeStale() {
	m.rt.propagateMaybeChanged(&m.obs)
}
