package fluxion

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// defaultMaxIterations bounds how many times the scheduler will loop over
// reactions that keep re-triggering each other within one propagation pass.
const defaultMaxIterations = 100

// ReactionErrorHandler handles an error escaping a reaction that has no
// per-instance OnError handler. The reaction handle is provided for
// diagnostics; the error is always a *ReactionError.
type ReactionErrorHandler func(err error, r *Reaction)

// Runtime is the engine context: the dependency tracker and scheduler state
// that every signal, memo, and reaction belongs to. All state is guarded by
// a single goroutine-reentrant lock, so a Runtime may be shared across
// goroutines while derivations still execute one at a time.
//
// Create one Runtime per independent reactive graph. Tests typically create
// a fresh Runtime per test for isolation.
type Runtime struct {
	lk runtimeLock

	// frames is the stack of currently tracking derivations.
	// A nil entry is an untracked scope (reads inside it are pure).
	frames []*frame

	// batchDepth tracks nested Batch/Tx calls. Propagation is deferred
	// until depth returns to zero.
	batchDepth int

	// pending are reactions scheduled to run when the current transaction
	// settles. Deduplicated via Reaction.scheduled.
	pending []*Reaction

	// reacting is true while the scheduler is draining pending reactions.
	// Writes performed by a running reaction fold into the ongoing pass
	// instead of starting a nested one.
	reacting bool

	// txName is the name of the outermost named transaction in progress,
	// attributed to hook events for the resulting propagation pass.
	txName string

	// maxIterations is the reentrant-propagation bound; exceeding it raises
	// *CyclicReactionError.
	maxIterations int

	// onReactionError is the process-wide handler for reactions without a
	// per-instance handler. nil means log via logger.
	onReactionError ReactionErrorHandler

	logger *slog.Logger

	hooks []Hook
}

// RuntimeOption configures a Runtime at construction.
type RuntimeOption func(*Runtime)

// WithLogger sets the logger used by the built-in reaction error handler.
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(rt *Runtime) {
		rt.logger = logger
	}
}

// WithMaxIterations sets the reentrant-propagation bound. Each pass over the
// pending reaction queue counts as one iteration; reactions that keep
// scheduling each other exhaust the bound and panic with
// *CyclicReactionError.
func WithMaxIterations(n int) RuntimeOption {
	return func(rt *Runtime) {
		if n > 0 {
			rt.maxIterations = n
		}
	}
}

// WithHook registers an instrumentation hook. Hooks are invoked in
// registration order. See the Hook interface for the contract.
func WithHook(h Hook) RuntimeOption {
	return func(rt *Runtime) {
		if h != nil {
			rt.hooks = append(rt.hooks, h)
		}
	}
}

// New creates a Runtime.
func New(opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		maxIterations: defaultMaxIterations,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// OnReactionError installs the process-wide error handler consulted when a
// reaction without a per-instance handler panics. It replaces any previous
// handler and affects all future uncaught reaction errors. Passing nil
// restores the built-in handler, which logs the reaction name and error.
func (rt *Runtime) OnReactionError(h ReactionErrorHandler) {
	rt.lk.lock()
	defer rt.lk.unlock()
	rt.onReactionError = h
}

// Untracked runs fn with dependency tracking suppressed. Signal and memo
// reads inside fn do not subscribe the current derivation.
//
// For single signal reads, use Peek() instead, which is clearer in intent.
func (rt *Runtime) Untracked(fn func()) {
	rt.lk.lock()
	defer rt.lk.unlock()

	rt.frames = append(rt.frames, nil)
	defer func() {
		rt.frames = rt.frames[:len(rt.frames)-1]
	}()

	fn()
}

// =============================================================================
// Dependency tracking
// =============================================================================

// frame accumulates the dependencies read during one derivation run.
type frame struct {
	deriv derivation

	// reads holds the observables read, in first-read order.
	reads []observable

	// seen deduplicates reads by observable ID.
	seen map[uint64]struct{}
}

// activeFrame returns the innermost tracking frame, or nil if none is active
// (idle, or inside an Untracked scope).
func (rt *Runtime) activeFrame() *frame {
	if len(rt.frames) == 0 {
		return nil
	}
	return rt.frames[len(rt.frames)-1]
}

// reportObserved records a read of o by the innermost tracking frame and
// subscribes that frame's derivation immediately, so bidirectional
// consistency holds even while the run is still in progress.
//
// Reads attribute to the innermost frame only: a reaction that reads a memo
// records the memo itself, never the memo's own dependencies.
func (rt *Runtime) reportObserved(o observable) {
	f := rt.activeFrame()
	if f == nil {
		return
	}

	id := o.obsID()
	if _, ok := f.seen[id]; ok {
		return
	}
	if f.seen == nil {
		f.seen = make(map[uint64]struct{}, 8)
	}
	f.seen[id] = struct{}{}
	f.reads = append(f.reads, o)

	o.addObserver(f.deriv)
}

// track runs fn with d as the innermost tracking derivation. On every exit
// path, including panics, the frame is popped and d's dependency set is
// replaced by the set observed during the run: observables no longer read
// are unsubscribed, newly read ones were subscribed as they were read.
//
// If fn returns before reading anything, d ends up with an empty dependency
// set and will never re-run automatically. That zombie state is an
// intentional consequence of dynamic tracking.
func (rt *Runtime) track(d derivation, fn func()) {
	f := &frame{deriv: d}
	rt.frames = append(rt.frames, f)

	defer func() {
		rt.frames = rt.frames[:len(rt.frames)-1]

		// Unsubscribe dependencies that were not read this run. New reads
		// are already subscribed; on a panic the partial set tracked up to
		// the failure point is kept so a later change can trigger recovery.
		for _, old := range d.deps() {
			if _, ok := f.seen[old.obsID()]; !ok {
				old.removeObserver(d)
			}
		}
		d.setDeps(f.reads)
	}()

	fn()
}

// =============================================================================
// Reentrant runtime lock
// =============================================================================

// runtimeLock is a goroutine-reentrant mutex. The propagation algorithms
// assume sequential consistency across the whole Runtime, so the lock is
// acquired at every public entry point and held for the full duration of a
// tracked run, write, or transaction; nested entry points on the same
// goroutine (a reaction reading a signal, a memo recomputing inside a
// reaction) re-enter instead of deadlocking.
type runtimeLock struct {
	mu    sync.Mutex
	owner atomic.Uint64
	depth int
}

func (l *runtimeLock) lock() {
	gid := goroutineID()
	if l.owner.Load() == gid {
		l.depth++
		return
	}
	l.mu.Lock()
	l.owner.Store(gid)
	l.depth = 1
}

func (l *runtimeLock) unlock() {
	l.depth--
	if l.depth == 0 {
		l.owner.Store(0)
		l.mu.Unlock()
	}
}

// goroutineID returns a unique identifier for the current goroutine.
// This uses the runtime stack to extract the goroutine ID.
// Note: This is an implementation detail and should not be relied upon externally.
func goroutineID() uint64 {
	// Use a buffer to read the stack
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> "
	// Parse the ID from the stack trace
	var id uint64
	for i := 10; i < n; i++ { // Skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
