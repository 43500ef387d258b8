package fluxion

import "fmt"

// Reaction is an eager derivation producing a side effect: it runs once at
// creation and again, synchronously, whenever any signal or memo read during
// its previous run changes. Reactions own error handling and disposal.
type Reaction struct {
	rt *Runtime

	id   uint64
	name string

	// fn is the effect function. It receives the reaction's own handle so
	// user code may call Dispose mid-run.
	fn func(*Reaction)

	st      derivState
	depList []observable

	// onError, when set, takes priority over the Runtime's process-wide
	// handler for errors escaping this reaction.
	onError func(error)

	// scheduled is true while the reaction sits in the pending queue.
	scheduled bool

	isDisposed bool
}

// Autorun registers a reaction, runs it once immediately, and returns its
// handle. The reaction re-runs whenever a dependency read during the
// previous run changes, at most once per settled transaction.
//
// A panic in fn never propagates to the caller of the triggering write; it
// is routed to the error policy (OnError handler, else the Runtime's
// OnReactionError hook, else the logger).
func Autorun(rt *Runtime, fn func(*Reaction), opts ...Option) *Reaction {
	o := applyOptions(opts)

	rt.lk.lock()
	defer rt.lk.unlock()

	r := &Reaction{
		rt:      rt,
		id:      nextID(),
		name:    o.name,
		fn:      fn,
		onError: o.onError,
	}

	// The first run is a transaction of its own, so writes performed by fn
	// fold into one propagation pass.
	rt.startBatch()
	r.run()
	rt.endBatch()

	return r
}

// AutorunNamed is the name-first convenience form of Autorun.
func AutorunNamed(rt *Runtime, name string, fn func(*Reaction)) *Reaction {
	return Autorun(rt, fn, WithName(name))
}

// OnError installs a per-reaction error handler. It takes priority over the
// Runtime's process-wide handler for subsequent errors from this reaction
// only. The handler receives a *ReactionError wrapping the original panic
// value.
func (r *Reaction) OnError(handler func(error)) *Reaction {
	r.rt.lk.lock()
	defer r.rt.lk.unlock()
	r.onError = handler
	return r
}

// Dispose permanently stops the reaction: it unsubscribes from every
// dependency and drops any pending run. Idempotent. Calling Dispose from
// inside the reaction's own function takes effect immediately; the reaction
// will not run again even within the same transaction.
func (r *Reaction) Dispose() {
	r.rt.lk.lock()
	defer r.rt.lk.unlock()

	if r.isDisposed {
		return
	}
	r.isDisposed = true

	if r.st == stateRunning {
		// Mid-run self-dispose: the run's tracking frame still references
		// this reaction, so teardown happens when run() finishes.
		return
	}
	r.clearDeps()
}

// Disposed returns true if the reaction has been disposed.
func (r *Reaction) Disposed() bool {
	r.rt.lk.lock()
	defer r.rt.lk.unlock()
	return r.isDisposed
}

// ID returns the unique identifier for this reaction.
func (r *Reaction) ID() uint64 {
	return r.id
}

// Name returns the debug label, or a generated fallback.
func (r *Reaction) Name() string {
	if r.name != "" {
		return r.name
	}
	return fallbackName("reaction", r.id)
}

// run executes the effect function inside a tracking frame, isolating any
// panic it raises. On failure the dependency set stays exactly as tracked up
// to the failure point, so a later change to one of those dependencies can
// still trigger recovery; the reaction is not disposed and not marked broken.
func (r *Reaction) run() {
	rt := r.rt

	r.st = stateRunning
	start := hookNow(rt)

	err := r.trackRecover()

	if r.st == stateRunning {
		r.st = stateClean
	}
	if r.isDisposed {
		r.clearDeps()
	}

	if err != nil {
		werr := &ReactionError{Reaction: r.Name(), Err: err}
		hookReactionRan(rt, r.Name(), start, werr)
		r.handleError(werr)
		return
	}
	hookReactionRan(rt, r.Name(), start, nil)
}

// trackRecover runs the effect function tracked and converts a panic into an
// error. Non-error panic values are formatted.
func (r *Reaction) trackRecover() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", rec)
			}
		}
	}()

	r.rt.track(r, func() {
		r.fn(r)
	})
	return nil
}

// handleError routes an error through the policy chain: per-reaction
// handler, else the Runtime hook, else the logger.
func (r *Reaction) handleError(werr *ReactionError) {
	switch {
	case r.onError != nil:
		r.onError(werr)
	case r.rt.onReactionError != nil:
		r.rt.onReactionError(werr, r)
	default:
		r.rt.logger.Error("fluxion: uncaught reaction error",
			"reaction", r.Name(),
			"error", werr.Err,
		)
	}
}

// clearDeps unsubscribes from every dependency and empties the set.
func (r *Reaction) clearDeps() {
	for _, dep := range r.depList {
		dep.removeObserver(r)
	}
	r.depList = nil
}

// derivation interface

func (r *Reaction) derivID() uint64 { return r.id }

func (r *Reaction) derivName() string { return r.Name() }

func (r *Reaction) state() derivState { return r.st }

func (r *Reaction) setState(s derivState) { r.st = s }

func (r *Reaction) deps() []observable { return r.depList }

func (r *Reaction) setDeps(d []observable) { r.depList = d }

func (r *Reaction) onBecomeStale() {
	r.rt.schedule(r)
}
