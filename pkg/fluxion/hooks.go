package fluxion

import "time"

// Hook observes engine activity. Implementations feed metrics, tracing, or
// live inspection; see pkg/telemetry and pkg/devtools.
//
// Hooks are invoked synchronously while the Runtime lock is held, so they
// must not block and must not write signals. Reading signals from a hook is
// safe but happens outside any tracking frame.
type Hook interface {
	// ReactionRan fires after every reaction run, successful or not.
	// err is nil on success, else the *ReactionError about to be routed to
	// the error policy.
	ReactionRan(name string, took time.Duration, err error)

	// MemoRecomputed fires after every successful memo recomputation.
	MemoRecomputed(name string, took time.Duration)

	// TransactionEnded fires after a propagation pass that ran at least one
	// reaction. txName is the TxNamed label, or empty for anonymous and
	// implicit transactions.
	TransactionEnded(txName string, took time.Duration, reactionsRun int)
}

// hookNow returns the start timestamp for a hook-timed section, or the zero
// time when no hooks are registered so idle runtimes skip the clock call.
func hookNow(rt *Runtime) time.Time {
	if len(rt.hooks) == 0 {
		return time.Time{}
	}
	return time.Now()
}

func hookReactionRan(rt *Runtime, name string, start time.Time, err error) {
	if len(rt.hooks) == 0 {
		return
	}
	took := time.Since(start)
	for _, h := range rt.hooks {
		h.ReactionRan(name, took, err)
	}
}

func hookMemoRecomputed(rt *Runtime, name string, start time.Time) {
	if len(rt.hooks) == 0 {
		return
	}
	took := time.Since(start)
	for _, h := range rt.hooks {
		h.MemoRecomputed(name, took)
	}
}
