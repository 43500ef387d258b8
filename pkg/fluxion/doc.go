// Package fluxion provides a dependency-tracking reactive engine.
//
// State lives in signals, derived values in memos, and side effects in
// reactions. Dependencies are discovered automatically at runtime: reading a
// signal while a memo computes or a reaction runs subscribes that derivation
// to the signal's changes.
//
// # Core Types
//
// All primitives belong to a Runtime, the explicit engine context:
//
//	rt := fluxion.New()
//	count := fluxion.NewSignal(rt, 0)
//	value := count.Get()  // Read (subscribes current derivation)
//	count.Set(5)          // Write (propagates to observers)
//	count.Update(func(n int) int { return n + 1 })
//
// Memo[T] is a cached derived computation. It is lazy: it recomputes only
// when read, and only if a dependency changed since the last computation.
// A memo with no observers is inert and holds no subscriptions:
//
//	doubled := fluxion.NewMemo(rt, func() int { return count.Get() * 2 })
//	value := doubled.Get()
//
// Reactions run eagerly: once at creation, then again whenever any signal or
// memo read during the previous run changes. The function receives its own
// handle so it can dispose itself mid-run:
//
//	r := fluxion.Autorun(rt, func(r *fluxion.Reaction) {
//	    fmt.Println("Count is:", count.Get())
//	})
//	defer r.Dispose()
//
// # Transactions
//
// Multiple writes can be grouped so affected reactions run once, after all
// writes are visible:
//
//	rt.Batch(func() {
//	    a.Set(1)
//	    b.Set(2)
//	    c.Set(3)
//	})  // each affected reaction runs exactly once
//
// A bare Set is an implicit single-write transaction. Propagation is
// glitch-free: a reaction never observes a partially-updated graph, because
// memos are settled before and during the reaction's run.
//
// # Errors
//
// A panic inside a reaction body never reaches the code that performed the
// triggering write. It is routed to the reaction's OnError handler, else the
// Runtime's OnReactionError hook, else logged. A runaway propagation loop
// (reactions re-triggering each other) panics with *CyclicReactionError at
// the top-level write or transaction end.
//
// # Thread Safety
//
// The engine is a single-logical-thread system. A Runtime serializes all
// reads, writes, and propagation behind one goroutine-reentrant lock, so it
// is safe to share across goroutines, but derivations never run in parallel.
package fluxion
