package fluxion

import (
	"errors"
	"testing"
)

func TestMemoBasic(t *testing.T) {
	rt := New()
	count := NewSignal(rt, 2)

	computes := 0
	doubled := NewMemo(rt, func() int {
		computes++
		return count.Get() * 2
	})

	if computes != 0 {
		t.Errorf("memo must not compute at creation, got %d computes", computes)
	}
	if got := doubled.Get(); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
}

func TestMemoLazyWhenUnobserved(t *testing.T) {
	rt := New()
	count := NewSignal(rt, 0)

	computes := 0
	doubled := NewMemo(rt, func() int {
		computes++
		return count.Get() * 2
	})

	// N writes with zero observers: no recomputation happens at all.
	for i := 1; i <= 10; i++ {
		count.Set(i)
	}
	if computes != 0 {
		t.Fatalf("unobserved memo must not recompute on writes, got %d computes", computes)
	}

	// Deferred until the next read.
	if got := doubled.Get(); got != 20 {
		t.Errorf("expected 20, got %d", got)
	}
	if computes != 1 {
		t.Errorf("expected exactly 1 compute on read, got %d", computes)
	}
}

func TestMemoCachesWhileObserved(t *testing.T) {
	rt := New()
	count := NewSignal(rt, 1)

	computes := 0
	doubled := NewMemo(rt, func() int {
		computes++
		return count.Get() * 2
	})

	r := Autorun(rt, func(*Reaction) {
		_ = doubled.Get()
	})
	defer r.Dispose()

	if computes != 1 {
		t.Fatalf("expected 1 compute, got %d", computes)
	}

	// Clean reads return the cache without re-running.
	for i := 0; i < 5; i++ {
		if got := doubled.Get(); got != 2 {
			t.Fatalf("expected 2, got %d", got)
		}
	}
	if computes != 1 {
		t.Errorf("clean reads must not recompute, got %d computes", computes)
	}

	count.Set(3)
	if got := doubled.Get(); got != 6 {
		t.Errorf("expected 6, got %d", got)
	}
	if computes != 2 {
		t.Errorf("expected 2 computes after change, got %d", computes)
	}
}

func TestMemoChain(t *testing.T) {
	rt := New()
	base := NewSignal(rt, 1)
	doubled := NewMemo(rt, func() int { return base.Get() * 2 })
	quadrupled := NewMemo(rt, func() int { return doubled.Get() * 2 })

	var got int
	r := Autorun(rt, func(*Reaction) {
		got = quadrupled.Get()
	})
	defer r.Dispose()

	if got != 4 {
		t.Errorf("expected 4, got %d", got)
	}

	base.Set(5)
	if got != 20 {
		t.Errorf("expected 20 after change, got %d", got)
	}
}

func TestMemoUnchangedOutputDoesNotRunReaction(t *testing.T) {
	rt := New()
	n := NewSignal(rt, 2)

	parityComputes := 0
	parity := NewMemo(rt, func() int {
		parityComputes++
		return n.Get() % 2
	})

	runs := 0
	r := Autorun(rt, func(*Reaction) {
		_ = parity.Get()
		runs++
	})
	defer r.Dispose()

	if runs != 1 || parityComputes != 1 {
		t.Fatalf("expected 1 run / 1 compute, got %d / %d", runs, parityComputes)
	}

	// Even to even: the memo is consulted (recomputes once) but its output
	// is unchanged, so the reaction must not run.
	n.Set(4)
	if parityComputes != 2 {
		t.Errorf("memo should have been consulted exactly once, got %d computes", parityComputes)
	}
	if runs != 1 {
		t.Errorf("reaction must not run when memo output is unchanged, got %d runs", runs)
	}

	// Even to odd: output changes, reaction runs.
	n.Set(5)
	if runs != 2 {
		t.Errorf("expected 2 runs after parity change, got %d", runs)
	}
}

func TestMemoSuspendsWithoutObservers(t *testing.T) {
	rt := New()
	count := NewSignal(rt, 1)
	doubled := NewMemo(rt, func() int { return count.Get() * 2 })

	r := Autorun(rt, func(*Reaction) {
		_ = doubled.Get()
	})

	if count.ObserverCount() != 1 {
		t.Fatalf("expected memo subscribed to signal, got %d observers", count.ObserverCount())
	}
	if doubled.ObserverCount() != 1 {
		t.Fatalf("expected reaction subscribed to memo, got %d observers", doubled.ObserverCount())
	}

	// Losing the last observer drops the memo's own subscriptions.
	r.Dispose()
	if doubled.ObserverCount() != 0 {
		t.Errorf("expected 0 observers on memo, got %d", doubled.ObserverCount())
	}
	if count.ObserverCount() != 0 {
		t.Errorf("suspended memo must unsubscribe from its dependencies, got %d observers", count.ObserverCount())
	}

	// Still readable; evaluates directly while inert.
	if got := doubled.Get(); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if count.ObserverCount() != 0 {
		t.Errorf("inert read must not re-subscribe, got %d observers", count.ObserverCount())
	}
}

func TestMemoSuspensionCascades(t *testing.T) {
	rt := New()
	base := NewSignal(rt, 1)
	inner := NewMemo(rt, func() int { return base.Get() + 1 })
	outer := NewMemo(rt, func() int { return inner.Get() + 1 })

	r := Autorun(rt, func(*Reaction) {
		_ = outer.Get()
	})

	if base.ObserverCount() != 1 || inner.ObserverCount() != 1 {
		t.Fatalf("expected chain subscribed, got base=%d inner=%d",
			base.ObserverCount(), inner.ObserverCount())
	}

	r.Dispose()
	if base.ObserverCount() != 0 || inner.ObserverCount() != 0 {
		t.Errorf("suspension must cascade up the chain, got base=%d inner=%d",
			base.ObserverCount(), inner.ObserverCount())
	}
}

func TestMemoCustomEquals(t *testing.T) {
	rt := New()
	n := NewSignal(rt, 10)

	// Bucket by tens; output "changes" only when the bucket changes.
	bucket := NewMemo(rt, func() int { return n.Get() }).
		WithEquals(func(a, b int) bool { return a/10 == b/10 })

	runs := 0
	r := Autorun(rt, func(*Reaction) {
		_ = bucket.Get()
		runs++
	})
	defer r.Dispose()

	n.Set(15) // same bucket
	if runs != 1 {
		t.Errorf("same-bucket change must not run reaction, got %d runs", runs)
	}

	n.Set(25) // new bucket
	if runs != 2 {
		t.Errorf("expected 2 runs after bucket change, got %d", runs)
	}
}

func TestMemoErrorPropagatesAndIsNotCached(t *testing.T) {
	rt := New()
	boom := NewSignal(rt, true)

	computes := 0
	m := NewMemo(rt, func() int {
		computes++
		if boom.Peek() {
			panic(errors.New("compute failed"))
		}
		return 42
	})

	// Direct read: the panic reaches ordinary control flow.
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic from memo read")
			}
		}()
		_ = m.Get()
	}()

	// No error was cached: the next read retries and succeeds.
	boom.Set(false)
	if got := m.Get(); got != 42 {
		t.Errorf("expected 42 after recovery, got %d", got)
	}
	if computes != 2 {
		t.Errorf("expected 2 computes, got %d", computes)
	}
}

func TestMemoPeekDoesNotSubscribe(t *testing.T) {
	rt := New()
	inner := NewSignal(rt, 2)
	m := NewMemo(rt, func() int { return inner.Get() * 2 })

	runs := 0
	Autorun(rt, func(*Reaction) {
		_ = m.Peek()
		runs++
	})

	// The unobserved memo evaluated inertly inside the reaction's run: the
	// reaction must not have picked up the memo's internal reads.
	if inner.ObserverCount() != 0 {
		t.Errorf("expected 0 observers on inner, got %d", inner.ObserverCount())
	}
	if m.ObserverCount() != 0 {
		t.Errorf("expected 0 observers on memo, got %d", m.ObserverCount())
	}

	inner.Set(5)
	if runs != 1 {
		t.Errorf("Peek should not subscribe, got %d runs", runs)
	}
}

func TestMemoName(t *testing.T) {
	rt := New()
	m := NewMemo(rt, func() int { return 0 }, WithName("total"))
	if m.Name() != "total" {
		t.Errorf("expected name %q, got %q", "total", m.Name())
	}
}
