package fluxion

import (
	"fmt"
	"testing"
)

func TestDiamondIsGlitchFree(t *testing.T) {
	rt := New()
	base := NewSignal(rt, 1)

	doubleComputes := 0
	double := NewMemo(rt, func() int {
		doubleComputes++
		return base.Get() * 2
	})
	tripleComputes := 0
	triple := NewMemo(rt, func() int {
		tripleComputes++
		return base.Get() * 3
	})

	var observed []string
	r := Autorun(rt, func(*Reaction) {
		observed = append(observed, fmt.Sprintf("%d+%d", double.Get(), triple.Get()))
	})
	defer r.Dispose()

	observed = nil
	base.Set(10)

	// Exactly one run, and it sees both branches fully settled: never a
	// fresh double with a stale triple.
	if len(observed) != 1 {
		t.Fatalf("expected exactly 1 run through the diamond, got %d: %v", len(observed), observed)
	}
	if observed[0] != "20+30" {
		t.Errorf("expected consistent snapshot %q, got %q", "20+30", observed[0])
	}
	if doubleComputes != 2 || tripleComputes != 2 {
		t.Errorf("each memo must recompute exactly once per pass, got double=%d triple=%d",
			doubleComputes, tripleComputes)
	}
}

func TestSharedMemoNotRecomputedPerObserver(t *testing.T) {
	rt := New()
	base := NewSignal(rt, 1)

	computes := 0
	shared := NewMemo(rt, func() int {
		computes++
		return base.Get() * 2
	})

	for i := 0; i < 3; i++ {
		r := Autorun(rt, func(*Reaction) {
			_ = shared.Get()
		})
		defer r.Dispose()
	}

	if computes != 1 {
		t.Fatalf("expected 1 compute for 3 observers, got %d", computes)
	}

	base.Set(2)
	if computes != 2 {
		t.Errorf("memo must recompute once per pass regardless of observer count, got %d", computes)
	}
}

func TestNestedTrackingAttribution(t *testing.T) {
	rt := New()
	inner := NewSignal(rt, 2)

	// The memo's own dependency must not leak into the reaction's set: the
	// reaction depends on the memo node, not on what the memo reads.
	even := NewMemo(rt, func() bool { return inner.Get()%2 == 0 })

	runs := 0
	r := Autorun(rt, func(*Reaction) {
		_ = even.Get()
		runs++
	})
	defer r.Dispose()

	// inner has exactly one observer: the memo.
	if inner.ObserverCount() != 1 {
		t.Fatalf("expected inner observed only by memo, got %d observers", inner.ObserverCount())
	}

	// A change that keeps the memo's output stable must not run the
	// reaction; it would if the reaction had recorded inner directly.
	inner.Set(4)
	if runs != 1 {
		t.Errorf("reaction must not observe the memo's internals, got %d runs", runs)
	}
}

func TestTrackingBalancedAfterPanic(t *testing.T) {
	rt := New()
	rt.OnReactionError(func(err error, r *Reaction) {})

	a := NewSignal(rt, 0)
	b := NewSignal(rt, 0)

	Autorun(rt, func(*Reaction) {
		_ = a.Get()
		if a.Peek() == 1 {
			panic("mid-run failure")
		}
		_ = b.Get()
	})

	a.Set(1) // panics after reading a, before reading b

	// The tracking frame was popped on the panic path: reads outside any
	// run stay pure.
	_ = a.Get()
	if a.ObserverCount() != 1 {
		t.Errorf("expected 1 observer on a, got %d", a.ObserverCount())
	}

	// Partial tracking up to the throw point is kept (a), later reads were
	// dropped (b).
	if b.ObserverCount() != 0 {
		t.Errorf("expected b unsubscribed after partial run, got %d observers", b.ObserverCount())
	}

	// A change to the partially-tracked dependency still triggers recovery.
	var recovered bool
	a.Set(2)
	rt.Untracked(func() { recovered = b.ObserverCount() == 1 })
	if !recovered {
		t.Error("expected full dependency set restored after recovery run")
	}
}

func TestMemoConsultedBehindTwoLevels(t *testing.T) {
	rt := New()
	n := NewSignal(rt, 3)

	sign := NewMemo(rt, func() int {
		v := n.Get()
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		default:
			return 0
		}
	})
	label := NewMemo(rt, func() string {
		if sign.Get() >= 0 {
			return "non-negative"
		}
		return "negative"
	})

	runs := 0
	r := Autorun(rt, func(*Reaction) {
		_ = label.Get()
		runs++
	})
	defer r.Dispose()

	// Signal changes, sign unchanged, label unchanged: nothing runs.
	n.Set(7)
	if runs != 1 {
		t.Errorf("unchanged two-level chain must not run reaction, got %d runs", runs)
	}

	// Sign flips but label still matches: nothing runs.
	n.Set(0)
	if runs != 1 {
		t.Errorf("label unchanged, reaction must not run, got %d runs", runs)
	}

	n.Set(-4)
	if runs != 2 {
		t.Errorf("expected 2 runs after label change, got %d", runs)
	}
}
