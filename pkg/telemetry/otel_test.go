package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/fluxion-dev/fluxion/pkg/fluxion"
)

// The global tracer provider defaults to a no-op; these tests pin down the
// hook's behavior around it (filtering, error recording paths) rather than
// exported span contents.

func TestTracingHookEndToEnd(t *testing.T) {
	hook := OpenTelemetry(WithTracerName("test"), WithTraceMemos(true))

	rt := fluxion.New(fluxion.WithHook(hook))
	rt.OnReactionError(func(err error, r *fluxion.Reaction) {})

	n := fluxion.NewSignal(rt, 1)
	doubled := fluxion.NewMemo(rt, func() int { return n.Get() * 2 })

	r := fluxion.Autorun(rt, func(*fluxion.Reaction) {
		if doubled.Get() > 100 {
			panic(errors.New("too big"))
		}
	})
	defer r.Dispose()

	n.Set(2)   // ok run
	n.Set(200) // error run
}

func TestTracingHookFilter(t *testing.T) {
	traced := 0
	hook := OpenTelemetry(WithReactionFilter(func(name string) bool {
		traced++
		return name == "wanted"
	}))

	hook.ReactionRan("wanted", time.Millisecond, nil)
	hook.ReactionRan("ignored", time.Millisecond, nil)

	if traced != 2 {
		t.Errorf("expected filter consulted twice, got %d", traced)
	}
}
