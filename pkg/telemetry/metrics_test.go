package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/fluxion-dev/fluxion/pkg/fluxion"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetricsHookCountsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook := Prometheus(WithRegistry(reg))

	rt := fluxion.New(fluxion.WithHook(hook))
	count := fluxion.NewSignal(rt, 0)

	r := fluxion.Autorun(rt, func(*fluxion.Reaction) {
		_ = count.Get()
	})
	defer r.Dispose()

	count.Set(1)
	count.Set(2)

	if got := counterValue(t, hook.reactionRuns.WithLabelValues("ok")); got != 3 {
		t.Errorf("expected 3 ok runs, got %v", got)
	}
	if got := histogramCount(t, hook.reactionDuration); got != 3 {
		t.Errorf("expected 3 duration samples, got %v", got)
	}
	// Two writes, two propagation passes (creation pass runs no pending
	// reactions).
	if got := histogramCount(t, hook.txDuration); got != 2 {
		t.Errorf("expected 2 transaction samples, got %v", got)
	}
}

func TestMetricsHookCountsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook := Prometheus(WithRegistry(reg))

	rt := fluxion.New(fluxion.WithHook(hook))
	rt.OnReactionError(func(err error, r *fluxion.Reaction) {})

	boom := fluxion.NewSignal(rt, false)
	r := fluxion.Autorun(rt, func(*fluxion.Reaction) {
		if boom.Get() {
			panic(errors.New("metric failure"))
		}
	}, fluxion.WithName("exploder"))
	defer r.Dispose()

	boom.Set(true)

	if got := counterValue(t, hook.reactionRuns.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 error run, got %v", got)
	}
	if got := counterValue(t, hook.reactionErrors.WithLabelValues("exploder")); got != 1 {
		t.Errorf("expected 1 error for exploder, got %v", got)
	}
}

func TestMetricsHookCountsMemos(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook := Prometheus(WithRegistry(reg))

	rt := fluxion.New(fluxion.WithHook(hook))
	n := fluxion.NewSignal(rt, 1)
	doubled := fluxion.NewMemo(rt, func() int { return n.Get() * 2 })

	r := fluxion.Autorun(rt, func(*fluxion.Reaction) {
		_ = doubled.Get()
	})
	defer r.Dispose()

	n.Set(2)

	if got := counterValue(t, hook.memoRecomputes); got != 2 {
		t.Errorf("expected 2 memo recomputes, got %v", got)
	}
}

func TestMetricsHookCustomNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook := Prometheus(
		WithRegistry(reg),
		WithNamespace("myapp"),
		WithSubsystem("ui"),
		WithConstLabels(prometheus.Labels{"env": "test"}),
		WithBuckets([]float64{0.001, 0.01}),
	)

	hook.ReactionRan("r", time.Millisecond, nil)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "myapp_ui_reaction_runs_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected metric family myapp_ui_reaction_runs_total to be registered")
	}
}
