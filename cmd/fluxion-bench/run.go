package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxion-dev/fluxion/pkg/fluxion"
)

type profile struct {
	Name      string
	Signals   int
	Depth     int
	Reactions int
	BatchSize int
	Duration  time.Duration
}

var profiles = map[string]profile{
	"fast": {
		Name:      "fast",
		Signals:   100,
		Depth:     3,
		Reactions: 50,
		BatchSize: 10,
		Duration:  5 * time.Second,
	},
	"standard": {
		Name:      "standard",
		Signals:   1000,
		Depth:     5,
		Reactions: 200,
		BatchSize: 50,
		Duration:  15 * time.Second,
	},
	"stress": {
		Name:      "stress",
		Signals:   10000,
		Depth:     8,
		Reactions: 1000,
		BatchSize: 200,
		Duration:  30 * time.Second,
	},
}

type benchConfig struct {
	Profile    string
	Signals    int
	Depth      int
	Reactions  int
	BatchSize  int
	Duration   time.Duration
	JSONOutput string
}

func runCmd() *cobra.Command {
	var (
		profileFlag   string
		signalsFlag   int
		depthFlag     int
		reactionsFlag int
		batchFlag     int
		durationFlag  time.Duration
		jsonFlag      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic reactive workload and report results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(profileFlag, signalsFlag, depthFlag, reactionsFlag, batchFlag, durationFlag, jsonFlag)
			if err != nil {
				return err
			}

			report := runWorkload(cfg)
			writeSummary(os.Stderr, report)
			return writeJSON(cfg.JSONOutput, report)
		},
	}

	cmd.Flags().StringVar(&profileFlag, "profile", "standard", "profile: fast|standard|stress")
	cmd.Flags().IntVar(&signalsFlag, "signals", -1, "number of source signals")
	cmd.Flags().IntVar(&depthFlag, "depth", -1, "memo layers between signals and reactions")
	cmd.Flags().IntVar(&reactionsFlag, "reactions", -1, "number of observing reactions")
	cmd.Flags().IntVar(&batchFlag, "batch", -1, "writes per transaction")
	cmd.Flags().DurationVar(&durationFlag, "duration", 0, "benchmark duration, e.g. 30s")
	cmd.Flags().StringVar(&jsonFlag, "json", "-", "JSON output path ('-' for stdout)")

	return cmd
}

func resolveConfig(profileName string, signals, depth, reactions, batch int, duration time.Duration, jsonOut string) (benchConfig, error) {
	name := strings.ToLower(strings.TrimSpace(profileName))
	if name == "" {
		name = "standard"
	}
	base, ok := profiles[name]
	if !ok {
		return benchConfig{}, fmt.Errorf("unknown profile %q", name)
	}

	cfg := benchConfig{
		Profile:    base.Name,
		Signals:    base.Signals,
		Depth:      base.Depth,
		Reactions:  base.Reactions,
		BatchSize:  base.BatchSize,
		Duration:   base.Duration,
		JSONOutput: strings.TrimSpace(jsonOut),
	}
	if signals != -1 {
		cfg.Signals = signals
	}
	if depth != -1 {
		cfg.Depth = depth
	}
	if reactions != -1 {
		cfg.Reactions = reactions
	}
	if batch != -1 {
		cfg.BatchSize = batch
	}
	if duration != 0 {
		cfg.Duration = duration
	}
	if cfg.JSONOutput == "" {
		cfg.JSONOutput = "-"
	}

	if cfg.Signals <= 0 {
		return benchConfig{}, fmt.Errorf("--signals must be > 0")
	}
	if cfg.Depth <= 0 {
		return benchConfig{}, fmt.Errorf("--depth must be > 0")
	}
	if cfg.Reactions <= 0 {
		return benchConfig{}, fmt.Errorf("--reactions must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return benchConfig{}, fmt.Errorf("--batch must be > 0")
	}
	if cfg.Duration <= 0 {
		return benchConfig{}, fmt.Errorf("--duration must be > 0")
	}
	return cfg, nil
}

// countingHook tallies engine activity without retaining events.
type countingHook struct {
	reactionRuns   atomic.Uint64
	reactionErrors atomic.Uint64
	memoRecomputes atomic.Uint64
	transactions   atomic.Uint64
}

func (h *countingHook) ReactionRan(name string, took time.Duration, err error) {
	h.reactionRuns.Add(1)
	if err != nil {
		h.reactionErrors.Add(1)
	}
}

func (h *countingHook) MemoRecomputed(name string, took time.Duration) {
	h.memoRecomputes.Add(1)
}

func (h *countingHook) TransactionEnded(txName string, took time.Duration, reactionsRun int) {
	h.transactions.Add(1)
}

// workload is a layered graph: source signals feed chains of memos whose
// tips are observed by reactions. Each write batch touches a rotating
// window of sources.
type workload struct {
	rt        *fluxion.Runtime
	sources   []*fluxion.Signal[int]
	tips      []*fluxion.Memo[int]
	reactions []*fluxion.Reaction
	sink      atomic.Uint64
}

func buildWorkload(cfg benchConfig, rt *fluxion.Runtime) *workload {
	w := &workload{rt: rt}

	w.sources = make([]*fluxion.Signal[int], cfg.Signals)
	for i := range w.sources {
		w.sources[i] = fluxion.NewSignal(rt, i)
	}

	// Each chain starts from a pair of sources and passes through Depth
	// memo layers.
	w.tips = make([]*fluxion.Memo[int], cfg.Signals)
	for i := range w.tips {
		a := w.sources[i]
		b := w.sources[(i+1)%len(w.sources)]
		prev := fluxion.NewMemo(rt, func() int { return a.Get() + b.Get() })
		for d := 1; d < cfg.Depth; d++ {
			inner := prev
			prev = fluxion.NewMemo(rt, func() int { return inner.Get() + 1 })
		}
		w.tips[i] = prev
	}

	w.reactions = make([]*fluxion.Reaction, cfg.Reactions)
	for i := range w.reactions {
		tip := w.tips[i%len(w.tips)]
		w.reactions[i] = fluxion.Autorun(rt, func(r *fluxion.Reaction) {
			w.sink.Add(uint64(tip.Get()))
		})
	}

	return w
}

func (w *workload) dispose() {
	for _, r := range w.reactions {
		r.Dispose()
	}
}

// writeBatch bumps cfg.BatchSize sources inside one transaction starting at
// the given offset and returns the settle latency of the pass.
func (w *workload) writeBatch(offset, size int) time.Duration {
	start := time.Now()
	w.rt.Batch(func() {
		for i := 0; i < size; i++ {
			s := w.sources[(offset+i)%len(w.sources)]
			s.Update(func(v int) int { return v + 1 })
		}
	})
	return time.Since(start)
}

func runWorkload(cfg benchConfig) benchReport {
	var hook countingHook
	rt := fluxion.New(fluxion.WithHook(&hook))

	buildStart := time.Now()
	w := buildWorkload(cfg, rt)
	buildTime := time.Since(buildStart)
	defer w.dispose()

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	var latencies []time.Duration
	var batches uint64
	deadline := time.Now().Add(cfg.Duration)
	offset := 0

	start := time.Now()
	for time.Now().Before(deadline) {
		latencies = append(latencies, w.writeBatch(offset, cfg.BatchSize))
		offset += cfg.BatchSize
		batches++
	}
	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	return buildReport(cfg, elapsed, buildTime, batches, latencies, &hook, before, after)
}

type benchReport struct {
	Version    string         `json:"version"`
	Run        runInfo        `json:"run"`
	Workload   workloadInfo   `json:"workload"`
	LatencyMS  latencyInfo    `json:"latency_ms"`
	Throughput throughputInfo `json:"throughput"`
	GC         gcInfo         `json:"gc"`
}

type runInfo struct {
	Timestamp string `json:"timestamp"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUCount  int    `json:"cpu_count"`
}

type workloadInfo struct {
	Profile     string `json:"profile"`
	Signals     int    `json:"signals"`
	Depth       int    `json:"depth"`
	Reactions   int    `json:"reactions"`
	BatchSize   int    `json:"batch_size"`
	DurationMS  int64  `json:"duration_ms"`
	BuildTimeMS int64  `json:"build_time_ms"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type throughputInfo struct {
	Batches         uint64  `json:"batches"`
	BatchesPerSec   float64 `json:"batches_per_sec"`
	WritesPerSec    float64 `json:"writes_per_sec"`
	ReactionRuns    uint64  `json:"reaction_runs"`
	ReactionErrors  uint64  `json:"reaction_errors"`
	MemoRecomputes  uint64  `json:"memo_recomputes"`
	RunsPerBatch    float64 `json:"runs_per_batch"`
	ComputesPerRun  float64 `json:"computes_per_run"`
}

type gcInfo struct {
	AllocMB      float64 `json:"alloc_mb"`
	HeapLiveMB   float64 `json:"heap_live_mb"`
	NumGC        uint32  `json:"num_gc"`
	PauseTotalMS float64 `json:"pause_total_ms"`
	PauseAvgMS   float64 `json:"pause_avg_ms"`
}

func buildReport(
	cfg benchConfig,
	elapsed time.Duration,
	buildTime time.Duration,
	batches uint64,
	latencies []time.Duration,
	hook *countingHook,
	before runtime.MemStats,
	after runtime.MemStats,
) benchReport {
	elapsedSeconds := math.Max(0.001, elapsed.Seconds())
	batchesPerSec := float64(batches) / elapsedSeconds

	latency := latencyInfo{}
	if len(latencies) > 0 {
		latency = latencyInfo{
			Min: ms(latencies[0]),
			P50: ms(percentile(latencies, 0.50)),
			P95: ms(percentile(latencies, 0.95)),
			P99: ms(percentile(latencies, 0.99)),
			Max: ms(latencies[len(latencies)-1]),
		}
	}

	runs := hook.reactionRuns.Load()
	computes := hook.memoRecomputes.Load()
	runsPerBatch := 0.0
	if batches > 0 {
		runsPerBatch = float64(runs) / float64(batches)
	}
	computesPerRun := 0.0
	if runs > 0 {
		computesPerRun = float64(computes) / float64(runs)
	}

	return benchReport{
		Version: "1",
		Run: runInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUCount:  runtime.NumCPU(),
		},
		Workload: workloadInfo{
			Profile:     cfg.Profile,
			Signals:     cfg.Signals,
			Depth:       cfg.Depth,
			Reactions:   cfg.Reactions,
			BatchSize:   cfg.BatchSize,
			DurationMS:  cfg.Duration.Milliseconds(),
			BuildTimeMS: buildTime.Milliseconds(),
		},
		LatencyMS: latency,
		Throughput: throughputInfo{
			Batches:        batches,
			BatchesPerSec:  batchesPerSec,
			WritesPerSec:   batchesPerSec * float64(cfg.BatchSize),
			ReactionRuns:   runs,
			ReactionErrors: hook.reactionErrors.Load(),
			MemoRecomputes: computes,
			RunsPerBatch:   runsPerBatch,
			ComputesPerRun: computesPerRun,
		},
		GC: gcInfo{
			AllocMB:      float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			HeapLiveMB:   float64(after.HeapAlloc) / (1024 * 1024),
			NumGC:        after.NumGC - before.NumGC,
			PauseTotalMS: ms(time.Duration(after.PauseTotalNs - before.PauseTotalNs)),
			PauseAvgMS:   ms(avgPause(after, before)),
		},
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func avgPause(after, before runtime.MemStats) time.Duration {
	gcCount := after.NumGC - before.NumGC
	if gcCount == 0 {
		return 0
	}
	return time.Duration((after.PauseTotalNs - before.PauseTotalNs) / uint64(gcCount))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func writeSummary(w io.Writer, report benchReport) {
	fmt.Fprintln(w, "=== Fluxion Propagation Benchmark ===")
	fmt.Fprintf(w, "Profile: %s\n", report.Workload.Profile)
	fmt.Fprintf(w, "Signals: %d, depth: %d, reactions: %d\n", report.Workload.Signals, report.Workload.Depth, report.Workload.Reactions)
	fmt.Fprintf(w, "Batch size: %d writes\n", report.Workload.BatchSize)
	fmt.Fprintf(w, "Graph build: %d ms\n", report.Workload.BuildTimeMS)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Batches: %d (%.1f/s, %.0f writes/s)\n", report.Throughput.Batches, report.Throughput.BatchesPerSec, report.Throughput.WritesPerSec)
	fmt.Fprintf(w, "Reaction runs: %d (%.1f per batch)\n", report.Throughput.ReactionRuns, report.Throughput.RunsPerBatch)
	fmt.Fprintf(w, "Memo recomputes: %d (%.1f per run)\n", report.Throughput.MemoRecomputes, report.Throughput.ComputesPerRun)
	fmt.Fprintf(w, "Reaction errors: %d\n", report.Throughput.ReactionErrors)
	fmt.Fprintln(w)

	if report.LatencyMS.Max == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintln(w, "Settle latency (write batch -> all reactions ran):")
		fmt.Fprintf(w, "  min: %.3f ms\n", report.LatencyMS.Min)
		fmt.Fprintf(w, "  p50: %.3f ms\n", report.LatencyMS.P50)
		fmt.Fprintf(w, "  p95: %.3f ms\n", report.LatencyMS.P95)
		fmt.Fprintf(w, "  p99: %.3f ms\n", report.LatencyMS.P99)
		fmt.Fprintf(w, "  max: %.3f ms\n", report.LatencyMS.Max)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:     %.2f MB\n", report.GC.AllocMB)
	fmt.Fprintf(w, "  heap_live: %.2f MB\n", report.GC.HeapLiveMB)
	fmt.Fprintf(w, "  num_gc:    %d\n", report.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (total)\n", report.GC.PauseTotalMS)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (avg)\n", report.GC.PauseAvgMS)
}

func writeJSON(path string, report benchReport) error {
	var out io.Writer
	if path == "-" {
		out = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
