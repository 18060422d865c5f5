package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/muhammadmuzzammil1998/jsonc"

	"github.com/GroundAura/InventoryInjector/internal/engine"
	"github.com/GroundAura/InventoryInjector/internal/util"
	"github.com/GroundAura/InventoryInjector/internal/value"
)

type benchLatencyStats struct {
	Min    float64 `json:"minMs"`
	Mean   float64 `json:"meanMs"`
	Median float64 `json:"medianMs"`
	P95    float64 `json:"p95Ms"`
	Max    float64 `json:"maxMs"`
}

type benchAllocationStats struct {
	Total         uint64  `json:"total"`
	PerEntry      float64 `json:"perEntry"`
	BytesTotal    uint64  `json:"bytesTotal"`
	BytesPerEntry float64 `json:"bytesPerEntry"`
}

type benchSummary struct {
	Records             string               `json:"records"`
	Rules               int                  `json:"rules"`
	Iterations          int                  `json:"iterations"`
	WarmupIterations    int                  `json:"warmupIterations"`
	EntriesPerIteration int                  `json:"entriesPerIteration"`
	TotalEntries        int                  `json:"totalEntries"`
	Matched             int                  `json:"matched"`
	Latency             benchLatencyStats    `json:"latency"`
	IterationDuration   benchLatencyStats    `json:"iterationDuration"`
	Allocations         benchAllocationStats `json:"allocations"`
	TotalDurationMs     float64              `json:"totalDurationMs"`
	EntriesPerSecond    float64              `json:"entriesPerSecond"`
}

type benchReport struct {
	Summary     benchSummary `json:"summary"`
	DurationsMs []float64    `json:"durationsMs,omitempty"`
}

// runBench replays a record file through the processor and reports per-entry
// latency. Every iteration decodes a fresh copy so earlier runs do not leave
// rule output behind for later ones.
func runBench(args []string, stdout, stderr io.Writer, logger *util.Logger) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rulesDir := fs.String("rules", "", "path to the rule directory")
	recordsPath := fs.String("records", "", "JSON file holding an array of records or a list object with _entryList")
	formsPath := fs.String("forms", "", "form dump (YAML, or SQLite with .db)")
	iterations := fs.Int("iterations", 100, "number of measured iterations")
	warmup := fs.Int("warmup", 5, "iterations to run before measuring")
	output := fs.String("output", "", "write the JSON report to this path (- for stdout)")
	withDurations := fs.Bool("durations", false, "include per-entry durations in the JSON report")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if *rulesDir == "" || *recordsPath == "" {
		fs.Usage()
		return fmt.Errorf("bench requires --rules <dir> and --records <file>")
	}
	if *iterations <= 0 {
		return fmt.Errorf("iterations must be positive")
	}
	if *warmup < 0 {
		*warmup = 0
	}

	raw, err := os.ReadFile(*recordsPath)
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	if !jsonc.Valid(raw) {
		return fmt.Errorf("%s: invalid JSON", *recordsPath)
	}
	raw = jsonc.ToJSON(raw)

	ctx := context.Background()
	sess, err := newSession(ctx, *rulesDir, *formsPath, "", logger)
	if err != nil {
		return err
	}
	defer sess.close()

	decode := func() ([]value.Value, error) {
		v, err := value.ParseJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", *recordsPath, err)
		}
		return benchEntries(v), nil
	}
	noop := engine.IconContinuation(func(value.Value) {})

	for i := 0; i < *warmup; i++ {
		entries, err := decode()
		if err != nil {
			return err
		}
		for _, entry := range entries {
			sess.processor.ProcessEntry(entry, noop)
		}
	}

	var (
		durations          []time.Duration
		iterationDurations []time.Duration
		perIteration       int
		matched            int
		start, end         runtime.MemStats
	)
	runtime.GC()
	runtime.ReadMemStats(&start)
	for i := 0; i < *iterations; i++ {
		entries, err := decode()
		if err != nil {
			return err
		}
		perIteration = len(entries)
		iterStart := time.Now()
		for _, entry := range entries {
			began := time.Now()
			if sess.processor.ProcessEntry(entry, noop).Matched {
				matched++
			}
			durations = append(durations, time.Since(began))
		}
		iterationDurations = append(iterationDurations, time.Since(iterStart))
	}
	runtime.ReadMemStats(&end)

	report := buildBenchReport(*recordsPath, sess.manager.Current().Len(), *iterations, *warmup, perIteration, matched, durations, iterationDurations, start, end)
	if !*withDurations {
		report.DurationsMs = nil
	}
	if err := printBenchSummary(report.Summary, stdout); err != nil {
		return err
	}
	if strings.TrimSpace(*output) != "" {
		return writeBenchReport(report, *output, stdout)
	}
	return nil
}

func benchEntries(v value.Value) []value.Value {
	var list value.Value
	switch {
	case v.IsArray():
		list = v
	case v.IsObject() && v.HasMember(entryListMember):
		list = v.GetMember(entryListMember)
	default:
		return []value.Value{v}
	}
	entries := make([]value.Value, 0, list.ArraySize())
	for i, n := 0, list.ArraySize(); i < n; i++ {
		entries = append(entries, list.GetElement(i))
	}
	return entries
}

func buildBenchReport(records string, ruleCount, iterations, warmup, perIteration, matched int, durations, iterationDurations []time.Duration, start, end runtime.MemStats) benchReport {
	totalEntries := len(durations)
	latencyStats, totalDuration := buildLatencyStats(durations)
	iterationStats, _ := buildLatencyStats(iterationDurations)

	allocs := end.Mallocs - start.Mallocs
	bytesAllocated := end.TotalAlloc - start.TotalAlloc

	durationsMs := make([]float64, len(durations))
	for i, d := range durations {
		durationsMs[i] = toMillis(d)
	}

	summary := benchSummary{
		Records:             records,
		Rules:               ruleCount,
		Iterations:          iterations,
		WarmupIterations:    warmup,
		EntriesPerIteration: perIteration,
		TotalEntries:        totalEntries,
		Matched:             matched,
		Latency:             latencyStats,
		IterationDuration:   iterationStats,
		Allocations: benchAllocationStats{
			Total:         allocs,
			PerEntry:      safeDivide(float64(allocs), totalEntries),
			BytesTotal:    bytesAllocated,
			BytesPerEntry: safeDivide(float64(bytesAllocated), totalEntries),
		},
		TotalDurationMs:  toMillis(totalDuration),
		EntriesPerSecond: entriesPerSecond(totalDuration, totalEntries),
	}
	return benchReport{Summary: summary, DurationsMs: durationsMs}
}

func buildLatencyStats(durations []time.Duration) (benchLatencyStats, time.Duration) {
	stats := benchLatencyStats{}
	if len(durations) == 0 {
		return stats, 0
	}
	total := time.Duration(0)
	for _, d := range durations {
		total += d
	}
	mean := total / time.Duration(len(durations))
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	stats.Min = toMillis(sorted[0])
	stats.Mean = toMillis(mean)
	stats.Median = toMillis(percentile(sorted, 0.50))
	stats.P95 = toMillis(percentile(sorted, 0.95))
	stats.Max = toMillis(sorted[len(sorted)-1])
	return stats, total
}

func safeDivide(total float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func printBenchSummary(summary benchSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Records:\t%s\n", summary.Records)
	fmt.Fprintf(tw, "Rules:\t%d\n", summary.Rules)
	fmt.Fprintf(tw, "Iterations:\t%d (warmup %d)\n", summary.Iterations, summary.WarmupIterations)
	fmt.Fprintf(tw, "Entries:\t%d total, %d / iteration, %d matched\n", summary.TotalEntries, summary.EntriesPerIteration, summary.Matched)
	latency := summary.Latency
	fmt.Fprintf(tw, "Latency (ms):\tmin %.4f | mean %.4f | median %.4f | p95 %.4f | max %.4f\n", latency.Min, latency.Mean, latency.Median, latency.P95, latency.Max)
	iter := summary.IterationDuration
	fmt.Fprintf(tw, "Iteration duration (ms):\tmin %.2f | mean %.2f | median %.2f | p95 %.2f | max %.2f\n", iter.Min, iter.Mean, iter.Median, iter.P95, iter.Max)
	allocs := summary.Allocations
	fmt.Fprintf(tw, "Allocations:\t%d total (%.2f / entry)\n", allocs.Total, allocs.PerEntry)
	fmt.Fprintf(tw, "Bytes allocated:\t%s (%.2f / entry)\n", formatBytes(allocs.BytesTotal), allocs.BytesPerEntry)
	fmt.Fprintf(tw, "Entries/sec:\t%.2f\n", summary.EntriesPerSecond)
	return tw.Flush()
}

func writeBenchReport(report benchReport, outputPath string, stdout io.Writer) error {
	w := stdout
	if outputPath != "-" {
		if dir := filepath.Dir(outputPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create report dir: %w", err)
			}
		}
		out, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer out.Close()
		w = out
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func formatBytes(bytes uint64) string {
	const miB = 1024 * 1024
	if bytes == 0 {
		return "0 B (0.00 MiB)"
	}
	return fmt.Sprintf("%d B (%.2f MiB)", bytes, float64(bytes)/float64(miB))
}

func entriesPerSecond(total time.Duration, entries int) float64 {
	if total <= 0 || entries == 0 {
		return 0
	}
	return float64(entries) / total.Seconds()
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
	idx := int(p*float64(len(sorted)-1) + 0.5)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
