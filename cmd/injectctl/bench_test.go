package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	cases := []struct {
		name     string
		values   []time.Duration
		p        float64
		expected time.Duration
	}{
		{name: "empty", values: nil, p: 0.5, expected: 0},
		{name: "lower bound", values: []time.Duration{time.Millisecond, 2 * time.Millisecond}, p: -0.1, expected: time.Millisecond},
		{name: "upper bound", values: []time.Duration{time.Millisecond, 2 * time.Millisecond}, p: 1.2, expected: 2 * time.Millisecond},
		{name: "median", values: []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, p: 0.5, expected: 2 * time.Millisecond},
		{
			name:     "p95",
			values:   []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 4 * time.Millisecond, 5 * time.Millisecond},
			p:        0.95,
			expected: 5 * time.Millisecond,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentile(tc.values, tc.p); got != tc.expected {
				t.Fatalf("percentile(%s, %f) = %s, want %s", tc.name, tc.p, got, tc.expected)
			}
		})
	}
}

func TestEntriesPerSecond(t *testing.T) {
	cases := []struct {
		name     string
		total    time.Duration
		entries  int
		expected float64
	}{
		{name: "zero duration", total: 0, entries: 10, expected: 0},
		{name: "zero entries", total: time.Second, entries: 0, expected: 0},
		{name: "positive", total: 10 * time.Millisecond, entries: 4, expected: 400},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := entriesPerSecond(tc.total, tc.entries)
			if math.Abs(got-tc.expected) > 1e-9 {
				t.Fatalf("entriesPerSecond(%s) = %f, want %f", tc.name, got, tc.expected)
			}
		})
	}
}

func TestBuildBenchReport(t *testing.T) {
	durations := []time.Duration{time.Millisecond, 3 * time.Millisecond, 2 * time.Millisecond, 2 * time.Millisecond}
	iterations := []time.Duration{4 * time.Millisecond, 4 * time.Millisecond}
	start := runtime.MemStats{Mallocs: 10, TotalAlloc: 1000}
	end := runtime.MemStats{Mallocs: 30, TotalAlloc: 3000}

	report := buildBenchReport("records.json", 2, 2, 1, 2, 3, durations, iterations, start, end)
	s := report.Summary
	if s.TotalEntries != 4 || s.EntriesPerIteration != 2 || s.Matched != 3 || s.Rules != 2 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.Latency.Min != 1 || s.Latency.Max != 3 || s.Latency.Mean != 2 {
		t.Fatalf("unexpected latency: %+v", s.Latency)
	}
	if s.Allocations.Total != 20 || s.Allocations.PerEntry != 5 || s.Allocations.BytesPerEntry != 500 {
		t.Fatalf("unexpected allocations: %+v", s.Allocations)
	}
	if s.TotalDurationMs != 8 || s.EntriesPerSecond != 500 {
		t.Fatalf("unexpected throughput: total=%f eps=%f", s.TotalDurationMs, s.EntriesPerSecond)
	}
	if len(report.DurationsMs) != 4 || report.DurationsMs[1] != 3 {
		t.Fatalf("unexpected durations: %v", report.DurationsMs)
	}
}

func TestFormatBytes(t *testing.T) {
	if got := formatBytes(0); got != "0 B (0.00 MiB)" {
		t.Fatalf("formatBytes(0) = %q", got)
	}
	if got := formatBytes(3 * 1024 * 1024); got != "3145728 B (3.00 MiB)" {
		t.Fatalf("formatBytes(3MiB) = %q", got)
	}
}

func TestRunBenchWritesReport(t *testing.T) {
	dir := rulesDir(t, map[string]string{"books.yaml": noteRules})
	data := t.TempDir()
	forms := writeTempFile(t, data, "forms.yaml", noteForms)
	records := writeTempFile(t, data, "records.json", `{"_entryList": [
  {"formType": 27, "formId": 4660},
  {"formType": 27, "formId": 9029},
  {"formType": 26, "formId": 1}
]}`)
	reportPath := filepath.Join(data, "out", "report.json")

	var stdout, stderr bytes.Buffer
	err := run([]string{"bench", "--rules", dir, "--records", records, "--forms", forms, "--iterations", "3", "--warmup", "1", "--output", reportPath}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("bench returned error: %v (stderr %q)", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Entries:") || !strings.Contains(stdout.String(), "9 total, 3 / iteration, 6 matched") {
		t.Fatalf("unexpected summary:\n%s", stdout.String())
	}

	raw, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var report benchReport
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Summary.Iterations != 3 || report.Summary.WarmupIterations != 1 || report.Summary.Rules != 2 {
		t.Fatalf("unexpected report summary: %+v", report.Summary)
	}
	if len(report.DurationsMs) != 0 {
		t.Fatalf("durations should be omitted without --durations")
	}
}

func TestRunBenchRejectsIterations(t *testing.T) {
	dir := rulesDir(t, map[string]string{"books.yaml": noteRules})
	records := writeTempFile(t, t.TempDir(), "records.json", `[]`)
	var stdout, stderr bytes.Buffer
	if err := run([]string{"bench", "--rules", dir, "--records", records, "--iterations", "0"}, &stdout, &stderr); err == nil {
		t.Fatalf("expected error for zero iterations")
	}
}
