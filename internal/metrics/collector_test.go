package metrics

import (
	"testing"
	"time"
)

func TestCollectorRecordsCounters(t *testing.T) {
	c := NewCollector(true)
	c.RecordMatch("Notes", "books.yaml: rules[0]")
	c.RecordApplied("Notes", "books.yaml: rules[0]")
	c.RecordIconUpdate("Notes", "books.yaml: rules[0]")
	c.RecordMatch("Gold", "misc.yaml: rules[2]")
	c.RecordMiss()
	c.RecordRecovered()
	snap := c.Snapshot()
	if !snap.Enabled {
		t.Fatalf("expected snapshot to be enabled")
	}
	want := Totals{Matched: 2, Applied: 1, IconUpdates: 1, Misses: 1, Recovered: 1}
	if snap.Totals != want {
		t.Fatalf("unexpected totals: %#v", snap.Totals)
	}
	if len(snap.Rules) != 2 {
		t.Fatalf("expected two rules in snapshot, got %d", len(snap.Rules))
	}
	if snap.Rules[0].Rule != "Gold" || snap.Rules[1].Rule != "Notes" {
		t.Fatalf("expected rules sorted by name: %#v", snap.Rules)
	}
	rule := snap.Rules[1]
	if rule.Source != "books.yaml: rules[0]" {
		t.Fatalf("unexpected rule source: %#v", rule)
	}
	if rule.Matched != 1 || rule.Applied != 1 || rule.IconUpdates != 1 {
		t.Fatalf("unexpected rule counters: %#v", rule)
	}
	if rule.LastMatched.IsZero() || rule.LastApplied.IsZero() {
		t.Fatalf("expected timestamps to be recorded: %#v", rule)
	}
}

func TestCollectorToggle(t *testing.T) {
	c := NewCollector(false)
	c.RecordMatch("Notes", "")
	c.RecordMiss()
	if snap := c.Snapshot(); snap.Enabled || len(snap.Rules) != 0 || snap.Totals.Misses != 0 {
		t.Fatalf("expected disabled snapshot: %#v", snap)
	}
	c.SetEnabled(true)
	c.RecordMatch("Notes", "")
	c.RecordApplied("Notes", "")
	snap := c.Snapshot()
	if !snap.Enabled || snap.Totals.Matched != 1 || snap.Totals.Applied != 1 {
		t.Fatalf("unexpected enabled snapshot: %#v", snap)
	}
	c.SetEnabled(false)
	snap = c.Snapshot()
	if snap.Enabled {
		t.Fatalf("expected disabled after toggle")
	}
	if !snap.Started.IsZero() {
		t.Fatalf("expected started timestamp reset, got %v", snap.Started)
	}
	time.Sleep(10 * time.Millisecond)
	c.SetEnabled(true)
	c.RecordMatch("Notes", "")
	snap = c.Snapshot()
	if snap.Totals.Matched != 1 {
		t.Fatalf("expected counters to reset after re-enable: %#v", snap)
	}
}

func TestNilCollectorIsInert(t *testing.T) {
	var c *Collector
	c.RecordMatch("Notes", "")
	c.RecordMiss()
	if c.Enabled() {
		t.Fatalf("nil collector must report disabled")
	}
	if snap := c.Snapshot(); snap.Enabled || snap.Totals != (Totals{}) {
		t.Fatalf("unexpected nil snapshot: %#v", snap)
	}
}
