package metrics

import (
	"sort"
	"sync"
	"time"
)

// Collector aggregates per-rule counters for entry processing.
type Collector struct {
	mu      sync.RWMutex
	enabled bool
	started time.Time
	misses  uint64
	panics  uint64
	rules   map[string]*RuleMetrics
}

// RuleMetrics captures per-rule counters tracked by the collector.
type RuleMetrics struct {
	Rule        string    `json:"rule"`
	Source      string    `json:"source,omitempty"`
	Matched     uint64    `json:"matched"`
	Applied     uint64    `json:"applied"`
	IconUpdates uint64    `json:"iconUpdates"`
	LastMatched time.Time `json:"lastMatched,omitempty"`
	LastApplied time.Time `json:"lastApplied,omitempty"`
}

// Totals aggregates counters across all rules in a snapshot.
type Totals struct {
	Matched     uint64 `json:"matched"`
	Applied     uint64 `json:"applied"`
	IconUpdates uint64 `json:"iconUpdates"`
	// Misses counts records no rule matched.
	Misses uint64 `json:"misses"`
	// Recovered counts records whose processing panicked.
	Recovered uint64 `json:"recovered"`
}

// Snapshot is the serializable view of the current metrics state.
type Snapshot struct {
	Enabled bool          `json:"enabled"`
	Started time.Time     `json:"started,omitempty"`
	Totals  Totals        `json:"totals"`
	Rules   []RuleMetrics `json:"rules,omitempty"`
}

// NewCollector returns a collector with the provided opt-in state.
func NewCollector(enabled bool) *Collector {
	c := &Collector{}
	c.SetEnabled(enabled)
	return c
}

// Enabled reports whether collection is currently active.
func (c *Collector) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles collection, resetting counters when enabling.
func (c *Collector) SetEnabled(enabled bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	c.misses = 0
	c.panics = 0
	if !enabled {
		c.rules = nil
		c.started = time.Time{}
		return
	}
	c.started = time.Now()
	c.rules = make(map[string]*RuleMetrics)
}

// RecordMatch increments the matched counter for a rule.
func (c *Collector) RecordMatch(rule, source string) {
	c.updateRule(rule, source, func(metrics *RuleMetrics, now time.Time) {
		metrics.Matched++
		metrics.LastMatched = now
	})
}

// RecordApplied increments the applied counter for a rule.
func (c *Collector) RecordApplied(rule, source string) {
	c.updateRule(rule, source, func(metrics *RuleMetrics, now time.Time) {
		metrics.Applied++
		metrics.LastApplied = now
	})
}

// RecordIconUpdate increments the icon update counter for a rule.
func (c *Collector) RecordIconUpdate(rule, source string) {
	c.updateRule(rule, source, func(metrics *RuleMetrics, _ time.Time) {
		metrics.IconUpdates++
	})
}

// RecordMiss counts a record that no rule matched.
func (c *Collector) RecordMiss() {
	c.update(func() { c.misses++ })
}

// RecordRecovered counts a record whose processing panicked.
func (c *Collector) RecordRecovered() {
	c.update(func() { c.panics++ })
}

func (c *Collector) update(mutate func()) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	mutate()
}

func (c *Collector) updateRule(rule, source string, mutate func(*RuleMetrics, time.Time)) {
	if c == nil || mutate == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if c.rules == nil {
		c.rules = make(map[string]*RuleMetrics)
	}
	metrics, exists := c.rules[rule]
	if !exists {
		metrics = &RuleMetrics{Rule: rule, Source: source}
		c.rules[rule] = metrics
	}
	mutate(metrics, now)
}

// Snapshot returns the current counters for serialization or display.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Enabled: c.enabled}
	if !c.enabled {
		return snap
	}
	snap.Started = c.started
	snap.Totals.Misses = c.misses
	snap.Totals.Recovered = c.panics
	if len(c.rules) == 0 {
		return snap
	}
	snap.Rules = make([]RuleMetrics, 0, len(c.rules))
	for _, metrics := range c.rules {
		if metrics == nil {
			continue
		}
		clone := *metrics
		snap.Rules = append(snap.Rules, clone)
		snap.Totals.Matched += clone.Matched
		snap.Totals.Applied += clone.Applied
		snap.Totals.IconUpdates += clone.IconUpdates
	}
	sort.Slice(snap.Rules, func(i, j int) bool {
		return snap.Rules[i].Rule < snap.Rules[j].Rule
	})
	return snap
}
