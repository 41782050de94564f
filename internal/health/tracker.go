// Package health tracks per-domain fetch outcomes and circuit state.
package health

import (
	"sync"
	"time"

	"github.com/p4blo4p/sitemap-hunter/internal/hunter"
)

// DefaultThreshold is the consecutive-failure count that opens a circuit.
const DefaultThreshold = 5

// Tracker holds one mutable cell per domain. Updates for a domain are
// serialized through its cell mutex; different domains never contend.
type Tracker struct {
	threshold int

	mu    sync.Mutex // guards the cells map only
	cells map[string]*cell
}

type cell struct {
	mu  sync.Mutex
	rec hunter.HealthRecord
}

// New creates a Tracker with the given circuit threshold.
func New(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{
		threshold: threshold,
		cells:     make(map[string]*cell),
	}
}

// Seed loads cumulative totals persisted by an earlier pass. Circuit state
// and the consecutive-failure counter start fresh: open is terminal only
// within a pass.
func (t *Tracker) Seed(rec hunter.HealthRecord) {
	c := t.cell(rec.Domain)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.Attempts = rec.Attempts
	c.rec.Failures = rec.Failures
	c.rec.Skipped = rec.Skipped
	c.rec.LastFailureAt = rec.LastFailureAt
	c.rec.ConsecutiveFailures = 0
	c.rec.Circuit = hunter.CircuitClosed
}

// Allow reports whether fetches for the domain may proceed.
func (t *Tracker) Allow(domain string) bool {
	c := t.cell(domain)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Circuit != hunter.CircuitOpen
}

// RecordSuccess counts a successful fetch. Any success resets the
// consecutive-failure counter; cumulative totals are unaffected beyond the
// attempt count.
func (t *Tracker) RecordSuccess(domain string) hunter.HealthRecord {
	c := t.cell(domain)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.Attempts++
	c.rec.ConsecutiveFailures = 0
	return c.rec
}

// RecordFailure counts a failed fetch. The circuit opens exactly when the
// consecutive-failure count reaches the threshold and stays open for the
// rest of the pass.
func (t *Tracker) RecordFailure(domain string, at time.Time) hunter.HealthRecord {
	c := t.cell(domain)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.Attempts++
	c.rec.Failures++
	c.rec.LastFailureAt = at
	if c.rec.Circuit == hunter.CircuitClosed {
		c.rec.ConsecutiveFailures++
		if c.rec.ConsecutiveFailures >= t.threshold {
			c.rec.Circuit = hunter.CircuitOpen
		}
	}
	return c.rec
}

// RecordSkip counts a fetch suppressed because the circuit is open. Skips
// are distinct from failures and do not touch the consecutive counter.
func (t *Tracker) RecordSkip(domain string) hunter.HealthRecord {
	c := t.cell(domain)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.Skipped++
	return c.rec
}

// Record returns a copy of the domain's current record.
func (t *Tracker) Record(domain string) hunter.HealthRecord {
	c := t.cell(domain)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec
}

// Snapshot returns copies of every tracked record, keyed by domain.
func (t *Tracker) Snapshot() map[string]hunter.HealthRecord {
	t.mu.Lock()
	cells := make(map[string]*cell, len(t.cells))
	for name, c := range t.cells {
		cells[name] = c
	}
	t.mu.Unlock()

	out := make(map[string]hunter.HealthRecord, len(cells))
	for name, c := range cells {
		c.mu.Lock()
		out[name] = c.rec
		c.mu.Unlock()
	}
	return out
}

func (t *Tracker) cell(domain string) *cell {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.cells[domain]
	if !ok {
		c = &cell{rec: hunter.HealthRecord{
			Domain:  domain,
			Circuit: hunter.CircuitClosed,
		}}
		t.cells[domain] = c
	}
	return c
}
