package detect

import (
	"sync"
	"time"
)

// occurrence records a single observed run of a normalized query
// template, along with how long that run took to complete.
type occurrence struct {
	at       time.Time
	duration time.Duration
}

// Alert represents a detected N+1 Cypher query pattern: the same
// normalized query template repeated past threshold inside window.
// TotalDuration is the sum of every occurrence's elapsed Session.Run
// time inside the current window, letting a caller weigh how much
// wall-clock the burst actually cost rather than just how often it fired.
type Alert struct {
	Query         string
	Count         int
	TotalDuration time.Duration
}

// Detector tracks normalized-query frequency and round-trip cost,
// and detects N+1 patterns.
type Detector struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	cooldown  time.Duration
	queries   map[string][]occurrence
	lastAlert map[string]time.Time
}

// New creates a Detector.
// threshold: number of occurrences to trigger (e.g., 5).
// window: time window to count within (e.g., 1s).
// cooldown: minimum time between alerts for the same template (e.g., 10s).
func New(threshold int, window, cooldown time.Duration) *Detector {
	return &Detector{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		queries:   make(map[string][]occurrence),
		lastAlert: make(map[string]time.Time),
	}
}

// Result holds the outcome of a Record call.
type Result struct {
	// Matched is true when the query count is at or above the threshold
	// within the time window. Use this to mark every event in the pattern.
	Matched bool
	// Alert is non-nil only when the threshold is first crossed (respecting
	// cooldown). Use this to trigger a one-time notification.
	Alert *Alert
}

// Record registers one completed run of a normalized Cypher query
// (see query.Normalize), tagged with how long Session.Run through
// Session.Sync took for that run, and returns a Result. dur is
// whatever a Session's Observer callback reports; it is cosmetic to
// the detection logic itself but is carried into Alert.TotalDuration
// so a burst of fast queries can be told apart from a burst of slow ones.
func (d *Detector) Record(query string, t time.Time, dur time.Duration) Result {
	if query == "" {
		return Result{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := t.Add(-d.window)

	// Evict old entries and append new occurrence.
	occs := d.queries[query]
	start := 0
	for start < len(occs) && occs[start].at.Before(cutoff) {
		start++
	}
	occs = append(occs[start:], occurrence{at: t, duration: dur})
	d.queries[query] = occs

	if len(occs) < d.threshold {
		return Result{}
	}

	res := Result{Matched: true}

	// Only fire alert notification respecting cooldown.
	if last, ok := d.lastAlert[query]; !ok || t.Sub(last) >= d.cooldown {
		d.lastAlert[query] = t
		var total time.Duration
		for _, o := range occs {
			total += o.duration
		}
		res.Alert = &Alert{Query: query, Count: len(occs), TotalDuration: total}
	}

	return res
}
