// Package watcher rescans a directory at a fixed interval and emits alerts
// when per-file reference counts change.
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/blackwell-systems/refscan/internal/scanner"
)

// Alert represents a notable change detected by the watcher.
type Alert struct {
	Level   string // "info", "warning", "critical"
	Title   string
	File    string
	Message string
	Time    time.Time
}

// Scanner is the part of *scanner.Scanner the watcher depends on.
type Scanner interface {
	Scan(ctx context.Context, dir string) (*scanner.Result, error)
}

// Watcher rescans a directory at a regular interval and emits alerts when
// reference counts change between scans.
type Watcher struct {
	scanner       Scanner
	dir           string
	interval      time.Duration
	candidateMax  int
	previous      *scanner.Result
	alertFn       func(Alert)     // callback for emitting alerts
	lastAlertKeys map[string]bool // dedup: suppress repeated identical alerts
}

// New creates a Watcher for dir. Files at or below candidateMax references
// are treated as move candidates when classifying changes.
func New(s Scanner, dir string, interval time.Duration, candidateMax int, alertFn func(Alert)) *Watcher {
	return &Watcher{
		scanner:       s,
		dir:           dir,
		interval:      interval,
		candidateMax:  candidateMax,
		alertFn:       alertFn,
		lastAlertKeys: make(map[string]bool),
	}
}

// Run takes an initial scan, then checks at every interval. Blocks until ctx
// is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.previous == nil {
		initial, err := w.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("initial scan: %w", err)
		}
		w.previous = initial
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, a := range w.Check(ctx) {
				if w.alertFn != nil {
					w.alertFn(a)
				}
			}
		}
	}
}

// Snapshot scans the directory once and makes the result the baseline for
// the next Check.
func (w *Watcher) Snapshot(ctx context.Context) (*scanner.Result, error) {
	result, err := w.scanner.Scan(ctx, w.dir)
	if err != nil {
		return nil, err
	}
	w.previous = result
	return result, nil
}

// Check performs a single cycle: rescans, compares against the previous
// result and returns any alerts. A failed rescan keeps the previous result.
// Identical alerts are suppressed until the underlying data changes.
func (w *Watcher) Check(ctx context.Context) []Alert {
	prev := w.previous

	var raw []Alert
	curr, err := w.Snapshot(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		return nil
	case err != nil:
		raw = []Alert{{
			Level:   "warning",
			Title:   "Scan failed",
			Message: fmt.Sprintf("Could not scan %s: %v", w.dir, err),
			Time:    time.Now(),
		}}
	case prev != nil:
		raw = Compare(prev, curr, w.candidateMax)
	}

	// Deduplicate: suppress alerts with the same content as last cycle.
	currentKeys := make(map[string]bool, len(raw))
	var alerts []Alert
	for _, a := range raw {
		key := a.Level + ":" + a.Title + ":" + a.Message
		currentKeys[key] = true
		if !w.lastAlertKeys[key] {
			alerts = append(alerts, a)
		}
	}
	w.lastAlertKeys = currentKeys
	return alerts
}
