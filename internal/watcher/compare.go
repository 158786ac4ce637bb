package watcher

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/blackwell-systems/refscan/internal/scanner"
)

// Compare returns one alert per file whose record differs between prev and
// curr, ordered by file name.
func Compare(prev, curr *scanner.Result, candidateMax int) []Alert {
	before := prev.Index()
	after := curr.Index()

	names := make([]string, 0, len(after))
	for name := range after {
		names = append(names, name)
	}
	for name := range before {
		if _, ok := after[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	now := time.Now()
	var alerts []Alert
	for _, name := range names {
		p, existed := before[name]
		c, exists := after[name]

		a := Alert{File: name, Time: now}
		switch {
		case !existed:
			a.Level = "info"
			a.Title = "New file"
			a.Message = fmt.Sprintf("%s has %d references", name, c.Count)
		case !exists:
			a.Level = "info"
			a.Title = "File removed"
			a.Message = fmt.Sprintf("%s had %d references", name, p.Count)
		case c.Count > p.Count:
			a.Level = "warning"
			a.Title = "References increased"
			if p.Count <= candidateMax && c.Count > candidateMax {
				a.Level = "critical"
				a.Title = "No longer a move candidate"
			}
			a.Message = countChange(name, p, c)
		case c.Count < p.Count:
			a.Level = "info"
			a.Title = "References decreased"
			if p.Count > candidateMax && c.Count <= candidateMax {
				a.Title = "New move candidate"
			}
			a.Message = countChange(name, p, c)
		case !sameRefs(p.Refs, c.Refs):
			a.Level = "info"
			a.Title = "References changed"
			a.Message = countChange(name, p, c)
		default:
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts
}

// countChange formats "a.go: 1 → 2 references (+Tool)".
func countChange(name string, p, c scanner.FileRecord) string {
	msg := fmt.Sprintf("%s: %d → %d references", name, p.Count, c.Count)
	if delta := refDelta(p.Refs, c.Refs); delta != "" {
		msg += " (" + delta + ")"
	}
	return msg
}

func refDelta(prev, curr []string) string {
	had := make(map[string]bool, len(prev))
	for _, r := range prev {
		had[r] = true
	}
	has := make(map[string]bool, len(curr))
	for _, r := range curr {
		has[r] = true
	}

	var parts []string
	for _, r := range curr {
		if !had[r] {
			parts = append(parts, "+"+r)
		}
	}
	for _, r := range prev {
		if !has[r] {
			parts = append(parts, "-"+r)
		}
	}
	return strings.Join(parts, ", ")
}

func sameRefs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
