// Package report renders the ranked reference report for a scan.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/blackwell-systems/refscan/internal/output"
	"github.com/blackwell-systems/refscan/internal/scanner"
)

// CandidateMarker is printed under ranked files with few references.
const CandidateMarker = "  ✅ CANDIDATE FOR MOVING"

// maxListedTypes is how many matched names the ranked section shows per file.
const maxListedTypes = 3

// Options holds the report thresholds.
type Options struct {
	// TopN is the number of files in the ranked section.
	TopN int `json:"top_n"`
	// CandidateMax is the highest count that gets the candidate marker.
	CandidateMax int `json:"candidate_max"`
	// IndependentMax is the highest count listed as independent.
	IndependentMax int `json:"independent_max"`
	// NameWidth is the minimum width of the file name column.
	NameWidth int `json:"name_width"`
}

// DefaultOptions returns the standard thresholds: top 15, candidates at
// three references or fewer, independent at two or fewer.
func DefaultOptions() Options {
	return Options{
		TopN:           15,
		CandidateMax:   3,
		IndependentMax: 2,
		NameWidth:      40,
	}
}

// Report is the ranked view of a scan.
type Report struct {
	// Ranked is every record, ascending by count, ties in enumeration order.
	Ranked []scanner.FileRecord
	opts   Options
}

// New ranks records for reporting.
func New(records []scanner.FileRecord, opts Options) *Report {
	return &Report{
		Ranked: scanner.SortByCount(records),
		opts:   opts,
	}
}

// Top returns at most TopN of the lowest-count records.
func (r *Report) Top() []scanner.FileRecord {
	n := r.opts.TopN
	if n > len(r.Ranked) {
		n = len(r.Ranked)
	}
	if n < 0 {
		n = 0
	}
	return r.Ranked[:n]
}

// IsCandidate reports whether rec gets the candidate marker.
func (r *Report) IsCandidate(rec scanner.FileRecord) bool {
	return rec.Count <= r.opts.CandidateMax
}

// Independent returns every record with at most IndependentMax references,
// in ranked order.
func (r *Report) Independent() []scanner.FileRecord {
	var out []scanner.FileRecord
	for _, rec := range r.Ranked {
		if rec.Count <= r.opts.IndependentMax {
			out = append(out, rec)
		}
	}
	return out
}

// RankedHeader is the title of the first section.
func (r *Report) RankedHeader() string {
	return "=== FILES SORTED BY COMPLEXITY (independent first) ==="
}

// IndependentHeader is the title of the second section.
func (r *Report) IndependentHeader() string {
	return fmt.Sprintf("=== INDEPENDENT FILES (0-%d references) ===", r.opts.IndependentMax)
}

// WriteText writes both sections in the plain text layout.
func (r *Report) WriteText(w io.Writer) error {
	var sb strings.Builder

	sb.WriteString(output.StyleHeader.Render(r.RankedHeader()))
	sb.WriteString("\n\n")
	for _, rec := range r.Top() {
		sb.WriteString(r.rankedLine(rec))
		sb.WriteString("\n")
		if r.IsCandidate(rec) {
			sb.WriteString(output.StyleSuccess.Render(CandidateMarker))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(output.StyleHeader.Render(r.IndependentHeader()))
	sb.WriteString("\n\n")
	for _, rec := range r.Independent() {
		fmt.Fprintf(&sb, "  - %s: %s\n", rec.Name, formatList(rec.Refs))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func (r *Report) rankedLine(rec scanner.FileRecord) string {
	types := rec.Refs
	if len(types) > maxListedTypes {
		types = types[:maxListedTypes]
	}
	return fmt.Sprintf("%-*s | Refs: %2d | Types: %s",
		r.opts.NameWidth, rec.Name, rec.Count, strings.Join(types, ", "))
}

// formatList renders names as "['A', 'B']", or "[]" when empty.
func formatList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = "'" + name + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// jsonReport is the machine-readable form of a report.
type jsonReport struct {
	Dir         string               `json:"dir"`
	Files       []scanner.FileRecord `json:"files"`
	Ranked      []jsonRanked         `json:"ranked"`
	Independent []scanner.FileRecord `json:"independent"`
	Errors      []scanner.ScanError  `json:"errors,omitempty"`
	Thresholds  Options              `json:"thresholds"`
}

type jsonRanked struct {
	scanner.FileRecord
	Candidate bool `json:"candidate"`
}

// WriteJSON writes the report as indented JSON. files holds the records in
// enumeration order.
func (r *Report) WriteJSON(w io.Writer, dir string, files []scanner.FileRecord, errs []scanner.ScanError) error {
	out := jsonReport{
		Dir:         dir,
		Files:       nonNil(files),
		Ranked:      []jsonRanked{},
		Independent: nonNil(r.Independent()),
		Errors:      errs,
		Thresholds:  r.opts,
	}
	for _, rec := range r.Top() {
		out.Ranked = append(out.Ranked, jsonRanked{FileRecord: rec, Candidate: r.IsCandidate(rec)})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func nonNil(records []scanner.FileRecord) []scanner.FileRecord {
	if records == nil {
		return []scanner.FileRecord{}
	}
	return records
}
