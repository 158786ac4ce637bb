// Package scanner provides file discovery and vocabulary reference counting.
package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyVocabulary is returned when a vocabulary has no names.
	ErrEmptyVocabulary = errors.New("scanner: vocabulary is empty")
	// ErrScanCancelled is returned when scanning is cancelled via context.
	ErrScanCancelled = errors.New("scanner: scan cancelled")
	// ErrNotDirectory is returned when the scan target is not a directory.
	ErrNotDirectory = errors.New("scanner: not a directory")
	// ErrInvalidName is returned for a vocabulary entry that is not an identifier.
	ErrInvalidName = errors.New("scanner: vocabulary entry is not an identifier")
	// ErrInvalidEncoding is returned when a file's content is not valid UTF-8.
	ErrInvalidEncoding = errors.New("scanner: file is not valid UTF-8")
)

// FileRecord is the per-file aggregation of vocabulary references.
type FileRecord struct {
	// Name is the file name relative to the scanned directory.
	Name string `json:"file"`

	// Refs lists the matched vocabulary names in vocabulary order.
	Refs []string `json:"refs"`

	// Count is the number of matched names. Always len(Refs).
	Count int `json:"count"`

	// HasFunc indicates whether the content contains a function definition marker.
	HasFunc bool `json:"has_func"`

	// HasType indicates whether the content contains a type definition marker.
	HasType bool `json:"has_type"`
}

// ScanError represents an error that occurred during a specific phase of scanning.
type ScanError struct {
	// Err is the underlying error.
	Err error

	// Path is the file path where the error occurred (may be empty for non-file errors).
	Path string

	// Phase indicates which phase the error occurred in.
	// Values: "discovery", "read"
	Phase string
}

// Error implements the error interface.
func (e ScanError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Phase, e.Path, e.Err)
}

// MarshalJSON includes the underlying error message.
func (e ScanError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Path  string `json:"path,omitempty"`
		Phase string `json:"phase"`
		Error string `json:"error"`
	}{e.Path, e.Phase, msg})
}

// Unwrap returns the underlying error.
func (e ScanError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a scan.
type Result struct {
	// Dir is the scanned directory.
	Dir string `json:"dir"`

	// Records holds one record per scanned file in enumeration order.
	Records []FileRecord `json:"files"`

	// Errors contains per-file failures. Only populated in keep-going mode.
	Errors []ScanError `json:"errors,omitempty"`

	// Duration is the total scan duration.
	Duration time.Duration `json:"-"`
}

// Index returns the mapping from file name to record.
func (r *Result) Index() map[string]FileRecord {
	m := make(map[string]FileRecord, len(r.Records))
	for _, rec := range r.Records {
		m[rec.Name] = rec
	}
	return m
}
