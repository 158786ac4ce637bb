// Package store provides SQLite persistence for recorded scan runs.
package store

import "time"

// Run is one recorded scan.
type Run struct {
	ID        int64     `json:"id"`
	TakenAt   time.Time `json:"taken_at"`
	Dir       string    `json:"dir"`
	Extension string    `json:"extension"`
	VocabSize int       `json:"vocab_size"`
	FileCount int       `json:"file_count"`
	Version   string    `json:"version"`
}

// FileRecordRow is a file's reference count within a run.
type FileRecordRow struct {
	ID       int64    `json:"id"`
	RunID    int64    `json:"run_id"`
	Position int      `json:"position"`
	File     string   `json:"file"`
	RefCount int      `json:"ref_count"`
	Refs     []string `json:"refs"`
	HasFunc  bool     `json:"has_func"`
	HasType  bool     `json:"has_type"`
}

// FileDelta is the change of one file's reference count between two runs.
type FileDelta struct {
	File     string `json:"file"`
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
	Delta    int    `json:"delta"`
	// Status is "added", "removed", "changed" or "unchanged".
	Status string `json:"status"`
}

// RunDiff is the comparison between two runs.
type RunDiff struct {
	Previous *Run        `json:"previous"`
	Current  *Run        `json:"current"`
	Files    []FileDelta `json:"files"`
}
