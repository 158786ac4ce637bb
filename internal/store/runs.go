package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// refsSeparator joins matched names in the refs column. Names are identifiers,
// so they never contain it.
const refsSeparator = ","

// CreateRun inserts a run with its file records in one transaction and
// returns the run ID. TakenAt defaults to now.
func (db *DB) CreateRun(run *Run, records []FileRecordRow) (int64, error) {
	if run.TakenAt.IsZero() {
		run.TakenAt = time.Now().UTC()
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO runs (taken_at, dir, extension, vocab_size, file_count, version)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.TakenAt.Format(time.RFC3339Nano), run.Dir, run.Extension,
		run.VocabSize, len(records), run.Version,
	)
	if err != nil {
		return 0, err
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO file_records
		(run_id, position, file, ref_count, refs, has_func, has_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range records {
		if _, err := stmt.Exec(runID, i, r.File, len(r.Refs),
			strings.Join(r.Refs, refsSeparator), r.HasFunc, r.HasType); err != nil {
			return 0, fmt.Errorf("inserting %s: %w", r.File, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	run.ID = runID
	run.FileCount = len(records)
	return runID, nil
}

const runColumns = "id, taken_at, dir, extension, vocab_size, file_count, version"

// GetRun returns a run by ID, or nil if it does not exist.
func (db *DB) GetRun(id int64) (*Run, error) {
	row := db.conn.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	return scanRun(row)
}

// GetRunN returns the Nth most recent run (1 = latest, 2 = previous, etc.),
// or nil if there are fewer than n runs.
func (db *DB) GetRunN(n int) (*Run, error) {
	if n < 1 {
		return nil, fmt.Errorf("run index must be >= 1, got %d", n)
	}
	row := db.conn.QueryRow(
		"SELECT "+runColumns+" FROM runs ORDER BY id DESC LIMIT 1 OFFSET ?",
		n-1,
	)
	return scanRun(row)
}

// ListRuns returns up to limit runs, most recent first. A limit <= 0 returns all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query("SELECT "+runColumns+" FROM runs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		r, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row *sql.Row) (*Run, error) {
	r, err := scanRunRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func scanRunRow(row rowScanner) (*Run, error) {
	var r Run
	var takenAt string
	if err := row.Scan(&r.ID, &takenAt, &r.Dir, &r.Extension, &r.VocabSize, &r.FileCount, &r.Version); err != nil {
		return nil, err
	}
	r.TakenAt, _ = time.Parse(time.RFC3339Nano, takenAt)
	return &r, nil
}

// GetFileRecords returns the file records of a run in their original
// enumeration order.
func (db *DB) GetFileRecords(runID int64) ([]FileRecordRow, error) {
	rows, err := db.conn.Query(
		`SELECT id, run_id, position, file, ref_count, refs, has_func, has_type
		 FROM file_records WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []FileRecordRow
	for rows.Next() {
		var r FileRecordRow
		var refs string
		if err := rows.Scan(&r.ID, &r.RunID, &r.Position, &r.File, &r.RefCount,
			&refs, &r.HasFunc, &r.HasType); err != nil {
			return nil, err
		}
		r.Refs = splitRefs(refs)
		records = append(records, r)
	}
	return records, rows.Err()
}

func splitRefs(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, refsSeparator)
}

// DiffRuns compares the file records of two runs. Files are returned sorted
// by name.
func (db *DB) DiffRuns(previous, current *Run) (*RunDiff, error) {
	prevRecords, err := db.GetFileRecords(previous.ID)
	if err != nil {
		return nil, fmt.Errorf("loading run %d: %w", previous.ID, err)
	}
	curRecords, err := db.GetFileRecords(current.ID)
	if err != nil {
		return nil, fmt.Errorf("loading run %d: %w", current.ID, err)
	}

	return &RunDiff{
		Previous: previous,
		Current:  current,
		Files:    diffRecords(prevRecords, curRecords),
	}, nil
}

func diffRecords(prev, cur []FileRecordRow) []FileDelta {
	prevCounts := make(map[string]int, len(prev))
	for _, r := range prev {
		prevCounts[r.File] = r.RefCount
	}
	curCounts := make(map[string]int, len(cur))
	for _, r := range cur {
		curCounts[r.File] = r.RefCount
	}

	var deltas []FileDelta
	for file, c := range curCounts {
		p, existed := prevCounts[file]
		d := FileDelta{File: file, Previous: p, Current: c, Delta: c - p}
		switch {
		case !existed:
			d.Status = "added"
		case c != p:
			d.Status = "changed"
		default:
			d.Status = "unchanged"
		}
		deltas = append(deltas, d)
	}
	for file, p := range prevCounts {
		if _, ok := curCounts[file]; !ok {
			deltas = append(deltas, FileDelta{File: file, Previous: p, Delta: -p, Status: "removed"})
		}
	}

	sort.Slice(deltas, func(i, j int) bool {
		return deltas[i].File < deltas[j].File
	})
	return deltas
}
